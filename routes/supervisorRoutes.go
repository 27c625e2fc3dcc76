package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

type assignmentItem struct {
	EmployeeId int     `json:"employee_id" binding:"required"`
	Hours      float64 `json:"hours" binding:"required,gt=0"`
	Qty        float64 `json:"qty" binding:"required,gt=0"`
}

type assignWorkInput struct {
	WorkOrderId    int              `json:"work_order_id" binding:"required"`
	ActivityCodeId int              `json:"activity_code_id" binding:"required"`
	Assignments    []assignmentItem `json:"assignments" binding:"required,min=1,dive"`
	Mode           string           `json:"mode" binding:"omitempty,oneof=manual auto_split_hours"`
	EntryDate      string           `json:"entry_date"`
	Status         string           `json:"status" binding:"omitempty,oneof=C IC"`
}

// assignWork fans one work assignment out into job cards, one per employee.
// auto_split_hours redistributes the combined hours and qty equally; manual
// takes the list as given. Each created card runs through the engine.
func (h *Handlers) assignWork(c *gin.Context) {
	var input assignWorkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)

	workOrder, err := models.GetWorkOrder(ctx, input.WorkOrderId)
	if err != nil {
		respondError(c, err)
		return
	}
	activityCode, err := models.GetActivityCode(ctx, input.ActivityCodeId)
	if err != nil {
		respondError(c, err)
		return
	}

	entryDate := input.EntryDate
	if entryDate == "" {
		entryDate = time.Now().UTC().Format("2006-01-02")
	}
	status := input.Status
	if status == "" {
		status = string(models.JobCardStatusComplete)
	}

	assignments := input.Assignments
	if input.Mode == "auto_split_hours" {
		var totalHours, totalQty float64
		for _, a := range assignments {
			totalHours += a.Hours
			totalQty += a.Qty
		}
		n := float64(len(assignments))
		for i := range assignments {
			assignments[i].Hours = totalHours / n
			assignments[i].Qty = totalQty / n
		}
	}

	createdIds := make([]int, 0, len(assignments))
	for _, assignment := range assignments {
		assignment := assignment
		cardInput := models.NewJobCard{
			EmployeeId:     &assignment.EmployeeId,
			SupervisorId:   &userId,
			MachineId:      &workOrder.MachineId,
			WorkOrderId:    &workOrder.ID,
			ActivityCodeId: &activityCode.ID,
			ActivityDesc:   activityCode.Description,
			Qty:            assignment.Qty,
			ActualHours:    assignment.Hours,
			Status:         status,
			EntryDate:      entryDate,
			Source:         string(models.SourceSupervisor),
		}
		jobCard, err := models.CreateJobCard(ctx, &cardInput)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := h.Engine.RunForCard(ctx, jobCard); err != nil {
			respondError(c, err)
			return
		}
		createdIds = append(createdIds, jobCard.ID)
	}

	auditLog, err := models.WriteAuditLog(ctx, "assign_work", userId, &input.WorkOrderId, gin.H{
		"work_order_id":     input.WorkOrderId,
		"activity_code_id":  input.ActivityCodeId,
		"mode":              input.Mode,
		"assignments_count": len(assignments),
		"created_jobcards":  createdIds,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created_jobcards": createdIds, "audit_log_id": auditLog.ID})
}

func listValidations(c *gin.Context) {
	flags, err := models.ListUnresolvedFlags(c.Request.Context(), queryString(c, "flag_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flags)
}

type resolveInput struct {
	Comment *string `json:"comment"`
}

func resolveValidation(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input resolveInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	flag, err := models.ResolveValidationFlag(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	auditLog, err := models.WriteAuditLog(ctx, "resolve_flag", userId, &id, gin.H{
		"flag_id":     id,
		"flag_type":   flag.FlagType,
		"job_card_id": flag.JobCardId,
		"comment":     utils.DereferencePtr(input.Comment),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"flag": flag, "resolved": true, "audit_log_id": auditLog.ID})
}

func listJobCardsForReview(c *gin.Context) {
	dateFrom, err := queryDate(c, "start_date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dateTo, err := queryDate(c, "end_date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := models.JobCardFilter{
		ApprovalStatus: queryString(c, "approval_status"),
		DateFrom:       dateFrom,
		DateTo:         dateTo,
	}
	jobCards, err := models.ListJobCards(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	// supervisors only review cards operators have completed
	completed := make([]*models.JobCard, 0, len(jobCards))
	for _, jobCard := range jobCards {
		if jobCard.Status == models.JobCardStatusComplete {
			completed = append(completed, jobCard)
		}
	}
	c.JSON(http.StatusOK, completed)
}

type approvalInput struct {
	Remarks *string `json:"remarks"`
}

func (h *Handlers) approveJobCard(c *gin.Context) {
	h.decideJobCard(c, true)
}

func (h *Handlers) rejectJobCard(c *gin.Context) {
	h.decideJobCard(c, false)
}

func (h *Handlers) decideJobCard(c *gin.Context, approved bool) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input approvalInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	jobCard, err := models.GetJobCard(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if jobCard.ApprovalStatus != models.ApprovalStatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job card has already been reviewed"})
		return
	}

	jobCard, err = models.SetJobCardApproval(ctx, id, approved, input.Remarks)
	if err != nil {
		respondError(c, err)
		return
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	actionType := "approve_jobcard"
	if !approved {
		actionType = "reject_jobcard"
	}
	auditLog, err := models.WriteAuditLog(ctx, actionType, userId, &id, gin.H{
		"job_card_id": id,
		"approved":    approved,
		"remarks":     utils.DereferencePtr(input.Remarks),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// refresh the employee's month-to-date numbers; a failed recompute must
	// not undo the decision
	if jobCard.EmployeeId != nil {
		start, end := monthToDatePeriod(jobCard.EntryDate)
		if _, err := h.Efficiency.ComputeEmployeeEfficiency(ctx, *jobCard.EmployeeId, start, end); err != nil {
			config.LogError(config.GetLogger(), "routes", "decideJobCard", "efficiency recompute failed", gin.H{"jobCardId": id}, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"job_card": jobCard, "audit_log_id": auditLog.ID})
}
