package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
)

func listJobCards(c *gin.Context) {
	dateFrom, err := queryDate(c, "date_from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dateTo, err := queryDate(c, "date_to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := models.JobCardFilter{
		EmployeeId:     queryInt(c, "employee_id"),
		WorkOrderId:    queryInt(c, "work_order_id"),
		ApprovalStatus: queryString(c, "approval_status"),
		DateFrom:       dateFrom,
		DateTo:         dateTo,
	}
	jobCards, err := models.ListJobCards(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobCards)
}

func getJobCard(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	jobCard, err := models.GetJobCard(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	flags, err := models.ListFlagsForJobCard(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_card": jobCard, "flags": flags})
}

// createJobCard commits the card, then runs the validation engine on the
// persisted row. Flags from this run are returned with the card.
func (h *Handlers) createJobCard(c *gin.Context) {
	var input models.NewJobCard
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	jobCard, err := models.CreateJobCard(ctx, &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flags, err := h.Engine.RunForCard(ctx, jobCard)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job_card": jobCard, "flags": flags})
}

func (h *Handlers) updateJobCard(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewJobCard
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	jobCard, err := models.UpdateJobCard(ctx, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	flags, err := h.Engine.RunForCard(ctx, jobCard)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_card": jobCard, "flags": flags})
}

func deleteJobCard(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	jobCard, err := models.DeleteJobCard(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobCard)
}

// monthToDatePeriod gives the [1st of month, min(today, month end)] range used
// when a supervisor decision triggers an efficiency recompute.
func monthToDatePeriod(entryDate time.Time) (time.Time, time.Time) {
	start := time.Date(entryDate.Year(), entryDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := start.AddDate(0, 1, -1)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	end := monthEnd
	if today.Before(monthEnd) {
		end = today
	}
	return start, end
}
