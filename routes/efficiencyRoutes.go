package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

// employeeEfficiency computes and persists the snapshot for one employee.
// Operators can only look at themselves.
func (h *Handlers) employeeEfficiency(c *gin.Context) {
	employeeId, ok := pathId(c, "employee_id")
	if !ok {
		return
	}
	start, end, ok := requiredPeriod(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	role, _ := utils.GetRoleFromContext(ctx)
	if role != string(models.RoleSupervisor) && role != string(models.RoleAdmin) {
		userId, _ := utils.GetUserIdFromContext(ctx)
		if userId != employeeId {
			c.JSON(http.StatusForbidden, gin.H{"error": "operators can only view their own efficiency"})
			return
		}
	}

	if _, err := models.GetEmployee(ctx, employeeId); err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := h.Efficiency.ComputeEmployeeEfficiency(ctx, employeeId, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handlers) teamEfficiency(c *gin.Context) {
	team := c.Param("team")
	start, end, ok := requiredPeriod(c)
	if !ok {
		return
	}

	snapshot, err := h.Efficiency.ComputeTeamAverage(c.Request.Context(), team, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handlers) workOrderSplits(c *gin.Context) {
	workOrderId, ok := pathId(c, "work_order_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := models.GetWorkOrder(ctx, workOrderId); err != nil {
		respondError(c, err)
		return
	}

	allocations, err := h.Splits.ComputeSplits(ctx, workOrderId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_order_id": workOrderId, "allocations": allocations})
}
