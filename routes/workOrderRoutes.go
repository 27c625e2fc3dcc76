package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
)

func listWorkOrders(c *gin.Context) {
	workOrders, err := models.ListWorkOrders(c.Request.Context(), queryString(c, "msd_month"), queryInt(c, "machine_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workOrders)
}

func getWorkOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	workOrder, err := models.GetWorkOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workOrder)
}

func createWorkOrder(c *gin.Context) {
	var input models.NewWorkOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	workOrder, err := models.CreateWorkOrder(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, workOrder)
}

func updateWorkOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewWorkOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	workOrder, err := models.UpdateWorkOrder(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workOrder)
}

func deleteWorkOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	workOrder, err := models.DeleteWorkOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workOrder)
}
