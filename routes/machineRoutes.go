package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
)

func listMachines(c *gin.Context) {
	machines, err := models.ListMachines(c.Request.Context(), queryString(c, "work_center"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

func getMachine(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	machine, err := models.GetMachine(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

func createMachine(c *gin.Context) {
	var input models.NewMachine
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	machine, err := models.CreateMachine(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, machine)
}

func updateMachine(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewMachine
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	machine, err := models.UpdateMachine(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

func deleteMachine(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	machine, err := models.DeleteMachine(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}
