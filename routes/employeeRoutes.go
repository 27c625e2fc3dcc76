package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
)

func listEmployees(c *gin.Context) {
	employees, err := models.ListEmployees(c.Request.Context(), queryString(c, "team"), queryString(c, "role"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func getEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	employee, err := models.GetEmployee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func createEmployee(c *gin.Context) {
	var input models.NewEmployee
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	employee, err := models.CreateEmployee(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func updateEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewEmployee
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	employee, err := models.UpdateEmployee(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func deleteEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	employee, err := models.DeleteEmployee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}
