package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

type loginInput struct {
	EcNumber string `json:"ec_number" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	employee, err := models.GetEmployeeByEcNumber(ctx, input.EcNumber)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}
	if employee.IsActive != nil && !*employee.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account deactivated"})
		return
	}
	if err := utils.ComparePassword(employee.HashedPassword, input.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := utils.JwtGenerate(employee.ID, string(employee.Role), employee.EcNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "employee": employee})
}

func me(c *gin.Context) {
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)

	employee, err := models.GetEmployee(ctx, userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}
