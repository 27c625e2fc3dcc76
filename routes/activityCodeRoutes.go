package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/models"
)

func listActivityCodes(c *gin.Context) {
	activityCodes, err := models.ListActivityCodes(c.Request.Context(), queryString(c, "efficiency_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activityCodes)
}

func getActivityCode(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	activityCode, err := models.GetActivityCode(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activityCode)
}

func createActivityCode(c *gin.Context) {
	var input models.NewActivityCode
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	activityCode, err := models.CreateActivityCode(c.Request.Context(), &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, activityCode)
}

func updateActivityCode(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewActivityCode
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	activityCode, err := models.UpdateActivityCode(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activityCode)
}

func deleteActivityCode(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	activityCode, err := models.DeleteActivityCode(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activityCode)
}
