package routes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/efficiency_backend/config"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

func respondError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	config.LogError(config.GetLogger(), "routes", "respondError", c.FullPath(), nil, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(validationErrors)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func queryString(c *gin.Context, name string) *string {
	if value, ok := c.GetQuery(name); ok && value != "" {
		return &value
	}
	return nil
}

func queryInt(c *gin.Context, name string) *int {
	if value, ok := c.GetQuery(name); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return &n
		}
	}
	return nil
}

func queryDate(c *gin.Context, name string) (*time.Time, error) {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, errors.New(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

// requiredPeriod parses the mandatory start/end query pair.
func requiredPeriod(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := queryDate(c, "start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	end, err := queryDate(c, "end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	if start == nil || end == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end query parameters are required"})
		return time.Time{}, time.Time{}, false
	}
	if end.Before(*start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not precede start"})
		return time.Time{}, time.Time{}, false
	}
	return *start, *end, true
}
