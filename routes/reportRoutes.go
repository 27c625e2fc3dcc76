package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/workflow"
)

func efficiencyReport(c *gin.Context) {
	start, end, ok := requiredPeriod(c)
	if !ok {
		return
	}

	buf, err := workflow.BuildEfficiencyReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := workflow.ReportFilename(start, end)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
