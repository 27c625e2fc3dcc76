package routes

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/efficiency_backend/utils"
)

const maxImportSize = 10 << 20 // 10 MiB

func (h *Handlers) importJobCards(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds 10MB limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)

	report, err := h.Importer.ImportJobCards(ctx, content, fileHeader.Filename, userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
