package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	"github.com/noah-isme/sma-lesson-api/internal/service"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
	"github.com/noah-isme/sma-lesson-api/pkg/response"
)

type timetableExporter interface {
	TeacherTimetable(ctx context.Context, teacherID string, from, to models.Date, format service.ExportFormat) (*service.ExportResult, error)
}

// ExportHandler serves timetable downloads.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs handler.
func NewExportHandler(svc timetableExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// TeacherTimetable godoc
// @Summary Export a teacher timetable
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Teacher ID"
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /teachers/{id}/timetable/export [get]
func (h *ExportHandler) TeacherTimetable(c *gin.Context) {
	from, err := optionalDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := optionalDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to are required"))
		return
	}

	result, err := h.service.TeacherTimetable(c.Request.Context(), c.Param("id"), *from, *to, service.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, result.Filename, result.ContentType, result.Body)
}
