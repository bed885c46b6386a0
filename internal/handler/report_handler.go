package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type gradeReportService interface {
	Stats(ctx context.Context, studentID string, claims *models.JWTClaims) (*models.StudentGradeStats, error)
	Export(ctx context.Context, studentID, format string, claims *models.JWTClaims) (*dto.FileResponse, error)
}

// ReportHandler exposes per-student grade statistics and report files.
type ReportHandler struct {
	grades gradeReportService
}

// NewReportHandler constructs handler.
func NewReportHandler(grades gradeReportService) *ReportHandler {
	return &ReportHandler{grades: grades}
}

// StudentStats godoc
// @Summary Student grade statistics
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/grade-stats [get]
func (h *ReportHandler) StudentStats(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	stats, err := h.grades.Stats(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// StudentReport godoc
// @Summary Student grade report file
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Student ID"
// @Param format query string false "csv|pdf (default csv)"
// @Success 200 {file} binary
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/grade-report [get]
func (h *ReportHandler) StudentReport(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	file, err := h.grades.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
