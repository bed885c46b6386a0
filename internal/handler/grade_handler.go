package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/service"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type gradeService interface {
	Record(ctx context.Context, req service.RecordGradeRequest, claims *models.JWTClaims) (*models.GradeDetail, error)
	Update(ctx context.Context, id string, req service.UpdateGradeRequest, claims *models.JWTClaims) (*models.GradeDetail, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
	List(ctx context.Context, filter models.GradeFilter, claims *models.JWTClaims, mine bool) ([]models.GradeDetail, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.GradeDetail, error)
}

// GradeHandler exposes grade recording and lookup.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// List godoc
// @Summary List grades
// @Description Students only see their own grades
// @Tags Grades
// @Produce json
// @Param user_id query string false "Student ID"
// @Param assignment_id query string false "Assignment ID"
// @Param course_id query string false "Course ID"
// @Param my_grades query bool false "Scope to the caller"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter := models.GradeFilter{
		UserID:       c.Query("user_id"),
		AssignmentID: c.Query("assignment_id"),
		CourseID:     c.Query("course_id"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	grades, pagination, err := h.service.List(c.Request.Context(), filter, claims, queryBool(c, "my_grades"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Get godoc
// @Summary Get grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	grade, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Record godoc
// @Summary Record grade
// @Description Percentage and letter are computed from score and total points
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Record(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.RecordGradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	grade, err := h.service.Record(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update godoc
// @Summary Update grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.UpdateGradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	grade, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete grade
// @Tags Grades
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
