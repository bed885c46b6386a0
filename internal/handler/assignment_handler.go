package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/service"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type assignmentService interface {
	List(ctx context.Context, filter models.AssignmentFilter, claims *models.JWTClaims, mine bool) ([]models.AssignmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.AssignmentDetail, error)
	Create(ctx context.Context, req service.AssignmentRequest, claims *models.JWTClaims) (*models.AssignmentDetail, error)
	Update(ctx context.Context, id string, req service.AssignmentRequest, claims *models.JWTClaims) (*models.AssignmentDetail, error)
	Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.AssignmentDetail, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
}

// AssignmentHandler exposes assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary List assignments
// @Description Students only see published assignments of courses they are enrolled in
// @Tags Assignments
// @Produce json
// @Param course_id query string false "Course ID"
// @Param status query string false "draft|published|archived"
// @Param type query string false "quiz|exam|homework|project|practical"
// @Param my_assignments query bool false "Scope to the caller's courses"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	filter := models.AssignmentFilter{
		CourseID: c.Query("course_id"),
		Status:   models.AssignmentStatus(c.Query("status")),
		Type:     models.AssignmentType(c.Query("type")),
	}
	filter.Page, filter.PageSize = pageParams(c)
	assignments, pagination, err := h.service.List(c.Request.Context(), filter, claims, queryBool(c, "my_assignments"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get godoc
// @Summary Get assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.AssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.AssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.AssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.AssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Publish godoc
// @Summary Publish assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/publish [post]
func (h *AssignmentHandler) Publish(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assignment, err := h.service.Publish(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "assignment published", assignment)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
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
