package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/service"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type announcementService interface {
	ListActive(ctx context.Context, req service.AnnouncementListRequest, claims *models.JWTClaims) ([]models.Announcement, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, req service.AnnouncementRequest, authorID string) (*models.Announcement, error)
	Update(ctx context.Context, id string, req service.AnnouncementRequest) (*models.Announcement, error)
	TogglePin(ctx context.Context, id string) (*models.Announcement, error)
	Delete(ctx context.Context, id string) error
}

// AnnouncementHandler exposes announcement endpoints.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(svc announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// List godoc
// @Summary List active announcements
// @Description Pinned first, then newest. for_me resolves the audience from the caller's roles.
// @Tags Announcements
// @Produce json
// @Param for_me query bool false "Only announcements addressed to the caller"
// @Param target_audience query string false "all|students|faculty|admins"
// @Param type query string false "general|academic|announcement|deadline|event"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	req := service.AnnouncementListRequest{
		ForMe:          queryBool(c, "for_me"),
		TargetAudience: models.AnnouncementAudience(c.Query("target_audience")),
		Type:           models.AnnouncementType(c.Query("type")),
	}
	req.Page, req.PageSize = pageParams(c)
	announcements, pagination, err := h.service.ListActive(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Get godoc
// @Summary Get announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	announcement, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Create godoc
// @Summary Create announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.AnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req service.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}
	announcement, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// Update godoc
// @Summary Update announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body service.AnnouncementRequest true "Announcement payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req service.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}
	announcement, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// TogglePin godoc
// @Summary Toggle announcement pin
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/toggle-pin [post]
func (h *AnnouncementHandler) TogglePin(c *gin.Context) {
	announcement, err := h.service.TogglePin(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Announcements
// @Param id path string true "Announcement ID"
// @Success 204
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
