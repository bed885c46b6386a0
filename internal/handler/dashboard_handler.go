package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type dashboardService interface {
	Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error)
	Faculty(ctx context.Context, instructorID string) (*dto.FacultyDashboardResponse, bool, error)
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Student(c.Request.Context(), claims.UserID)
	h.respond(c, start, summary, cacheHit, err)
}

// Faculty godoc
// @Summary Faculty dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/faculty [get]
func (h *DashboardHandler) Faculty(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Faculty(c.Request.Context(), claims.UserID)
	h.respond(c, start, summary, cacheHit, err)
}

// Admin godoc
// @Summary Admin dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	h.respond(c, start, summary, cacheHit, err)
}

func (h *DashboardHandler) respond(c *gin.Context, start time.Time, summary interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
