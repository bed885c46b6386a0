package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type fakeDashboardSrv struct {
	studentResp *dto.StudentDashboardResponse
	facultyResp *dto.FacultyDashboardResponse
	adminResp   *dto.AdminDashboardResponse
	hit         bool
	err         error
	lastUser    string
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	f.lastUser = studentID
	return f.studentResp, f.hit, f.err
}

func (f *fakeDashboardSrv) Faculty(_ context.Context, instructorID string) (*dto.FacultyDashboardResponse, bool, error) {
	f.lastUser = instructorID
	return f.facultyResp, f.hit, f.err
}

func (f *fakeDashboardSrv) Admin(context.Context) (*dto.AdminDashboardResponse, bool, error) {
	return f.adminResp, f.hit, f.err
}

type responseEnvelope struct {
	Data    map[string]interface{} `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Message string                 `json:"message"`
}

func TestDashboardHandlerStudentRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/student", nil)

	handler.Student(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerStudentUsesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{studentResp: &dto.StudentDashboardResponse{StudentID: "stu-1"}}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/student", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Roles: []models.UserRole{models.RoleStudent}})

	handler.Student(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", service.lastUser)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "stu-1", envelope.Data["student_id"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestDashboardHandlerAdminReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &dto.AdminDashboardResponse{Totals: dto.AdminTotals{Users: 12}},
		hit:       true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil)

	handler.Admin(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	totals, ok := envelope.Data["totals"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(12), totals["users"])
}

func TestDashboardHandlerFacultyPropagatesError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrInternal, "failed to load faculty dashboard")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/faculty", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1"})

	handler.Faculty(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
