package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/service"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/response"
)

type fakeProgramSrv struct {
	lastFilter models.ProgramFilter
}

func (f *fakeProgramSrv) List(_ context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Program{{ID: "prog-1", Title: "Bread and Pastry"}}, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (f *fakeProgramSrv) Get(context.Context, string) (*models.Program, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeProgramSrv) Create(context.Context, service.ProgramRequest) (*models.Program, error) {
	return &models.Program{ID: "prog-2"}, nil
}

func (f *fakeProgramSrv) Update(context.Context, string, service.ProgramRequest) (*models.Program, error) {
	return &models.Program{ID: "prog-1"}, nil
}

func (f *fakeProgramSrv) Delete(context.Context, string) error { return nil }

type fakeEnrollmentSrv struct {
	approved string
}

func (f *fakeEnrollmentSrv) Enroll(context.Context, service.EnrollRequest) (*dto.EnrollResponse, error) {
	return nil, appErrors.ErrValidation
}

func (f *fakeEnrollmentSrv) Approve(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	f.approved = id
	detail := &models.EnrollmentDetail{}
	detail.ID = id
	detail.Status = models.EnrollmentStatusActive
	return detail, nil
}

func (f *fakeEnrollmentSrv) Reject(context.Context, string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{}, nil
}

func (f *fakeEnrollmentSrv) Update(context.Context, string, service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{}, nil
}

func (f *fakeEnrollmentSrv) List(context.Context, models.EnrollmentFilter, *models.JWTClaims, bool) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return nil, models.NewPagination(1, 10, 0), nil
}

func (f *fakeEnrollmentSrv) Get(context.Context, string, *models.JWTClaims) (*models.EnrollmentDetail, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeEnrollmentSrv) Delete(context.Context, string) error { return nil }

func (f *fakeEnrollmentSrv) CertificateLink(context.Context, string, *models.JWTClaims) (*dto.DownloadLinkResponse, error) {
	return nil, appErrors.ErrNotFound
}

type fakeGradeReportSrv struct{}

func (fakeGradeReportSrv) Stats(_ context.Context, studentID string, _ *models.JWTClaims) (*models.StudentGradeStats, error) {
	return &models.StudentGradeStats{StudentID: studentID, TotalGraded: 2, AveragePercentage: 81.5}, nil
}

func (fakeGradeReportSrv) Export(_ context.Context, studentID, _ string, _ *models.JWTClaims) (*dto.FileResponse, error) {
	return &dto.FileResponse{Filename: studentID + ".csv", ContentType: "text/csv", Data: []byte("assignment,score\n")}, nil
}

// testAuth reads the caller from X-Test-User and X-Test-Role headers.
func testAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-Test-User")
		role := c.GetHeader("X-Test-Role")
		if userID == "" && role == "" {
			if required {
				response.Error(c, appErrors.ErrUnauthenticated)
				c.Abort()
				return
			}
			c.Next()
			return
		}
		if userID == "" {
			userID = "user-1"
		}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{
			UserID:     userID,
			Roles:      []models.UserRole{models.UserRole(role)},
			ActiveRole: models.UserRole(role),
		})
		c.Next()
	}
}

func buildTestRouter(programs *fakeProgramSrv, enrollments *fakeEnrollmentSrv, dashboards *fakeDashboardSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/api"), Handlers{
		Auth:          NewAuthHandler(nil),
		Users:         NewUserHandler(nil),
		Departments:   NewDepartmentHandler(nil),
		Programs:      NewProgramHandler(programs),
		Courses:       NewCourseHandler(nil),
		Enrollments:   NewEnrollmentHandler(enrollments),
		Assignments:   NewAssignmentHandler(nil),
		Submissions:   NewSubmissionHandler(nil),
		Grades:        NewGradeHandler(nil),
		Reports:       NewReportHandler(fakeGradeReportSrv{}),
		Announcements: NewAnnouncementHandler(nil),
		Dashboard:     NewDashboardHandler(dashboards),
		Files:         NewFileHandler(nil, nil, nil),
	}, RouteConfig{AuthRequired: testAuth(true), AuthOptional: testAuth(false)})
	return router
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutesAuthorization(t *testing.T) {
	programs := &fakeProgramSrv{}
	enrollments := &fakeEnrollmentSrv{}
	dashboards := &fakeDashboardSrv{
		studentResp: &dto.StudentDashboardResponse{StudentID: "stu-1"},
		adminResp:   &dto.AdminDashboardResponse{},
	}
	router := buildTestRouter(programs, enrollments, dashboards)

	t.Run("program catalog is public", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/programs?page=2&page_size=500", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 2, programs.lastFilter.Page)
		assert.Equal(t, models.MaxPageSize, programs.lastFilter.PageSize)
		assert.Contains(t, resp.Body.String(), `"last_page"`)
	})

	t.Run("program writes need admin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/programs", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("dashboard unauthenticated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/dashboard/admin", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("student dashboard rejects faculty", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/dashboard/student", nil)
		req.Header.Set("X-Test-Role", string(models.RoleFaculty))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("student dashboard success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/dashboard/student", nil)
		req.Header.Set("X-Test-User", "stu-1")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "stu-1", dashboards.lastUser)
	})

	t.Run("admin approves enrollment", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/enrollments/enr-9/approve", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "enr-9", enrollments.approved)

		var envelope responseEnvelope
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
		assert.Equal(t, "enrollment approved", envelope.Message)
		assert.Equal(t, string(models.EnrollmentStatusActive), envelope.Data["status"])
	})

	t.Run("student cannot approve enrollment", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/enrollments/enr-9/approve", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("student reads own grade stats", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/students/stu-1/grade-stats", nil)
		req.Header.Set("X-Test-User", "stu-1")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"average_percentage":81.5`)
	})

	t.Run("student cannot read another student's stats", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/students/stu-2/grade-stats", nil)
		req.Header.Set("X-Test-User", "stu-1")
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("faculty downloads grade report", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/students/stu-2/grade-report?format=csv", nil)
		req.Header.Set("X-Test-Role", string(models.RoleFaculty))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Header().Get("Content-Disposition"), "stu-2.csv")
	})
}
