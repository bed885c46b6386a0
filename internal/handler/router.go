package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/middleware"
	"github.com/noah-isme/tclass-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Departments   *DepartmentHandler
	Programs      *ProgramHandler
	Courses       *CourseHandler
	Enrollments   *EnrollmentHandler
	Assignments   *AssignmentHandler
	Submissions   *SubmissionHandler
	Grades        *GradeHandler
	Reports       *ReportHandler
	Announcements *AnnouncementHandler
	Dashboard     *DashboardHandler
	Files         *FileHandler
	Metrics       *MetricsHandler
}

// RouteConfig carries the middleware shared by the route table.
type RouteConfig struct {
	// AuthRequired rejects requests without valid claims.
	AuthRequired gin.HandlerFunc
	// AuthOptional attaches claims when a token is present.
	AuthOptional gin.HandlerFunc
	Audit        middleware.AuditWriter
	Logger       *zap.Logger
}

// RegisterRoutes mounts the TClass API on the given router group.
func RegisterRoutes(r gin.IRouter, h Handlers, cfg RouteConfig) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin)
	student := middleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		if cfg.Audit == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.Audit(cfg.Audit, cfg.Logger, action, resource)
	}

	r.POST("/login", h.Auth.Login)
	r.POST("/register", h.Auth.Register)
	r.POST("/logout", cfg.AuthRequired, h.Auth.Logout)
	r.GET("/me", cfg.AuthRequired, h.Auth.Me)
	r.POST("/change-password", cfg.AuthRequired, h.Auth.ChangePassword)

	files := r.Group("/files")
	files.GET("/attachments/:token", h.Files.Attachment)
	files.GET("/certificates/:token", h.Files.Certificate)

	public := r.Group("", cfg.AuthOptional)
	public.POST("/enroll", h.Enrollments.Enroll)
	public.GET("/programs", h.Programs.List)
	public.GET("/programs/:id", h.Programs.Get)
	public.GET("/announcements", h.Announcements.List)
	public.GET("/announcements/:id", h.Announcements.Get)

	secured := r.Group("", cfg.AuthRequired)

	users := secured.Group("/users")
	users.GET("", admin, h.Users.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfAccess), h.Users.Get)
	users.POST("", admin, h.Users.Create)
	users.PUT("/:id", admin, h.Users.Update)
	users.DELETE("/:id", admin, h.Users.Delete)

	departments := secured.Group("/departments")
	departments.GET("", h.Departments.List)
	departments.GET("/:id", h.Departments.Get)
	departments.POST("", admin, h.Departments.Create)
	departments.PUT("/:id", admin, h.Departments.Update)
	departments.DELETE("/:id", admin, h.Departments.Delete)

	programs := secured.Group("/programs")
	programs.POST("", admin, h.Programs.Create)
	programs.PUT("/:id", admin, h.Programs.Update)
	programs.DELETE("/:id", admin, audit(models.AuditActionProgramDelete, "program"), h.Programs.Delete)

	courses := secured.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.POST("", admin, h.Courses.Create)
	courses.PUT("/:id", admin, h.Courses.Update)
	courses.DELETE("/:id", admin, h.Courses.Delete)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.GET("/:id/certificate", h.Enrollments.Certificate)
	enrollments.PUT("/:id", admin, h.Enrollments.Update)
	enrollments.POST("/:id/approve", admin, audit(models.AuditActionEnrollmentApprove, "enrollment"), h.Enrollments.Approve)
	enrollments.POST("/:id/reject", admin, audit(models.AuditActionEnrollmentReject, "enrollment"), h.Enrollments.Reject)
	enrollments.DELETE("/:id", admin, audit(models.AuditActionEnrollmentDelete, "enrollment"), h.Enrollments.Delete)

	assignments := secured.Group("/assignments")
	assignments.GET("", h.Assignments.List)
	assignments.GET("/:id", h.Assignments.Get)
	assignments.POST("", staff, h.Assignments.Create)
	assignments.PUT("/:id", staff, h.Assignments.Update)
	assignments.POST("/:id/publish", staff, h.Assignments.Publish)
	assignments.DELETE("/:id", staff, h.Assignments.Delete)

	submissions := secured.Group("/submissions")
	submissions.GET("", h.Submissions.List)
	submissions.GET("/:id", h.Submissions.Get)
	submissions.GET("/:id/attachment", h.Submissions.Attachment)
	submissions.POST("", student, h.Submissions.Submit)
	submissions.POST("/:id/return", staff, h.Submissions.Return)
	submissions.DELETE("/:id", h.Submissions.Delete)

	grades := secured.Group("/grades")
	grades.GET("", h.Grades.List)
	grades.GET("/:id", h.Grades.Get)
	grades.POST("", staff, audit(models.AuditActionGradeRecord, "grade"), h.Grades.Record)
	grades.PUT("/:id", staff, audit(models.AuditActionGradeUpdate, "grade"), h.Grades.Update)
	grades.DELETE("/:id", staff, audit(models.AuditActionGradeDelete, "grade"), h.Grades.Delete)

	students := secured.Group("/students/:id", middleware.RBAC(string(models.RoleFaculty), string(models.RoleAdmin), middleware.SelfAccess))
	students.GET("/grade-stats", h.Reports.StudentStats)
	students.GET("/grade-report", h.Reports.StudentReport)

	announcements := secured.Group("/announcements", staff)
	announcements.POST("", h.Announcements.Create)
	announcements.PUT("/:id", h.Announcements.Update)
	announcements.POST("/:id/toggle-pin", h.Announcements.TogglePin)
	announcements.DELETE("/:id", h.Announcements.Delete)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/student", student, h.Dashboard.Student)
	dashboard.GET("/faculty", middleware.RequireRoles(models.RoleFaculty), h.Dashboard.Faculty)
	dashboard.GET("/admin", admin, h.Dashboard.Admin)

	if h.Metrics != nil {
		secured.GET("/metrics/summary", admin, h.Metrics.Summary)
	}
}
