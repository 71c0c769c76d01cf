package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dashboard/internal/attendance"
	"dashboard/internal/auth"
	"dashboard/internal/backend"
	"dashboard/internal/roster"
	"dashboard/internal/session"
	"dashboard/internal/validation"
)

// Backend is the part of the REST client the handlers call directly.
type Backend interface {
	Login(ctx context.Context, email, password string) (backend.Identity, error)
	ListCourses(ctx context.Context, token string, instructorID int64) ([]backend.Course, error)
	AddCourse(ctx context.Context, token string, in backend.NewCourse) (backend.Course, error)
	DeleteCourse(ctx context.Context, token string, courseID int64) error
	AddAssistant(ctx context.Context, token string, courseID int64, in backend.NewAssistant) error
	EnrolledStudents(ctx context.Context, token string, courseID int64) ([]backend.EnrolledStudent, error)
	StudentsByCourse(ctx context.Context, token string, courseID int64) ([]backend.Student, error)
	AddStudent(ctx context.Context, token string, courseID int64, in backend.NewStudent) error
	UploadStudents(ctx context.Context, token string, courseID int64, filename string, content io.Reader) error
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Backend    Backend
	Attendance *attendance.Service
	Sessions   *session.Manager
	Issuer     *auth.Issuer
	Importer   *roster.Importer
	Validator  *validation.Validator
	Log        *zap.Logger
	// MaxUploadBytes bounds multipart bodies; zero means no extra bound.
	MaxUploadBytes int64
}

// Handler serves the dashboard API.
type Handler struct {
	Deps
	now func() time.Time
}

// New creates a Handler.
func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	return &Handler{Deps: d, now: time.Now}
}

// Register mounts every /v1 route on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)

	authed := v1.Group("", auth.SessionAuth(h.Issuer, h.Sessions))
	authed.POST("/auth/logout", h.logout)
	authed.GET("/session", h.currentSession)

	authed.GET("/courses", h.listCourses)
	authed.POST("/courses", h.addCourse)
	authed.DELETE("/courses/:id", h.deleteCourse)
	authed.POST("/courses/:id/assistants", h.addAssistant)
	authed.GET("/courses/:id/enrollments", h.enrollments)

	authed.GET("/courses/:id/students", h.listStudents)
	authed.POST("/courses/:id/students", h.addStudent)
	authed.POST("/courses/:id/students/upload", h.uploadStudents)
	authed.GET("/imports/:id", h.importStatus)

	authed.GET("/courses/:id/attendance", h.attendanceReport)
	authed.GET("/courses/:id/attendance/export", h.attendanceExport)
	authed.POST("/courses/:id/attendance", h.markAttendance)
}

func (h *Handler) session(c *gin.Context) session.Session {
	s, _ := auth.Current(c)
	return s
}

func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be valid JSON"})
		return false
	}
	return true
}
