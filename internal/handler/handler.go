// Package handler is the HTTP gateway: it binds requests, applies the route
// policy table and maps domain errors onto status codes.
package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/catalog"
	"classattend/internal/cloudinary"
	"classattend/internal/identity"
	"classattend/internal/membership"
	"classattend/internal/qrcode"
)

// AvatarUploader stores profile pictures and returns their public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, userID int64, data []byte, filename string) (*cloudinary.UploadResult, error)
	UploadDataURL(ctx context.Context, userID int64, dataURL string) (*cloudinary.UploadResult, error)
}

// Deps are the components the gateway fronts. Avatars may be nil.
type Deps struct {
	Users    *identity.Service
	Catalog  *catalog.Service
	Members  *membership.Engine
	Ledger   *attendance.Ledger
	Codes    *qrcode.Service
	Sessions *auth.Sessions
	Avatars  AvatarUploader
}

type Handler struct {
	users    *identity.Service
	catalog  *catalog.Service
	members  *membership.Engine
	ledger   *attendance.Ledger
	codes    *qrcode.Service
	sessions *auth.Sessions
	avatars  AvatarUploader
}

func New(d Deps) *Handler {
	registerTagNames()
	return &Handler{
		users:    d.Users,
		catalog:  d.Catalog,
		members:  d.Members,
		ledger:   d.Ledger,
		codes:    d.Codes,
		sessions: d.Sessions,
		avatars:  d.Avatars,
	}
}

// Register mounts every /api route on r behind session loading and the
// policy check.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api", h.sessions.Load(), h.authorize())

	api.POST("/login", h.login)
	api.POST("/logout", h.logout)
	api.GET("/user", h.currentUser)

	api.GET("/users/list", h.listUsers)
	api.POST("/users/create", h.createUser)
	api.PUT("/users/:id", h.updateUser)
	api.DELETE("/users/:id", h.deleteUser)
	api.POST("/users/:id/avatar", h.uploadAvatar)

	api.GET("/subjects", h.listSubjects)
	api.POST("/subjects", h.createSubject)
	api.GET("/subjects/:id", h.getSubject)
	api.PUT("/subjects/:id", h.updateSubject)
	api.DELETE("/subjects/:id", h.deleteSubject)
	api.POST("/subjects/:id/enroll", h.enroll)
	api.POST("/subjects/:id/enroll/bulk", h.enrollBulk)
	api.DELETE("/subjects/:id/students/:studentId", h.unenroll)
	api.GET("/subjects/:id/students", h.subjectStudents)
	api.GET("/subjects/:id/available", h.availableStudents)
	api.GET("/subjects/:id/attendance/summary", h.attendanceSummary)
	api.POST("/subjects/:id/qr", h.generateQr)
	api.GET("/subjects/:id/qr", h.activeQr)
	api.GET("/subjects/:id/schedules", h.subjectSchedules)

	api.GET("/attendance", h.listAttendance)
	api.POST("/attendance", h.markAttendance)
	api.POST("/attendance/checkin", h.checkIn)

	api.GET("/schedules/teacher", h.teacherSchedules)
	api.POST("/schedules", h.createSchedule)
	api.DELETE("/schedules/:id", h.deleteSchedule)

	api.GET("/sections", h.listSections)
	api.POST("/sections", h.createSection)
	api.PUT("/sections/:id", h.updateSection)
	api.DELETE("/sections/:id", h.deleteSection)
	api.GET("/sections/:id/students", h.sectionStudents)
	api.POST("/sections/:id/enroll", h.enrollInSection)
	api.DELETE("/sections/:id/students/:studentId", h.unenrollFromSection)
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(name, name+" must be a positive integer")
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Invalid(name, name+" must be a positive integer")
	}
	return &id, nil
}
