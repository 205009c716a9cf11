package handler

import (
	"log"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/catalog"
	"classattend/internal/model"
)

// policy is the access rule of one route.
type policy struct {
	// public routes accept anonymous callers.
	public bool
	// roles allowed; empty means any authenticated user.
	roles []model.Role
	// denied overrides the 403 message.
	denied string
	// ownSubject limits teachers to subjects they teach (path :id).
	ownSubject bool
	// self limits non-superadmins to their own account (path :id).
	self bool
	// attendance shapes ledger filters for the caller.
	attendance func(model.User, model.AttendanceFilter) model.AttendanceFilter
	// subjects picks the subject listing for the caller.
	subjects func(model.User) catalog.SubjectScope
}

var (
	staff     = []model.Role{model.RoleTeacher, model.RoleSuperadmin}
	adminOnly = []model.Role{model.RoleSuperadmin}
)

func subjectsByRole(caller model.User) catalog.SubjectScope {
	id := caller.ID
	switch caller.Role {
	case model.RoleStudent:
		return catalog.SubjectScope{StudentID: &id}
	case model.RoleTeacher:
		return catalog.SubjectScope{TeacherID: &id}
	}
	return catalog.SubjectScope{}
}

// policies is keyed by "METHOD /route/template". Routes missing here are
// refused.
var policies = map[string]policy{
	"POST /api/login":            {public: true},
	"POST /api/logout":           {public: true},
	"GET /api/user":              {},
	"GET /api/users/list":        {},
	"POST /api/users/create":     {public: true},
	"PUT /api/users/:id":         {self: true},
	"DELETE /api/users/:id":      {self: true},
	"POST /api/users/:id/avatar": {self: true},

	"GET /api/subjects":                            {subjects: subjectsByRole},
	"POST /api/subjects":                           {roles: staff},
	"GET /api/subjects/:id":                        {},
	"PUT /api/subjects/:id":                        {roles: staff, ownSubject: true},
	"DELETE /api/subjects/:id":                     {roles: staff, ownSubject: true},
	"POST /api/subjects/:id/enroll":                {roles: staff, ownSubject: true},
	"POST /api/subjects/:id/enroll/bulk":           {roles: staff, ownSubject: true},
	"DELETE /api/subjects/:id/students/:studentId": {roles: staff, ownSubject: true},
	"GET /api/subjects/:id/students":               {},
	"GET /api/subjects/:id/available":              {roles: staff, ownSubject: true},
	"GET /api/subjects/:id/attendance/summary":     {roles: staff, ownSubject: true},
	"POST /api/subjects/:id/qr":                    {roles: staff, ownSubject: true},
	"GET /api/subjects/:id/qr":                     {roles: staff, ownSubject: true},
	"GET /api/subjects/:id/schedules":              {},

	"GET /api/attendance":          {attendance: attendance.ScopeFilter},
	"POST /api/attendance":         {attendance: attendance.ScopeFilter},
	"POST /api/attendance/checkin": {roles: []model.Role{model.RoleStudent}, denied: "Only students can check in"},

	"GET /api/schedules/teacher": {roles: []model.Role{model.RoleTeacher}, denied: "Only teachers can access this endpoint"},
	"POST /api/schedules":        {roles: staff},
	"DELETE /api/schedules/:id":  {roles: staff},

	"GET /api/sections":                            {},
	"POST /api/sections":                           {roles: adminOnly},
	"PUT /api/sections/:id":                        {roles: adminOnly},
	"DELETE /api/sections/:id":                     {roles: adminOnly},
	"GET /api/sections/:id/students":               {},
	"POST /api/sections/:id/enroll":                {roles: adminOnly},
	"DELETE /api/sections/:id/students/:studentId": {roles: adminOnly},
}

const ctxPolicy = "policy"

// authorize evaluates the route's policy before its handler runs.
func (h *Handler) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()
		p, ok := policies[key]
		if !ok {
			log.Printf("no access policy for %s", key)
			writeError(c, apperr.Forbiddenf("permission denied"))
			return
		}
		c.Set(ctxPolicy, p)
		if p.public {
			c.Next()
			return
		}

		caller, ok := auth.CurrentUser(c)
		if !ok {
			writeError(c, apperr.ErrUnauthenticated)
			return
		}
		if len(p.roles) > 0 && !hasRole(p.roles, caller.Role) {
			msg := p.denied
			if msg == "" {
				msg = "permission denied"
			}
			writeError(c, apperr.Forbiddenf("%s", msg))
			return
		}
		if p.self && caller.Role != model.RoleSuperadmin {
			id, err := pathID(c, "id")
			if err != nil {
				writeError(c, err)
				return
			}
			if id != caller.ID {
				writeError(c, apperr.Forbiddenf("you can only manage your own account"))
				return
			}
		}
		if p.ownSubject && caller.Role == model.RoleTeacher {
			if err := h.requireTeaches(c, caller); err != nil {
				writeError(c, err)
				return
			}
		}
		c.Next()
	}
}

func (h *Handler) requireTeaches(c *gin.Context, caller model.User) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return h.teaches(c, caller, id)
}

// teaches fails unless a teacher caller owns subjectID. Other roles pass.
func (h *Handler) teaches(c *gin.Context, caller model.User, subjectID int64) error {
	if caller.Role != model.RoleTeacher {
		return nil
	}
	sub, err := h.catalog.GetSubject(c.Request.Context(), subjectID)
	if err != nil {
		return err
	}
	if sub.TeacherID == nil || *sub.TeacherID != caller.ID {
		return apperr.Forbiddenf("you do not teach this subject")
	}
	return nil
}

func hasRole(roles []model.Role, r model.Role) bool {
	for _, allowed := range roles {
		if allowed == r {
			return true
		}
	}
	return false
}

func routePolicy(c *gin.Context) policy {
	if v, ok := c.Get(ctxPolicy); ok {
		if p, ok := v.(policy); ok {
			return p
		}
	}
	return policy{}
}

// caller returns the authenticated user. Routes behind a non-public policy
// always have one.
func caller(c *gin.Context) model.User {
	usr, _ := auth.CurrentUser(c)
	return usr
}
