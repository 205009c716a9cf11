package handler

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/auth"
	"classattend/internal/identity"
	"classattend/internal/model"
)

// TokenHeader carries the session token on login for header-based clients.
const TokenHeader = "X-Session-Token"

const maxAvatarBytes = 5 << 20

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	usr, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	tok, err := h.sessions.Start(c, usr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(TokenHeader, tok.Value)
	c.JSON(http.StatusOK, usr)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.End(c); err != nil {
		// the cookie is already cleared; the token simply lives until expiry
		log.Printf("revoke session failed: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, caller(c))
}

func (h *Handler) listUsers(c *gin.Context) {
	var role *model.Role
	if raw := c.Query("role"); raw != "" {
		r := model.Role(raw)
		if !r.Valid() {
			writeError(c, apperr.Invalid("role", "role must be one of student, teacher, superadmin"))
			return
		}
		role = &r
	}
	users, err := h.users.List(c.Request.Context(), role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Username       string     `json:"username" binding:"required,max=64"`
	Email          string     `json:"email" binding:"omitempty,email"`
	Password       string     `json:"password" binding:"required"`
	FullName       string     `json:"fullName" binding:"required"`
	Role           model.Role `json:"role" binding:"required,oneof=student teacher superadmin"`
	ProfilePicture string     `json:"profilePicture"`
}

// createUser is open for self-registration of students; other roles need a
// superadmin session.
func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	if req.Role != model.RoleStudent {
		if cur, ok := auth.CurrentUser(c); !ok || cur.Role != model.RoleSuperadmin {
			writeError(c, apperr.Forbiddenf("only a superadmin can create %s accounts", req.Role))
			return
		}
	}
	usr, err := h.users.Create(c.Request.Context(), identity.NewUser{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Role:           req.Role,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, usr)
}

type updateUserRequest struct {
	Username       *string     `json:"username"`
	Email          *string     `json:"email" binding:"omitempty,email"`
	Password       *string     `json:"password"`
	FullName       *string     `json:"fullName"`
	Role           *model.Role `json:"role" binding:"omitempty,oneof=student teacher superadmin"`
	ProfilePicture *string     `json:"profilePicture"`
}

func (h *Handler) updateUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	cur := caller(c)
	if req.Role != nil && *req.Role != cur.Role && cur.Role != model.RoleSuperadmin {
		writeError(c, apperr.Forbiddenf("only a superadmin can change roles"))
		return
	}
	ctx := c.Request.Context()
	if req.Role != nil && *req.Role != model.RoleStudent {
		ms, err := h.members.MembershipsOf(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if !ms.Empty() {
			writeError(c, apperr.Invalid("role", "remove the student from every subject and section before changing their role"))
			return
		}
	}
	var usr model.User
	err = h.members.ChangeStudent(ctx, id, func() error {
		var err error
		usr, err = h.users.Update(ctx, id, identity.UpdateUser{
			Username:       req.Username,
			Email:          req.Email,
			Password:       req.Password,
			FullName:       req.FullName,
			Role:           req.Role,
			ProfilePicture: req.ProfilePicture,
		})
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usr)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.members.ChangeStudent(ctx, id, func() error { return h.users.Delete(ctx, id) }); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type avatarRequest struct {
	Data string `json:"data" binding:"required"`
}

// uploadAvatar accepts a multipart "file" or a JSON {"data": "data:image/..."}
// body and stores the resulting URL on the account.
func (h *Handler) uploadAvatar(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if h.avatars == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "image storage is not configured"})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.users.Get(ctx, id); err != nil {
		writeError(c, err)
		return
	}

	var url string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			writeError(c, apperr.Invalid("file", "file is required"))
			return
		}
		if fh.Size > maxAvatarBytes {
			writeError(c, apperr.Invalid("file", "file must be at most 5MB"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := h.avatars.UploadAvatar(ctx, id, data, fh.Filename)
		if err != nil {
			uploadFailed(c, err)
			return
		}
		url = res.SecureURL
	} else {
		var req avatarRequest
		if err := bindJSON(c, &req); err != nil {
			writeError(c, err)
			return
		}
		if !strings.HasPrefix(req.Data, "data:image/") {
			writeError(c, apperr.Invalid("data", "data must be an image data URL"))
			return
		}
		res, err := h.avatars.UploadDataURL(ctx, id, req.Data)
		if err != nil {
			uploadFailed(c, err)
			return
		}
		url = res.SecureURL
	}

	var usr model.User
	err = h.members.ChangeStudent(ctx, id, func() error {
		var err error
		usr, err = h.users.SetProfilePicture(ctx, id, url)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usr)
}

func uploadFailed(c *gin.Context, err error) {
	log.Printf("avatar upload failed: %v", err)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"message": "image upload failed"})
}
