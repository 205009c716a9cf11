// Package identity owns user accounts and credential checks.
package identity

import (
	"context"
	"errors"
	"strings"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// Repository is the identity store.
type Repository interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context, role *model.Role) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// NewUser is the input of Create.
type NewUser struct {
	Username       string
	Email          string
	Password       string
	FullName       string
	Role           model.Role
	ProfilePicture string
}

// UpdateUser is the input of Update; nil fields are left unchanged.
type UpdateUser struct {
	Username       *string
	Email          *string
	Password       *string
	FullName       *string
	Role           *model.Role
	ProfilePicture *string
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates nu and stores a new account with a bcrypt hash.
func (svc *Service) Create(ctx context.Context, nu NewUser) (model.User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.FullName = strings.TrimSpace(nu.FullName)

	var fields []apperr.FieldError
	if nu.Username == "" {
		fields = append(fields, apperr.FieldError{Field: "username", Message: "username is required"})
	}
	if nu.Password == "" {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password is required"})
	}
	if nu.FullName == "" {
		fields = append(fields, apperr.FieldError{Field: "fullName", Message: "full name is required"})
	}
	if !nu.Role.Valid() {
		fields = append(fields, apperr.FieldError{Field: "role", Message: "role must be one of student, teacher, superadmin"})
	}
	if len(fields) > 0 {
		return model.User{}, apperr.NewValidationError(errors.New(fields[0].Message), fields...)
	}

	if _, err := svc.repo.GetUserByUsername(ctx, nu.Username); err == nil {
		return model.User{}, apperr.ErrDuplicateUsername
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return model.User{}, err
	}

	usr := model.User{
		Username: nu.Username,
		FullName: nu.FullName,
		Role:     nu.Role,
	}
	if email := strings.TrimSpace(nu.Email); email != "" {
		usr.Email = &email
	}
	if nu.ProfilePicture != "" {
		pic := nu.ProfilePicture
		usr.ProfilePicture = &pic
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return model.User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate returns the account matching the credentials.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	usr, err := svc.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.User{}, apperr.Unauthenticatedf("Invalid username or password")
		}
		return model.User{}, err
	}
	if err := usr.CheckPassword(password); err != nil {
		return model.User{}, apperr.Unauthenticatedf("Invalid username or password")
	}
	return usr, nil
}

func (svc *Service) Get(ctx context.Context, id int64) (model.User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return svc.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
}

// List returns all users, or only those of role when it is set.
func (svc *Service) List(ctx context.Context, role *model.Role) ([]model.User, error) {
	if role != nil && !role.Valid() {
		return nil, apperr.Invalid("role", "role must be one of student, teacher, superadmin")
	}
	return svc.repo.ListUsers(ctx, role)
}

func (svc *Service) Update(ctx context.Context, id int64, uu UpdateUser) (model.User, error) {
	upd := model.UserUpdate{
		Email:          uu.Email,
		FullName:       uu.FullName,
		ProfilePicture: uu.ProfilePicture,
	}
	if uu.Username != nil {
		uname := strings.TrimSpace(*uu.Username)
		if uname == "" {
			return model.User{}, apperr.Invalid("username", "username cannot be empty")
		}
		upd.Username = &uname
	}
	if uu.Role != nil {
		if !uu.Role.Valid() {
			return model.User{}, apperr.Invalid("role", "role must be one of student, teacher, superadmin")
		}
		upd.Role = uu.Role
	}
	if uu.Password != nil && *uu.Password != "" {
		var tmp model.User
		if err := tmp.SetPassword(*uu.Password); err != nil {
			return model.User{}, err
		}
		upd.PasswordHash = tmp.PasswordHash
	}
	return svc.repo.UpdateUser(ctx, id, upd)
}

// SetProfilePicture stores the URL of an uploaded avatar.
func (svc *Service) SetProfilePicture(ctx context.Context, id int64, url string) (model.User, error) {
	return svc.repo.UpdateUser(ctx, id, model.UserUpdate{ProfilePicture: &url})
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteUser(ctx, id)
}
