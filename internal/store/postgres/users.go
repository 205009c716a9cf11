package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// CreateUser inserts a user. A taken username yields apperr.ErrDuplicateUsername.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password, full_name, role, profile_picture)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, u.Username, u.Email, string(u.PasswordHash), u.FullName, string(u.Role), u.ProfilePicture)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.User{}, apperr.ErrDuplicateUsername
		}
		return model.User{}, storeErr(err, "insert user", "")
	}
	return u, nil
}

// GetUserByID returns a single user.
func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, storeErr(err, "get user", fmt.Sprintf("user %d not found", id))
	}
	return u, nil
}

// GetUserByUsername returns a single user by login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, storeErr(err, "get user by username", "user not found")
	}
	return u, nil
}

// ListUsers returns all users, optionally restricted to one role.
func (s *Store) ListUsers(ctx context.Context, role *model.Role) ([]model.User, error) {
	var where whereBuilder
	if role != nil {
		where.add("u.role = $%d", string(*role))
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users u`+where.String()+` ORDER BY u.id`, where.args...)
	if err != nil {
		return nil, storeErr(err, "list users", "")
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, storeErr(err, "scan users", "")
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of upd.
func (s *Store) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (model.User, error) {
	sets := []string{}
	args := []any{}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		set("password", string(upd.PasswordHash))
	}
	if upd.FullName != nil {
		set("full_name", *upd.FullName)
	}
	if upd.Role != nil {
		set("role", string(*upd.Role))
	}
	if upd.ProfilePicture != nil {
		set("profile_picture", *upd.ProfilePicture)
	}
	if len(sets) == 0 {
		return s.GetUserByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users u SET %s WHERE u.id = $%d RETURNING `+userColumns, strings.Join(sets, ", "), len(args))

	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.User{}, apperr.ErrDuplicateUsername
		}
		return model.User{}, storeErr(err, "update user", fmt.Sprintf("user %d not found", id))
	}
	return u, nil
}

// DeleteUser removes a user; memberships and attendance cascade in the schema.
// Deleting a missing user is not an error.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return apperr.Unavailable(errors.Wrap(err, "delete user"))
	}
	return nil
}
