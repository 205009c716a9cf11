package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// InsertEnrollment enrolls one student. The unique (student_id, subject_id)
// constraint is the arbiter for concurrent callers.
func (s *Store) InsertEnrollment(ctx context.Context, subjectID, studentID int64) (model.Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (student_id, subject_id)
		VALUES ($1, $2)
		RETURNING `+enrollmentColumns,
		studentID, subjectID)
	e, err := scanEnrollment(row)
	if err != nil {
		return model.Enrollment{}, membershipErr(err, "insert enrollment")
	}
	return e, nil
}

// InsertEnrollments enrolls many students in one transaction. Pairs that
// already exist are skipped; any other failure rolls back the whole batch.
// It returns the number of rows inserted.
func (s *Store) InsertEnrollments(ctx context.Context, subjectID int64, studentIDs []int64) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, studentID := range studentIDs {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO enrollments (student_id, subject_id)
				VALUES ($1, $2)
				ON CONFLICT (student_id, subject_id) DO NOTHING
			`, studentID, subjectID)
			if err != nil {
				return membershipErr(err, fmt.Sprintf("bulk insert enrollment for student %d", studentID))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperr.Unavailable(errors.Wrap(err, "rows affected"))
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteEnrollment removes one subject membership. Attendance rows stay.
func (s *Store) DeleteEnrollment(ctx context.Context, subjectID, studentID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE subject_id = $1 AND student_id = $2`, subjectID, studentID)
	return deletedOne(res, err, "delete enrollment", fmt.Sprintf("student %d is not enrolled in subject %d", studentID, subjectID))
}

// IsEnrolled reports whether the pair exists.
func (s *Store) IsEnrolled(ctx context.Context, subjectID, studentID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE subject_id = $1 AND student_id = $2)
	`, subjectID, studentID).Scan(&ok)
	if err != nil {
		return false, storeErr(err, "check enrollment", "")
	}
	return ok, nil
}

// ListStudentMemberships returns the subject and section ids a student
// belongs to, ascending.
func (s *Store) ListStudentMemberships(ctx context.Context, studentID int64) (subjectIDs, sectionIDs []int64, err error) {
	subjectIDs, err = s.listIDs(ctx, `SELECT subject_id FROM enrollments WHERE student_id = $1 ORDER BY subject_id`, studentID)
	if err != nil {
		return nil, nil, storeErr(err, "list student subjects", "")
	}
	sectionIDs, err = s.listIDs(ctx, `SELECT section_id FROM section_enrollments WHERE student_id = $1 ORDER BY section_id`, studentID)
	if err != nil {
		return nil, nil, storeErr(err, "list student sections", "")
	}
	return subjectIDs, sectionIDs, nil
}

func (s *Store) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row scanner) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	})
}

// ListEnrollments returns the enrollment rows of a subject.
func (s *Store) ListEnrollments(ctx context.Context, subjectID int64) ([]model.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE subject_id = $1 ORDER BY id`, subjectID)
	if err != nil {
		return nil, storeErr(err, "list enrollments", "")
	}
	list, err := collect(rows, scanEnrollment)
	if err != nil {
		return nil, storeErr(err, "scan enrollments", "")
	}
	return list, nil
}

// ListSubjectStudents returns the students enrolled in a subject.
func (s *Store) ListSubjectStudents(ctx context.Context, subjectID int64) ([]model.User, error) {
	return s.listUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN enrollments e ON e.student_id = u.id
		WHERE e.subject_id = $1
		ORDER BY u.full_name, u.id
	`, subjectID)
}

// ListSectionStudents returns the students of a section.
func (s *Store) ListSectionStudents(ctx context.Context, sectionID int64) ([]model.User, error) {
	return s.listUsers(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN section_enrollments se ON se.student_id = u.id
		WHERE se.section_id = $1
		ORDER BY u.full_name, u.id
	`, sectionID)
}

// ListAvailableStudents returns students not enrolled in the subject,
// restricted to the members of sectionID when it is set.
func (s *Store) ListAvailableStudents(ctx context.Context, subjectID int64, sectionID *int64) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.role = 'student'
		AND NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = u.id AND e.subject_id = $1)`
	args := []any{subjectID}
	if sectionID != nil {
		query += `
		AND EXISTS (SELECT 1 FROM section_enrollments se WHERE se.student_id = u.id AND se.section_id = $2)`
		args = append(args, *sectionID)
	}
	query += `
		ORDER BY u.full_name, u.id`
	return s.listUsers(ctx, query, args...)
}

func (s *Store) listUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "list users", "")
	}
	users, err := collect(rows, scanUser)
	if err != nil {
		return nil, storeErr(err, "scan users", "")
	}
	return users, nil
}

// InsertSectionEnrollment adds a student to a section.
func (s *Store) InsertSectionEnrollment(ctx context.Context, sectionID, studentID int64) (model.SectionEnrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO section_enrollments (section_id, student_id)
		VALUES ($1, $2)
		RETURNING `+sectionEnrColumns,
		sectionID, studentID)
	e, err := scanSectionEnrollment(row)
	if err != nil {
		return model.SectionEnrollment{}, membershipErr(err, "insert section enrollment")
	}
	return e, nil
}

// DeleteSectionEnrollment removes a student from a section.
func (s *Store) DeleteSectionEnrollment(ctx context.Context, sectionID, studentID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM section_enrollments WHERE section_id = $1 AND student_id = $2`, sectionID, studentID)
	return deletedOne(res, err, "delete section enrollment", fmt.Sprintf("student %d is not in section %d", studentID, sectionID))
}

// DeleteSectionCascade removes a section's memberships and then the section.
func (s *Store) DeleteSectionCascade(ctx context.Context, sectionID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM section_enrollments WHERE section_id = $1`, sectionID); err != nil {
			return apperr.Unavailable(errors.Wrap(err, "delete section enrollments"))
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, sectionID)
		return deletedOne(res, err, "delete section", fmt.Sprintf("section %d not found", sectionID))
	})
}

// DeleteSubjectCascade removes a subject's enrollments, schedules and QR codes
// and then the subject.
func (s *Store) DeleteSubjectCascade(ctx context.Context, subjectID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM enrollments WHERE subject_id = $1`,
			`DELETE FROM schedules WHERE subject_id = $1`,
			`DELETE FROM qr_codes WHERE subject_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, subjectID); err != nil {
				return apperr.Unavailable(errors.Wrap(err, "cascade subject delete"))
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, subjectID)
		return deletedOne(res, err, "delete subject", fmt.Sprintf("subject %d not found", subjectID))
	})
}

// membershipErr translates constraint violations on the membership tables.
func membershipErr(err error, op string) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return apperr.ErrDuplicateMembership
	case codeForeignKeyViolation:
		return apperr.NotFoundf("subject, section or student not found")
	}
	return storeErr(err, op, "")
}

// deletedOne turns a zero-row delete into NotFound.
func deletedOne(res sql.Result, err error, op, notFound string) error {
	if err != nil {
		return apperr.Unavailable(errors.Wrap(err, op))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable(errors.Wrap(err, op))
	}
	if n == 0 {
		return apperr.NotFoundf("%s", notFound)
	}
	return nil
}
