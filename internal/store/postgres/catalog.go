package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// CreateSubject inserts a subject.
func (s *Store) CreateSubject(ctx context.Context, sub model.Subject) (model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (name, code, description, teacher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sub.Name, sub.Code, sub.Description, sub.TeacherID)
	if err := row.Scan(&sub.ID); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return model.Subject{}, apperr.NotFoundf("teacher not found")
		}
		return model.Subject{}, storeErr(err, "insert subject", "")
	}
	return sub, nil
}

// GetSubject returns a single subject.
func (s *Store) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects s WHERE s.id = $1`, id)
	sub, err := scanSubject(row)
	if err != nil {
		return model.Subject{}, storeErr(err, "get subject", fmt.Sprintf("subject %d not found", id))
	}
	return sub, nil
}

// UpdateSubject overwrites the editable fields of a subject.
func (s *Store) UpdateSubject(ctx context.Context, sub model.Subject) (model.Subject, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE subjects s SET name = $2, code = $3, description = $4, teacher_id = $5
		WHERE s.id = $1
		RETURNING `+subjectColumns,
		sub.ID, sub.Name, sub.Code, sub.Description, sub.TeacherID)
	updated, err := scanSubject(row)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return model.Subject{}, apperr.NotFoundf("teacher not found")
		}
		return model.Subject{}, storeErr(err, "update subject", fmt.Sprintf("subject %d not found", sub.ID))
	}
	return updated, nil
}

// ListSubjects returns every subject.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	return s.listSubjects(ctx, `SELECT `+subjectColumns+` FROM subjects s ORDER BY s.id`)
}

// ListSubjectsByTeacher returns the subjects a teacher owns.
func (s *Store) ListSubjectsByTeacher(ctx context.Context, teacherID int64) ([]model.Subject, error) {
	return s.listSubjects(ctx, `SELECT `+subjectColumns+` FROM subjects s WHERE s.teacher_id = $1 ORDER BY s.id`, teacherID)
}

// ListSubjectsByStudent returns the subjects a student is enrolled in.
func (s *Store) ListSubjectsByStudent(ctx context.Context, studentID int64) ([]model.Subject, error) {
	return s.listSubjects(ctx, `
		SELECT `+subjectColumns+`
		FROM subjects s
		JOIN enrollments e ON e.subject_id = s.id
		WHERE e.student_id = $1
		ORDER BY s.id
	`, studentID)
}

func (s *Store) listSubjects(ctx context.Context, query string, args ...any) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "list subjects", "")
	}
	subjects, err := collect(rows, scanSubject)
	if err != nil {
		return nil, storeErr(err, "scan subjects", "")
	}
	return subjects, nil
}

// CreateSection inserts a section.
func (s *Store) CreateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sections (name, code, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, sec.Name, sec.Code, sec.Description)
	if err := row.Scan(&sec.ID, &sec.CreatedAt); err != nil {
		return model.Section{}, storeErr(err, "insert section", "")
	}
	return sec, nil
}

// GetSection returns a single section.
func (s *Store) GetSection(ctx context.Context, id int64) (model.Section, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections sc WHERE sc.id = $1`, id)
	sec, err := scanSection(row)
	if err != nil {
		return model.Section{}, storeErr(err, "get section", fmt.Sprintf("section %d not found", id))
	}
	return sec, nil
}

// UpdateSection overwrites the editable fields of a section.
func (s *Store) UpdateSection(ctx context.Context, sec model.Section) (model.Section, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE sections sc SET name = $2, code = $3, description = $4
		WHERE sc.id = $1
		RETURNING `+sectionColumns,
		sec.ID, sec.Name, sec.Code, sec.Description)
	updated, err := scanSection(row)
	if err != nil {
		return model.Section{}, storeErr(err, "update section", fmt.Sprintf("section %d not found", sec.ID))
	}
	return updated, nil
}

// ListSections returns every section.
func (s *Store) ListSections(ctx context.Context) ([]model.Section, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM sections sc ORDER BY sc.id`)
	if err != nil {
		return nil, storeErr(err, "list sections", "")
	}
	sections, err := collect(rows, scanSection)
	if err != nil {
		return nil, storeErr(err, "scan sections", "")
	}
	return sections, nil
}

// CreateSchedule inserts a schedule and returns it joined with its subject.
func (s *Store) CreateSchedule(ctx context.Context, sh model.Schedule) (model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH sh AS (
			INSERT INTO schedules (subject_id, day_of_week, start_time, end_time, room)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, subject_id, day_of_week, start_time, end_time, room
		)
		SELECT `+scheduleColumns+`
		FROM sh JOIN subjects s ON s.id = sh.subject_id
	`, sh.SubjectID, sh.DayOfWeek, sh.StartTime, sh.EndTime, sh.Room)
	created, err := scanSchedule(row)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return model.Schedule{}, apperr.NotFoundf("subject %d not found", sh.SubjectID)
		}
		return model.Schedule{}, storeErr(err, "insert schedule", "")
	}
	return created, nil
}

// ListSchedulesBySubject returns the schedules of one subject.
func (s *Store) ListSchedulesBySubject(ctx context.Context, subjectID int64) ([]model.Schedule, error) {
	return s.listSchedules(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules sh JOIN subjects s ON s.id = sh.subject_id
		WHERE sh.subject_id = $1
		ORDER BY sh.id
	`, subjectID)
}

// ListSchedulesByTeacher returns the schedules of every subject a teacher owns.
func (s *Store) ListSchedulesByTeacher(ctx context.Context, teacherID int64) ([]model.Schedule, error) {
	return s.listSchedules(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules sh JOIN subjects s ON s.id = sh.subject_id
		WHERE s.teacher_id = $1
		ORDER BY sh.id
	`, teacherID)
}

// GetSchedule returns one schedule joined with its subject.
func (s *Store) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules sh JOIN subjects s ON s.id = sh.subject_id
		WHERE sh.id = $1
	`, id)
	sh, err := scanSchedule(row)
	if err != nil {
		return model.Schedule{}, storeErr(err, "get schedule", fmt.Sprintf("schedule %d not found", id))
	}
	return sh, nil
}

func (s *Store) listSchedules(ctx context.Context, query string, args ...any) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "list schedules", "")
	}
	schedules, err := collect(rows, scanSchedule)
	if err != nil {
		return nil, storeErr(err, "scan schedules", "")
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule. Deleting a missing schedule is not an error.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return apperr.Unavailable(errors.Wrap(err, "delete schedule"))
	}
	return nil
}
