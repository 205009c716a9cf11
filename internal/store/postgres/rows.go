package postgres

import (
	"classattend/internal/model"
)

// Each entity has exactly one mapper. Queries must select the matching column
// list in this order.

type scanner interface {
	Scan(dest ...any) error
}

const (
	userColumns       = `u.id, u.username, u.email, u.password, u.full_name, u.role, u.profile_picture, u.created_at`
	subjectColumns    = `s.id, s.name, s.code, s.description, s.teacher_id`
	sectionColumns    = `sc.id, sc.name, sc.code, sc.description, sc.created_at`
	scheduleColumns   = `sh.id, sh.subject_id, sh.day_of_week, sh.start_time, sh.end_time, sh.room, s.name, s.code`
	enrollmentColumns = `id, student_id, subject_id, enrolled_at`
	sectionEnrColumns = `id, section_id, student_id, enrolled_at`
	attendanceColumns = `a.id, a.student_id, a.subject_id, a.date::text, a.status, a.time_in, a.remarks`
	qrCodeColumns     = `id, subject_id, code, active, created_at`
)

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.ProfilePicture, &u.CreatedAt)
	return u, err
}

func scanSubject(row scanner) (model.Subject, error) {
	var s model.Subject
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.Description, &s.TeacherID)
	return s, err
}

func scanSection(row scanner) (model.Section, error) {
	var sc model.Section
	err := row.Scan(&sc.ID, &sc.Name, &sc.Code, &sc.Description, &sc.CreatedAt)
	return sc, err
}

func scanSchedule(row scanner) (model.Schedule, error) {
	var sh model.Schedule
	err := row.Scan(&sh.ID, &sh.SubjectID, &sh.DayOfWeek, &sh.StartTime, &sh.EndTime, &sh.Room, &sh.SubjectName, &sh.SubjectCode)
	return sh, err
}

func scanEnrollment(row scanner) (model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.SubjectID, &e.EnrolledAt)
	return e, err
}

func scanSectionEnrollment(row scanner) (model.SectionEnrollment, error) {
	var e model.SectionEnrollment
	err := row.Scan(&e.ID, &e.SectionID, &e.StudentID, &e.EnrolledAt)
	return e, err
}

func scanAttendance(row scanner) (model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(&a.ID, &a.StudentID, &a.SubjectID, &a.Date, &a.Status, &a.TimeIn, &a.Remarks)
	return a, err
}

func scanQrCode(row scanner) (model.QrCode, error) {
	var q model.QrCode
	err := row.Scan(&q.ID, &q.SubjectID, &q.Code, &q.Active, &q.CreatedAt)
	return q, err
}

// rowsScanner is the subset of *sql.Rows the list helper needs.
type rowsScanner interface {
	scanner
	Next() bool
	Err() error
	Close() error
}

// collect drains rows through scan. It always returns a non-nil slice so empty
// lists serialize as [] rather than null.
func collect[T any](rows rowsScanner, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
