package postgres

import (
	"context"
	"fmt"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// InsertAttendance appends a ledger row.
func (s *Store) InsertAttendance(ctx context.Context, a model.Attendance) (model.Attendance, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendance (student_id, subject_id, date, status, time_in, remarks)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		RETURNING id
	`, a.StudentID, a.SubjectID, a.Date, string(a.Status), a.TimeIn, a.Remarks)
	if err := row.Scan(&a.ID); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return model.Attendance{}, apperr.NotFoundf("student or subject not found")
		}
		return model.Attendance{}, storeErr(err, "insert attendance", "")
	}
	return a, nil
}

// ListAttendance returns ledger rows matching f, newest first.
func (s *Store) ListAttendance(ctx context.Context, f model.AttendanceFilter) ([]model.Attendance, error) {
	var where whereBuilder
	if f.StudentID != nil {
		where.add("a.student_id = $%d", *f.StudentID)
	}
	if f.SubjectID != nil {
		where.add("a.subject_id = $%d", *f.SubjectID)
	}
	if f.Date != nil {
		where.add("a.date = $%d::date", *f.Date)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+attendanceColumns+` FROM attendance a`+where.String()+` ORDER BY a.date DESC, a.id DESC`, where.args...)
	if err != nil {
		return nil, storeErr(err, "list attendance", "")
	}
	records, err := collect(rows, scanAttendance)
	if err != nil {
		return nil, storeErr(err, "scan attendance", "")
	}
	return records, nil
}

// CountAttendance tallies a subject's rows for one day by status.
func (s *Store) CountAttendance(ctx context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.status, COUNT(*)
		FROM attendance a
		WHERE a.subject_id = $1 AND a.date = $2::date
		GROUP BY a.status
	`, subjectID, date)
	if err != nil {
		return nil, storeErr(err, "count attendance", "")
	}
	defer rows.Close()
	counts := map[model.AttendanceStatus]int{}
	for rows.Next() {
		var status model.AttendanceStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr(err, fmt.Sprintf("scan attendance count for subject %d", subjectID), "")
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "count attendance", "")
	}
	return counts, nil
}
