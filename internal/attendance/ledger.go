// Package attendance is the append-only ledger of attendance marks.
package attendance

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"classattend/internal/apperr"
	"classattend/internal/metrics"
	"classattend/internal/model"
	"classattend/internal/queue"
)

// EventMarked is published after every successful mark.
const EventMarked = "attendance.marked"

// CheckInRemark is stored on rows written by QR check-in.
const CheckInRemark = "QR check-in"

// Repository is the ledger store.
type Repository interface {
	IsEnrolled(ctx context.Context, subjectID, studentID int64) (bool, error)
	InsertAttendance(ctx context.Context, a model.Attendance) (model.Attendance, error)
	ListAttendance(ctx context.Context, f model.AttendanceFilter) ([]model.Attendance, error)
	CountAttendance(ctx context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, error)
}

// CodeResolver turns a scanned code into the active QR code it names.
type CodeResolver interface {
	Resolve(ctx context.Context, code string) (model.QrCode, error)
}

// Publisher is the queue side the ledger writes to.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// TallyReader reads the per-subject per-day projection. ok is false when the
// projection holds nothing for the key.
type TallyReader interface {
	Counts(ctx context.Context, subjectID int64, date string) (counts map[model.AttendanceStatus]int, ok bool, err error)
}

// MarkedEvent is the body of an EventMarked message.
type MarkedEvent struct {
	AttendanceID int64                  `json:"attendanceId"`
	StudentID    int64                  `json:"studentId"`
	SubjectID    int64                  `json:"subjectId"`
	Date         string                 `json:"date"`
	Status       model.AttendanceStatus `json:"status"`
}

// MarkInput is a request to record one attendance row.
type MarkInput struct {
	StudentID int64
	SubjectID int64
	Date      string
	Status    model.AttendanceStatus
	Remarks   *string
}

// Summary is the per-status tally of one subject on one day.
type Summary struct {
	SubjectID int64                          `json:"subjectId"`
	Date      string                         `json:"date"`
	Counts    map[model.AttendanceStatus]int `json:"counts"`
	Total     int                            `json:"total"`
	Source    string                         `json:"source"`
}

// Ledger records and reads attendance.
type Ledger struct {
	repo   Repository
	codes  CodeResolver
	events Publisher
	tally  TallyReader
	now    func() time.Time
}

// NewLedger wires a ledger. events and tally may be nil; Summary then reads
// the store directly.
func NewLedger(repo Repository, codes CodeResolver, events Publisher, tally TallyReader) *Ledger {
	return &Ledger{
		repo:   repo,
		codes:  codes,
		events: events,
		tally:  tally,
		now:    time.Now,
	}
}

func (l *Ledger) today() string {
	return l.now().Format(model.DateLayout)
}

func validDate(field, date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperr.Invalid(field, field+" must be YYYY-MM-DD")
	}
	return nil
}

// Mark appends a row stamped with the current time. The student must be
// enrolled in the subject. Marking the same student twice on one day keeps
// both rows.
func (l *Ledger) Mark(ctx context.Context, in MarkInput) (model.Attendance, error) {
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" {
		in.Date = l.today()
	}
	var fields []apperr.FieldError
	if in.StudentID <= 0 {
		fields = append(fields, apperr.FieldError{Field: "studentId", Message: "studentId is required"})
	}
	if in.SubjectID <= 0 {
		fields = append(fields, apperr.FieldError{Field: "subjectId", Message: "subjectId is required"})
	}
	if err := validDate("date", in.Date); err != nil {
		fields = append(fields, apperr.FieldError{Field: "date", Message: "date must be YYYY-MM-DD"})
	}
	if !in.Status.Valid() {
		fields = append(fields, apperr.FieldError{Field: "status", Message: "status must be one of present, late, absent, excused"})
	}
	if len(fields) > 0 {
		return model.Attendance{}, apperr.NewValidationError(errors.New(fields[0].Message), fields...)
	}
	ok, err := l.repo.IsEnrolled(ctx, in.SubjectID, in.StudentID)
	if err != nil {
		return model.Attendance{}, err
	}
	if !ok {
		return model.Attendance{}, apperr.Forbiddenf("student is not enrolled in this subject")
	}

	timeIn := l.now().UTC()
	rec, err := l.repo.InsertAttendance(ctx, model.Attendance{
		StudentID: in.StudentID,
		SubjectID: in.SubjectID,
		Date:      in.Date,
		Status:    in.Status,
		TimeIn:    &timeIn,
		Remarks:   in.Remarks,
	})
	if err != nil {
		return model.Attendance{}, err
	}
	metrics.AttendanceMarked.WithLabelValues(string(rec.Status)).Inc()
	l.publish(ctx, rec)
	return rec, nil
}

// publish emits EventMarked. On failure the day's projection is dropped so
// Summary reads the store until the next event recounts it.
func (l *Ledger) publish(ctx context.Context, rec model.Attendance) {
	if l.events == nil {
		return
	}
	msg, err := queue.NewMessage(EventMarked, MarkedEvent{
		AttendanceID: rec.ID,
		StudentID:    rec.StudentID,
		SubjectID:    rec.SubjectID,
		Date:         rec.Date,
		Status:       rec.Status,
	})
	if err == nil {
		err = l.events.Publish(ctx, msg)
	}
	if err == nil {
		return
	}
	log.Printf("attendance %d: publish %s failed: %v", rec.ID, EventMarked, err)
	if f, ok := l.tally.(interface {
		Forget(ctx context.Context, subjectID int64, date string) error
	}); ok {
		if err := f.Forget(ctx, rec.SubjectID, rec.Date); err != nil {
			log.Printf("attendance %d: drop stale tally: %v", rec.ID, err)
		}
	}
}

// ScopeFilter restricts a student caller to their own rows whatever they
// asked for. Other roles keep the requested filter.
func ScopeFilter(caller model.User, f model.AttendanceFilter) model.AttendanceFilter {
	if caller.Role == model.RoleStudent {
		id := caller.ID
		f.StudentID = &id
	}
	return f
}

// List returns rows matching f, newest first.
func (l *Ledger) List(ctx context.Context, f model.AttendanceFilter) ([]model.Attendance, error) {
	if f.Date != nil {
		if err := validDate("date", *f.Date); err != nil {
			return nil, err
		}
	}
	return l.repo.ListAttendance(ctx, f)
}

// CheckIn marks the student present today in the subject the code belongs to.
func (l *Ledger) CheckIn(ctx context.Context, student model.User, code string) (model.Attendance, error) {
	if student.Role != model.RoleStudent {
		return model.Attendance{}, apperr.Forbiddenf("only students can check in")
	}
	if l.codes == nil {
		return model.Attendance{}, apperr.NotFoundf("qr check-in is not available")
	}
	qr, err := l.codes.Resolve(ctx, code)
	if err != nil {
		return model.Attendance{}, err
	}
	remark := CheckInRemark
	return l.Mark(ctx, MarkInput{
		StudentID: student.ID,
		SubjectID: qr.SubjectID,
		Date:      l.today(),
		Status:    model.StatusPresent,
		Remarks:   &remark,
	})
}

// Summary tallies a subject's day by status. It reads the worker's projection
// and falls back to counting ledger rows when the projection has no entry.
func (l *Ledger) Summary(ctx context.Context, subjectID int64, date string) (Summary, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = l.today()
	}
	if err := validDate("date", date); err != nil {
		return Summary{}, err
	}

	var counts map[model.AttendanceStatus]int
	source := "ledger"
	if l.tally != nil {
		c, ok, err := l.tally.Counts(ctx, subjectID, date)
		if err != nil {
			log.Printf("attendance summary: tally read failed, using store: %v", err)
		} else if ok {
			counts, source = c, "projection"
		}
	}
	if counts == nil {
		c, err := l.repo.CountAttendance(ctx, subjectID, date)
		if err != nil {
			return Summary{}, err
		}
		counts = c
	}

	out := Summary{SubjectID: subjectID, Date: date, Counts: map[model.AttendanceStatus]int{}, Source: source}
	for _, st := range model.Statuses {
		out.Counts[st] = counts[st]
		out.Total += counts[st]
	}
	return out, nil
}
