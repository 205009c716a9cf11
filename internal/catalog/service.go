// Package catalog manages subjects, sections and weekly schedules.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// Repository is the catalog store.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)

	CreateSubject(ctx context.Context, sub model.Subject) (model.Subject, error)
	GetSubject(ctx context.Context, id int64) (model.Subject, error)
	UpdateSubject(ctx context.Context, sub model.Subject) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	ListSubjectsByTeacher(ctx context.Context, teacherID int64) ([]model.Subject, error)
	ListSubjectsByStudent(ctx context.Context, studentID int64) ([]model.Subject, error)

	CreateSection(ctx context.Context, sec model.Section) (model.Section, error)
	GetSection(ctx context.Context, id int64) (model.Section, error)
	UpdateSection(ctx context.Context, sec model.Section) (model.Section, error)
	ListSections(ctx context.Context) ([]model.Section, error)

	CreateSchedule(ctx context.Context, sh model.Schedule) (model.Schedule, error)
	GetSchedule(ctx context.Context, id int64) (model.Schedule, error)
	ListSchedulesBySubject(ctx context.Context, subjectID int64) ([]model.Schedule, error)
	ListSchedulesByTeacher(ctx context.Context, teacherID int64) ([]model.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
}

// SubjectInput is the writable part of a subject.
type SubjectInput struct {
	Name        string
	Code        string
	Description *string
	TeacherID   *int64
}

// SectionInput is the writable part of a section.
type SectionInput struct {
	Name        string
	Code        string
	Description *string
}

// SubjectScope selects which subjects a caller may list. At most one field
// is set; neither means every subject.
type SubjectScope struct {
	TeacherID *int64
	StudentID *int64
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) validateSubject(ctx context.Context, in *SubjectInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	var fields []apperr.FieldError
	if in.Name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if in.Code == "" {
		fields = append(fields, apperr.FieldError{Field: "code", Message: "code is required"})
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(errors.New(fields[0].Message), fields...)
	}
	if in.TeacherID != nil {
		teacher, err := svc.repo.GetUserByID(ctx, *in.TeacherID)
		if err != nil {
			return err
		}
		if teacher.Role != model.RoleTeacher {
			return apperr.Invalid("teacherId", fmt.Sprintf("user %d is not a teacher", teacher.ID))
		}
	}
	return nil
}

func (svc *Service) CreateSubject(ctx context.Context, in SubjectInput) (model.Subject, error) {
	if err := svc.validateSubject(ctx, &in); err != nil {
		return model.Subject{}, err
	}
	return svc.repo.CreateSubject(ctx, model.Subject{
		Name:        in.Name,
		Code:        in.Code,
		Description: in.Description,
		TeacherID:   in.TeacherID,
	})
}

func (svc *Service) UpdateSubject(ctx context.Context, id int64, in SubjectInput) (model.Subject, error) {
	if err := svc.validateSubject(ctx, &in); err != nil {
		return model.Subject{}, err
	}
	return svc.repo.UpdateSubject(ctx, model.Subject{
		ID:          id,
		Name:        in.Name,
		Code:        in.Code,
		Description: in.Description,
		TeacherID:   in.TeacherID,
	})
}

func (svc *Service) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

// ListSubjects returns the subjects visible under scope.
func (svc *Service) ListSubjects(ctx context.Context, scope SubjectScope) ([]model.Subject, error) {
	switch {
	case scope.StudentID != nil:
		return svc.repo.ListSubjectsByStudent(ctx, *scope.StudentID)
	case scope.TeacherID != nil:
		return svc.repo.ListSubjectsByTeacher(ctx, *scope.TeacherID)
	default:
		return svc.repo.ListSubjects(ctx)
	}
}

func validateSection(in *SectionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	var fields []apperr.FieldError
	if in.Name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if in.Code == "" {
		fields = append(fields, apperr.FieldError{Field: "code", Message: "code is required"})
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(errors.New(fields[0].Message), fields...)
	}
	return nil
}

func (svc *Service) CreateSection(ctx context.Context, in SectionInput) (model.Section, error) {
	if err := validateSection(&in); err != nil {
		return model.Section{}, err
	}
	return svc.repo.CreateSection(ctx, model.Section{Name: in.Name, Code: in.Code, Description: in.Description})
}

func (svc *Service) UpdateSection(ctx context.Context, id int64, in SectionInput) (model.Section, error) {
	if err := validateSection(&in); err != nil {
		return model.Section{}, err
	}
	return svc.repo.UpdateSection(ctx, model.Section{ID: id, Name: in.Name, Code: in.Code, Description: in.Description})
}

func (svc *Service) GetSection(ctx context.Context, id int64) (model.Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) ListSections(ctx context.Context) ([]model.Section, error) {
	return svc.repo.ListSections(ctx)
}

// ScheduleInput is a new weekly slot.
type ScheduleInput struct {
	SubjectID int64
	DayOfWeek string
	StartTime string
	EndTime   string
	Room      string
}

const clockLayout = "15:04"

// CreateSchedule validates the slot and stores it. Day names are normalized
// to their English title case, times must be HH:MM with start before end.
func (svc *Service) CreateSchedule(ctx context.Context, in ScheduleInput) (model.Schedule, error) {
	var fields []apperr.FieldError
	if in.SubjectID <= 0 {
		fields = append(fields, apperr.FieldError{Field: "subjectId", Message: "subjectId is required"})
	}
	day, ok := weekday(in.DayOfWeek)
	if !ok {
		fields = append(fields, apperr.FieldError{Field: "dayOfWeek", Message: "dayOfWeek must be a day name such as Monday"})
	}
	start, errStart := time.Parse(clockLayout, strings.TrimSpace(in.StartTime))
	if errStart != nil {
		fields = append(fields, apperr.FieldError{Field: "startTime", Message: "startTime must be HH:MM"})
	}
	end, errEnd := time.Parse(clockLayout, strings.TrimSpace(in.EndTime))
	if errEnd != nil {
		fields = append(fields, apperr.FieldError{Field: "endTime", Message: "endTime must be HH:MM"})
	}
	if errStart == nil && errEnd == nil && !start.Before(end) {
		fields = append(fields, apperr.FieldError{Field: "endTime", Message: "endTime must be after startTime"})
	}
	room := strings.TrimSpace(in.Room)
	if room == "" {
		fields = append(fields, apperr.FieldError{Field: "room", Message: "room is required"})
	}
	if len(fields) > 0 {
		return model.Schedule{}, apperr.NewValidationError(errors.New(fields[0].Message), fields...)
	}
	return svc.repo.CreateSchedule(ctx, model.Schedule{
		SubjectID: in.SubjectID,
		DayOfWeek: day,
		StartTime: start.Format(clockLayout),
		EndTime:   end.Format(clockLayout),
		Room:      room,
	})
}

func weekday(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d.String(), true
		}
	}
	return "", false
}

// SchedulesBySubject lists a subject's slots; an unknown subject is NotFound.
func (svc *Service) SchedulesBySubject(ctx context.Context, subjectID int64) ([]model.Schedule, error) {
	if _, err := svc.repo.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return svc.repo.ListSchedulesBySubject(ctx, subjectID)
}

// SchedulesByTeacher lists the slots of every subject the teacher owns.
func (svc *Service) SchedulesByTeacher(ctx context.Context, teacherID int64) ([]model.Schedule, error) {
	return svc.repo.ListSchedulesByTeacher(ctx, teacherID)
}

func (svc *Service) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *Service) DeleteSchedule(ctx context.Context, id int64) error {
	return svc.repo.DeleteSchedule(ctx, id)
}
