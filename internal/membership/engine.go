// Package membership decides who belongs to which subject and section.
package membership

import (
	"context"
	"errors"
	"log"

	"classattend/internal/apperr"
	"classattend/internal/metrics"
	"classattend/internal/model"
)

// Repository is the membership store.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetSubject(ctx context.Context, id int64) (model.Subject, error)
	GetSection(ctx context.Context, id int64) (model.Section, error)

	InsertEnrollment(ctx context.Context, subjectID, studentID int64) (model.Enrollment, error)
	InsertEnrollments(ctx context.Context, subjectID int64, studentIDs []int64) (int, error)
	DeleteEnrollment(ctx context.Context, subjectID, studentID int64) error
	ListSubjectStudents(ctx context.Context, subjectID int64) ([]model.User, error)
	ListSectionStudents(ctx context.Context, sectionID int64) ([]model.User, error)
	ListAvailableStudents(ctx context.Context, subjectID int64, sectionID *int64) ([]model.User, error)
	ListStudentMemberships(ctx context.Context, studentID int64) (subjectIDs, sectionIDs []int64, err error)

	InsertSectionEnrollment(ctx context.Context, sectionID, studentID int64) (model.SectionEnrollment, error)
	DeleteSectionEnrollment(ctx context.Context, sectionID, studentID int64) error

	DeleteSectionCascade(ctx context.Context, sectionID int64) error
	DeleteSubjectCascade(ctx context.Context, subjectID int64) error
}

// RosterCache holds the student list of a subject. Implementations swallow
// their own failures; a miss is always safe. Invalidate bumps the subject's
// version and Set is a no-op when version is no longer current.
type RosterCache interface {
	Get(ctx context.Context, subjectID int64) ([]model.User, bool)
	Version(ctx context.Context, subjectID int64) int64
	Set(ctx context.Context, subjectID int64, version int64, students []model.User)
	Invalidate(ctx context.Context, subjectID int64)
}

type nopCache struct{}

func (nopCache) Get(context.Context, int64) ([]model.User, bool) { return nil, false }
func (nopCache) Version(context.Context, int64) int64            { return 0 }
func (nopCache) Set(context.Context, int64, int64, []model.User) {}
func (nopCache) Invalidate(context.Context, int64)               {}

// Engine applies the membership rules on top of a Repository.
type Engine struct {
	repo   Repository
	roster RosterCache
}

// NewEngine returns an engine; a nil cache disables roster caching.
func NewEngine(repo Repository, roster RosterCache) *Engine {
	if roster == nil {
		roster = nopCache{}
	}
	return &Engine{repo: repo, roster: roster}
}

func (e *Engine) requireStudent(ctx context.Context, id int64) error {
	u, err := e.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != model.RoleStudent {
		return apperr.NotFoundf("student %d not found", id)
	}
	return nil
}

// ListAvailable returns students not yet enrolled in the subject, limited to
// a section's members when sectionID is set.
func (e *Engine) ListAvailable(ctx context.Context, subjectID int64, sectionID *int64) ([]model.User, error) {
	if _, err := e.repo.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	if sectionID != nil {
		if _, err := e.repo.GetSection(ctx, *sectionID); err != nil {
			return nil, err
		}
	}
	return e.repo.ListAvailableStudents(ctx, subjectID, sectionID)
}

// EnrollOne enrolls a single student. Enrolling twice is ErrDuplicateMembership.
func (e *Engine) EnrollOne(ctx context.Context, subjectID, studentID int64) (model.Enrollment, error) {
	if err := e.requireStudent(ctx, studentID); err != nil {
		return model.Enrollment{}, err
	}
	enr, err := e.repo.InsertEnrollment(ctx, subjectID, studentID)
	if err != nil {
		return model.Enrollment{}, err
	}
	e.roster.Invalidate(ctx, subjectID)
	metrics.Enrollments.WithLabelValues("single").Inc()
	return enr, nil
}

// EnrollBulk enrolls every listed student or none of them. Students already
// enrolled are skipped and do not count toward the returned total.
func (e *Engine) EnrollBulk(ctx context.Context, subjectID int64, studentIDs []int64) (int, error) {
	if len(studentIDs) == 0 {
		return 0, apperr.Invalid("studentIds", "studentIds must not be empty")
	}
	if _, err := e.repo.GetSubject(ctx, subjectID); err != nil {
		return 0, err
	}
	seen := make(map[int64]bool, len(studentIDs))
	ids := make([]int64, 0, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := e.requireStudent(ctx, id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}

	n, err := e.repo.InsertEnrollments(ctx, subjectID, ids)
	if err != nil {
		log.Printf("bulk enroll subject=%d students=%d failed: %v", subjectID, len(ids), err)
		return 0, err
	}
	e.roster.Invalidate(ctx, subjectID)
	metrics.Enrollments.WithLabelValues("bulk").Add(float64(n))
	return n, nil
}

// Unenroll removes a subject membership. Attendance history is kept.
func (e *Engine) Unenroll(ctx context.Context, subjectID, studentID int64) error {
	if err := e.repo.DeleteEnrollment(ctx, subjectID, studentID); err != nil {
		return err
	}
	e.roster.Invalidate(ctx, subjectID)
	return nil
}

// Memberships lists where a student belongs.
type Memberships struct {
	SubjectIDs []int64
	SectionIDs []int64
}

// Empty reports whether the student belongs nowhere.
func (m Memberships) Empty() bool {
	return len(m.SubjectIDs) == 0 && len(m.SectionIDs) == 0
}

func (e *Engine) MembershipsOf(ctx context.Context, studentID int64) (Memberships, error) {
	subjects, sections, err := e.repo.ListStudentMemberships(ctx, studentID)
	if err != nil {
		return Memberships{}, err
	}
	return Memberships{SubjectIDs: subjects, SectionIDs: sections}, nil
}

// ChangeStudent runs change and then drops the cached roster of every subject
// the student was enrolled in beforehand.
func (e *Engine) ChangeStudent(ctx context.Context, studentID int64, change func() error) error {
	ms, err := e.MembershipsOf(ctx, studentID)
	if err != nil {
		return err
	}
	err = change()
	for _, id := range ms.SubjectIDs {
		e.roster.Invalidate(ctx, id)
	}
	return err
}

// SubjectStudents returns the roster of a subject, served from the cache when
// possible.
func (e *Engine) SubjectStudents(ctx context.Context, subjectID int64) ([]model.User, error) {
	if students, ok := e.roster.Get(ctx, subjectID); ok {
		metrics.RosterCache.WithLabelValues("hit").Inc()
		return students, nil
	}
	metrics.RosterCache.WithLabelValues("miss").Inc()
	version := e.roster.Version(ctx, subjectID)
	if _, err := e.repo.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	students, err := e.repo.ListSubjectStudents(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	e.roster.Set(ctx, subjectID, version, students)
	return students, nil
}

func (e *Engine) SectionStudents(ctx context.Context, sectionID int64) ([]model.User, error) {
	if _, err := e.repo.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	return e.repo.ListSectionStudents(ctx, sectionID)
}

func (e *Engine) EnrollInSection(ctx context.Context, sectionID, studentID int64) (model.SectionEnrollment, error) {
	if err := e.requireStudent(ctx, studentID); err != nil {
		return model.SectionEnrollment{}, err
	}
	return e.repo.InsertSectionEnrollment(ctx, sectionID, studentID)
}

func (e *Engine) UnenrollFromSection(ctx context.Context, sectionID, studentID int64) error {
	return e.repo.DeleteSectionEnrollment(ctx, sectionID, studentID)
}

// DeleteSection removes a section together with its memberships.
func (e *Engine) DeleteSection(ctx context.Context, sectionID int64) error {
	return e.repo.DeleteSectionCascade(ctx, sectionID)
}

// DeleteSubject removes a subject with its enrollments, schedules and QR
// codes. The subject's attendance rows go with it through the foreign key.
// Nothing is removed when any step fails.
func (e *Engine) DeleteSubject(ctx context.Context, subjectID int64) error {
	if err := e.repo.DeleteSubjectCascade(ctx, subjectID); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Printf("delete subject %d failed: %v", subjectID, err)
		}
		return err
	}
	e.roster.Invalidate(ctx, subjectID)
	return nil
}
