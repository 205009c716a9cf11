// Package memory is an in-process implementation of every repository, used
// by STORE_BACKEND=memory and by tests. It enforces the same uniqueness and
// referential rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// Fault lets tests make an operation fail for a given id.
type Fault func(id int64) error

// Store keeps all tables in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	seq map[string]int64

	users              map[int64]model.User
	subjects           map[int64]model.Subject
	sections           map[int64]model.Section
	schedules          map[int64]model.Schedule
	enrollments        map[int64]model.Enrollment
	sectionEnrollments map[int64]model.SectionEnrollment
	attendance         map[int64]model.Attendance
	qrCodes            map[int64]model.QrCode

	faults map[string]Fault
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		seq:                map[string]int64{},
		users:              map[int64]model.User{},
		subjects:           map[int64]model.Subject{},
		sections:           map[int64]model.Section{},
		schedules:          map[int64]model.Schedule{},
		enrollments:        map[int64]model.Enrollment{},
		sectionEnrollments: map[int64]model.SectionEnrollment{},
		attendance:         map[int64]model.Attendance{},
		qrCodes:            map[int64]model.QrCode{},
		faults:             map[string]Fault{},
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Fault operation names.
const (
	OpInsertEnrollment = "insert_enrollment"
	OpInsertAttendance = "insert_attendance"
	OpInsertQrCode     = "insert_qr_code"
)

// InjectFault makes op fail whenever fn returns an error. A nil fn clears it.
func (s *Store) InjectFault(op string, fn Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = fn
}

func (s *Store) fault(op string, id int64) error {
	if fn, ok := s.faults[op]; ok {
		if err := fn(id); err != nil {
			return apperr.Unavailable(err)
		}
	}
	return nil
}

func (s *Store) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortUsersByName(users []model.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return model.User{}, apperr.ErrDuplicateUsername
		}
	}
	u.ID = s.next("users")
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, apperr.NotFoundf("user %d not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, apperr.NotFoundf("user not found")
}

func (s *Store) ListUsers(_ context.Context, role *model.Role) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, id := range sortedKeys(s.users) {
		u := s.users[id]
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, apperr.NotFoundf("user %d not found", id)
	}
	if upd.Username != nil && *upd.Username != u.Username {
		for _, other := range s.users {
			if other.Username == *upd.Username {
				return model.User{}, apperr.ErrDuplicateUsername
			}
		}
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		email := *upd.Email
		u.Email = &email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = upd.PasswordHash
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.ProfilePicture != nil {
		pic := *upd.ProfilePicture
		u.ProfilePicture = &pic
	}
	s.users[id] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for k, e := range s.enrollments {
		if e.StudentID == id {
			delete(s.enrollments, k)
		}
	}
	for k, e := range s.sectionEnrollments {
		if e.StudentID == id {
			delete(s.sectionEnrollments, k)
		}
	}
	for k, a := range s.attendance {
		if a.StudentID == id {
			delete(s.attendance, k)
		}
	}
	for k, sub := range s.subjects {
		if sub.TeacherID != nil && *sub.TeacherID == id {
			sub.TeacherID = nil
			s.subjects[k] = sub
		}
	}
	return nil
}

// ---- subjects ----

func (s *Store) CreateSubject(_ context.Context, sub model.Subject) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.TeacherID != nil {
		if _, ok := s.users[*sub.TeacherID]; !ok {
			return model.Subject{}, apperr.NotFoundf("teacher not found")
		}
	}
	sub.ID = s.next("subjects")
	s.subjects[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubject(_ context.Context, id int64) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return model.Subject{}, apperr.NotFoundf("subject %d not found", id)
	}
	return sub, nil
}

func (s *Store) UpdateSubject(_ context.Context, sub model.Subject) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[sub.ID]; !ok {
		return model.Subject{}, apperr.NotFoundf("subject %d not found", sub.ID)
	}
	if sub.TeacherID != nil {
		if _, ok := s.users[*sub.TeacherID]; !ok {
			return model.Subject{}, apperr.NotFoundf("teacher not found")
		}
	}
	s.subjects[sub.ID] = sub
	return sub, nil
}

func (s *Store) ListSubjects(_ context.Context) ([]model.Subject, error) {
	return s.filterSubjects(func(model.Subject) bool { return true }), nil
}

func (s *Store) ListSubjectsByTeacher(_ context.Context, teacherID int64) ([]model.Subject, error) {
	return s.filterSubjects(func(sub model.Subject) bool {
		return sub.TeacherID != nil && *sub.TeacherID == teacherID
	}), nil
}

func (s *Store) ListSubjectsByStudent(_ context.Context, studentID int64) ([]model.Subject, error) {
	s.mu.Lock()
	enrolled := map[int64]bool{}
	for _, e := range s.enrollments {
		if e.StudentID == studentID {
			enrolled[e.SubjectID] = true
		}
	}
	s.mu.Unlock()
	return s.filterSubjects(func(sub model.Subject) bool { return enrolled[sub.ID] }), nil
}

func (s *Store) filterSubjects(keep func(model.Subject) bool) []model.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Subject{}
	for _, id := range sortedKeys(s.subjects) {
		if sub := s.subjects[id]; keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// ---- sections ----

func (s *Store) CreateSection(_ context.Context, sec model.Section) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec.ID = s.next("sections")
	sec.CreatedAt = s.now()
	s.sections[sec.ID] = sec
	return sec, nil
}

func (s *Store) GetSection(_ context.Context, id int64) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[id]
	if !ok {
		return model.Section{}, apperr.NotFoundf("section %d not found", id)
	}
	return sec, nil
}

func (s *Store) UpdateSection(_ context.Context, sec model.Section) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sections[sec.ID]
	if !ok {
		return model.Section{}, apperr.NotFoundf("section %d not found", sec.ID)
	}
	sec.CreatedAt = existing.CreatedAt
	s.sections[sec.ID] = sec
	return sec, nil
}

func (s *Store) ListSections(_ context.Context) ([]model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Section{}
	for _, id := range sortedKeys(s.sections) {
		out = append(out, s.sections[id])
	}
	return out, nil
}

// ---- schedules ----

func (s *Store) CreateSchedule(_ context.Context, sh model.Schedule) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[sh.SubjectID]
	if !ok {
		return model.Schedule{}, apperr.NotFoundf("subject %d not found", sh.SubjectID)
	}
	sh.ID = s.next("schedules")
	sh.SubjectName, sh.SubjectCode = "", ""
	s.schedules[sh.ID] = sh
	sh.SubjectName, sh.SubjectCode = sub.Name, sub.Code
	return sh, nil
}

func (s *Store) GetSchedule(_ context.Context, id int64) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.schedules[id]
	if !ok {
		return model.Schedule{}, apperr.NotFoundf("schedule %d not found", id)
	}
	sub := s.subjects[sh.SubjectID]
	sh.SubjectName, sh.SubjectCode = sub.Name, sub.Code
	return sh, nil
}

func (s *Store) ListSchedulesBySubject(_ context.Context, subjectID int64) ([]model.Schedule, error) {
	return s.filterSchedules(func(sh model.Schedule, _ model.Subject) bool { return sh.SubjectID == subjectID }), nil
}

func (s *Store) ListSchedulesByTeacher(_ context.Context, teacherID int64) ([]model.Schedule, error) {
	return s.filterSchedules(func(_ model.Schedule, sub model.Subject) bool {
		return sub.TeacherID != nil && *sub.TeacherID == teacherID
	}), nil
}

func (s *Store) filterSchedules(keep func(model.Schedule, model.Subject) bool) []model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Schedule{}
	for _, id := range sortedKeys(s.schedules) {
		sh := s.schedules[id]
		sub := s.subjects[sh.SubjectID]
		if keep(sh, sub) {
			sh.SubjectName, sh.SubjectCode = sub.Name, sub.Code
			out = append(out, sh)
		}
	}
	return out
}

func (s *Store) DeleteSchedule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
	return nil
}

// ---- helpers shared by membership checks ----

func (s *Store) requireStudentAndSubject(studentID, subjectID int64) error {
	if _, ok := s.subjects[subjectID]; !ok {
		return apperr.NotFoundf("subject, section or student not found")
	}
	if _, ok := s.users[studentID]; !ok {
		return apperr.NotFoundf("subject, section or student not found")
	}
	return nil
}

func (s *Store) enrolled(subjectID, studentID int64) bool {
	for _, e := range s.enrollments {
		if e.SubjectID == subjectID && e.StudentID == studentID {
			return true
		}
	}
	return false
}
