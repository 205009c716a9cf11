package memory

import (
	"context"
	"sort"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

func (s *Store) InsertEnrollment(_ context.Context, subjectID, studentID int64) (model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStudentAndSubject(studentID, subjectID); err != nil {
		return model.Enrollment{}, err
	}
	if s.enrolled(subjectID, studentID) {
		return model.Enrollment{}, apperr.ErrDuplicateMembership
	}
	if err := s.fault(OpInsertEnrollment, studentID); err != nil {
		return model.Enrollment{}, err
	}
	e := model.Enrollment{ID: s.next("enrollments"), StudentID: studentID, SubjectID: subjectID, EnrolledAt: s.now()}
	s.enrollments[e.ID] = e
	return e, nil
}

// InsertEnrollments stages every new row and commits only when all succeed.
func (s *Store) InsertEnrollments(_ context.Context, subjectID int64, studentIDs []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := []model.Enrollment{}
	seen := map[int64]bool{}
	for _, studentID := range studentIDs {
		if err := s.requireStudentAndSubject(studentID, subjectID); err != nil {
			return 0, err
		}
		if seen[studentID] || s.enrolled(subjectID, studentID) {
			continue
		}
		if err := s.fault(OpInsertEnrollment, studentID); err != nil {
			return 0, err
		}
		seen[studentID] = true
		staged = append(staged, model.Enrollment{StudentID: studentID, SubjectID: subjectID, EnrolledAt: s.now()})
	}
	for _, e := range staged {
		e.ID = s.next("enrollments")
		s.enrollments[e.ID] = e
	}
	return len(staged), nil
}

func (s *Store) DeleteEnrollment(_ context.Context, subjectID, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.enrollments {
		if e.SubjectID == subjectID && e.StudentID == studentID {
			delete(s.enrollments, k)
			return nil
		}
	}
	return apperr.NotFoundf("student %d is not enrolled in subject %d", studentID, subjectID)
}

func (s *Store) IsEnrolled(_ context.Context, subjectID, studentID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrolled(subjectID, studentID), nil
}

func (s *Store) ListStudentMemberships(_ context.Context, studentID int64) ([]int64, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subjects, sections := []int64{}, []int64{}
	for _, id := range sortedKeys(s.enrollments) {
		if e := s.enrollments[id]; e.StudentID == studentID {
			subjects = append(subjects, e.SubjectID)
		}
	}
	for _, id := range sortedKeys(s.sectionEnrollments) {
		if e := s.sectionEnrollments[id]; e.StudentID == studentID {
			sections = append(sections, e.SectionID)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
	return subjects, sections, nil
}

func (s *Store) ListEnrollments(_ context.Context, subjectID int64) ([]model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Enrollment{}
	for _, id := range sortedKeys(s.enrollments) {
		if e := s.enrollments[id]; e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListSubjectStudents(_ context.Context, subjectID int64) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, e := range s.enrollments {
		if e.SubjectID == subjectID {
			if u, ok := s.users[e.StudentID]; ok {
				out = append(out, u)
			}
		}
	}
	sortUsersByName(out)
	return out, nil
}

func (s *Store) ListSectionStudents(_ context.Context, sectionID int64) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.User{}
	for _, e := range s.sectionEnrollments {
		if e.SectionID == sectionID {
			if u, ok := s.users[e.StudentID]; ok {
				out = append(out, u)
			}
		}
	}
	sortUsersByName(out)
	return out, nil
}

func (s *Store) ListAvailableStudents(_ context.Context, subjectID int64, sectionID *int64) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inSection := map[int64]bool{}
	if sectionID != nil {
		for _, e := range s.sectionEnrollments {
			if e.SectionID == *sectionID {
				inSection[e.StudentID] = true
			}
		}
	}
	out := []model.User{}
	for _, u := range s.users {
		if u.Role != model.RoleStudent || s.enrolled(subjectID, u.ID) {
			continue
		}
		if sectionID != nil && !inSection[u.ID] {
			continue
		}
		out = append(out, u)
	}
	sortUsersByName(out)
	return out, nil
}

func (s *Store) InsertSectionEnrollment(_ context.Context, sectionID, studentID int64) (model.SectionEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, secOK := s.sections[sectionID]
	_, userOK := s.users[studentID]
	if !secOK || !userOK {
		return model.SectionEnrollment{}, apperr.NotFoundf("subject, section or student not found")
	}
	for _, e := range s.sectionEnrollments {
		if e.SectionID == sectionID && e.StudentID == studentID {
			return model.SectionEnrollment{}, apperr.ErrDuplicateMembership
		}
	}
	e := model.SectionEnrollment{ID: s.next("section_enrollments"), SectionID: sectionID, StudentID: studentID, EnrolledAt: s.now()}
	s.sectionEnrollments[e.ID] = e
	return e, nil
}

func (s *Store) DeleteSectionEnrollment(_ context.Context, sectionID, studentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.sectionEnrollments {
		if e.SectionID == sectionID && e.StudentID == studentID {
			delete(s.sectionEnrollments, k)
			return nil
		}
	}
	return apperr.NotFoundf("student %d is not in section %d", studentID, sectionID)
}

func (s *Store) DeleteSectionCascade(_ context.Context, sectionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sections[sectionID]; !ok {
		return apperr.NotFoundf("section %d not found", sectionID)
	}
	for k, e := range s.sectionEnrollments {
		if e.SectionID == sectionID {
			delete(s.sectionEnrollments, k)
		}
	}
	delete(s.sections, sectionID)
	return nil
}

func (s *Store) DeleteSubjectCascade(_ context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subjectID]; !ok {
		return apperr.NotFoundf("subject %d not found", subjectID)
	}
	for k, e := range s.enrollments {
		if e.SubjectID == subjectID {
			delete(s.enrollments, k)
		}
	}
	for k, sh := range s.schedules {
		if sh.SubjectID == subjectID {
			delete(s.schedules, k)
		}
	}
	for k, q := range s.qrCodes {
		if q.SubjectID == subjectID {
			delete(s.qrCodes, k)
		}
	}
	for k, a := range s.attendance {
		if a.SubjectID == subjectID {
			delete(s.attendance, k)
		}
	}
	delete(s.subjects, subjectID)
	return nil
}

// ---- attendance ----

func (s *Store) InsertAttendance(_ context.Context, a model.Attendance) (model.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStudentAndSubject(a.StudentID, a.SubjectID); err != nil {
		return model.Attendance{}, apperr.NotFoundf("student or subject not found")
	}
	if err := s.fault(OpInsertAttendance, a.StudentID); err != nil {
		return model.Attendance{}, err
	}
	a.ID = s.next("attendance")
	s.attendance[a.ID] = a
	return a, nil
}

func (s *Store) ListAttendance(_ context.Context, f model.AttendanceFilter) ([]model.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Attendance{}
	ids := sortedKeys(s.attendance)
	for i := len(ids) - 1; i >= 0; i-- {
		a := s.attendance[ids[i]]
		if f.StudentID != nil && a.StudentID != *f.StudentID {
			continue
		}
		if f.SubjectID != nil && a.SubjectID != *f.SubjectID {
			continue
		}
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		out = append(out, a)
	}
	// newest date first; out is already in id desc order for ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *Store) CountAttendance(_ context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[model.AttendanceStatus]int{}
	for _, a := range s.attendance {
		if a.SubjectID == subjectID && a.Date == date {
			counts[a.Status]++
		}
	}
	return counts, nil
}

// ---- qr codes ----

func (s *Store) ReplaceActiveQrCode(_ context.Context, subjectID int64, code string) (model.QrCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subjectID]; !ok {
		return model.QrCode{}, apperr.NotFoundf("subject %d not found", subjectID)
	}
	if err := s.fault(OpInsertQrCode, subjectID); err != nil {
		return model.QrCode{}, err
	}
	for k, q := range s.qrCodes {
		if q.SubjectID == subjectID && q.Active {
			q.Active = false
			s.qrCodes[k] = q
		}
	}
	q := model.QrCode{ID: s.next("qr_codes"), SubjectID: subjectID, Code: code, Active: true, CreatedAt: s.now()}
	s.qrCodes[q.ID] = q
	return q, nil
}

func (s *Store) ListActiveQrCodes(_ context.Context, subjectID int64) ([]model.QrCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.QrCode{}
	for _, id := range sortedKeys(s.qrCodes) {
		if q := s.qrCodes[id]; q.SubjectID == subjectID && q.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) GetActiveQrCodeByCode(_ context.Context, code string) (model.QrCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := sortedKeys(s.qrCodes)
	for i := len(ids) - 1; i >= 0; i-- {
		if q := s.qrCodes[ids[i]]; q.Code == code && q.Active {
			return q, nil
		}
	}
	return model.QrCode{}, apperr.NotFoundf("qr code %q is not active", code)
}

func (s *Store) DeactivateAllQrCodes(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, q := range s.qrCodes {
		if q.Active {
			q.Active = false
			s.qrCodes[k] = q
			n++
		}
	}
	return n, nil
}
