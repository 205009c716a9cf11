package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the single role a user account holds.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleSuperadmin Role = "superadmin"
)

// Roles lists every valid role.
var Roles = []Role{RoleStudent, RoleTeacher, RoleSuperadmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is an account in the identity store. PasswordHash never leaves the server.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          *string   `json:"email"`
	PasswordHash   []byte    `json:"-"`
	FullName       string    `json:"fullName"`
	Role           Role      `json:"role"`
	ProfilePicture *string   `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SetPassword hashes pwd with bcrypt.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword returns nil when pwd matches the stored hash.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Subject is a course owned (optionally) by a teacher.
type Subject struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
	TeacherID   *int64  `json:"teacherId"`
}

// Section groups students independently of subject enrollment.
type Section struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Schedule is a recurring time and room slot of a subject.
type Schedule struct {
	ID          int64  `json:"id"`
	SubjectID   int64  `json:"subjectId"`
	DayOfWeek   string `json:"dayOfWeek"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Room        string `json:"room"`
	SubjectName string `json:"subjectName,omitempty"`
	SubjectCode string `json:"subjectCode,omitempty"`
}

// Enrollment is a student's membership in a subject.
type Enrollment struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"studentId"`
	SubjectID  int64     `json:"subjectId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// SectionEnrollment is a student's membership in a section.
type SectionEnrollment struct {
	ID         int64     `json:"id"`
	SectionID  int64     `json:"sectionId"`
	StudentID  int64     `json:"studentId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// AttendanceStatus is the outcome recorded for a student on a day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
	StatusExcused AttendanceStatus = "excused"
)

// Statuses lists every valid attendance status.
var Statuses = []AttendanceStatus{StatusPresent, StatusLate, StatusAbsent, StatusExcused}

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Attendance is a single ledger row. Date is formatted as DateLayout.
type Attendance struct {
	ID        int64            `json:"id"`
	StudentID int64            `json:"studentId"`
	SubjectID int64            `json:"subjectId"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
	TimeIn    *time.Time       `json:"timeIn"`
	Remarks   *string          `json:"remarks"`
}

// DateLayout is the calendar date format used on the wire and in the ledger.
const DateLayout = "2006-01-02"

// QrCode is a check-in code issued for a subject.
type QrCode struct {
	ID        int64     `json:"id"`
	SubjectID int64     `json:"subjectId"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserUpdate carries the fields of a partial user update; nil means unchanged.
type UserUpdate struct {
	Username       *string
	Email          *string
	PasswordHash   []byte
	FullName       *string
	Role           *Role
	ProfilePicture *string
}

// AttendanceFilter selects ledger rows; nil fields match everything.
type AttendanceFilter struct {
	StudentID *int64
	SubjectID *int64
	Date      *string
}
