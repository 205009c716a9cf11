// Package seed loads a small demo dataset into an empty store.
package seed

import (
	"context"
	"fmt"
	"log"

	"classattend/internal/attendance"
	"classattend/internal/catalog"
	"classattend/internal/identity"
	"classattend/internal/membership"
	"classattend/internal/model"
)

// Services are the components the seed writes through, so the demo data
// passes the same validation as API traffic.
type Services struct {
	Users   *identity.Service
	Catalog *catalog.Service
	Members *membership.Engine
	Ledger  *attendance.Ledger
}

// Demo account names.
const (
	AdminUsername   = "admin"
	TeacherUsername = "teacher"
	StudentUsername = "student"
)

// Run creates the demo accounts, one subject with three weekly slots, an
// enrollment and one attendance mark. It does nothing when any user exists
// and reports whether it wrote anything.
func Run(ctx context.Context, svc Services, password string) (bool, error) {
	existing, err := svc.Users.List(ctx, nil)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		log.Printf("seed: %d users present, skipping", len(existing))
		return false, nil
	}

	accounts := map[model.Role]identity.NewUser{
		model.RoleSuperadmin: {Username: AdminUsername, Password: password, FullName: "System Administrator", Role: model.RoleSuperadmin},
		model.RoleTeacher:    {Username: TeacherUsername, Password: password, FullName: "Dr. Jose Rizal", Role: model.RoleTeacher},
		model.RoleStudent:    {Username: StudentUsername, Password: password, FullName: "Juan Dela Cruz", Role: model.RoleStudent},
	}
	created := map[model.Role]model.User{}
	for _, role := range model.Roles {
		usr, err := svc.Users.Create(ctx, accounts[role])
		if err != nil {
			return false, fmt.Errorf("seed user %s: %w", accounts[role].Username, err)
		}
		created[role] = usr
	}

	teacherID := created[model.RoleTeacher].ID
	desc := "Introduction to Software Engineering"
	subject, err := svc.Catalog.CreateSubject(ctx, catalog.SubjectInput{
		Name:        "Software Engineering",
		Code:        "SE101",
		Description: &desc,
		TeacherID:   &teacherID,
	})
	if err != nil {
		return false, fmt.Errorf("seed subject: %w", err)
	}

	for _, day := range []string{"Monday", "Wednesday", "Friday"} {
		if _, err := svc.Catalog.CreateSchedule(ctx, catalog.ScheduleInput{
			SubjectID: subject.ID,
			DayOfWeek: day,
			StartTime: "09:00",
			EndTime:   "10:30",
			Room:      "Q3212",
		}); err != nil {
			return false, fmt.Errorf("seed schedule %s: %w", day, err)
		}
	}

	studentID := created[model.RoleStudent].ID
	if _, err := svc.Members.EnrollOne(ctx, subject.ID, studentID); err != nil {
		return false, fmt.Errorf("seed enrollment: %w", err)
	}

	remarks := "On time"
	if _, err := svc.Ledger.Mark(ctx, attendance.MarkInput{
		StudentID: studentID,
		SubjectID: subject.ID,
		Status:    model.StatusPresent,
		Remarks:   &remarks,
	}); err != nil {
		return false, fmt.Errorf("seed attendance: %w", err)
	}

	log.Printf("seed: created %d users and subject %s", len(created), subject.Code)
	return true, nil
}
