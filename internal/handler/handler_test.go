package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/cache"
	"classattend/internal/catalog"
	"classattend/internal/cloudinary"
	"classattend/internal/identity"
	"classattend/internal/membership"
	"classattend/internal/model"
	"classattend/internal/qrcode"
	"classattend/internal/queue"
	"classattend/internal/seed"
	"classattend/internal/store/memory"
)

const testPassword = "password"

type fakeAvatars struct {
	uploads int
}

func (f *fakeAvatars) UploadAvatar(_ context.Context, userID int64, _ []byte, _ string) (*cloudinary.UploadResult, error) {
	f.uploads++
	return &cloudinary.UploadResult{SecureURL: fmt.Sprintf("https://img.example/user-%d.png", userID)}, nil
}

func (f *fakeAvatars) UploadDataURL(_ context.Context, userID int64, _ string) (*cloudinary.UploadResult, error) {
	f.uploads++
	return &cloudinary.UploadResult{SecureURL: fmt.Sprintf("https://img.example/user-%d.png", userID)}, nil
}

type fixture struct {
	t         *testing.T
	r         *gin.Engine
	mem       *memory.Store
	users     *identity.Service
	subjectID int64
	ids       map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	mem := memory.New()
	users := identity.NewService(mem)
	codes := qrcode.NewService(mem)
	ledger := attendance.NewLedger(mem, codes, queue.NewInMemory(16), cache.NewMemoryTally())
	svc := seed.Services{
		Users:   users,
		Catalog: catalog.NewService(mem),
		Members: membership.NewEngine(mem, cache.NewMemoryRoster(time.Minute)),
		Ledger:  ledger,
	}
	ok, err := seed.Run(ctx, svc, testPassword)
	require.NoError(t, err)
	require.True(t, ok)

	h := New(Deps{
		Users:   users,
		Catalog: svc.Catalog,
		Members: svc.Members,
		Ledger:  ledger,
		Codes:   codes,
		Sessions: &auth.Sessions{
			Key:     "handler-test-key",
			Issuer:  "classattend-test",
			TTL:     time.Hour,
			Users:   users,
			Revoked: cache.NewMemoryRevocations(),
		},
		Avatars: &fakeAvatars{},
	})
	r := gin.New()
	h.Register(r)

	f := &fixture{t: t, r: r, mem: mem, users: users, ids: map[string]int64{}}
	for _, name := range []string{seed.AdminUsername, seed.TeacherUsername, seed.StudentUsername} {
		usr, err := users.GetByUsername(ctx, name)
		require.NoError(t, err)
		f.ids[name] = usr.ID
	}
	subs, err := svc.Catalog.ListSubjects(ctx, catalog.SubjectScope{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	f.subjectID = subs[0].ID
	return f
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(username string) string {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/login", "", gin.H{"username": username, "password": testPassword})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	tok := w.Header().Get(TokenHeader)
	require.NotEmpty(f.t, tok)
	return tok
}

func (f *fixture) teacher(name string) string {
	f.t.Helper()
	_, err := f.users.Create(context.Background(), identity.NewUser{
		Username: name, Password: testPassword, FullName: name, Role: model.RoleTeacher,
	})
	require.NoError(f.t, err)
	return f.login(name)
}

func (f *fixture) student(name string) int64 {
	f.t.Helper()
	usr, err := f.users.Create(context.Background(), identity.NewUser{
		Username: name, Password: testPassword, FullName: name, Role: model.RoleStudent,
	})
	require.NoError(f.t, err)
	return usr.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]any](t, w)["message"].(string)
}

func TestEveryRouteHasPolicy(t *testing.T) {
	f := newFixture(t)
	for _, rt := range f.r.Routes() {
		_, ok := policies[rt.Method+" "+rt.Path]
		assert.True(t, ok, "no policy for %s %s", rt.Method, rt.Path)
	}
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password", message(t, w))

	w = f.do(http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Header().Get("Set-Cookie"), "Secure")
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.CookieName+"=")
	tok := w.Header().Get(TokenHeader)

	w = f.do(http.MethodGet, "/api/user", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", decode[model.User](t, w).Username)

	w = f.do(http.MethodPost, "/api/logout", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", message(t, w))

	w = f.do(http.MethodGet, "/api/user", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", message(t, w))
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	body := gin.H{"username": "jdelacruz", "password": "secret", "fullName": "Juan Dela Cruz", "role": "student"}

	w := f.do(http.MethodPost, "/api/users/create", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")

	w = f.do(http.MethodPost, "/api/users/create", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already exists", message(t, w))

	teacher := gin.H{"username": "mreyes", "password": "secret", "fullName": "Maria Reyes", "role": "teacher"}
	w = f.do(http.MethodPost, "/api/users/create", "", teacher)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/users/create", f.login("admin"), teacher)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/api/users/create", "", gin.H{"username": "x", "role": "janitor"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode[map[string]any](t, w)["fields"].([]any)
	assert.Len(t, fields, 3)
}

func TestUserListAndUpdate(t *testing.T) {
	f := newFixture(t)
	studentTok := f.login("student")

	w := f.do(http.MethodGet, "/api/users/list?role=teacher", studentTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]model.User](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, "teacher", listed[0].Username)
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do(http.MethodGet, "/api/users/list?role=dean", studentTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	self := fmt.Sprintf("/api/users/%d", f.ids["student"])
	w = f.do(http.MethodPut, self, studentTok, gin.H{"fullName": "Juan D. Cruz"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Juan D. Cruz", decode[model.User](t, w).FullName)

	w = f.do(http.MethodPut, self, studentTok, gin.H{"role": "superadmin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	other := fmt.Sprintf("/api/users/%d", f.ids["teacher"])
	w = f.do(http.MethodPut, other, studentTok, gin.H{"fullName": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminTok := f.login("admin")
	w = f.do(http.MethodDelete, other, adminTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, "/api/users/list?role=teacher", adminTok, nil)
	assert.Empty(t, decode[[]model.User](t, w))
}

func TestAvatarUpload(t *testing.T) {
	f := newFixture(t)
	tok := f.login("student")
	path := fmt.Sprintf("/api/users/%d/avatar", f.ids["student"])

	w := f.do(http.MethodPost, path, tok, gin.H{"data": "not-an-image"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, path, tok, gin.H{"data": "data:image/png;base64,iVBORw0KGgo="})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	usr := decode[model.User](t, w)
	require.NotNil(t, usr.ProfilePicture)
	assert.Equal(t, fmt.Sprintf("https://img.example/user-%d.png", f.ids["student"]), *usr.ProfilePicture)
}

func TestAnonymousIsRejected(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/subjects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", message(t, w))
}

func TestSubjectsScopedByRole(t *testing.T) {
	f := newFixture(t)
	adminTok := f.login("admin")

	w := f.do(http.MethodPost, "/api/subjects", adminTok, gin.H{"name": "Data Structures", "code": "CS201"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/api/subjects", adminTok, nil)
	assert.Len(t, decode[[]model.Subject](t, w), 2)

	w = f.do(http.MethodGet, "/api/subjects", f.login("student"), nil)
	subs := decode[[]model.Subject](t, w)
	require.Len(t, subs, 1)
	assert.Equal(t, "SE101", subs[0].Code)

	w = f.do(http.MethodGet, "/api/subjects", f.login("teacher"), nil)
	assert.Len(t, decode[[]model.Subject](t, w), 1)

	w = f.do(http.MethodPost, "/api/subjects", f.login("student"), gin.H{"name": "X", "code": "X1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTeacherOwnsSubject(t *testing.T) {
	f := newFixture(t)
	adminTok := f.login("admin")
	w := f.do(http.MethodPost, "/api/users/create", adminTok, gin.H{"username": "mreyes", "password": testPassword, "fullName": "Maria Reyes", "role": "teacher"})
	require.Equal(t, http.StatusCreated, w.Code)

	other := f.login("mreyes")
	path := fmt.Sprintf("/api/subjects/%d", f.subjectID)
	w = f.do(http.MethodPut, path, other, gin.H{"name": "Hijacked", "code": "SE101"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/subjects", other, gin.H{"name": "Algorithms", "code": "CS301"})
	require.Equal(t, http.StatusCreated, w.Code)
	sub := decode[model.Subject](t, w)
	require.NotNil(t, sub.TeacherID)
	assert.NotEqual(t, f.ids["teacher"], *sub.TeacherID)

	w = f.do(http.MethodPut, path, f.login("teacher"), gin.H{"name": "Software Engineering I", "code": "SE101"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Software Engineering I", decode[model.Subject](t, w).Name)
}

func TestStudentAttendanceIsScoped(t *testing.T) {
	f := newFixture(t)
	other := f.student("mclara")
	teacherTok := f.login("teacher")

	w := f.do(http.MethodPost, fmt.Sprintf("/api/subjects/%d/enroll", f.subjectID), teacherTok, gin.H{"studentId": other})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/api/attendance", teacherTok, gin.H{"studentId": other, "subjectId": f.subjectID, "status": "late"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	studentTok := f.login("student")
	w = f.do(http.MethodGet, fmt.Sprintf("/api/attendance?studentId=%d", other), studentTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]model.Attendance](t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, f.ids["student"], rows[0].StudentID)

	// a student marking for someone else marks themself
	w = f.do(http.MethodPost, "/api/attendance", studentTok, gin.H{"studentId": other, "subjectId": f.subjectID, "status": "present"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, f.ids["student"], decode[model.Attendance](t, w).StudentID)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/attendance?studentId=%d", other), teacherTok, nil)
	assert.Len(t, decode[[]model.Attendance](t, w), 1)

	w = f.do(http.MethodPost, "/api/attendance", teacherTok, gin.H{"studentId": other, "subjectId": f.subjectID, "status": "asleep"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, "/api/attendance?date=yesterday", teacherTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQrRegenerateAndCheckIn(t *testing.T) {
	f := newFixture(t)
	teacherTok := f.login("teacher")
	qrPath := fmt.Sprintf("/api/subjects/%d/qr", f.subjectID)

	w := f.do(http.MethodPost, qrPath, teacherTok, gin.H{"code": "ABC123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, qrPath, teacherTok, gin.H{"code": "XYZ789"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, qrPath, teacherTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "XYZ789", decode[model.QrCode](t, w).Code)
	active, err := f.mem.ListActiveQrCodes(context.Background(), f.subjectID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	studentTok := f.login("student")
	w = f.do(http.MethodPost, "/api/attendance/checkin", studentTok, gin.H{"code": "ABC123"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodPost, "/api/attendance/checkin", studentTok, gin.H{"code": "XYZ789"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[model.Attendance](t, w)
	assert.Equal(t, model.StatusPresent, rec.Status)
	assert.Equal(t, f.subjectID, rec.SubjectID)

	w = f.do(http.MethodPost, "/api/attendance/checkin", teacherTok, gin.H{"code": "XYZ789"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.student("outsider")
	w = f.do(http.MethodPost, "/api/attendance/checkin", f.login("outsider"), gin.H{"code": "XYZ789"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "student is not enrolled in this subject", message(t, w))
}

func TestAttendanceSummary(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, fmt.Sprintf("/api/subjects/%d/attendance/summary", f.subjectID), f.login("teacher"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sum := decode[attendance.Summary](t, w)
	assert.Equal(t, 1, sum.Counts[model.StatusPresent])
	assert.Equal(t, 0, sum.Counts[model.StatusAbsent])
	assert.Equal(t, 1, sum.Total)

	w = f.do(http.MethodGet, "/api/subjects/999/attendance/summary", f.login("admin"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeacherSchedules(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/schedules/teacher", f.login("student"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only teachers can access this endpoint", message(t, w))

	teacherTok := f.login("teacher")
	w = f.do(http.MethodGet, "/api/schedules/teacher", teacherTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]model.Schedule](t, w)
	require.Len(t, rows, 3)
	assert.Equal(t, "SE101", rows[0].SubjectCode)

	w = f.do(http.MethodPost, "/api/schedules", teacherTok, gin.H{
		"subjectId": f.subjectID, "dayOfWeek": "tuesday", "startTime": "13:00", "endTime": "14:00", "room": "Q3212",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Schedule](t, w)
	assert.Equal(t, "Tuesday", created.DayOfWeek)

	w = f.do(http.MethodPost, "/api/schedules", teacherTok, gin.H{
		"subjectId": f.subjectID, "dayOfWeek": "Tuesday", "startTime": "14:00", "endTime": "13:00", "room": "Q3212",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodDelete, fmt.Sprintf("/api/schedules/%d", created.ID), teacherTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, fmt.Sprintf("/api/subjects/%d/schedules", f.subjectID), teacherTok, nil)
	assert.Len(t, decode[[]model.Schedule](t, w), 3)
}

func TestBulkEnrollThenDeleteSubject(t *testing.T) {
	f := newFixture(t)
	ids := []int64{f.student("s1"), f.student("s2"), f.student("s3")}
	teacherTok := f.login("teacher")
	base := fmt.Sprintf("/api/subjects/%d", f.subjectID)

	w := f.do(http.MethodGet, base+"/available", teacherTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.User](t, w), 3)

	w = f.do(http.MethodPost, base+"/enroll/bulk", teacherTok, gin.H{"studentIds": ids})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["count"])

	w = f.do(http.MethodPost, base+"/enroll", teacherTok, gin.H{"studentId": ids[0]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "student is already enrolled", message(t, w))

	w = f.do(http.MethodPost, base+"/enroll/bulk", teacherTok, gin.H{"studentIds": []int64{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, base+"/students", teacherTok, nil)
	assert.Len(t, decode[[]model.User](t, w), 4)

	w = f.do(http.MethodDelete, base, teacherTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, base, teacherTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	enrolled, err := f.mem.ListEnrollments(context.Background(), f.subjectID)
	require.NoError(t, err)
	assert.Empty(t, enrolled)
}

func TestUnenrollKeepsAttendance(t *testing.T) {
	f := newFixture(t)
	studentID := f.ids["student"]

	w := f.do(http.MethodDelete, fmt.Sprintf("/api/subjects/%d/students/%d", f.subjectID, studentID), f.login("teacher"), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/attendance?studentId=%d&subjectId=%d", studentID, f.subjectID), f.login("admin"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Attendance](t, w), 1)

	w = f.do(http.MethodDelete, fmt.Sprintf("/api/subjects/%d/students/%d", f.subjectID, studentID), f.login("teacher"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSections(t *testing.T) {
	f := newFixture(t)
	adminTok := f.login("admin")

	w := f.do(http.MethodPost, "/api/sections", f.login("teacher"), gin.H{"name": "BSIT 3A", "code": "IT3A"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/sections", adminTok, gin.H{"name": "BSIT 3A", "code": "IT3A"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sec := decode[model.Section](t, w)
	base := fmt.Sprintf("/api/sections/%d", sec.ID)

	w = f.do(http.MethodPost, base+"/enroll", adminTok, gin.H{"studentId": f.ids["student"]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPost, base+"/enroll", adminTok, gin.H{"studentId": f.ids["teacher"]})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, base+"/students", f.login("student"), nil)
	assert.Len(t, decode[[]model.User](t, w), 1)

	w = f.do(http.MethodPut, base, adminTok, gin.H{"name": "BSIT 3-A", "code": "IT3A"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BSIT 3-A", decode[model.Section](t, w).Name)

	w = f.do(http.MethodDelete, fmt.Sprintf("%s/students/%d", base, f.ids["student"]), adminTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodDelete, base, adminTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, "/api/sections", adminTok, nil)
	assert.Empty(t, decode[[]model.Section](t, w))
}

func TestBadPathID(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/subjects/abc", f.login("admin"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkAttendanceRequiresMembership(t *testing.T) {
	f := newFixture(t)
	outsider := f.student("mclara")
	mark := gin.H{"studentId": f.ids["student"], "subjectId": f.subjectID, "status": "absent"}

	w := f.do(http.MethodPost, "/api/attendance", f.teacher("mreyes"), mark)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "you do not teach this subject", message(t, w))

	w = f.do(http.MethodPost, "/api/attendance", f.login("mclara"), gin.H{"subjectId": f.subjectID, "status": "present"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "student is not enrolled in this subject", message(t, w))

	adminTok := f.login("admin")
	w = f.do(http.MethodPost, "/api/attendance", adminTok, gin.H{"studentId": outsider, "subjectId": f.subjectID, "status": "present"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/attendance", f.login("teacher"), mark)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodGet, fmt.Sprintf("/api/attendance?subjectId=%d", f.subjectID), adminTok, nil)
	rows := decode[[]model.Attendance](t, w)
	assert.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, f.ids["student"], r.StudentID)
	}
}

func TestDeleteScheduleChecksOwner(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, fmt.Sprintf("/api/subjects/%d/schedules", f.subjectID), f.login("student"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]model.Schedule](t, w)
	require.Len(t, rows, 3)
	path := fmt.Sprintf("/api/schedules/%d", rows[0].ID)

	w = f.do(http.MethodDelete, path, f.teacher("mreyes"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodDelete, path, f.login("teacher"), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodDelete, path, f.login("admin"), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/subjects/%d/schedules", f.subjectID), f.login("teacher"), nil)
	assert.Len(t, decode[[]model.Schedule](t, w), 2)
}

func TestRosterFollowsAccountChanges(t *testing.T) {
	f := newFixture(t)
	teacherTok := f.login("teacher")
	adminTok := f.login("admin")
	roster := fmt.Sprintf("/api/subjects/%d/students", f.subjectID)

	w := f.do(http.MethodGet, roster, teacherTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]model.User](t, w), 1)

	w = f.do(http.MethodPut, fmt.Sprintf("/api/users/%d", f.ids["student"]), adminTok, gin.H{"fullName": "Juan P. Dela Cruz"})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, roster, teacherTok, nil)
	students := decode[[]model.User](t, w)
	require.Len(t, students, 1)
	assert.Equal(t, "Juan P. Dela Cruz", students[0].FullName)

	w = f.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", f.ids["student"]), adminTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodGet, roster, teacherTok, nil)
	assert.Empty(t, decode[[]model.User](t, w))
}

func TestRoleChangeRefusedWhileEnrolled(t *testing.T) {
	f := newFixture(t)
	adminTok := f.login("admin")
	path := fmt.Sprintf("/api/users/%d", f.ids["student"])

	w := f.do(http.MethodPut, path, adminTok, gin.H{"role": "teacher"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, fmt.Sprintf("/api/subjects/%d/students", f.subjectID), adminTok, nil)
	students := decode[[]model.User](t, w)
	require.Len(t, students, 1)
	assert.Equal(t, model.RoleStudent, students[0].Role)

	w = f.do(http.MethodDelete, fmt.Sprintf("/api/subjects/%d/students/%d", f.subjectID, f.ids["student"]), adminTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(http.MethodPut, path, adminTok, gin.H{"role": "teacher"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.RoleTeacher, decode[model.User](t, w).Role)
}
