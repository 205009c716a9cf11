package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/apperr"
	"classattend/internal/cache"
	"classattend/internal/model"
	"classattend/internal/qrcode"
	"classattend/internal/queue"
	"classattend/internal/store/memory"
)

type env struct {
	store   *memory.Store
	ledger  *Ledger
	codes   *qrcode.Service
	events  *queue.InMemory
	tally   *cache.MemoryTally
	subject model.Subject
	student model.User
	teacher model.User
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	teacher, err := st.CreateUser(ctx, model.User{Username: "teacher", FullName: "Maria Reyes", Role: model.RoleTeacher})
	require.NoError(t, err)
	student, err := st.CreateUser(ctx, model.User{Username: "student", FullName: "Juan Dela Cruz", Role: model.RoleStudent})
	require.NoError(t, err)
	sub, err := st.CreateSubject(ctx, model.Subject{Name: "Software Engineering", Code: "SE101", TeacherID: &teacher.ID})
	require.NoError(t, err)
	_, err = st.InsertEnrollment(ctx, sub.ID, student.ID)
	require.NoError(t, err)

	codes := qrcode.NewService(st)
	events := queue.NewInMemory(16)
	tally := cache.NewMemoryTally()
	l := NewLedger(st, codes, events, tally)
	l.now = func() time.Time { return time.Date(2025, 1, 6, 9, 5, 0, 0, time.UTC) }
	return env{store: st, ledger: l, codes: codes, events: events, tally: tally, subject: sub, student: student, teacher: teacher}
}

func TestMarkStampsTimeAndPublishes(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remarks := "On time"

	rec, err := e.ledger.Mark(ctx, MarkInput{
		StudentID: e.student.ID,
		SubjectID: e.subject.ID,
		Date:      "2025-01-06",
		Status:    model.StatusPresent,
		Remarks:   &remarks,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.TimeIn)
	assert.Equal(t, 9, rec.TimeIn.Hour())
	assert.Equal(t, "On time", *rec.Remarks)

	ch, err := e.events.Consume(ctx)
	require.NoError(t, err)
	msg := <-ch
	assert.Equal(t, EventMarked, msg.Type)
	var evt MarkedEvent
	require.NoError(t, msg.Decode(&evt))
	assert.Equal(t, rec.ID, evt.AttendanceID)
	assert.Equal(t, model.StatusPresent, evt.Status)
}

func TestMarkKeepsRepeatedRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "2025-01-06", Status: model.StatusLate}

	_, err := e.ledger.Mark(ctx, in)
	require.NoError(t, err)
	_, err = e.ledger.Mark(ctx, in)
	require.NoError(t, err)

	rows, err := e.ledger.List(ctx, model.AttendanceFilter{StudentID: &e.student.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMarkValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.ledger.Mark(ctx, MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "06/01/2025", Status: "here"})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := []string{}
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"date", "status"}, fields)

	_, err = e.ledger.Mark(ctx, MarkInput{StudentID: 999, SubjectID: e.subject.ID, Status: model.StatusAbsent})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestMarkRequiresEnrollment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	outsider, err := e.store.CreateUser(ctx, model.User{Username: "mclara", FullName: "Maria Clara", Role: model.RoleStudent})
	require.NoError(t, err)

	_, err = e.ledger.Mark(ctx, MarkInput{StudentID: outsider.ID, SubjectID: e.subject.ID, Status: model.StatusPresent})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rows, err := e.ledger.List(ctx, model.AttendanceFilter{StudentID: &outsider.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScopeFilterForcesStudent(t *testing.T) {
	other := int64(77)
	subject := int64(1)
	student := model.User{ID: 5, Role: model.RoleStudent}

	f := ScopeFilter(student, model.AttendanceFilter{StudentID: &other, SubjectID: &subject})
	require.NotNil(t, f.StudentID)
	assert.Equal(t, int64(5), *f.StudentID)
	assert.Equal(t, &subject, f.SubjectID)

	f = ScopeFilter(model.User{ID: 1, Role: model.RoleTeacher}, model.AttendanceFilter{StudentID: &other})
	assert.Equal(t, int64(77), *f.StudentID)

	f = ScopeFilter(student, model.AttendanceFilter{})
	assert.Equal(t, int64(5), *f.StudentID)
}

func TestCheckIn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.codes.Generate(ctx, e.subject.ID, "ABC123")
	require.NoError(t, err)

	outsider, err := e.store.CreateUser(ctx, model.User{Username: "mclara", FullName: "Maria Clara", Role: model.RoleStudent})
	require.NoError(t, err)
	_, err = e.ledger.CheckIn(ctx, outsider, "ABC123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rec, err := e.ledger.CheckIn(ctx, e.student, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPresent, rec.Status)
	assert.Equal(t, "2025-01-06", rec.Date)
	assert.Equal(t, CheckInRemark, *rec.Remarks)

	_, err = e.ledger.CheckIn(ctx, e.student, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.ledger.CheckIn(ctx, e.teacher, "ABC123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSummaryFallsBackToStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, st := range []model.AttendanceStatus{model.StatusPresent, model.StatusPresent, model.StatusAbsent} {
		_, err := e.ledger.Mark(ctx, MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "2025-01-06", Status: st})
		require.NoError(t, err)
	}

	sum, err := e.ledger.Summary(ctx, e.subject.ID, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "ledger", sum.Source)
	assert.Equal(t, 2, sum.Counts[model.StatusPresent])
	assert.Equal(t, 0, sum.Counts[model.StatusExcused])
	assert.Equal(t, 3, sum.Total)

	_, err = e.ledger.Summary(ctx, e.subject.ID, "yesterday")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestProjectorFeedsSummary(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proj := NewProjector(e.store, e.tally)

	_, err := e.ledger.Mark(ctx, MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "2025-01-06", Status: model.StatusLate})
	require.NoError(t, err)

	ch, err := e.events.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, proj.Handle(ctx, <-ch))

	sum, err := e.ledger.Summary(ctx, e.subject.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "projection", sum.Source)
	assert.Equal(t, 1, sum.Counts[model.StatusLate])
	assert.Equal(t, 1, sum.Total)
}

func TestProjectorIgnoresOtherTypes(t *testing.T) {
	proj := NewProjector(memory.New(), cache.NewMemoryTally())
	msg, err := queue.NewMessage("user.created", map[string]int{"id": 1})
	require.NoError(t, err)
	assert.NoError(t, proj.Handle(context.Background(), msg))

	bad, err := queue.NewMessage(EventMarked, MarkedEvent{Status: "teleported"})
	require.NoError(t, err)
	assert.Error(t, proj.Handle(context.Background(), bad))
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, queue.Message) error {
	return errors.New("redis: connection refused")
}

func TestMarkSurvivesPublishFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.tally.Replace(ctx, e.subject.ID, "2025-01-06", map[model.AttendanceStatus]int{model.StatusPresent: 1}))
	e.ledger.events = failingPublisher{}

	rec, err := e.ledger.Mark(ctx, MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "2025-01-06", Status: model.StatusExcused})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	// the stale projection is dropped and the store answers
	sum, err := e.ledger.Summary(ctx, e.subject.ID, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "ledger", sum.Source)
	assert.Equal(t, 1, sum.Counts[model.StatusExcused])
	assert.Equal(t, 1, sum.Total)
}

func TestProjectorRecountsFromLedger(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proj := NewProjector(e.store, e.tally)

	for _, st := range []model.AttendanceStatus{model.StatusPresent, model.StatusAbsent} {
		_, err := e.ledger.Mark(ctx, MarkInput{StudentID: e.student.ID, SubjectID: e.subject.ID, Date: "2025-01-06", Status: st})
		require.NoError(t, err)
	}
	ch, err := e.events.Consume(ctx)
	require.NoError(t, err)
	<-ch // lost
	last := <-ch
	require.NoError(t, proj.Handle(ctx, last))
	require.NoError(t, proj.Handle(ctx, last))

	sum, err := e.ledger.Summary(ctx, e.subject.ID, "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "projection", sum.Source)
	assert.Equal(t, 1, sum.Counts[model.StatusPresent])
	assert.Equal(t, 1, sum.Counts[model.StatusAbsent])
	assert.Equal(t, 2, sum.Total)
}
