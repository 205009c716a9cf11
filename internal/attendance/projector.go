package attendance

import (
	"context"
	"fmt"

	"classattend/internal/model"
	"classattend/internal/queue"
)

// TallyWriter stores the projection of one subject's day.
type TallyWriter interface {
	Replace(ctx context.Context, subjectID int64, date string, counts map[model.AttendanceStatus]int) error
	Forget(ctx context.Context, subjectID int64, date string) error
}

// Counter counts ledger rows of one subject's day by status.
type Counter interface {
	CountAttendance(ctx context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, error)
}

// Projector folds EventMarked messages into a tally. Each event recounts its
// day from the ledger, so redelivered events are harmless and a lost event
// is repaired by the next one for the same day.
type Projector struct {
	counts Counter
	tally  TallyWriter
}

func NewProjector(counts Counter, tally TallyWriter) *Projector {
	return &Projector{counts: counts, tally: tally}
}

// Handle applies msg. Messages of other types are ignored.
func (p *Projector) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != EventMarked {
		return nil
	}
	var evt MarkedEvent
	if err := msg.Decode(&evt); err != nil {
		return fmt.Errorf("decode %s %s: %w", msg.Type, msg.ID, err)
	}
	if !evt.Status.Valid() {
		return fmt.Errorf("event %s: unknown status %q", msg.ID, evt.Status)
	}
	counts, err := p.counts.CountAttendance(ctx, evt.SubjectID, evt.Date)
	if err != nil {
		return fmt.Errorf("event %s: recount: %w", msg.ID, err)
	}
	return p.tally.Replace(ctx, evt.SubjectID, evt.Date, counts)
}
