package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"classattend/internal/model"
)

// TallyTTL bounds how long a day's projection is kept.
const TallyTTL = 14 * 24 * time.Hour

func tallyKey(subjectID int64, date string) string {
	return fmt.Sprintf("tally:subject:%d:%s", subjectID, date)
}

// Tally keeps per-subject per-day status counts in a Redis hash.
type Tally struct {
	client *redis.Client
}

func NewTally(client *redis.Client) *Tally {
	return &Tally{client: client}
}

// Replace overwrites the day's counts and restarts its TTL.
func (t *Tally) Replace(ctx context.Context, subjectID int64, date string, counts map[model.AttendanceStatus]int) error {
	key := tallyKey(subjectID, date)
	fields := make(map[string]any, len(model.Statuses))
	for _, st := range model.Statuses {
		fields[string(st)] = counts[st]
	}
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, TallyTTL)
		return nil
	})
	return err
}

func (t *Tally) Forget(ctx context.Context, subjectID int64, date string) error {
	return t.client.Del(ctx, tallyKey(subjectID, date)).Err()
}

func (t *Tally) Counts(ctx context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, bool, error) {
	fields, err := t.client.HGetAll(ctx, tallyKey(subjectID, date)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	counts := make(map[model.AttendanceStatus]int, len(fields))
	for k, v := range fields {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false, fmt.Errorf("tally %s field %s: %w", tallyKey(subjectID, date), k, err)
		}
		counts[model.AttendanceStatus(k)] = n
	}
	return counts, true, nil
}

// MemoryTally is the in-process tally.
type MemoryTally struct {
	mu     sync.Mutex
	counts map[string]map[model.AttendanceStatus]int
}

func NewMemoryTally() *MemoryTally {
	return &MemoryTally{counts: map[string]map[model.AttendanceStatus]int{}}
}

func (m *MemoryTally) Replace(_ context.Context, subjectID int64, date string, counts map[model.AttendanceStatus]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := make(map[model.AttendanceStatus]int, len(model.Statuses))
	for _, st := range model.Statuses {
		c[st] = counts[st]
	}
	m.counts[tallyKey(subjectID, date)] = c
	return nil
}

func (m *MemoryTally) Forget(_ context.Context, subjectID int64, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, tallyKey(subjectID, date))
	return nil
}

func (m *MemoryTally) Counts(_ context.Context, subjectID int64, date string) (map[model.AttendanceStatus]int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[tallyKey(subjectID, date)]
	if !ok {
		return nil, false, nil
	}
	out := make(map[model.AttendanceStatus]int, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, true, nil
}
