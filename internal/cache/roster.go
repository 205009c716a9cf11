// Package cache holds the Redis-backed read models and their in-process
// equivalents: subject rosters, revoked sessions and attendance tallies.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"classattend/internal/model"
)

func rosterKey(subjectID int64) string {
	return fmt.Sprintf("roster:subject:%d", subjectID)
}

func rosterVersionKey(subjectID int64) string {
	return fmt.Sprintf("roster:subject:%d:version", subjectID)
}

var errRosterMoved = errors.New("roster invalidated since read")

// Roster caches subject rosters in Redis as JSON. Redis errors are logged and
// reported as misses.
type Roster struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoster(client *redis.Client, ttl time.Duration) *Roster {
	return &Roster{client: client, ttl: ttl}
}

func (r *Roster) Get(ctx context.Context, subjectID int64) ([]model.User, bool) {
	raw, err := r.client.Get(ctx, rosterKey(subjectID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("roster cache get %d: %v", subjectID, err)
		}
		return nil, false
	}
	var users []model.User
	if err := json.Unmarshal(raw, &users); err != nil {
		log.Printf("roster cache decode %d: %v", subjectID, err)
		return nil, false
	}
	return users, true
}

// Version returns the subject's invalidation counter, or -1 when Redis
// cannot say. Set refuses -1.
func (r *Roster) Version(ctx context.Context, subjectID int64) int64 {
	v, err := r.client.Get(ctx, rosterVersionKey(subjectID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("roster cache version %d: %v", subjectID, err)
		return -1
	}
	return v
}

// Set stores students unless the roster was invalidated after version was
// read. The version key is watched so a concurrent Invalidate aborts it.
func (r *Roster) Set(ctx context.Context, subjectID int64, version int64, students []model.User) {
	if version < 0 {
		return
	}
	raw, err := json.Marshal(students)
	if err != nil {
		log.Printf("roster cache encode %d: %v", subjectID, err)
		return
	}
	vkey := rosterVersionKey(subjectID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errRosterMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rosterKey(subjectID), raw, r.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil, errors.Is(err, errRosterMoved), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("roster cache set %d: %v", subjectID, err)
	}
}

func (r *Roster) Invalidate(ctx context.Context, subjectID int64) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, rosterVersionKey(subjectID))
		pipe.Del(ctx, rosterKey(subjectID))
		return nil
	})
	if err != nil {
		log.Printf("roster cache invalidate %d: %v", subjectID, err)
	}
}

type rosterEntry struct {
	users   []model.User
	expires time.Time
}

// MemoryRoster is the in-process roster cache.
type MemoryRoster struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[int64]rosterEntry
	versions map[int64]int64
	now      func() time.Time
}

func NewMemoryRoster(ttl time.Duration) *MemoryRoster {
	return &MemoryRoster{ttl: ttl, entries: map[int64]rosterEntry{}, versions: map[int64]int64{}, now: time.Now}
}

func (m *MemoryRoster) Get(_ context.Context, subjectID int64) ([]model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[subjectID]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, subjectID)
		return nil, false
	}
	out := make([]model.User, len(e.users))
	copy(out, e.users)
	return out, true
}

func (m *MemoryRoster) Version(_ context.Context, subjectID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[subjectID]
}

func (m *MemoryRoster) Set(_ context.Context, subjectID int64, version int64, students []model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[subjectID] != version {
		return
	}
	cp := make([]model.User, len(students))
	copy(cp, students)
	m.entries[subjectID] = rosterEntry{users: cp, expires: m.now().Add(m.ttl)}
}

func (m *MemoryRoster) Invalidate(_ context.Context, subjectID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[subjectID]++
	delete(m.entries, subjectID)
}
