package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// AccessEventStore is an in-memory append-only audit log.
// It is intended for use in tests and dev environments.
type AccessEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []types.AccessEvent
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{nextID: 1}
}

func (s *AccessEventStore) Record(_ context.Context, ev types.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.ID = s.nextID
	s.nextID++
	s.events = append(s.events, ev)
	return nil
}

func (s *AccessEventStore) Recent(_ context.Context, limit int) ([]types.AccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.AccessEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Events returns a copy of all recorded events in append order. Test-only helper.
func (s *AccessEventStore) Events() []types.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}

// UnknownCaptureStore is an in-memory append-only evidence log.
type UnknownCaptureStore struct {
	mu     sync.Mutex
	nextID int64
	caps   []types.UnknownCapture
}

func NewUnknownCaptureStore() *UnknownCaptureStore {
	return &UnknownCaptureStore{nextID: 1}
}

func (s *UnknownCaptureStore) Record(_ context.Context, cap types.UnknownCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap.Timestamp.IsZero() {
		cap.Timestamp = time.Now().UTC()
	}
	cap.ID = s.nextID
	s.nextID++
	s.caps = append(s.caps, cap)
	return nil
}

func (s *UnknownCaptureStore) Recent(_ context.Context, limit int) ([]types.UnknownCapture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.caps)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.UnknownCapture, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.caps[i])
	}
	return out, nil
}

func (s *UnknownCaptureStore) PruneOlderThan(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []types.UnknownCapture
	var removed []string
	for _, c := range s.caps {
		if c.Timestamp.Before(cutoff) {
			if c.ImagePath != "" {
				removed = append(removed, c.ImagePath)
			}
			continue
		}
		kept = append(kept, c)
	}
	s.caps = kept
	return removed, nil
}

// Captures returns a copy of all recorded captures. Test-only helper.
func (s *UnknownCaptureStore) Captures() []types.UnknownCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.UnknownCapture, len(s.caps))
	copy(out, s.caps)
	return out
}
