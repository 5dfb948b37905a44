package audit

import (
	"context"
	"log/slog"
	"sync"
)

// MemorySink keeps events in process. Used by tests and single-node setups.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of every event in arrival order.
func (s *MemorySink) List() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

// ListBySubject returns events for one subject (plate, username).
func (s *MemorySink) ListBySubject(subject string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// LogSink writes events to the structured log. It is the default sink when
// no event stream is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"audit_id", event.ID,
		"action", event.Action,
		"subject", event.Subject,
		"decision", event.Decision,
		"actor_id", event.ActorID,
		"request_id", event.RequestID,
		"client_ip", event.ClientIP,
		"device", event.Device,
	)
	return nil
}

// FanOut delivers each event to every sink and returns the first error.
type FanOut []Sink

func (f FanOut) Append(ctx context.Context, event Event) error {
	var first error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
