package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"emissions/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and hands
// events to a Sink so tests can swap sinks easily.
//
// In async mode events are queued and a Worker drains them; Emit never
// blocks the caller and drops the event when the buffer is full.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	inbox   chan Event
	done    chan struct{}
	closeMu sync.Once
	closed  bool
	mu      sync.RWMutex
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async mode with the given queue size.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		worker := NewWorker(sink, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			worker.Run(context.Background())
		}()
	}
	return p
}

// Emit enriches the event with request metadata and forwards it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = DeviceLabel(requestcontext.UserAgent(ctx))
	}
	if op := requestcontext.Operator(ctx); !op.IsZero() && event.ActorID == "" {
		event.ActorID = op.UserID.String()
		event.ActorName = op.Username
	}

	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// Close stops accepting queued events and waits for the worker to drain.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.closeMu.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		select {
		case <-p.done:
		case <-time.After(10 * time.Second):
			p.logger.Warn("audit drain timed out")
		}
	})
}
