// Package service enforces the login lockout policy: repeated failures for a
// username from one client address lock further attempts for a while.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"emissions/internal/audit"
	"emissions/internal/ratelimit/models"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

var lockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "emissions_login_lockouts_total",
	Help: "Login keys locked after repeated failures",
})

// Store persists lockout records. Get returns sentinel.ErrNotFound when the
// key has no live record. Update applies fn atomically to the live record,
// or to a fresh one carrying the key, and keeps the result for ttl. fn may
// be retried.
type Store interface {
	Get(ctx context.Context, key string) (*models.Lockout, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn func(*models.Lockout)) (*models.Lockout, error)
	Clear(ctx context.Context, key string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	config         models.Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithConfig(cfg models.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	s := &Service{store: store, config: models.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.MaxFailures <= 0 {
		return nil, errors.New("lockout max failures must be positive")
	}
	return s, nil
}

// Check rejects the attempt with CodeTooManyRequests while the key is
// locked. A store outage is logged and lets the attempt through.
func (s *Service) Check(ctx context.Context, username, clientIP string) error {
	key := models.LockoutKey(username, clientIP)
	l, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "lockout lookup failed; allowing attempt",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return nil
	}
	now := requestcontext.Now(ctx)
	if !l.IsLockedAt(now) {
		return nil
	}
	minutes := int(math.Ceil(l.LockedUntil.Sub(now).Minutes()))
	return dErrors.New(dErrors.CodeTooManyRequests,
		fmt.Sprintf("too many failed logins; try again in %d minute(s)", minutes))
}

// RecordFailure counts a failed login and locks the key once the policy
// limit is reached within the window.
func (s *Service) RecordFailure(ctx context.Context, username, clientIP string) error {
	now := requestcontext.Now(ctx)
	var locked bool
	l, err := s.store.Update(ctx, models.LockoutKey(username, clientIP), s.config.TTL(), func(l *models.Lockout) {
		locked = false
		l.RecordFailureAt(now, s.config.Window)
		if l.FailureCount >= s.config.MaxFailures && !l.IsLockedAt(now) {
			l.LockAt(now, s.config.LockDuration)
			locked = true
		}
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if !locked {
		return nil
	}

	lockoutsTotal.Inc()
	s.logger.WarnContext(ctx, "login locked",
		"request_id", requestcontext.RequestID(ctx),
		"username", username,
		"failures", l.FailureCount,
		"locked_until", l.LockedUntil,
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventLoginLocked.String(),
		Subject:  username,
		Decision: "locked",
		Details:  map[string]string{"locked_until": l.LockedUntil.UTC().Format(time.RFC3339)},
	})
	return nil
}

// Clear forgets failures after a successful login.
func (s *Service) Clear(ctx context.Context, username, clientIP string) error {
	if err := s.store.Clear(ctx, models.LockoutKey(username, clientIP)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout")
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
