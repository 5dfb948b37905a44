package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"emissions/internal/audit"
	"emissions/internal/emission"
	"emissions/internal/thresholds"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

// Store persists snapshot versions.
type Store interface {
	Latest(ctx context.Context) (*emission.Snapshot, error)
	Save(ctx context.Context, snap emission.Snapshot) error
}

// Cache shares the current snapshot between instances.
type Cache interface {
	Get(ctx context.Context) (*emission.Snapshot, error)
	Set(ctx context.Context, snap emission.Snapshot) error
	Invalidate(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service hands out the current threshold snapshot and applies
// administrator replacements.
//
// Readers get the snapshot through an atomic pointer, so an evaluation
// always sees one complete version. A replacement never mutates a snapshot
// in place; it stores a new version and swaps the pointer.
type Service struct {
	store          Store
	cache          Cache
	logger         *slog.Logger
	auditPublisher AuditPublisher
	current        atomic.Pointer[emission.Snapshot]
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("thresholds store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureSeeded loads the latest stored snapshot, storing seed as version 1
// when none exists yet.
func (s *Service) EnsureSeeded(ctx context.Context, seed emission.Snapshot) (emission.Snapshot, error) {
	latest, err := s.store.Latest(ctx)
	if err == nil {
		s.advance(latest)
		return *latest, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return emission.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load thresholds")
	}

	if err := seed.Validate(); err != nil {
		return emission.Snapshot{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid threshold seed")
	}
	snap := seed.Clone()
	snap.Version = 1
	snap.UpdatedAt = requestcontext.Now(ctx)
	snap.UpdatedBy = "seed"
	if err := s.store.Save(ctx, snap); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// another instance seeded first
			return s.reload(ctx)
		}
		return emission.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed thresholds")
	}
	s.advance(&snap)
	s.logger.InfoContext(ctx, "threshold configuration seeded", "version", snap.Version)
	return snap, nil
}

// Current returns the snapshot evaluations must use. The result shares maps
// with the service and must be treated as read-only.
func (s *Service) Current(ctx context.Context) (emission.Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return *snap, nil
	}
	return s.reload(ctx)
}

// Replace stores next as a new version. expectedVersion, when non-zero, must
// match the current version or the update is rejected as a conflict.
func (s *Service) Replace(ctx context.Context, next emission.Snapshot, expectedVersion int64) (emission.Snapshot, error) {
	next = thresholds.Normalize(next)
	if err := next.Validate(); err != nil {
		return emission.Snapshot{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	current, err := s.Current(ctx)
	if err != nil {
		return emission.Snapshot{}, err
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return emission.Snapshot{}, dErrors.New(dErrors.CodeConflict,
			"thresholds were changed by someone else (current version "+strconv.FormatInt(current.Version, 10)+")")
	}

	operator := requestcontext.Operator(ctx)
	snap := next.Clone()
	snap.Version = current.Version + 1
	snap.UpdatedAt = requestcontext.Now(ctx)
	snap.UpdatedBy = operator.Username

	if err := s.store.Save(ctx, snap); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.invalidateCache(ctx)
			_, _ = s.reload(ctx)
			return emission.Snapshot{}, dErrors.New(dErrors.CodeConflict, "thresholds were changed concurrently, reload and retry")
		}
		return emission.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save thresholds")
	}
	s.advance(&snap)
	s.publishToCache(ctx, snap)

	s.logger.InfoContext(ctx, "threshold configuration replaced",
		"request_id", requestcontext.RequestID(ctx),
		"version", snap.Version,
		"updated_by", snap.UpdatedBy,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventThresholdsUpdated.String(),
		Subject: "thresholds",
		Details: map[string]string{"version": strconv.FormatInt(snap.Version, 10)},
	})
	return snap, nil
}

// Refresh picks up versions written by other instances. Newer versions only;
// the pointer never moves backwards.
func (s *Service) Refresh(ctx context.Context) error {
	var latest *emission.Snapshot
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		switch {
		case err == nil:
			latest = cached
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			s.logger.WarnContext(ctx, "threshold cache read failed", "error", err)
		}
	}
	if latest == nil || !s.isNewer(latest) {
		stored, err := s.store.Latest(ctx)
		if err != nil {
			return err
		}
		latest = stored
		s.publishToCache(ctx, *stored)
	}
	if s.advance(latest) {
		s.logger.InfoContext(ctx, "threshold configuration refreshed", "version", latest.Version)
	}
	return nil
}

// Run refreshes on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "threshold refresh failed", "error", err)
			}
		}
	}
}

func (s *Service) reload(ctx context.Context) (emission.Snapshot, error) {
	latest, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return emission.Snapshot{}, dErrors.New(dErrors.CodeInternal, "threshold configuration has not been seeded")
		}
		return emission.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load thresholds")
	}
	s.advance(latest)
	return *latest, nil
}

// advance swaps in snap unless the current version is already as new.
func (s *Service) advance(snap *emission.Snapshot) bool {
	for {
		cur := s.current.Load()
		if cur != nil && snap.Version <= cur.Version {
			return false
		}
		if s.current.CompareAndSwap(cur, snap) {
			return true
		}
	}
}

func (s *Service) isNewer(snap *emission.Snapshot) bool {
	cur := s.current.Load()
	return cur == nil || snap.Version > cur.Version
}

func (s *Service) publishToCache(ctx context.Context, snap emission.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "threshold cache write failed", "error", err)
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "threshold cache invalidation failed", "error", err)
	}
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
