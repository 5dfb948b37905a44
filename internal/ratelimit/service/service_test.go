package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"emissions/internal/audit"
	"emissions/internal/platform/logger"
	"emissions/internal/ratelimit/models"
	"emissions/internal/ratelimit/service/mocks"
	"emissions/internal/ratelimit/store"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

type LockoutServiceSuite struct {
	suite.Suite
	sink    *audit.MemorySink
	service *Service
	now     time.Time
}

func TestLockoutServiceSuite(t *testing.T) {
	suite.Run(t, new(LockoutServiceSuite))
}

func (s *LockoutServiceSuite) SetupTest() {
	s.sink = audit.NewMemorySink()
	s.now = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(store.NewInMemory(),
		WithLogger(logger.Discard()),
		WithAuditPublisher(audit.NewPublisher(s.sink)),
		WithConfig(models.Config{MaxFailures: 3, Window: 10 * time.Minute, LockDuration: 5 * time.Minute}),
	)
	s.Require().NoError(err)
}

func (s *LockoutServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *LockoutServiceSuite) fail(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		s.Require().NoError(s.service.RecordFailure(ctx, "budi", "10.0.0.7"))
	}
}

func (s *LockoutServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Require().Error(err)

	_, err = New(store.NewInMemory(), WithConfig(models.Config{}))
	s.Require().Error(err)
}

func (s *LockoutServiceSuite) TestLocksAfterMaxFailures() {
	ctx := s.at(0)
	s.fail(ctx, 2)
	s.Require().NoError(s.service.Check(ctx, "budi", "10.0.0.7"))

	s.fail(ctx, 1)
	err := s.service.Check(ctx, "budi", "10.0.0.7")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
	s.Contains(err.Error(), "5 minute")

	events := s.sink.ListBySubject("budi")
	s.Require().Len(events, 1)
	s.Equal(audit.EventLoginLocked.String(), events[0].Action)
	s.Equal("2026-05-02T08:05:00Z", events[0].Details["locked_until"])
}

func (s *LockoutServiceSuite) TestLockIsScopedToUsernameAndAddress() {
	ctx := s.at(0)
	s.fail(ctx, 3)

	s.Require().Error(s.service.Check(ctx, "BUDI ", "10.0.0.7"))
	s.Require().NoError(s.service.Check(ctx, "budi", "10.0.0.8"))
	s.Require().NoError(s.service.Check(ctx, "siti", "10.0.0.7"))
}

func (s *LockoutServiceSuite) TestLockExpires() {
	s.fail(s.at(0), 3)
	s.Require().Error(s.service.Check(s.at(4*time.Minute), "budi", "10.0.0.7"))
	s.Require().NoError(s.service.Check(s.at(5*time.Minute), "budi", "10.0.0.7"))
}

func (s *LockoutServiceSuite) TestWindowRestartsCount() {
	s.fail(s.at(0), 2)
	s.fail(s.at(11*time.Minute), 2)
	s.Require().NoError(s.service.Check(s.at(11*time.Minute), "budi", "10.0.0.7"))
	s.Empty(s.sink.List())
}

func (s *LockoutServiceSuite) TestClearForgetsFailures() {
	ctx := s.at(0)
	s.fail(ctx, 2)
	s.Require().NoError(s.service.Clear(ctx, "budi", "10.0.0.7"))
	s.fail(ctx, 2)
	s.Require().NoError(s.service.Check(ctx, "budi", "10.0.0.7"))
}

func (s *LockoutServiceSuite) TestConcurrentFailuresLockOnce() {
	ctx := s.at(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.service.RecordFailure(ctx, "budi", "10.0.0.7"))
		}()
	}
	wg.Wait()

	s.Require().Error(s.service.Check(ctx, "budi", "10.0.0.7"))
	s.Len(s.sink.ListBySubject("budi"), 1)
}

func (s *LockoutServiceSuite) TestStoreFailures() {
	ctrl := gomock.NewController(s.T())
	mockStore := mocks.NewMockStore(ctrl)
	svc, err := New(mockStore, WithLogger(logger.Discard()))
	s.Require().NoError(err)
	ctx := s.at(0)

	s.Run("check fails open when the store is down", func() {
		mockStore.EXPECT().Get(gomock.Any(), "login:budi|10.0.0.7").Return(nil, errors.New("redis down"))
		s.NoError(svc.Check(ctx, "budi", "10.0.0.7"))
	})

	s.Run("check allows unknown keys", func() {
		mockStore.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.NoError(svc.Check(ctx, "budi", "10.0.0.7"))
	})

	s.Run("record failure surfaces update errors", func() {
		mockStore.EXPECT().
			Update(gomock.Any(), "login:budi|10.0.0.7", models.DefaultConfig().TTL(), gomock.Any()).
			Return(nil, errors.New("redis down"))
		err := svc.RecordFailure(ctx, "budi", "10.0.0.7")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("a retried update reports the lock once", func() {
		sink := audit.NewMemorySink()
		retrying, err := New(mockStore,
			WithLogger(logger.Discard()),
			WithAuditPublisher(audit.NewPublisher(sink)),
			WithConfig(models.Config{MaxFailures: 1, Window: time.Minute, LockDuration: time.Minute}),
		)
		s.Require().NoError(err)
		mockStore.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, key string, _ time.Duration, fn func(*models.Lockout)) (*models.Lockout, error) {
				// First attempt loses the race to a writer that already locked the key.
				fresh := &models.Lockout{Key: key}
				fn(fresh)
				fn(fresh)
				return fresh, nil
			})
		s.Require().NoError(retrying.RecordFailure(ctx, "budi", "10.0.0.7"))
		s.Empty(sink.List())
	})

	s.Run("clear surfaces errors", func() {
		mockStore.EXPECT().Clear(gomock.Any(), "login:budi|10.0.0.7").Return(errors.New("redis down"))
		s.Error(svc.Clear(ctx, "budi", "10.0.0.7"))
	})
}
