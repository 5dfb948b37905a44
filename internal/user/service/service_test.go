package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"emissions/internal/audit"
	"emissions/internal/platform/logger"
	"emissions/internal/user/models"
	"emissions/internal/user/secrets"
	"emissions/internal/user/service/mocks"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

type UserServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	tokens  *mocks.MockTokenIssuer
	sink    *audit.MemorySink
	service *Service
	admin   *models.User
	ctx     context.Context
	now     time.Time
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.sink = audit.NewMemorySink()

	var err error
	s.service, err = New(s.store, s.tokens,
		WithLogger(logger.Discard()),
		WithAuditPublisher(audit.NewPublisher(s.sink)),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	s.admin = s.user("siti", "correct-horse", models.RoleAdmin)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithOperator(s.ctx, requestcontext.Principal{
		UserID:   uuid.UUID(s.admin.ID),
		Username: s.admin.Username,
		Role:     string(s.admin.Role),
	})
}

func (s *UserServiceSuite) user(username, password string, role models.Role) *models.User {
	hash, err := secrets.Hash(password)
	s.Require().NoError(err)
	return &models.User{
		ID:           id.NewUserID(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now.Add(-time.Hour),
		UpdatedAt:    s.now.Add(-time.Hour),
	}
}

func (s *UserServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.tokens)
	s.Error(err)
	_, err = New(s.store, nil)
	s.Error(err)
}

func (s *UserServiceSuite) TestAuthenticate() {
	s.Run("issues a bearer token for valid credentials", func() {
		expires := s.now.Add(time.Hour)
		s.store.EXPECT().FindByUsername(gomock.Any(), "siti").Return(s.admin, nil)
		s.tokens.EXPECT().
			GenerateAccessToken(uuid.UUID(s.admin.ID), "siti", "admin").
			Return("signed-token", expires, nil)

		resp, err := s.service.Authenticate(s.ctx, models.LoginRequest{Username: "  siti ", Password: "correct-horse"})
		s.Require().NoError(err)
		s.Equal("signed-token", resp.AccessToken)
		s.Equal("Bearer", resp.TokenType)
		s.Equal(expires, resp.ExpiresAt)
		s.Equal(s.admin.ID, resp.User.ID)

		events := s.sink.ListBySubject("siti")
		s.Require().NotEmpty(events)
		s.Equal(audit.EventLoginSucceeded.String(), events[len(events)-1].Action)
	})

	s.Run("wrong password is unauthorized", func() {
		s.store.EXPECT().FindByUsername(gomock.Any(), "siti").Return(s.admin, nil)

		_, err := s.service.Authenticate(s.ctx, models.LoginRequest{Username: "siti", Password: "wrong-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		events := s.sink.ListBySubject("siti")
		s.Require().NotEmpty(events)
		last := events[len(events)-1]
		s.Equal(audit.EventLoginFailed.String(), last.Action)
		s.Equal("bad_password", last.Reason)
	})

	s.Run("unknown user is indistinguishable from a wrong password", func() {
		s.store.EXPECT().FindByUsername(gomock.Any(), "ghost").Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Authenticate(s.ctx, models.LoginRequest{Username: "ghost", Password: "whatever1"})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(errInvalidCredentials.Error(), err.Error())
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().FindByUsername(gomock.Any(), "siti").Return(nil, errors.New("db down"))

		_, err := s.service.Authenticate(s.ctx, models.LoginRequest{Username: "siti", Password: "correct-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *UserServiceSuite) TestAuthenticateWithLimiter() {
	limiter := mocks.NewMockLoginLimiter(s.ctrl)
	svc, err := New(s.store, s.tokens, WithLogger(logger.Discard()), WithLoginLimiter(limiter))
	s.Require().NoError(err)
	ctx := requestcontext.WithClientMetadata(s.ctx, "10.0.0.7", "curl/8.0")

	s.Run("locked pair is rejected before lookup", func() {
		limiter.EXPECT().Check(gomock.Any(), "siti", "10.0.0.7").
			Return(dErrors.New(dErrors.CodeTooManyRequests, "too many failed logins"))

		_, err := svc.Authenticate(ctx, models.LoginRequest{Username: "siti", Password: "correct-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
	})

	s.Run("failure is recorded", func() {
		limiter.EXPECT().Check(gomock.Any(), "siti", "10.0.0.7").Return(nil)
		s.store.EXPECT().FindByUsername(gomock.Any(), "siti").Return(s.admin, nil)
		limiter.EXPECT().RecordFailure(gomock.Any(), "siti", "10.0.0.7").Return(nil)

		_, err := svc.Authenticate(ctx, models.LoginRequest{Username: "siti", Password: "wrong-horse"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown users count too", func() {
		limiter.EXPECT().Check(gomock.Any(), "ghost", "10.0.0.7").Return(nil)
		s.store.EXPECT().FindByUsername(gomock.Any(), "ghost").Return(nil, sentinel.ErrNotFound)
		limiter.EXPECT().RecordFailure(gomock.Any(), "ghost", "10.0.0.7").Return(errors.New("redis down"))

		_, err := svc.Authenticate(ctx, models.LoginRequest{Username: "ghost", Password: "whatever1"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("success clears failures", func() {
		limiter.EXPECT().Check(gomock.Any(), "siti", "10.0.0.7").Return(nil)
		s.store.EXPECT().FindByUsername(gomock.Any(), "siti").Return(s.admin, nil)
		s.tokens.EXPECT().GenerateAccessToken(gomock.Any(), "siti", "admin").Return("t", s.now.Add(time.Hour), nil)
		limiter.EXPECT().Clear(gomock.Any(), "siti", "10.0.0.7").Return(nil)

		resp, err := svc.Authenticate(ctx, models.LoginRequest{Username: "siti", Password: "correct-horse"})
		s.Require().NoError(err)
		s.Equal("t", resp.AccessToken)
	})
}

func (s *UserServiceSuite) TestCreate() {
	s.Run("hashes the password before storing", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				s.Equal("andi", u.Username)
				s.Equal(models.RoleOperator, u.Role)
				s.Equal(s.now, u.CreatedAt)
				s.NoError(secrets.Verify("s3cret-pass", u.PasswordHash))
				return nil
			})

		u, err := s.service.Create(s.ctx, models.CreateUserRequest{Username: "andi", Password: "s3cret-pass", Role: "operator"})
		s.Require().NoError(err)
		s.False(u.ID.IsNil())

		events := s.sink.ListBySubject("andi")
		s.Require().Len(events, 1)
		s.Equal(audit.EventUserCreated.String(), events[0].Action)
		s.Equal(s.admin.ID.String(), events[0].ActorID)
	})

	s.Run("taken username is a conflict", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.Create(s.ctx, models.CreateUserRequest{Username: "andi", Password: "s3cret-pass", Role: "operator"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("short password is rejected before the store", func() {
		_, err := s.service.Create(s.ctx, models.CreateUserRequest{Username: "andi", Password: "short", Role: "operator"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown role is rejected", func() {
		_, err := s.service.Create(s.ctx, models.CreateUserRequest{Username: "andi", Password: "s3cret-pass", Role: "root"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *UserServiceSuite) TestList() {
	s.store.EXPECT().List(gomock.Any()).Return(nil, nil)

	users, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.NotNil(users)
	s.Empty(users)
}

func (s *UserServiceSuite) TestUpdate() {
	operator := s.user("budi", "operator-pass", models.RoleOperator)

	s.Run("promotes an operator and records the change", func() {
		role := "admin"
		u := *operator
		s.store.EXPECT().FindByID(gomock.Any(), operator.ID).Return(&u, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		updated, err := s.service.Update(s.ctx, operator.ID, models.UpdateUserRequest{Role: &role})
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, updated.Role)
		s.Equal(s.now, updated.UpdatedAt)

		events := s.sink.ListBySubject("budi")
		s.Require().Len(events, 1)
		s.Equal(audit.EventUserRoleChanged.String(), events[0].Action)
		s.Equal("operator", events[0].Details["from"])
		s.Equal("admin", events[0].Details["to"])
	})

	s.Run("password reset without a role change emits no role event", func() {
		password := "brand-new-pass"
		u := *operator
		s.store.EXPECT().FindByID(gomock.Any(), operator.ID).Return(&u, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				s.NoError(secrets.Verify(password, u.PasswordHash))
				return nil
			})
		before := len(s.sink.List())

		_, err := s.service.Update(s.ctx, operator.ID, models.UpdateUserRequest{Password: &password})
		s.Require().NoError(err)
		s.Len(s.sink.List(), before)
	})

	s.Run("the last admin cannot be demoted", func() {
		role := "operator"
		u := *s.admin
		s.store.EXPECT().FindByID(gomock.Any(), s.admin.ID).Return(&u, nil)
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(1, nil)

		_, err := s.service.Update(s.ctx, s.admin.ID, models.UpdateUserRequest{Role: &role})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("an admin can be demoted while another remains", func() {
		role := "operator"
		u := *s.admin
		s.store.EXPECT().FindByID(gomock.Any(), s.admin.ID).Return(&u, nil)
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(2, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

		updated, err := s.service.Update(s.ctx, s.admin.ID, models.UpdateUserRequest{Role: &role})
		s.Require().NoError(err)
		s.Equal(models.RoleOperator, updated.Role)
	})

	s.Run("unknown user is not found", func() {
		role := "admin"
		missing := id.NewUserID()
		s.store.EXPECT().FindByID(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Update(s.ctx, missing, models.UpdateUserRequest{Role: &role})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *UserServiceSuite) TestDelete() {
	s.Run("removes an operator", func() {
		operator := s.user("budi", "operator-pass", models.RoleOperator)
		s.store.EXPECT().FindByID(gomock.Any(), operator.ID).Return(operator, nil)
		s.store.EXPECT().Delete(gomock.Any(), operator.ID).Return(nil)

		s.Require().NoError(s.service.Delete(s.ctx, operator.ID))
		events := s.sink.ListBySubject("budi")
		s.Require().Len(events, 1)
		s.Equal(audit.EventUserDeleted.String(), events[0].Action)
	})

	s.Run("own account cannot be deleted", func() {
		err := s.service.Delete(s.ctx, s.admin.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("the last admin cannot be deleted", func() {
		other := s.user("rina", "another-pass", models.RoleAdmin)
		s.store.EXPECT().FindByID(gomock.Any(), other.ID).Return(other, nil)
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(1, nil)

		err := s.service.Delete(s.ctx, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("store not found maps to not found", func() {
		operator := s.user("budi", "operator-pass", models.RoleOperator)
		s.store.EXPECT().FindByID(gomock.Any(), operator.ID).Return(operator, nil)
		s.store.EXPECT().Delete(gomock.Any(), operator.ID).Return(sentinel.ErrNotFound)

		err := s.service.Delete(s.ctx, operator.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *UserServiceSuite) TestChangePassword() {
	s.Run("replaces the hash after verifying the current password", func() {
		u := *s.admin
		s.store.EXPECT().FindByID(gomock.Any(), s.admin.ID).Return(&u, nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				s.NoError(secrets.Verify("battery-staple", u.PasswordHash))
				return nil
			})

		err := s.service.ChangePassword(s.ctx, models.ChangePasswordRequest{
			CurrentPassword: "correct-horse",
			NewPassword:     "battery-staple",
		})
		s.NoError(err)
	})

	s.Run("wrong current password is a validation error", func() {
		u := *s.admin
		s.store.EXPECT().FindByID(gomock.Any(), s.admin.ID).Return(&u, nil)

		err := s.service.ChangePassword(s.ctx, models.ChangePasswordRequest{
			CurrentPassword: "not-it-at-all",
			NewPassword:     "battery-staple",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("requires an authenticated operator", func() {
		err := s.service.ChangePassword(context.Background(), models.ChangePasswordRequest{
			CurrentPassword: "correct-horse",
			NewPassword:     "battery-staple",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *UserServiceSuite) TestEnsureAdmin() {
	s.Run("does nothing when an admin exists", func() {
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(1, nil)

		created, err := s.service.EnsureAdmin(s.ctx, "admin", "bootstrap-pass")
		s.Require().NoError(err)
		s.False(created)
	})

	s.Run("creates the bootstrap admin", func() {
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(0, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				s.Equal("admin", u.Username)
				s.Equal(models.RoleAdmin, u.Role)
				return nil
			})

		created, err := s.service.EnsureAdmin(s.ctx, "admin", "bootstrap-pass")
		s.Require().NoError(err)
		s.True(created)
	})

	s.Run("refuses to bootstrap without a password", func() {
		s.store.EXPECT().CountByRole(gomock.Any(), models.RoleAdmin).Return(0, nil)

		_, err := s.service.EnsureAdmin(s.ctx, "admin", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
