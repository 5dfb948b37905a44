package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"emissions/internal/audit"
	"emissions/internal/user/models"
	"emissions/internal/user/secrets"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/sentinel"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store TokenIssuer LoginLimiter

type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, uid id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, uid id.UserID) error
	List(ctx context.Context) ([]*models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, username, role string) (string, time.Time, error)
}

// LoginLimiter locks out repeated failed logins per username and client.
type LoginLimiter interface {
	Check(ctx context.Context, username, clientIP string) error
	RecordFailure(ctx context.Context, username, clientIP string) error
	Clear(ctx context.Context, username, clientIP string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages accounts and logins.
type Service struct {
	store          Store
	tokens         TokenIssuer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	limiter        LoginLimiter
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

func WithLoginLimiter(limiter LoginLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{store: store, tokens: tokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")

// Authenticate verifies the password and issues an access token. Unknown
// users and wrong passwords are indistinguishable to the caller. With a
// limiter configured, a locked username and client pair is rejected before
// any lookup.
func (s *Service) Authenticate(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	username := models.NormalizeUsername(req.Username)
	clientIP := requestcontext.ClientIP(ctx)
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, username, clientIP); err != nil {
			return nil, err
		}
	}

	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, username, "unknown_user")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := secrets.Verify(req.Password, u.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.loginFailed(ctx, username, "bad_password")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(uuid.UUID(u.ID), u.Username, string(u.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	if s.limiter != nil {
		if err := s.limiter.Clear(ctx, username, clientIP); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	s.logger.InfoContext(ctx, "user logged in",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", u.ID,
		"role", u.Role,
	)
	s.emitAudit(ctx, audit.Event{
		Action:    audit.EventLoginSucceeded.String(),
		Subject:   u.Username,
		ActorID:   u.ID.String(),
		ActorName: u.Username,
	})
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        u,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, username, reason string) {
	s.logger.WarnContext(ctx, "login failed",
		"request_id", requestcontext.RequestID(ctx),
		"username", username,
		"reason", reason,
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.EventLoginFailed.String(),
		Subject:  username,
		Decision: "denied",
		Reason:   reason,
	})
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, username, requestcontext.ClientIP(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	role, err := models.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	u, err := s.create(ctx, models.NormalizeUsername(req.Username), req.Password, role)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventUserCreated.String(),
		Subject: u.Username,
		Details: map[string]string{"role": string(u.Role)},
	})
	return u, nil
}

func (s *Service) create(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if err := models.ValidateUsername(username); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	u := &models.User{
		ID:           id.NewUserID(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "username "+username+" is taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	s.logger.InfoContext(ctx, "user created",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", u.ID,
		"role", u.Role,
	)
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// Update changes the role and/or resets the password of a user. The last
// admin cannot be demoted.
func (s *Service) Update(ctx context.Context, uid id.UserID, req models.UpdateUserRequest) (*models.User, error) {
	u, err := s.find(ctx, uid)
	if err != nil {
		return nil, err
	}

	previousRole := u.Role
	if req.Role != nil {
		role, err := models.ParseRole(*req.Role)
		if err != nil {
			return nil, err
		}
		if u.IsAdmin() && role != models.RoleAdmin {
			if err := s.requireAnotherAdmin(ctx); err != nil {
				return nil, err
			}
		}
		u.Role = role
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, u); err != nil {
		return nil, wrapUserErr(err)
	}
	if u.Role != previousRole {
		s.emitAudit(ctx, audit.Event{
			Action:  audit.EventUserRoleChanged.String(),
			Subject: u.Username,
			Details: map[string]string{"from": string(previousRole), "to": string(u.Role)},
		})
	}
	return u, nil
}

// ChangePassword lets the calling operator replace their own password.
func (s *Service) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error {
	operator := requestcontext.Operator(ctx)
	if operator.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	u, err := s.find(ctx, id.UserID(operator.UserID))
	if err != nil {
		return err
	}
	if err := secrets.Verify(req.CurrentPassword, u.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return dErrors.New(dErrors.CodeValidation, "current password is incorrect")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, u); err != nil {
		return wrapUserErr(err)
	}
	s.logger.InfoContext(ctx, "password changed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", u.ID,
	)
	return nil
}

// Delete removes a user. Operators cannot delete themselves and the last
// admin cannot be removed.
func (s *Service) Delete(ctx context.Context, uid id.UserID) error {
	if uuid.UUID(uid) == requestcontext.Operator(ctx).UserID {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot delete your own account")
	}
	u, err := s.find(ctx, uid)
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		if err := s.requireAnotherAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, uid); err != nil {
		return wrapUserErr(err)
	}
	s.logger.InfoContext(ctx, "user deleted",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", uid,
	)
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventUserDeleted.String(),
		Subject: u.Username,
	})
	return nil
}

// EnsureAdmin creates the bootstrap admin when no admin exists. It reports
// whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.store.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
	}
	if n > 0 {
		return false, nil
	}
	if password == "" {
		return false, dErrors.New(dErrors.CodeValidation, "no admin exists and no bootstrap password is configured")
	}
	u, err := s.create(ctx, models.NormalizeUsername(username), password, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	s.logger.WarnContext(ctx, "bootstrap admin created", "username", u.Username)
	return true, nil
}

func (s *Service) requireAnotherAdmin(ctx context.Context) error {
	n, err := s.store.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
	}
	if n <= 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "at least one admin must remain")
	}
	return nil
}

func (s *Service) find(ctx context.Context, uid id.UserID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, uid)
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return u, nil
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

func hashPassword(password string) (string, error) {
	hash, err := secrets.Hash(password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return hash, nil
}

func wrapUserErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "user store failed")
}
