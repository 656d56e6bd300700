package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/validation"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
)

const invalidCredentials = "invalid email or password"

// UserStore is the part of the user repository the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// LoginLimiter throttles failed logins per email.
type LoginLimiter interface {
	Allow(ctx context.Context, id string) bool
	Fail(ctx context.Context, id string)
	Reset(ctx context.Context, id string)
}

type RegisterInput struct {
	Name     *string `json:"name"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful register or login hands back.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.PublicUser
}

type Service struct {
	users   UserStore
	tokens  *TokenManager
	limiter LoginLimiter
	logger  *zap.Logger
}

// NewService wires the authenticator. limiter may be nil to disable login
// throttling.
func NewService(users UserStore, tokens *TokenManager, limiter LoginLimiter, logger *zap.Logger) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		limiter: limiter,
		logger:  logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and signs the caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)

	var issues []apperr.FieldIssue
	if err := validation.Struct(in); err != nil {
		if !apperr.Is(err, apperr.KindValidation) {
			return nil, err
		}
		issues = append(issues, apperr.From(err).Issues...)
	}
	if len(in.Password) > MaxPasswordBytes {
		issues = append(issues, apperr.FieldIssue{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes),
		})
	}
	name := ""
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			issues = append(issues, apperr.FieldIssue{Field: "name", Message: "must not be empty"})
		}
	}
	if len(issues) > 0 {
		metrics.IncrementAuthAttempt("register", "invalid")
		return nil, apperr.Validation(issues...)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	u := &model.User{
		Email:        in.Email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			metrics.IncrementAuthAttempt("register", "conflict")
			return nil, apperr.Conflict("email already registered")
		}
		metrics.IncrementAuthAttempt("register", "error")
		return nil, apperr.Internal("failed to create user", err)
	}

	logger.WithTrace(ctx, s.logger).Info("User registered", zap.String("user_id", u.ID.String()))
	metrics.IncrementAuthAttempt("register", "success")
	return s.session(u)
}

// Login checks credentials. Unknown email and wrong password produce the
// same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		metrics.IncrementAuthAttempt("login", "invalid")
		return nil, err
	}

	log := logger.WithTrace(ctx, s.logger)

	if s.limiter != nil && !s.limiter.Allow(ctx, in.Email) {
		metrics.IncrementAuthAttempt("login", "throttled")
		log.Warn("Login throttled", zap.String("email", in.Email))
		return nil, apperr.TooManyRequests("too many failed login attempts, try again later")
	}

	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.IncrementAuthAttempt("login", "error")
		return nil, apperr.Internal("failed to load user", err)
	}
	hash := unknownUserHash()
	if u != nil {
		hash = u.PasswordHash
	}
	if !comparePassword(in.Password, hash) || u == nil {
		if s.limiter != nil {
			s.limiter.Fail(ctx, in.Email)
		}
		metrics.IncrementAuthAttempt("login", "failure")
		log.Info("Login failed", zap.String("email", in.Email))
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	if s.limiter != nil {
		s.limiter.Reset(ctx, in.Email)
	}
	metrics.IncrementAuthAttempt("login", "success")
	log.Info("User logged in", zap.String("user_id", u.ID.String()))
	return s.session(u)
}

// Verify resolves a token to the user id it was issued for.
func (s *Service) Verify(token string) (uuid.UUID, error) {
	sub, err := s.tokens.Verify(token)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	return id, nil
}

// Me returns the public view of the authenticated user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (model.PublicUser, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, apperr.Unauthorized("")
		}
		return model.PublicUser{}, apperr.Internal("failed to load user", err)
	}
	return u.Public(), nil
}

// TokenTTL is the lifetime of issued tokens, used for the cookie Max-Age.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) session(u *model.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID.String())
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: u.Public()}, nil
}
