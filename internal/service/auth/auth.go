package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/store"
	"freelancehub/pkg/rbac"
	"freelancehub/pkg/util"
)

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID int64
	Role   string
}

func (i Identity) IsClient() bool     { return i.Role == rbac.RoleClient }
func (i Identity) IsFreelancer() bool { return i.Role == rbac.RoleFreelancer }

// Authorizer turns a bearer credential into an Identity.
type Authorizer struct {
	secret string
}

func NewAuthorizer(secret string) *Authorizer {
	return &Authorizer{secret: secret}
}

// Authorize validates credential and returns the identity it carries.
func (a *Authorizer) Authorize(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, apperr.Unauthorized("missing credential")
	}
	claims, err := util.ParseJWT(credential, a.secret)
	if err != nil {
		return Identity{}, apperr.Unauthorized("invalid or expired token")
	}
	if !rbac.ValidRole(claims.Role) {
		return Identity{}, apperr.Unauthorized("unknown role")
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// UserStore persists marketplace accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type Service struct {
	users  UserStore
	secret string
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(users UserStore, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{users: users, secret: secret, ttl: ttl, logger: logger}
}

// Register creates a new user and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (*model.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, "", apperr.Validation("name", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", apperr.Validation("email", "must be a valid email address")
	}
	if len(password) < 8 {
		return nil, "", apperr.Validation("password", "must be at least 8 characters")
	}
	if !rbac.ValidRole(role) {
		return nil, "", apperr.Validation("role", "must be client or freelancer")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, "", apperr.Internal("failed to hash password", err)
	}

	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, "", apperr.Conflict("email already registered")
		}
		return nil, "", apperr.Internal("failed to create user", err)
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.secret, s.ttl)
	if err != nil {
		return nil, "", apperr.Internal("failed to issue token", err)
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", u.ID),
		zap.String("role", u.Role),
	)
	return u, token, nil
}

// Login checks credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", apperr.Unauthorized("invalid email or password")
		}
		return nil, "", apperr.Internal("failed to load user", err)
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		s.logger.Warn("Login failed: wrong password", zap.Int64("user_id", u.ID))
		return nil, "", apperr.Unauthorized("invalid email or password")
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.secret, s.ttl)
	if err != nil {
		return nil, "", apperr.Internal("failed to issue token", err)
	}
	return u, token, nil
}
