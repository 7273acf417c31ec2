// Package auth authenticates ecoindex users and gates operations by role.
//
// Credentials live in the relational store as a bcrypt hash of the password
// concatenated with a per-user salt. Sessions and password resets use signed
// tokens whose audience keeps the two from being swapped.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"ecoindex/internal/core"
	"ecoindex/internal/store"
)

// UserStore is the credential store the service reads and writes.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (store.User, error)
	Insert(ctx context.Context, user store.User) (store.User, error)
	List(ctx context.Context) ([]store.User, error)
	UpdateRole(ctx context.Context, email, role string) error
	SetDisabled(ctx context.Context, email string, disabled bool) error
	UpdatePassword(ctx context.Context, email, hash, salt string) error
}

// User is the public view of an account. It never carries credentials.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Disabled      bool      `json:"disabled"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func publicUser(u store.User) User {
	role := Role(u.Role)
	if !role.Valid() {
		role = RoleGuest
	}
	return User{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Disabled:      u.Disabled,
		Role:          role,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Service implements registration, login and account administration.
type Service struct {
	users    UserStore
	tokens   *TokenService
	hasher   *Hasher
	mailer   Mailer
	resetURL string
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h *Hasher) Option { return func(s *Service) { s.hasher = h } }

// WithMailer sets where password reset links are sent.
func WithMailer(m Mailer) Option { return func(s *Service) { s.mailer = m } }

// WithResetURL sets the page reset links point at. The token is appended as
// the token query parameter.
func WithResetURL(u string) Option { return func(s *Service) { s.resetURL = u } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service over users and tokens.
func NewService(users UserStore, tokens *TokenService, opts ...Option) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		hasher: NewHasher(0),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}
	return s
}

// Tokens returns the token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", core.NewValidationError("email", "%q is not a valid email address", raw)
	}
	return strings.ToLower(email), nil
}

// Register creates a GUEST account and returns it with a session token.
// An email that is already registered yields core.ErrConflict.
func (s *Service) Register(ctx context.Context, email, password string) (User, string, error) {
	user, err := s.CreateUser(ctx, email, password, RoleGuest)
	if err != nil {
		return User{}, "", err
	}
	token, err := s.tokens.Issue(user.Email, AudienceAuth)
	if err != nil {
		return User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// CreateUser stores a new account with the given role. Unlike UpdateRole it
// accepts SUPER_ADMIN, so it must only be reachable from trusted callers.
func (s *Service) CreateUser(ctx context.Context, email, password string, role Role) (User, error) {
	verr := &core.ValidationError{}
	normalized, err := normalizeEmail(email)
	if err != nil {
		verr.Add("email", "%q is not a valid email address", email)
	}
	if err := CheckPasswordLength(password); err != nil {
		verr.Add("password", "must be between %d and %d bytes", MinPasswordLen, MaxPasswordLen)
	}
	if !role.Valid() {
		verr.Add("role", "unknown role %q", role)
	}
	if err := verr.OrNil(); err != nil {
		return User{}, err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}
	created, err := s.users.Insert(ctx, store.User{Email: normalized, Password: hash, Salt: salt, Role: string(role)})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return User{}, fmt.Errorf("email %s is already registered: %w", normalized, core.ErrConflict)
		}
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID, "role", created.Role)
	return publicUser(created), nil
}

// Login checks credentials and returns a session token. Unknown accounts,
// wrong passwords and disabled accounts all yield core.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "", core.Unauthorizedf("authentication was unsuccessful")
	case err != nil:
		return "", err
	}
	if !s.hasher.Verify(password, user.Salt, user.Password) {
		return "", core.Unauthorizedf("authentication was unsuccessful")
	}
	if user.Disabled {
		return "", core.Unauthorizedf("not an active user")
	}
	return s.tokens.Issue(user.Email, AudienceAuth)
}

// Authenticate resolves a session token to its active user.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	email, err := s.tokens.Subject(token, AudienceAuth)
	if err != nil {
		return User{}, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return User{}, core.Unauthorizedf("no authenticated user")
	case err != nil:
		return User{}, err
	}
	if user.Disabled {
		return User{}, core.Unauthorizedf("not an active user")
	}
	return publicUser(user), nil
}

// ListUsers returns every account. actor must be an administrator.
func (s *Service) ListUsers(ctx context.Context, actor User) ([]User, error) {
	if err := RequireRole(actor.Role, RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, core.NotFoundf("no users found")
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = publicUser(u)
	}
	return out, nil
}

// UpdateRole sets the role of the account with email. actor must be an
// administrator and role must be assignable.
func (s *Service) UpdateRole(ctx context.Context, actor User, email, role string) (User, error) {
	if err := RequireRole(actor.Role, RoleAdmin); err != nil {
		return User{}, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return User{}, err
	}
	if !r.Assignable() {
		return User{}, core.NewValidationError("role", "%s cannot be assigned", r)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.users.UpdateRole(ctx, email, string(r)); err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "role updated", "actor", actor.Email, "email", email, "role", r)
	return s.lookup(ctx, email)
}

// ToggleDisabled flips the disabled flag of the account with email. actor
// must be an administrator.
func (s *Service) ToggleDisabled(ctx context.Context, actor User, email string) (User, error) {
	if err := RequireRole(actor.Role, RoleAdmin); err != nil {
		return User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := s.users.SetDisabled(ctx, email, !user.Disabled); err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user disabled flag changed", "actor", actor.Email, "email", email, "disabled", !user.Disabled)
	return s.lookup(ctx, email)
}

// RequestPasswordReset mails a reset link to email. Unknown addresses are
// accepted silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	case err != nil:
		return err
	}
	token, err := s.tokens.Issue(user.Email, AudienceReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	link, err := s.resetLink(token)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, user.Email, link)
}

func (s *Service) resetLink(token string) (string, error) {
	if s.resetURL == "" {
		return token, nil
	}
	u, err := url.Parse(s.resetURL)
	if err != nil {
		return "", fmt.Errorf("parse reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ResetPassword replaces the password of the account named by a reset token.
// Session tokens are rejected.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password string) error {
	email, err := s.tokens.Subject(resetToken, AudienceReset)
	if err != nil {
		return err
	}
	if err := CheckPasswordLength(password); err != nil {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, email, hash, salt); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", "email", email)
	return nil
}

func (s *Service) lookup(ctx context.Context, email string) (User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return publicUser(user), nil
}
