package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"admissions/internal/utils"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
)

const (
	minPasswordLength = 8

	resetTokenSize          = 48
	DefaultPasswordResetTTL = time.Hour
)

var (
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrPasswordResetsOff = errors.New("password resets are not configured")
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type UserStore interface {
	User(ctx context.Context, userID string) (*types.User, error)
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
}

type Auditor interface {
	Record(ctx context.Context, userID, action string, details map[string]any) error
}

// PasswordResetStore keeps hashed reset tokens. ResetPassword consumes the
// token and sets the password in one step and returns the owner's id, or
// types.ErrResetTokenInvalid.
type PasswordResetStore interface {
	CreatePasswordReset(ctx context.Context, reset *types.PasswordReset) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, at time.Time) (string, error)
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, user *types.User, link string, expiresAt time.Time) error
}

type Accounts struct {
	logger  *logrus.Logger
	users   UserStore
	tokens  *Tokens
	auditor Auditor

	resets   PasswordResetStore
	mailer   ResetMailer
	resetURL string
	resetTTL time.Duration

	now func() time.Time
}

type AccountsOption func(*Accounts)

func WithAuditor(auditor Auditor) AccountsOption {
	return func(a *Accounts) {
		a.auditor = auditor
	}
}

// WithPasswordResets enables forgot/reset password. Links point at resetURL
// with the token in the "token" query parameter.
func WithPasswordResets(resets PasswordResetStore, mailer ResetMailer, resetURL string, ttl time.Duration) AccountsOption {
	return func(a *Accounts) {
		a.resets = resets
		a.mailer = mailer
		a.resetURL = resetURL
		if ttl > 0 {
			a.resetTTL = ttl
		}
	}
}

func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *Accounts) {
		a.now = now
	}
}

func NewAccounts(logger *logrus.Logger, users UserStore, tokens *Tokens, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		logger:   logger,
		users:    users,
		tokens:   tokens,
		resetTTL: DefaultPasswordResetTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      types.Role
}

type Session struct {
	User        *types.User
	AccessToken string
	ExpiresAt   time.Time
}

// Register creates an account. Self-registration defaults to the applicant role.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, &ValidationError{Message: "Missing required field: email"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ValidationError{Message: "Invalid email address"}
	}
	if len(in.Password) < minPasswordLength {
		return nil, &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}

	role := in.Role
	if role == "" {
		role = types.RoleApplicant
	}
	if !role.Valid() {
		return nil, &ValidationError{Message: "Invalid role"}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	user := &types.User{
		ID:           utils.NanoID(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    optional(in.FirstName),
		LastName:     optional(in.LastName),
		Phone:        optional(in.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return user, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := a.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, types.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	token, expires, err := a.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, AccessToken: token, ExpiresAt: expires}, nil
}

// CreateStaffUser registers an account with an explicit staff role on behalf
// of actorID.
func (a *Accounts) CreateStaffUser(ctx context.Context, actorID string, in RegisterInput) (*types.User, error) {
	if in.Role == "" {
		return nil, &ValidationError{Message: "Missing required field: role"}
	}
	if in.Role == types.RoleApplicant || !in.Role.Valid() {
		return nil, &ValidationError{Message: "Role must be a staff role"}
	}

	user, err := a.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	if a.auditor != nil {
		err := a.auditor.Record(ctx, actorID, "create_user", map[string]any{
			"user_id": user.ID,
			"role":    string(user.Role),
		})
		if err != nil {
			a.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to write audit entry")
		}
	}

	return user, nil
}

// ForgotPassword emails a single-use reset link. Unknown addresses succeed
// silently so the endpoint does not reveal which emails are registered.
func (a *Accounts) ForgotPassword(ctx context.Context, email string) error {
	if a.resets == nil || a.mailer == nil {
		return ErrPasswordResetsOff
	}
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Message: "Missing required field: email"}
	}

	user, err := a.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, types.ErrUserNotFound) {
		a.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	token := utils.NanoIDSize(resetTokenSize)
	now := a.now().UTC()
	reset := &types.PasswordReset{
		TokenHash: hashResetToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(a.resetTTL),
		CreatedAt: now,
	}
	if err := a.resets.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}

	link, err := resetLink(a.resetURL, token)
	if err != nil {
		return err
	}
	if err := a.mailer.SendPasswordReset(ctx, user, link, reset.ExpiresAt); err != nil {
		return fmt.Errorf("failed to send password reset: %w", err)
	}

	a.logger.WithField("user_id", user.ID).Info("password reset requested")
	return nil
}

func (a *Accounts) ResetPassword(ctx context.Context, token, password string) error {
	if a.resets == nil {
		return ErrPasswordResetsOff
	}
	if token == "" || password == "" {
		return &ValidationError{Message: "Missing required fields"}
	}
	if len(password) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	userID, err := a.resets.ResetPassword(ctx, hashResetToken(token), hash, a.now().UTC())
	if errors.Is(err, types.ErrResetTokenInvalid) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	a.logger.WithField("user_id", userID).Info("password reset")
	if a.auditor != nil {
		if err := a.auditor.Record(ctx, userID, "reset_password", nil); err != nil {
			a.logger.WithError(err).WithField("user_id", userID).Warn("failed to write audit entry")
		}
	}
	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid password reset url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Accounts) Tokens() *Tokens {
	return a.tokens
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return utils.StringPtr(v)
}
