package auth_test

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"admissions/internal/admissions/memstore"
	"admissions/internal/auth"
	"admissions/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokensRoundTrip(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	tokens.WithClock(func() time.Time { return now })

	raw, expires, err := tokens.Issue(&types.User{ID: "user-1", Email: "jane@example.com", Role: types.RoleBank})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	identity, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, types.Identity{UserID: "user-1", Email: "jane@example.com", Role: types.RoleBank}, identity)

	now = now.Add(2 * time.Hour)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokensRejectForeignSignatures(t *testing.T) {
	issuer, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	other, err := auth.NewTokens("ffffffffffffffffffffffffffffffff", "admissions", time.Hour)
	require.NoError(t, err)
	elsewhere, err := auth.NewTokens(secret, "someone-else", time.Hour)
	require.NoError(t, err)

	raw, _, err := issuer.Issue(&types.User{ID: "user-1", Role: types.RoleApplicant})
	require.NoError(t, err)

	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = elsewhere.Parse(raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestNewTokensValidatesSecret(t *testing.T) {
	_, err := auth.NewTokens("short", "admissions", time.Hour)
	assert.Error(t, err)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	accounts := auth.NewAccounts(logger, memstore.New(), tokens)

	user, err := accounts.Register(ctx, auth.RegisterInput{
		Email:     " Jane@Example.com ",
		Password:  "correct horse",
		FirstName: "Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, types.RoleApplicant, user.Role)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	_, err = accounts.Register(ctx, auth.RegisterInput{Email: "jane@example.com", Password: "another one"})
	assert.ErrorIs(t, err, types.ErrDuplicateEmail)

	var verr *auth.ValidationError
	_, err = accounts.Register(ctx, auth.RegisterInput{Email: "bob@example.com", Password: "short"})
	assert.True(t, errors.As(err, &verr))
	_, err = accounts.Register(ctx, auth.RegisterInput{Email: "not-an-email", Password: "long enough"})
	assert.True(t, errors.As(err, &verr))
	_, err = accounts.Register(ctx, auth.RegisterInput{Email: "bob@example.com", Password: "long enough", Role: "janitor"})
	assert.True(t, errors.As(err, &verr))

	session, err := accounts.Login(ctx, "JANE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	identity, err := tokens.Parse(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, types.RoleApplicant, identity.Role)

	_, err = accounts.Login(ctx, "jane@example.com", "wrong password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

type recordingMailer struct {
	user      *types.User
	link      string
	expiresAt time.Time
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, user *types.User, link string, expiresAt time.Time) error {
	m.user = user
	m.link = link
	m.expiresAt = expiresAt
	return nil
}

func TestCreateStaffUser(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	store := memstore.New()
	accounts := auth.NewAccounts(logger, store, tokens, auth.WithAuditor(store))

	user, err := accounts.CreateStaffUser(ctx, "principal-1", auth.RegisterInput{
		Email:    "clerk@school.example",
		Password: "long enough",
		Role:     types.RoleRegistrar,
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleRegistrar, user.Role)

	entries := store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "create_user", entries[0].Action)
	assert.Equal(t, "principal-1", entries[0].UserID)
	assert.Equal(t, user.ID, entries[0].Details["user_id"])

	var verr *auth.ValidationError
	_, err = accounts.CreateStaffUser(ctx, "principal-1", auth.RegisterInput{Email: "kid@example.com", Password: "long enough", Role: types.RoleApplicant})
	assert.True(t, errors.As(err, &verr))
	_, err = accounts.CreateStaffUser(ctx, "principal-1", auth.RegisterInput{Email: "kid@example.com", Password: "long enough"})
	assert.True(t, errors.As(err, &verr))
	assert.Len(t, store.AuditEntries(), 1)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	store := memstore.New()
	mailer := new(recordingMailer)
	accounts := auth.NewAccounts(logger, store, tokens,
		auth.WithPasswordResets(store, mailer, "http://localhost:5173/reset-password", 30*time.Minute),
		auth.WithAccountsClock(func() time.Time { return now }),
	)

	user, err := accounts.Register(ctx, auth.RegisterInput{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, accounts.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.link)

	require.NoError(t, accounts.ForgotPassword(ctx, " JANE@example.com "))
	require.NotNil(t, mailer.user)
	assert.Equal(t, user.ID, mailer.user.ID)
	assert.Equal(t, now.Add(30*time.Minute), mailer.expiresAt)

	link, err := url.Parse(mailer.link)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5173", link.Host)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	var verr *auth.ValidationError
	err = accounts.ResetPassword(ctx, token, "short")
	assert.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, accounts.ResetPassword(ctx, "not-a-token", "brand new password"), auth.ErrInvalidResetToken)

	require.NoError(t, accounts.ResetPassword(ctx, token, "brand new password"))
	_, err = accounts.Login(ctx, "jane@example.com", "correct horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "jane@example.com", "brand new password")
	require.NoError(t, err)

	assert.ErrorIs(t, accounts.ResetPassword(ctx, token, "another password"), auth.ErrInvalidResetToken)
}

func TestPasswordResetExpires(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	store := memstore.New()
	mailer := new(recordingMailer)
	accounts := auth.NewAccounts(logger, store, tokens,
		auth.WithPasswordResets(store, mailer, "http://localhost:5173/reset-password", 0),
		auth.WithAccountsClock(func() time.Time { return now }),
	)

	_, err = accounts.Register(ctx, auth.RegisterInput{Email: "jane@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, accounts.ForgotPassword(ctx, "jane@example.com"))
	assert.Equal(t, now.Add(auth.DefaultPasswordResetTTL), mailer.expiresAt)

	link, err := url.Parse(mailer.link)
	require.NoError(t, err)

	now = now.Add(auth.DefaultPasswordResetTTL)
	err = accounts.ResetPassword(ctx, link.Query().Get("token"), "brand new password")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestPasswordResetDisabled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens, err := auth.NewTokens(secret, "admissions", time.Hour)
	require.NoError(t, err)
	accounts := auth.NewAccounts(logger, memstore.New(), tokens)

	assert.ErrorIs(t, accounts.ForgotPassword(context.Background(), "jane@example.com"), auth.ErrPasswordResetsOff)
	assert.ErrorIs(t, accounts.ResetPassword(context.Background(), "token", "long enough"), auth.ErrPasswordResetsOff)
}
