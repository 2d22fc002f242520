package auth

import (
	"errors"
	"fmt"
	"time"

	"admissions/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var ErrInvalidToken = errors.New("invalid access token")

const (
	claimEmail = "email"
	claimRole  = "role"
)

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the clock used for issuing and validation.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for user and returns it with its expiry.
func (t *Tokens) Issue(user *types.User) (string, time.Time, error) {
	issuedAt := t.now().UTC().Truncate(time.Second)
	expires := issuedAt.Add(t.ttl)

	token, err := jwt.NewBuilder().
		Issuer(t.issuer).
		Subject(user.ID).
		IssuedAt(issuedAt).
		Expiration(expires).
		Claim(claimEmail, user.Email).
		Claim(claimRole, string(user.Role)).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), t.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), expires, nil
}

// Parse verifies raw and returns the caller identity it carries.
func (t *Tokens) Parse(raw string) (types.Identity, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.HS256(), t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(t.issuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return types.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var role string
	if err := token.Get(claimRole, &role); err != nil {
		return types.Identity{}, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}
	if !types.Role(role).Valid() {
		return types.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}

	// email is informational only
	var email string
	_ = token.Get(claimEmail, &email)

	return types.Identity{
		UserID: userID,
		Email:  email,
		Role:   types.Role(role),
	}, nil
}
