package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "taskboard"

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Engine signs and verifies access and refresh tokens. The two token kinds
// use distinct symmetric secrets so a leak of one does not compromise the
// other. Verification is stateless; persisted refresh-token records are the
// session manager's concern.
type Engine struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineAccessTTL overrides the access token lifetime.
func WithEngineAccessTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.accessTTL = ttl
		}
	}
}

// WithEngineRefreshTTL overrides the refresh token lifetime.
func WithEngineRefreshTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.refreshTTL = ttl
		}
	}
}

// WithEngineClock overrides the time source (useful for tests).
func WithEngineClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine. Both secrets are required and must differ.
func NewEngine(accessSecret, refreshSecret string, opts ...EngineOption) (*Engine, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: both token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	e := &Engine{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AccessTTL returns the configured access token lifetime.
func (e *Engine) AccessTTL() time.Duration { return e.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (e *Engine) RefreshTTL() time.Duration { return e.refreshTTL }

// Claims are the JWT claims carried inside issued tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueAccessToken signs a short-lived access token for the subject.
func (e *Engine) IssueAccessToken(subjectID string) (string, time.Time, error) {
	return e.issue(subjectID, e.accessSecret, e.accessTTL)
}

// IssueRefreshToken signs a longer-lived refresh token for the subject.
func (e *Engine) IssueRefreshToken(subjectID string) (string, time.Time, error) {
	return e.issue(subjectID, e.refreshSecret, e.refreshTTL)
}

func (e *Engine) issue(subjectID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return "", time.Time{}, errors.New("subjectID is required")
	}
	now := e.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccessToken checks signature and expiry of an access token and
// returns the embedded subject id.
func (e *Engine) VerifyAccessToken(token string) (string, error) {
	return e.verify(token, e.accessSecret)
}

// VerifyRefreshToken checks signature and expiry of a refresh token. It does
// not consult storage; the stored record is validated separately.
func (e *Engine) VerifyRefreshToken(token string) (string, error) {
	return e.verify(token, e.refreshSecret)
}

func (e *Engine) verify(token string, secret []byte) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(e.now))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ParseTTL parses a duration spec like "15m", "1h" or "7d". A bare number or
// an unknown unit is treated as seconds.
func ParseTTL(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, errors.New("empty ttl spec")
	}
	unit := spec[len(spec)-1]
	digits := spec[:len(spec)-1]
	if unit >= '0' && unit <= '9' {
		digits = spec
		unit = 's'
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid ttl spec %q", spec)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return time.Duration(n) * time.Second, nil
	}
}

// ComputeExpiry resolves a ttl spec into an absolute timestamp relative to
// now. Deterministic given its inputs.
func ComputeExpiry(now time.Time, spec string) (time.Time, error) {
	ttl, err := ParseTTL(spec)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(ttl), nil
}
