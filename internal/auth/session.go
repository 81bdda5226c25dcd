package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const minSecretLength = 6

// Service orchestrates login, refresh and logout on top of a Store and a
// token Engine. It owns no token state itself; every decision is re-derived
// from the store and the token signatures.
type Service struct {
	store  Store
	tokens *Engine
	now    func() time.Time

	// revokeOnSecretChange controls whether outstanding refresh tokens
	// are invalidated when an identity changes its secret. Off by
	// default; see DESIGN.md.
	revokeOnSecretChange bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRevokeOnSecretChange revokes all outstanding refresh tokens of an
// identity when its secret changes.
func WithRevokeOnSecretChange(enabled bool) ServiceOption {
	return func(s *Service) { s.revokeOnSecretChange = enabled }
}

// NewService constructs a Service.
func NewService(store Store, tokens *Engine, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token engine is required")
	}
	svc := &Service{store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates an identity and issues its first token pair. The secret
// is hashed before anything touches storage; plaintext never leaves this
// function.
func (s *Service) Register(ctx context.Context, name, email, secret string, role Role, team *int) (*Identity, TokenPair, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, TokenPair{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !validEmail(email) {
		return nil, TokenPair{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(secret) < minSecretLength {
		return nil, TokenPair{}, fmt.Errorf("%w: secret must be at least %d characters", ErrInvalidInput, minSecretLength)
	}
	if role == "" {
		role = RoleEmployee
	}
	if !role.Valid() {
		return nil, TokenPair{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}
	if role == RoleAdmin {
		// Admins are unscoped.
		team = nil
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return nil, TokenPair{}, err
	}

	identity := &Identity{Name: name, Email: email, SecretHash: hash, Role: role, Team: team}
	if err := s.store.Identities().Create(ctx, identity); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.mintTokens(ctx, identity.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return identity, pair, nil
}

// Login authenticates credentials and issues a fresh token pair. Unknown
// email and wrong secret collapse into the same error so responses carry no
// enumeration signal.
func (s *Service) Login(ctx context.Context, email, secret string) (*Identity, TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || secret == "" {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	identity, err := s.store.Identities().FindByEmail(ctx, email)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if err := VerifySecret(identity.SecretHash, secret); err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.mintTokens(ctx, identity.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return identity, pair, nil
}

// Refresh rotates a refresh token and issues a new pair. Each refresh token
// is single-use: the consumed record is revoked in the same storage
// transaction that persists its replacement, so a replayed token fails with
// ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subjectID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	store := s.store.RefreshTokens()
	rec, err := store.FindByValue(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if rec.Revoked {
		return TokenPair{}, ErrTokenRevoked
	}
	// Stored expiry is checked independently of the signature's own
	// expiry as defense in depth.
	if s.now().After(rec.ExpiresAt) {
		return TokenPair{}, ErrTokenExpired
	}
	if rec.OwnerID != subjectID {
		return TokenPair{}, ErrInvalidToken
	}

	accessToken, accessExp, err := s.tokens.IssueAccessToken(rec.OwnerID)
	if err != nil {
		return TokenPair{}, err
	}
	newRefresh, refreshExp, err := s.tokens.IssueRefreshToken(rec.OwnerID)
	if err != nil {
		return TokenPair{}, err
	}
	next := &RefreshToken{OwnerID: rec.OwnerID, Token: newRefresh, ExpiresAt: refreshExp}
	if err := store.Rotate(ctx, refreshToken, next); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     newRefresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout revokes the matching refresh-token record. Revoking an
// already-revoked record succeeds; an unknown token fails with
// ErrTokenNotRecognized.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh token is required", ErrInvalidInput)
	}
	return s.store.RefreshTokens().MarkRevoked(ctx, refreshToken)
}

// Authenticate verifies an access token and loads the identity it names.
// Used by the transport layer on every protected request.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	subjectID, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	identity, err := s.store.Identities().Find(ctx, subjectID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return identity, nil
}

// ChangeSecret replaces the identity's secret after verifying the current
// one. Outstanding refresh tokens survive unless the service was configured
// with WithRevokeOnSecretChange.
func (s *Service) ChangeSecret(ctx context.Context, identityID, currentSecret, newSecret string) error {
	if len(newSecret) < minSecretLength {
		return fmt.Errorf("%w: secret must be at least %d characters", ErrInvalidInput, minSecretLength)
	}
	identity, err := s.store.Identities().Find(ctx, identityID)
	if err != nil {
		return err
	}
	if err := VerifySecret(identity.SecretHash, currentSecret); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashSecret(newSecret)
	if err != nil {
		return err
	}
	if _, err := s.store.Identities().Update(ctx, identityID, IdentityUpdate{SecretHash: &hash}); err != nil {
		return err
	}
	if s.revokeOnSecretChange {
		return s.store.RefreshTokens().MarkRevokedByOwner(ctx, identityID)
	}
	return nil
}

// Me returns the identity record for the authenticated subject.
func (s *Service) Me(ctx context.Context, identityID string) (*Identity, error) {
	return s.store.Identities().Find(ctx, identityID)
}

// ProfileUpdate carries self-service profile changes.
type ProfileUpdate struct {
	Name          *string
	Email         *string
	CurrentSecret string
	NewSecret     *string
}

// UpdateProfile applies a self-service profile change. A secret change
// requires the current secret.
func (s *Service) UpdateProfile(ctx context.Context, identityID string, upd ProfileUpdate) (*Identity, error) {
	change := IdentityUpdate{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		change.Name = &name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !validEmail(email) {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		change.Email = &email
	}
	if upd.NewSecret != nil {
		if len(*upd.NewSecret) < minSecretLength {
			return nil, fmt.Errorf("%w: secret must be at least %d characters", ErrInvalidInput, minSecretLength)
		}
		identity, err := s.store.Identities().Find(ctx, identityID)
		if err != nil {
			return nil, err
		}
		if err := VerifySecret(identity.SecretHash, upd.CurrentSecret); err != nil {
			return nil, ErrInvalidCredentials
		}
		hash, err := HashSecret(*upd.NewSecret)
		if err != nil {
			return nil, err
		}
		change.SecretHash = &hash
	}
	updated, err := s.store.Identities().Update(ctx, identityID, change)
	if err != nil {
		return nil, err
	}
	if change.SecretHash != nil && s.revokeOnSecretChange {
		if err := s.store.RefreshTokens().MarkRevokedByOwner(ctx, identityID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// ListIdentities returns the identities the actor may see: admins see
// everyone, teamleads their own team's employees.
func (s *Service) ListIdentities(ctx context.Context, actor *Identity) ([]*Identity, error) {
	if !CanListIdentities(actor) {
		return nil, ErrForbidden
	}
	if actor.Role == RoleAdmin {
		return s.store.Identities().List(ctx)
	}
	if actor.Team == nil {
		return nil, nil
	}
	return s.store.Identities().ListByTeam(ctx, *actor.Team, RoleEmployee)
}

// TeamMembers returns the employees on the teamlead's team.
func (s *Service) TeamMembers(ctx context.Context, actor *Identity) ([]*Identity, error) {
	if actor == nil || actor.Role != RoleTeamlead {
		return nil, ErrForbidden
	}
	if actor.Team == nil {
		return nil, nil
	}
	return s.store.Identities().ListByTeam(ctx, *actor.Team, RoleEmployee)
}

// CreateIdentity creates a user on behalf of an admin and returns the
// generated temporary secret for out-of-band delivery.
func (s *Service) CreateIdentity(ctx context.Context, actor *Identity, name, email string, role Role, team *int) (*Identity, string, error) {
	if !CanManageIdentities(actor) {
		return nil, "", ErrForbidden
	}
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || !validEmail(email) {
		return nil, "", fmt.Errorf("%w: name and valid email are required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, "", fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}
	if role == RoleAdmin {
		team = nil
	}
	tempSecret, err := generateTempSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashSecret(tempSecret)
	if err != nil {
		return nil, "", err
	}
	identity := &Identity{Name: name, Email: email, SecretHash: hash, Role: role, Team: team}
	if err := s.store.Identities().Create(ctx, identity); err != nil {
		return nil, "", err
	}
	return identity, tempSecret, nil
}

// UpdateIdentity applies an admin edit to another identity.
func (s *Service) UpdateIdentity(ctx context.Context, actor *Identity, id string, upd IdentityUpdate) (*Identity, error) {
	if !CanManageIdentities(actor) {
		return nil, ErrForbidden
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !validEmail(email) {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, *upd.Role)
		}
		// Admins are unscoped, same as at registration.
		if *upd.Role == RoleAdmin {
			upd.Team = nil
			upd.ClearTeam = true
		}
	}
	return s.store.Identities().Update(ctx, id, upd)
}

// DeleteIdentity removes an identity. Its refresh tokens go with it via the
// storage schema's cascade.
func (s *Service) DeleteIdentity(ctx context.Context, actor *Identity, id string) error {
	if !CanManageIdentities(actor) {
		return ErrForbidden
	}
	return s.store.Identities().Delete(ctx, id)
}

func (s *Service) mintTokens(ctx context.Context, subjectID string) (TokenPair, error) {
	accessToken, accessExp, err := s.tokens.IssueAccessToken(subjectID)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefreshToken(subjectID)
	if err != nil {
		return TokenPair{}, err
	}
	rec := &RefreshToken{OwnerID: subjectID, Token: refreshToken, ExpiresAt: refreshExp}
	if err := s.store.RefreshTokens().Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func generateTempSecret() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	return email != "" && strings.Contains(email, "@")
}
