package auth

import "context"

// Store describes the persistence operations the credential core depends on.
// Implementations must be swappable (in-memory for tests, PostgreSQL for
// production) without changing session or token behavior.
type Store interface {
	Identities() IdentityStore
	RefreshTokens() RefreshTokenStore
}

// IdentityStore manages identity records.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Update(ctx context.Context, id string, upd IdentityUpdate) (*Identity, error)
	List(ctx context.Context) ([]*Identity, error)
	ListByTeam(ctx context.Context, team int, role Role) ([]*Identity, error)
	Delete(ctx context.Context, id string) error
}

// RefreshTokenStore manages refresh-token records. Records are append-only
// except for the revoked flag.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec *RefreshToken) error
	FindByValue(ctx context.Context, token string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, token string) error
	MarkRevokedByOwner(ctx context.Context, ownerID string) error

	// Rotate atomically revokes the old token and inserts the replacement.
	// Exactly one of two concurrent rotations of the same token may
	// succeed; the loser observes ErrTokenRevoked. An unknown old token
	// yields ErrTokenNotRecognized.
	Rotate(ctx context.Context, oldToken string, next *RefreshToken) error
}
