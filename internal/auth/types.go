package auth

import "time"

// Role is the baseline permission tier of an identity. Team scoping is
// applied on top of it by the task authorization rules.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleTeamlead Role = "teamlead"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleTeamlead, RoleAdmin:
		return true
	}
	return false
}

// Identity is a registered user account. SecretHash is a bcrypt hash; the
// plaintext secret is never stored. Team is nil for admins and for teamleads
// that have not been placed into a team yet.
type Identity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	SecretHash string    `json:"-"`
	Role       Role      `json:"role"`
	Team       *int      `json:"team,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdentityUpdate carries optional field changes for an identity. Nil fields
// are left untouched; ClearTeam drops the team and takes precedence over Team.
type IdentityUpdate struct {
	Name       *string
	Email      *string
	SecretHash *string
	Role       *Role
	Team       *int
	ClearTeam  bool
}

// RefreshToken is a persisted refresh-token record. Rows are never updated in
// place: rotation marks the old row revoked and inserts a fresh one, so a
// consumed token can never become valid again.
type RefreshToken struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair bundles a freshly issued access/refresh credential set.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
