package auth

import "errors"

// ErrForbidden indicates the actor is not allowed to perform the requested
// identity-management operation.
var ErrForbidden = errors.New("auth: forbidden")

// CanManageIdentities reports whether the actor may create, update or delete
// other identities. Admin only.
func CanManageIdentities(actor *Identity) bool {
	return actor != nil && actor.Role == RoleAdmin
}

// CanListIdentities reports whether the actor may enumerate identities.
// Admins see everyone; teamleads see their own team.
func CanListIdentities(actor *Identity) bool {
	if actor == nil {
		return false
	}
	return actor.Role == RoleAdmin || actor.Role == RoleTeamlead
}
