package auth

import (
	"time"
)

// Role is the access level assigned to a user at registration.
type Role int

const (
	// RoleBeneficiary can search for benefits and manage their own profile.
	RoleBeneficiary Role = 0
	// RoleBenefactor can additionally create and update catalog entries.
	RoleBenefactor Role = 1
	// RoleAuditor can delete catalog entries, list users and read audit logs.
	RoleAuditor Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleBeneficiary:
		return "beneficiary"
	case RoleBenefactor:
		return "benefactor"
	case RoleAuditor:
		return "auditor"
	default:
		return "unknown"
	}
}

// ParseRole validates an integer role received over the wire.
func ParseRole(v int) (Role, bool) {
	switch Role(v) {
	case RoleBeneficiary, RoleBenefactor, RoleAuditor:
		return Role(v), true
	default:
		return 0, false
	}
}

// User is a verified account. Identity is the opaque per-connection principal
// assigned by the transport layer and never changes once the row exists.
type User struct {
	Identity      string
	Username      string
	Email         string
	Role          Role
	EmailVerified bool
	RegisteredAt  time.Time
}

// PendingVerification holds an outstanding email verification. Username and
// Role are only set for registration attempts; a login attempt leaves them
// zero. At most one row exists per identity.
type PendingVerification struct {
	Identity  string
	Email     string
	Username  string
	Role      Role
	Code      string
	ExpiresAt time.Time
}

// IsRegistration reports whether this pending row was created by a
// registration request rather than a login request.
func (p PendingVerification) IsRegistration() bool {
	return p.Username != ""
}

// AuthSession marks a live device for an identity. It is a liveness marker,
// not a security token.
type AuthSession struct {
	Identity       string
	LastActiveTime time.Time
	ActiveDeviceID string
}
