package antiflood

import "modguard/internal/chat"

// ExemptPolicy decides which identities bypass all rate-limit counters.
// Role comes from a live membership lookup supplied per message; a failed
// lookup yields chat.RoleUnknown, which grants nothing (fail-closed).
type ExemptPolicy struct {
	OwnerID       int64
	ExemptOwner   bool
	ExemptCreator bool
	ExemptAdmin   bool
}

// IsExempt reports whether the user bypasses the counters.
func (p ExemptPolicy) IsExempt(user int64, role chat.Role) bool {
	if p.ExemptOwner && p.OwnerID != 0 && user == p.OwnerID {
		return true
	}
	if p.ExemptCreator && role == chat.RoleCreator {
		return true
	}
	if p.ExemptAdmin && role == chat.RoleAdministrator {
		return true
	}
	return false
}
