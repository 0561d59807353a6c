package antiflood

import (
	"testing"

	"modguard/internal/chat"

	"github.com/stretchr/testify/assert"
)

func TestExemptPolicy(t *testing.T) {
	allOn := ExemptPolicy{OwnerID: 42, ExemptOwner: true, ExemptCreator: true, ExemptAdmin: true}

	tests := []struct {
		name   string
		policy ExemptPolicy
		user   int64
		role   chat.Role
		want   bool
	}{
		{"owner exempt", allOn, 42, chat.RoleMember, true},
		{"creator exempt", allOn, 7, chat.RoleCreator, true},
		{"admin exempt", allOn, 7, chat.RoleAdministrator, true},
		{"member not exempt", allOn, 7, chat.RoleMember, false},
		{"unknown role not exempt", allOn, 7, chat.RoleUnknown, false},
		{"owner flag off", ExemptPolicy{OwnerID: 42, ExemptCreator: true, ExemptAdmin: true}, 42, chat.RoleMember, false},
		{"creator flag off", ExemptPolicy{OwnerID: 42, ExemptOwner: true, ExemptAdmin: true}, 7, chat.RoleCreator, false},
		{"admin flag off", ExemptPolicy{OwnerID: 42, ExemptOwner: true, ExemptCreator: true}, 7, chat.RoleAdministrator, false},
		{"zero owner id never matches", ExemptPolicy{ExemptOwner: true}, 0, chat.RoleUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsExempt(tt.user, tt.role))
		})
	}
}
