package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"carillon/internal/core"
)

func collaborateurPerms() core.PermissionTree {
	return core.PermissionTree{
		"page:dashboard":    true,
		"page:utilisateurs": false,
		"control": map[string]any{
			"planning":           true,
			"alert_trigger_any":  true,
			"alert_trigger_ppms": false,
			"alert_stop":         true,
		},
	}
}

func TestHas(t *testing.T) {
	perms := collaborateurPerms()

	tests := []struct {
		name string
		perm string
		want bool
	}{
		{"flat page key granted", "page:dashboard", true},
		{"flat page key denied", "page:utilisateurs", false},
		{"nested granted", "control:planning", true},
		{"nested denied", "control:alert_trigger_ppms", false},
		{"missing action denied", "control:inconnue", false},
		{"missing section denied", "sound:upload", false},
		{"no separator denied", "dashboard", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Has(perms, tt.perm))
		})
	}
}

func TestHasFlatKeysOnlyForPages(t *testing.T) {
	perms := core.PermissionTree{
		"maintenance":     true,
		"control:urgence": true,
		"control": map[string]any{
			"planning": true,
		},
	}

	// A name without a separator is a flat top-level key.
	assert.True(t, Has(perms, "maintenance"))

	// A sectioned name only resolves through the nested map; the stray flat
	// key is ignored.
	assert.False(t, Has(perms, "control:urgence"))
	assert.True(t, Has(perms, "control:planning"))
}

func TestHasAdminSentinel(t *testing.T) {
	admin := core.PermissionTree{AdminSentinel: true}
	assert.True(t, Has(admin, "page:utilisateurs"))
	assert.True(t, Has(admin, "control:alert_trigger_ppms"))
	assert.True(t, Has(admin, "anything:at_all"))

	disabled := core.PermissionTree{AdminSentinel: false}
	assert.False(t, Has(disabled, "page:dashboard"))
}

func TestMergeOverrideWins(t *testing.T) {
	base := collaborateurPerms()
	override := core.PermissionTree{
		"control": map[string]any{
			"alert_trigger_ppms": true,
		},
	}

	merged := Merge(base, override)

	// The override flips one nested flag; siblings survive.
	assert.True(t, Has(merged, "control:alert_trigger_ppms"))
	assert.True(t, Has(merged, "control:planning"))
	assert.True(t, Has(merged, "control:alert_stop"))
	assert.True(t, Has(merged, "page:dashboard"))
}

func TestMergeProperties(t *testing.T) {
	x := collaborateurPerms()

	// Merging with an empty tree is the identity in both directions.
	assert.Equal(t, x, Merge(x, core.PermissionTree{}))
	assert.Equal(t, x, Merge(core.PermissionTree{}, x))
	// Merging a tree with itself changes nothing.
	assert.Equal(t, x, Merge(x, x))
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := collaborateurPerms()
	override := core.PermissionTree{
		"control": map[string]any{"planning": false},
	}

	merged := Merge(base, override)
	assert.False(t, Has(merged, "control:planning"))

	// base kept its original nested value.
	assert.True(t, Has(base, "control:planning"))
}

func TestEffective(t *testing.T) {
	role := collaborateurPerms()

	eff := Effective(role, nil)
	assert.Equal(t, role, eff)

	custom := core.PermissionTree{"page:utilisateurs": true}
	eff = Effective(role, custom)
	assert.True(t, Has(eff, "page:utilisateurs"))
	assert.True(t, Has(eff, "control:planning"))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("sonnerie123")
	assert.NoError(t, err)
	assert.True(t, CheckPassword(hash, "sonnerie123"))
	assert.False(t, CheckPassword(hash, "autre"))
	assert.False(t, CheckPassword("pas-un-hash", "sonnerie123"))
}

func TestSessions(t *testing.T) {
	m := NewSessionManager(0)

	token := m.Create("alice")
	user, ok := m.Lookup(token)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)

	_, ok = m.Lookup("sess_inconnue")
	assert.False(t, ok)

	m.Destroy(token)
	_, ok = m.Lookup(token)
	assert.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	m := NewSessionManager(1)
	token := m.Create("alice")

	// ttl of 1ns has long passed by the next lookup.
	_, ok := m.Lookup(token)
	assert.False(t, ok)
}

func TestDestroyUser(t *testing.T) {
	m := NewSessionManager(0)
	t1 := m.Create("alice")
	t2 := m.Create("alice")
	t3 := m.Create("bob")

	m.DestroyUser("alice")
	_, ok := m.Lookup(t1)
	assert.False(t, ok)
	_, ok = m.Lookup(t2)
	assert.False(t, ok)
	_, ok = m.Lookup(t3)
	assert.True(t, ok)
}
