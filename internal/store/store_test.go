package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carillon/internal/auth"
	"carillon/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newLoadedStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()

	writeJSON(t, dir, RolesFile, `{
		"roles": {
			"Administrateur": {"permissions": {"admin:has_all_permissions": true}},
			"Lecteur": {"permissions": {"page:dashboard": true}}
		}
	}`)
	writeJSON(t, dir, UsersFile, `{
		"admin": {"hash": "$2a$10$abc", "nom_complet": "Admin", "role": "Administrateur"}
	}`)
	writeJSON(t, dir, ParamsFile, `{
		"departement": "75",
		"zone": "C",
		"api_holidays_url": "https://date.nager.at/api/v3/PublicHolidays",
		"country_code_holidays": "FR"
	}`)
	writeJSON(t, dir, BellsFile, `{
		"sonneries": {"Cloche": "bell.mp3"},
		"journees_types": {
			"Standard": {"nom": "Standard", "periodes": [
				{"nom": "P1", "heure_debut": "08:00:00", "heure_fin": "08:55:00", "sonnerie_debut": "bell.mp3"}
			]}
		},
		"planning_hebdomadaire": {"Lundi": "Standard", "Samedi": "Aucune"},
		"exceptions_planning": {
			"2025-12-19": {"action": "silence", "description": "Veille de vacances"}
		},
		"vacances": {"ics_file_path": ""}
	}`)

	s := New(dir, testLogger())
	status := s.LoadAll()
	for name, err := range status {
		require.NoError(t, err, name)
	}
	return s, dir
}

func TestLoadAll(t *testing.T) {
	s, _ := newLoadedStore(t)

	p := s.Params()
	assert.Equal(t, "C", p.Zone)
	// Missing optional fields get their defaults.
	assert.Equal(t, "double", p.AlertClickMode)
	assert.Equal(t, 15, p.StatusRefreshSeconds)

	snap := s.Snapshot()
	assert.Contains(t, snap.DayTypes, "Standard")
	assert.Equal(t, "Standard", snap.WeeklyPlan["Lundi"])
	assert.Contains(t, snap.Exceptions, "2025-12-19")

	u, err := s.GetUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "Administrateur", u.Role)
}

func TestLegacyUserMigration(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, UsersFile, `{
		"ancien": "$2a$10$legacyhash",
		"moderne": {"hash": "$2a$10$abc", "nom_complet": "Mod", "role": "lecteur", "permissions": {"page:dashboard": true}}
	}`)

	s := New(dir, testLogger())
	require.NoError(t, s.LoadAll()[UsersFile])

	ancien, err := s.GetUser("ancien")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$legacyhash", ancien.Hash)
	assert.Equal(t, DefaultRole, ancien.Role)
	assert.Empty(t, ancien.FullName)

	// Role casing normalized against the built-in role set.
	moderne, err := s.GetUser("moderne")
	require.NoError(t, err)
	assert.Equal(t, "Lecteur", moderne.Role)

	// The migrated file was rewritten without the legacy fields.
	data, err := os.ReadFile(filepath.Join(dir, UsersFile))
	require.NoError(t, err)
	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw["moderne"], "permissions")
	assert.Equal(t, DefaultRole, raw["ancien"]["role"])

	// Migration is idempotent: a second load changes nothing.
	s2 := New(dir, testLogger())
	require.NoError(t, s2.LoadAll()[UsersFile])
	assert.Equal(t, s.Users(), s2.Users())
	data2, err := os.ReadFile(filepath.Join(dir, UsersFile))
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}

func TestDayTypeCRUD(t *testing.T) {
	s, _ := newLoadedStore(t)

	demi := core.DayType{Name: "Demi-journée", Periods: []core.Period{
		{Name: "M1", Start: "08:00:00", End: "11:55:00", SoundStart: "bell.mp3", SoundEnd: "bell.mp3"},
	}}
	require.NoError(t, s.PutDayType(demi, true))
	assert.ErrorIs(t, s.PutDayType(demi, true), core.ErrNameExists)

	// Update path requires the name to exist.
	assert.ErrorIs(t, s.PutDayType(core.DayType{Name: "Inconnue", Periods: demi.Periods}, false), core.ErrDayTypeNotFound)

	// "Standard" is referenced by the weekly plan, deletion is rejected.
	assert.ErrorIs(t, s.DeleteDayType("Standard"), core.ErrDayTypeInUse)

	require.NoError(t, s.DeleteDayType("Demi-journée"))
	assert.ErrorIs(t, s.DeleteDayType("Demi-journée"), core.ErrDayTypeNotFound)
}

func TestDeleteDayTypeReferencedByException(t *testing.T) {
	s, _ := newLoadedStore(t)

	demi := core.DayType{Name: "Cérémonie", Periods: []core.Period{
		{Name: "C1", Start: "10:00:00", End: "11:00:00"},
	}}
	require.NoError(t, s.PutDayType(demi, true))
	require.NoError(t, s.SetException("2025-11-11", core.Exception{
		Action: core.ExceptionUseDayType, DayType: "Cérémonie",
	}))

	assert.ErrorIs(t, s.DeleteDayType("Cérémonie"), core.ErrDayTypeInUse)

	require.NoError(t, s.DeleteException("2025-11-11"))
	require.NoError(t, s.DeleteDayType("Cérémonie"))
}

func TestSetWeeklyPlanValidatesReferences(t *testing.T) {
	s, _ := newLoadedStore(t)

	err := s.SetWeeklyPlan(core.WeeklyPlan{"Lundi": "Inexistante"})
	assert.ErrorIs(t, err, core.ErrDayTypeNotFound)

	require.NoError(t, s.SetWeeklyPlan(core.WeeklyPlan{
		"Lundi": "Standard", "Mardi": core.NoSchedule, "Mercredi": "",
	}))
}

func TestSetExceptionValidation(t *testing.T) {
	s, _ := newLoadedStore(t)

	assert.ErrorIs(t, s.SetException("pas-une-date", core.Exception{Action: core.ExceptionSilence}), core.ErrInvalidDate)
	assert.ErrorIs(t, s.SetException("2025-12-01", core.Exception{Action: "fete"}), core.ErrInvalidException)
	assert.ErrorIs(t, s.SetException("2025-12-01", core.Exception{
		Action: core.ExceptionUseDayType, DayType: "Inexistante",
	}), core.ErrDayTypeNotFound)
	assert.ErrorIs(t, s.DeleteException("2025-12-01"), core.ErrExceptionNotFound)

	require.NoError(t, s.SetException("2025-12-01", core.Exception{Action: core.ExceptionSilence}))
}

func TestSaveReloadRoundTrip(t *testing.T) {
	s, dir := newLoadedStore(t)

	require.NoError(t, s.SetException("2026-01-05", core.Exception{
		Action: core.ExceptionSilence, Description: "Neige",
	}))
	p := s.Params()
	p.SoundPPMS = "ppms.mp3"
	require.NoError(t, s.SetParams(p))

	s2 := New(dir, testLogger())
	for name, err := range s2.LoadAll() {
		require.NoError(t, err, name)
	}
	assert.Equal(t, s.BellData(), s2.BellData())
	assert.Equal(t, s.Params(), s2.Params())
	assert.Equal(t, s.Users(), s2.Users())
}

func TestUserCRUD(t *testing.T) {
	s, _ := newLoadedStore(t)

	u := core.User{Hash: "$2a$10$xyz", FullName: "Paul", Role: "lecteur"}
	require.NoError(t, s.PutUser("paul", u, true))
	assert.ErrorIs(t, s.PutUser("paul", u, true), core.ErrNameExists)

	got, err := s.GetUser("paul")
	require.NoError(t, err)
	assert.Equal(t, "Lecteur", got.Role)

	assert.ErrorIs(t, s.PutUser("ghost", u, false), core.ErrUserNotFound)
	assert.ErrorIs(t, s.PutUser("eve", core.User{Role: "Pirate"}, true), core.ErrRoleNotFound)

	require.NoError(t, s.SetCustomPermissions("paul", core.PermissionTree{"page:exceptions": true}))
	perms, err := s.EffectivePermissions("paul")
	require.NoError(t, err)
	assert.True(t, auth.Has(perms, "page:exceptions"))
	assert.True(t, auth.Has(perms, "page:dashboard"))

	require.NoError(t, s.DeleteCustomPermissions("paul"))
	perms, err = s.EffectivePermissions("paul")
	require.NoError(t, err)
	assert.False(t, auth.Has(perms, "page:exceptions"))

	require.NoError(t, s.DeleteUser("paul"))
	assert.ErrorIs(t, s.DeleteUser("paul"), core.ErrUserNotFound)
}

func TestEffectivePermissionsAdmin(t *testing.T) {
	s, _ := newLoadedStore(t)

	perms, err := s.EffectivePermissions("admin")
	require.NoError(t, err)
	assert.True(t, auth.Has(perms, "control:alert_trigger_ppms"))
	assert.True(t, auth.Has(perms, "page:utilisateurs"))

	_, err = s.EffectivePermissions("inconnu")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestMissingFilesUseDefaults(t *testing.T) {
	s := New(t.TempDir(), testLogger())
	for name, err := range s.LoadAll() {
		assert.NoError(t, err, name)
	}

	assert.Contains(t, s.Roles(), "Administrateur")
	assert.Equal(t, "double", s.Params().AlertClickMode)
	assert.Empty(t, s.Users())
	assert.Empty(t, s.Snapshot().DayTypes)
}

func TestInvalidDayTypeDroppedOnLoad(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, BellsFile, `{
		"journees_types": {
			"Bonne": {"nom": "Bonne", "periodes": [{"nom": "P1", "heure_debut": "08:00:00", "heure_fin": "09:00:00"}]},
			"Cassée": {"nom": "Cassée", "periodes": [{"nom": "P1", "heure_debut": "10:00:00", "heure_fin": "09:00:00"}]}
		}
	}`)

	s := New(dir, testLogger())
	require.NoError(t, s.LoadAll()[BellsFile])
	dayTypes := s.DayTypes()
	assert.Contains(t, dayTypes, "Bonne")
	assert.NotContains(t, dayTypes, "Cassée")
}
