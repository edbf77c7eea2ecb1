package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"carillon/internal/auth"
	"carillon/internal/core"
	"carillon/internal/schedule"
)

// Configuration file names inside the config directory.
const (
	UsersFile  = "users.json"
	RolesFile  = "roles_config.json"
	ParamsFile = "parametres_college.json"
	BellsFile  = "donnees_sonneries.json"
)

// DefaultRole is assigned to migrated legacy users.
const DefaultRole = "Lecteur"

// Params mirrors parametres_college.json. The French keys are the wire
// format shared with the frontend and the desktop configuration tool.
type Params struct {
	Departement          string `json:"departement"`
	Zone                 string `json:"zone"`
	HolidayAPIURL        string `json:"api_holidays_url"`
	HolidayCountryCode   string `json:"country_code_holidays"`
	VacationICSBaseURL   string `json:"vacances_ics_base_url_manuel,omitempty"`
	SoundPPMS            string `json:"sonnerie_ppms,omitempty"`
	SoundAttentat        string `json:"sonnerie_attentat,omitempty"`
	SoundEndAlert        string `json:"sonnerie_fin_alerte,omitempty"`
	AudioDevice          string `json:"nom_peripherique_audio_sonneries,omitempty"`
	AlertClickMode       string `json:"alert_click_mode"`
	StatusRefreshSeconds int    `json:"status_refresh_interval_seconds"`
	TelegramBotToken     string `json:"telegram_bot_token,omitempty"`
	TelegramChatID       int64  `json:"telegram_chat_id,omitempty"`
}

// VacationConfig is the vacances block of donnees_sonneries.json.
type VacationConfig struct {
	ICSFilePath string `json:"ics_file_path,omitempty"`
}

// BellData mirrors donnees_sonneries.json.
type BellData struct {
	Sounds     map[string]string         `json:"sonneries"`
	DayTypes   map[string]core.DayType   `json:"journees_types"`
	WeeklyPlan core.WeeklyPlan           `json:"planning_hebdomadaire"`
	Exceptions map[string]core.Exception `json:"exceptions_planning"`
	Vacations  VacationConfig            `json:"vacances"`
}

type rolesFile struct {
	Roles map[string]core.Role `json:"roles"`
}

// Store holds the in-memory configuration snapshot backed by the JSON files
// in the config directory. All access goes through one read/write lock;
// every write rewrites the whole file and rolls back from disk on failure.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	users  map[string]core.User
	roles  map[string]core.Role
	params Params
	bells  BellData
}

// New creates an empty store rooted at dir. Call LoadAll before use.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With("component", "store"),
		users:  make(map[string]core.User),
		roles:  defaultRoles(),
		params: defaultParams(),
		bells:  emptyBellData(),
	}
}

func defaultParams() Params {
	return Params{
		Zone:                 "A",
		HolidayCountryCode:   "FR",
		AlertClickMode:       "double",
		StatusRefreshSeconds: 15,
	}
}

func emptyBellData() BellData {
	return BellData{
		Sounds:     make(map[string]string),
		DayTypes:   make(map[string]core.DayType),
		WeeklyPlan: make(core.WeeklyPlan),
		Exceptions: make(map[string]core.Exception),
	}
}

// defaultRoles is the fallback when roles_config.json is missing or broken.
func defaultRoles() map[string]core.Role {
	return map[string]core.Role{
		"Administrateur": {Permissions: core.PermissionTree{auth.AdminSentinel: true}},
		"Collaborateur": {Permissions: core.PermissionTree{
			"page:dashboard": true,
			"control": map[string]any{
				"planning":          true,
				"alert_trigger_any": true,
				"alert_stop":        true,
			},
		}},
		DefaultRole: {Permissions: core.PermissionTree{
			"page:dashboard": true,
		}},
	}
}

// LoadAll reads every configuration file and returns a per-file status.
// A file that fails to load keeps its previous in-memory state.
func (s *Store) LoadAll() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]error{
		RolesFile:  s.loadRolesLocked(),
		UsersFile:  s.loadUsersLocked(),
		ParamsFile: s.loadParamsLocked(),
		BellsFile:  s.loadBellsLocked(),
	}
	for name, err := range status {
		if err != nil {
			s.logger.Error("Config file failed to load", "file", name, "error", err)
		}
	}
	return status
}

func (s *Store) readFile(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *Store) loadRolesLocked() error {
	var file rolesFile
	if err := s.readFile(RolesFile, &file); err != nil {
		if os.IsNotExist(err) {
			s.roles = defaultRoles()
			s.logger.Warn("Roles file missing, using built-in roles")
			return nil
		}
		return err
	}
	if len(file.Roles) == 0 {
		s.roles = defaultRoles()
		s.logger.Warn("Roles file empty, using built-in roles")
		return nil
	}
	s.roles = file.Roles
	return nil
}

// loadUsersLocked reads users.json, migrating legacy records. A legacy entry
// is a bare hash string; it becomes a full record with the default role.
// Role names are normalized case-insensitively against the known roles.
// The file is rewritten when a migration changed anything.
func (s *Store) loadUsersLocked() error {
	var raw map[string]json.RawMessage
	if err := s.readFile(UsersFile, &raw); err != nil {
		if os.IsNotExist(err) {
			s.users = make(map[string]core.User)
			s.logger.Warn("Users file missing, starting with no accounts")
			return nil
		}
		return err
	}

	users := make(map[string]core.User, len(raw))
	changed := false
	for name, entry := range raw {
		var hash string
		if err := json.Unmarshal(entry, &hash); err == nil {
			users[name] = core.User{Hash: hash, Role: DefaultRole}
			changed = true
			s.logger.Info("Migrated legacy user record", "user", name)
			continue
		}

		var user core.User
		if err := json.Unmarshal(entry, &user); err != nil {
			return fmt.Errorf("user %q: %w", name, err)
		}

		if canonical, ok := s.canonicalRoleLocked(user.Role); ok && canonical != user.Role {
			user.Role = canonical
			changed = true
		}

		// Pre-migration records carried a resolved "permissions" field that
		// is now always derived from the role; drop it on rewrite.
		var fields map[string]json.RawMessage
		if json.Unmarshal(entry, &fields) == nil {
			if _, legacy := fields["permissions"]; legacy {
				changed = true
			}
		}
		users[name] = user
	}

	s.users = users
	if changed {
		if err := s.writeFile(UsersFile, users); err != nil {
			s.logger.Error("Could not persist migrated users file", "error", err)
		}
	}
	return nil
}

func (s *Store) canonicalRoleLocked(role string) (string, bool) {
	if _, ok := s.roles[role]; ok {
		return role, true
	}
	for name := range s.roles {
		if strings.EqualFold(name, role) {
			return name, true
		}
	}
	return role, false
}

func (s *Store) loadParamsLocked() error {
	params := defaultParams()
	if err := s.readFile(ParamsFile, &params); err != nil {
		if os.IsNotExist(err) {
			s.params = defaultParams()
			s.logger.Warn("Parameters file missing, using defaults")
			return nil
		}
		return err
	}
	normalizeParams(&params)
	s.params = params
	return nil
}

func normalizeParams(p *Params) {
	if p.AlertClickMode != "single" && p.AlertClickMode != "double" {
		p.AlertClickMode = "double"
	}
	if p.StatusRefreshSeconds < 1 {
		p.StatusRefreshSeconds = 15
	}
	if p.HolidayCountryCode == "" {
		p.HolidayCountryCode = "FR"
	}
}

// loadBellsLocked reads donnees_sonneries.json. Invalid day types are kept
// out of the snapshot with a warning instead of failing the whole file.
func (s *Store) loadBellsLocked() error {
	bells := emptyBellData()
	if err := s.readFile(BellsFile, &bells); err != nil {
		if os.IsNotExist(err) {
			s.bells = emptyBellData()
			s.logger.Warn("Bell data file missing, starting empty")
			return nil
		}
		return err
	}

	if bells.Sounds == nil {
		bells.Sounds = make(map[string]string)
	}
	if bells.DayTypes == nil {
		bells.DayTypes = make(map[string]core.DayType)
	}
	if bells.WeeklyPlan == nil {
		bells.WeeklyPlan = make(core.WeeklyPlan)
	}
	if bells.Exceptions == nil {
		bells.Exceptions = make(map[string]core.Exception)
	}

	for name, dt := range bells.DayTypes {
		dt.Name = name
		if err := dt.Validate(); err != nil {
			s.logger.Warn("Dropping invalid day type", "name", name, "error", err)
			delete(bells.DayTypes, name)
			continue
		}
		bells.DayTypes[name] = dt
	}

	s.bells = bells
	return nil
}

// Snapshot builds the scheduler's configuration view with copied maps so
// later edits cannot race the scheduler loop.
func (s *Store) Snapshot() schedule.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayTypes := make(map[string]core.DayType, len(s.bells.DayTypes))
	for name, dt := range s.bells.DayTypes {
		periods := make([]core.Period, len(dt.Periods))
		copy(periods, dt.Periods)
		dayTypes[name] = core.DayType{Name: dt.Name, Periods: periods}
	}
	plan := make(core.WeeklyPlan, len(s.bells.WeeklyPlan))
	for k, v := range s.bells.WeeklyPlan {
		plan[k] = v
	}
	exceptions := make(map[string]core.Exception, len(s.bells.Exceptions))
	for k, v := range s.bells.Exceptions {
		exceptions[k] = v
	}

	return schedule.Snapshot{
		DayTypes:    dayTypes,
		WeeklyPlan:  plan,
		Exceptions:  exceptions,
		AudioDevice: s.params.AudioDevice,
	}
}

// Params returns a copy of the general parameters.
func (s *Store) Params() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// SetParams replaces the general parameters and persists them.
func (s *Store) SetParams(p Params) error {
	normalizeParams(&p)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.params
	s.params = p
	if err := s.writeFile(ParamsFile, p); err != nil {
		s.params = prev
		return err
	}
	return nil
}

// Sounds returns the display-name to filename map.
func (s *Store) Sounds() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.bells.Sounds))
	for k, v := range s.bells.Sounds {
		out[k] = v
	}
	return out
}

// BellData returns a shallow copy of the bell configuration for read-only
// display.
func (s *Store) BellData() BellData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.bells
	out.Sounds = make(map[string]string, len(s.bells.Sounds))
	for k, v := range s.bells.Sounds {
		out.Sounds[k] = v
	}
	out.DayTypes = make(map[string]core.DayType, len(s.bells.DayTypes))
	for k, v := range s.bells.DayTypes {
		out.DayTypes[k] = v
	}
	out.WeeklyPlan = make(core.WeeklyPlan, len(s.bells.WeeklyPlan))
	for k, v := range s.bells.WeeklyPlan {
		out.WeeklyPlan[k] = v
	}
	out.Exceptions = make(map[string]core.Exception, len(s.bells.Exceptions))
	for k, v := range s.bells.Exceptions {
		out.Exceptions[k] = v
	}
	return out
}

// DayTypes returns the day-type map (copied).
func (s *Store) DayTypes() map[string]core.DayType {
	return s.BellData().DayTypes
}

// PutDayType creates or updates a day type. With create set, an existing
// name is a conflict.
func (s *Store) PutDayType(dt core.DayType, create bool) error {
	if err := dt.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.bells.DayTypes[dt.Name]
	if create && exists {
		return core.ErrNameExists
	}
	if !create && !exists {
		return core.ErrDayTypeNotFound
	}

	s.bells.DayTypes[dt.Name] = dt
	return s.saveBellsLocked()
}

// DeleteDayType removes a day type. Deletion is rejected while the weekly
// plan or an exception still references it.
func (s *Store) DeleteDayType(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bells.DayTypes[name]; !ok {
		return core.ErrDayTypeNotFound
	}
	for _, ref := range s.bells.WeeklyPlan {
		if ref == name {
			return core.ErrDayTypeInUse
		}
	}
	for _, exc := range s.bells.Exceptions {
		if exc.Action == core.ExceptionUseDayType && exc.DayType == name {
			return core.ErrDayTypeInUse
		}
	}

	delete(s.bells.DayTypes, name)
	return s.saveBellsLocked()
}

// SetWeeklyPlan replaces the weekly plan. Every referenced day type must
// exist; "Aucune" and empty mean no bells.
func (s *Store) SetWeeklyPlan(plan core.WeeklyPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for day, name := range plan {
		if name == "" || strings.EqualFold(name, core.NoSchedule) {
			continue
		}
		if _, ok := s.bells.DayTypes[name]; !ok {
			return fmt.Errorf("%w: %q (jour %s)", core.ErrDayTypeNotFound, name, day)
		}
	}

	s.bells.WeeklyPlan = plan
	return s.saveBellsLocked()
}

// SetException creates or replaces the exception for a date.
func (s *Store) SetException(date string, exc core.Exception) error {
	if _, err := core.ParseISODate(date); err != nil {
		return err
	}
	if err := exc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if exc.Action == core.ExceptionUseDayType {
		if _, ok := s.bells.DayTypes[exc.DayType]; !ok {
			return fmt.Errorf("%w: %q", core.ErrDayTypeNotFound, exc.DayType)
		}
	}

	s.bells.Exceptions[date] = exc
	return s.saveBellsLocked()
}

// DeleteException removes the exception for a date.
func (s *Store) DeleteException(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bells.Exceptions[date]; !ok {
		return core.ErrExceptionNotFound
	}
	delete(s.bells.Exceptions, date)
	return s.saveBellsLocked()
}

// SetSounds replaces the sound name map.
func (s *Store) SetSounds(sounds map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sounds == nil {
		sounds = make(map[string]string)
	}
	s.bells.Sounds = sounds
	return s.saveBellsLocked()
}

// saveBellsLocked persists the bell data, reloading from disk on failure so
// memory never diverges from the file.
func (s *Store) saveBellsLocked() error {
	if err := s.writeFile(BellsFile, s.bells); err != nil {
		if lerr := s.loadBellsLocked(); lerr != nil {
			s.logger.Error("Rollback reload failed", "file", BellsFile, "error", lerr)
		}
		return err
	}
	return nil
}
