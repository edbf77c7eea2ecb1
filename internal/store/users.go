package store

import (
	"carillon/internal/auth"
	"carillon/internal/core"
)

// Users returns a copy of the user map.
func (s *Store) Users() map[string]core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.User, len(s.users))
	for name, u := range s.users {
		out[name] = u
	}
	return out
}

// GetUser looks up one user.
func (s *Store) GetUser(username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

// PutUser creates or updates a user. The role must exist; with create set an
// existing username is a conflict.
func (s *Store) PutUser(username string, u core.User, create bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.users[username]
	if create && exists {
		return core.ErrNameExists
	}
	if !create && !exists {
		return core.ErrUserNotFound
	}
	canonical, ok := s.canonicalRoleLocked(u.Role)
	if !ok {
		return core.ErrRoleNotFound
	}
	u.Role = canonical

	s.users[username] = u
	return s.saveUsersLocked()
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return core.ErrUserNotFound
	}
	delete(s.users, username)
	return s.saveUsersLocked()
}

// SetCustomPermissions replaces a user's permission overrides.
func (s *Store) SetCustomPermissions(username string, perms core.PermissionTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return core.ErrUserNotFound
	}
	u.CustomPerms = perms
	s.users[username] = u
	return s.saveUsersLocked()
}

// DeleteCustomPermissions drops a user's overrides, reverting them to their
// role baseline.
func (s *Store) DeleteCustomPermissions(username string) error {
	return s.SetCustomPermissions(username, nil)
}

// Roles returns a copy of the role map.
func (s *Store) Roles() map[string]core.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.Role, len(s.roles))
	for name, r := range s.roles {
		out[name] = r
	}
	return out
}

// SetRoles replaces the whole role configuration. Users keep their role
// string; a role that disappears falls back to deny-everything at
// evaluation time.
func (s *Store) SetRoles(roles map[string]core.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(roles) == 0 {
		return core.ErrRoleNotFound
	}
	prev := s.roles
	s.roles = roles
	if err := s.writeFile(RolesFile, rolesFile{Roles: roles}); err != nil {
		s.roles = prev
		return err
	}
	return nil
}

// EffectivePermissions computes a user's permission tree from their role
// baseline and overrides.
func (s *Store) EffectivePermissions(username string) (core.PermissionTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	role, ok := s.roles[u.Role]
	if !ok {
		// Unknown role denies everything except explicit user overrides.
		return auth.Effective(core.PermissionTree{}, u.CustomPerms), nil
	}
	return auth.Effective(role.Permissions, u.CustomPerms), nil
}

// saveUsersLocked persists users.json, reloading from disk on failure.
func (s *Store) saveUsersLocked() error {
	if err := s.writeFile(UsersFile, s.users); err != nil {
		if lerr := s.loadUsersLocked(); lerr != nil {
			s.logger.Error("Rollback reload failed", "file", UsersFile, "error", lerr)
		}
		return err
	}
	return nil
}
