package auth

import (
	"strings"

	"carillon/internal/core"
)

// AdminSentinel grants every permission when set to true at the top level of
// a permission tree.
const AdminSentinel = "admin:has_all_permissions"

// Merge deep-merges override onto base and returns a new tree; neither input
// is modified. Nested maps merge key by key, any other override value
// replaces the base value.
func Merge(base, override core.PermissionTree) core.PermissionTree {
	out := deepCopy(base)
	for key, ov := range override {
		ovMap, ovIsMap := toMap(ov)
		baseMap, baseIsMap := toMap(out[key])
		if ovIsMap && baseIsMap {
			out[key] = map[string]any(Merge(baseMap, ovMap))
			continue
		}
		if ovIsMap {
			out[key] = map[string]any(deepCopy(ovMap))
			continue
		}
		out[key] = ov
	}
	return out
}

func deepCopy(tree core.PermissionTree) core.PermissionTree {
	out := make(core.PermissionTree, len(tree))
	for key, val := range tree {
		if m, ok := toMap(val); ok {
			out[key] = map[string]any(deepCopy(m))
		} else {
			out[key] = val
		}
	}
	return out
}

func toMap(v any) (core.PermissionTree, bool) {
	switch m := v.(type) {
	case map[string]any:
		return core.PermissionTree(m), true
	case core.PermissionTree:
		return m, true
	}
	return nil, false
}

// Has evaluates a permission name against a tree. Page permissions
// ("page:dashboard") and names without a separator are flat top-level keys;
// every other name ("control:planning") is section then action in a nested
// map. Anything missing is denied.
func Has(perms core.PermissionTree, name string) bool {
	if v, ok := perms[AdminSentinel].(bool); ok && v {
		return true
	}

	section, action, found := strings.Cut(name, ":")
	if !found || section == "page" {
		v, ok := perms[name].(bool)
		return ok && v
	}

	nested, ok := toMap(perms[section])
	if !ok {
		return false
	}
	v, ok := nested[action].(bool)
	return ok && v
}

// Effective computes a user's permission tree: the role's permissions with
// the user's custom overrides merged on top.
func Effective(rolePerms, custom core.PermissionTree) core.PermissionTree {
	if len(custom) == 0 {
		return deepCopy(rolePerms)
	}
	return Merge(rolePerms, custom)
}
