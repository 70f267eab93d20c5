package campaign

import (
	"affbot/internal/configapi"
	"affbot/internal/platform"
)

// ResolveAudience returns the members of group eligible for a campaign:
// anyone holding at least one role whose ID matches an enabled rule.
// Roster order is preserved. An empty or fully disabled rule list yields an
// empty audience (fail closed), never "match everyone".
func ResolveAudience(group platform.Group, rules []configapi.RoleRule) []platform.Member {
	enabled := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled[r.RoleID] = struct{}{}
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	var out []platform.Member
	for _, m := range group.Members {
		for _, role := range m.Roles {
			if _, ok := enabled[role.ID]; ok {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// FirstEnabledRoleName names the role a run was targeted at for reporting.
func FirstEnabledRoleName(rules []configapi.RoleRule) string {
	for _, r := range rules {
		if r.Enabled {
			return r.RoleName
		}
	}
	return "Unknown"
}
