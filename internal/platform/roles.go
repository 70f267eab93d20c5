package platform

// AddedRoles returns the roles present in after but not in before, compared
// by ID, preserving after's order. Used to turn a raw membership update into
// one audit event per newly gained role.
func AddedRoles(before, after []Role) []Role {
	if len(after) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(before))
	for _, r := range before {
		seen[r.ID] = struct{}{}
	}
	var added []Role
	for _, r := range after {
		if _, ok := seen[r.ID]; !ok {
			added = append(added, r)
		}
	}
	return added
}
