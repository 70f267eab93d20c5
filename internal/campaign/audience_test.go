package campaign

import (
	"testing"

	"affbot/internal/configapi"
	"affbot/internal/platform"
)

func member(id string, roleIDs ...string) platform.Member {
	m := platform.Member{ID: id, DisplayName: "user-" + id}
	for _, rid := range roleIDs {
		m.Roles = append(m.Roles, platform.Role{ID: rid})
	}
	return m
}

func TestResolveAudience(t *testing.T) {
	t.Parallel()
	group := platform.Group{
		ID:   "g1",
		Name: "Acme",
		Members: []platform.Member{
			member("1", "vip"),
			member("2"),
			member("3", "vip", "mod"),
			member("4", "mod"),
		},
	}

	tests := []struct {
		name  string
		rules []configapi.RoleRule
		want  []string
	}{
		{name: "empty rules fail closed", rules: nil, want: nil},
		{
			name:  "all disabled fail closed",
			rules: []configapi.RoleRule{{RoleID: "vip", Enabled: false}, {RoleID: "mod", Enabled: false}},
			want:  nil,
		},
		{
			name:  "single enabled rule",
			rules: []configapi.RoleRule{{RoleID: "vip", Enabled: true}},
			want:  []string{"1", "3"},
		},
		{
			name: "member with two matching roles appears once",
			rules: []configapi.RoleRule{
				{RoleID: "vip", Enabled: true},
				{RoleID: "mod", Enabled: true},
			},
			want: []string{"1", "3", "4"},
		},
		{
			name: "disabled rule ignored",
			rules: []configapi.RoleRule{
				{RoleID: "vip", Enabled: false},
				{RoleID: "mod", Enabled: true},
			},
			want: []string{"3", "4"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAudience(group, tt.rules)
			if len(got) != len(tt.want) {
				t.Fatalf("audience size = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i, m := range got {
				if m.ID != tt.want[i] {
					t.Fatalf("audience[%d] = %s, want %s (roster order)", i, m.ID, tt.want[i])
				}
			}
		})
	}
}

func TestFirstEnabledRoleName(t *testing.T) {
	t.Parallel()
	rules := []configapi.RoleRule{
		{RoleID: "a", RoleName: "Alpha", Enabled: false},
		{RoleID: "b", RoleName: "Beta", Enabled: true},
	}
	if got := FirstEnabledRoleName(rules); got != "Beta" {
		t.Fatalf("FirstEnabledRoleName = %q, want Beta", got)
	}
	if got := FirstEnabledRoleName(nil); got != "Unknown" {
		t.Fatalf("FirstEnabledRoleName(nil) = %q, want Unknown", got)
	}
}
