package platform

import "testing"

func TestAddedRoles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		before []Role
		after  []Role
		want   []string
	}{
		{
			name:   "two gained roles",
			before: []Role{{ID: "a", Name: "Member"}},
			after:  []Role{{ID: "a", Name: "Member"}, {ID: "b", Name: "VIP"}, {ID: "c", Name: "Mod"}},
			want:   []string{"b", "c"},
		},
		{
			name:   "no change",
			before: []Role{{ID: "a"}},
			after:  []Role{{ID: "a"}},
			want:   nil,
		},
		{
			name:   "role removed only",
			before: []Role{{ID: "a"}, {ID: "b"}},
			after:  []Role{{ID: "a"}},
			want:   nil,
		},
		{
			name:   "empty before",
			before: nil,
			after:  []Role{{ID: "x"}},
			want:   []string{"x"},
		},
		{
			name:   "empty after",
			before: []Role{{ID: "x"}},
			after:  nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := AddedRoles(tt.before, tt.after)
			if len(got) != len(tt.want) {
				t.Fatalf("AddedRoles = %v, want ids %v", got, tt.want)
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Fatalf("AddedRoles[%d].ID = %s, want %s", i, r.ID, tt.want[i])
				}
			}
		})
	}
}
