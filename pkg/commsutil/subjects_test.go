package commsutil

import "testing"

func TestBuildChangeSubject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		entity string
		action string
		want   string
	}{
		{"default prefix", "", "dummy", "created", "components.changed.dummy.created"},
		{"custom prefix", "svc.events", "dummy", "deleted", "svc.events.dummy.deleted"},
		{"dotted entity", "", "dummy.v2", "updated", "components.changed.dummy_v2.updated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildChangeSubject(tt.prefix, tt.entity, tt.action)
			if got != tt.want {
				t.Errorf("commsutil:subjects_test - BuildChangeSubject(%q, %q, %q) = %q, want %q", tt.prefix, tt.entity, tt.action, got, tt.want)
			}
		})
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dummy-service", "dummy-service"},
		{"svc:grpc:main", "svc_grpc_main"},
		{"a b/c", "a_b/c"},
		{".leading.", "leading"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := SanitizeKey(tt.in); got != tt.want {
			t.Errorf("commsutil:subjects_test - SanitizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
