package escalation

import "testing"

func TestParseLevel(t *testing.T) {
	for _, l := range AllLevels {
		got, err := ParseLevel(l.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("ParseLevel(%q) = %v, want %v", l.String(), got, l)
		}
	}

	if _, err := ParseLevel("escalated_l4"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevel_Responsible(t *testing.T) {
	tests := []struct {
		level Level
		want  Role
		tier  int
	}{
		{LevelCompliant, RoleNone, 0},
		{LevelNonCompliant, RoleLearner, 0},
		{LevelEscalatedL1, RoleManager, 1},
		{LevelEscalatedL2, RoleDepartmentHead, 2},
		{LevelEscalatedL3, RoleExecutive, 3},
		{LevelResolvedManually, RoleNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.Responsible(); got != tt.want {
				t.Errorf("Responsible() = %q, want %q", got, tt.want)
			}
			if got := tt.level.Tier(); got != tt.tier {
				t.Errorf("Tier() = %d, want %d", got, tt.tier)
			}
		})
	}
}

func TestCanResolve(t *testing.T) {
	tests := []struct {
		name        string
		ctx         ResolveContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "escalated with note",
			ctx:         ResolveContext{EnrollmentID: "ENR-1", RecordExists: true, Level: LevelEscalatedL1, Note: "waived", ResolvedBy: "admin"},
			wantAllowed: true,
		},
		{
			name:       "missing record",
			ctx:        ResolveContext{EnrollmentID: "ENR-1", Note: "waived", ResolvedBy: "admin"},
			wantReason: "enrollment ENR-1 has never been evaluated; nothing to resolve",
		},
		{
			name:       "compliant",
			ctx:        ResolveContext{EnrollmentID: "ENR-1", RecordExists: true, Level: LevelCompliant, Note: "waived", ResolvedBy: "admin"},
			wantReason: "enrollment ENR-1 is compliant; nothing to resolve",
		},
		{
			name:       "already resolved",
			ctx:        ResolveContext{EnrollmentID: "ENR-1", RecordExists: true, Level: LevelResolvedManually, Note: "waived", ResolvedBy: "admin"},
			wantReason: "enrollment ENR-1 is already resolved",
		},
		{
			name:       "empty note",
			ctx:        ResolveContext{EnrollmentID: "ENR-1", RecordExists: true, Level: LevelNonCompliant, ResolvedBy: "admin"},
			wantReason: "resolution note is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanResolve(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}
