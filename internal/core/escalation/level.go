// Package escalation contains the pure state machine for compliance escalation.
// This is part of the Functional Core - no I/O, only pure functions over
// records, verdicts and an injected "now".
package escalation

import "fmt"

// Level is the escalation state of an enrollment. The set is closed: every
// switch over Level in this package covers all six values.
type Level uint8

const (
	LevelCompliant Level = iota
	LevelNonCompliant
	LevelEscalatedL1
	LevelEscalatedL2
	LevelEscalatedL3
	LevelResolvedManually
)

// AllLevels lists every level in rank order, ResolvedManually last.
var AllLevels = []Level{
	LevelCompliant,
	LevelNonCompliant,
	LevelEscalatedL1,
	LevelEscalatedL2,
	LevelEscalatedL3,
	LevelResolvedManually,
}

// String returns the persisted name of the level.
func (l Level) String() string {
	switch l {
	case LevelCompliant:
		return "compliant"
	case LevelNonCompliant:
		return "non_compliant"
	case LevelEscalatedL1:
		return "escalated_l1"
	case LevelEscalatedL2:
		return "escalated_l2"
	case LevelEscalatedL3:
		return "escalated_l3"
	case LevelResolvedManually:
		return "resolved_manually"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel converts a persisted level name back to a Level.
func ParseLevel(s string) (Level, error) {
	for _, l := range AllLevels {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown escalation level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// IsEscalated reports whether the level is one of EscalatedL1..L3.
func (l Level) IsEscalated() bool {
	switch l {
	case LevelEscalatedL1, LevelEscalatedL2, LevelEscalatedL3:
		return true
	case LevelCompliant, LevelNonCompliant, LevelResolvedManually:
		return false
	}
	return false
}

// InEpisode reports whether the level belongs to an open non-compliance episode.
func (l Level) InEpisode() bool {
	return l == LevelNonCompliant || l.IsEscalated()
}

// Tier returns the escalation tier 1..3, or 0 for non-escalated levels.
func (l Level) Tier() int {
	switch l {
	case LevelEscalatedL1:
		return 1
	case LevelEscalatedL2:
		return 2
	case LevelEscalatedL3:
		return 3
	case LevelCompliant, LevelNonCompliant, LevelResolvedManually:
		return 0
	}
	return 0
}

// rank orders the episode levels for monotonicity checks.
func (l Level) rank() int {
	switch l {
	case LevelCompliant:
		return 0
	case LevelNonCompliant:
		return 1
	case LevelEscalatedL1:
		return 2
	case LevelEscalatedL2:
		return 3
	case LevelEscalatedL3:
		return 4
	case LevelResolvedManually:
		return -1
	}
	return -1
}

// Role names who is responsible for remediation at a level.
type Role string

const (
	RoleNone           Role = ""
	RoleLearner        Role = "learner"
	RoleManager        Role = "manager"
	RoleDepartmentHead Role = "department_head"
	RoleExecutive      Role = "executive"
)

// Responsible returns the role that owns remediation at this level.
func (l Level) Responsible() Role {
	switch l {
	case LevelNonCompliant:
		return RoleLearner
	case LevelEscalatedL1:
		return RoleManager
	case LevelEscalatedL2:
		return RoleDepartmentHead
	case LevelEscalatedL3:
		return RoleExecutive
	case LevelCompliant, LevelResolvedManually:
		return RoleNone
	}
	return RoleNone
}
