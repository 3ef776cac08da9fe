package escalation

import (
	"testing"
	"time"

	"github.com/example/compliance/internal/core/compliance"
)

var (
	day0      = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	compliant = compliance.Verdict{Compliant: true, Score: 95, Threshold: 80}
	failing   = compliance.Verdict{
		Reasons:   []compliance.FailureReason{compliance.ReasonScoreBelowThreshold},
		Score:     40,
		Threshold: 80,
	}
)

func at(days int) time.Time {
	return day0.Add(time.Duration(days) * day)
}

func nonCompliantSince(anchor time.Time, level Level, entered time.Time) Record {
	return Record{
		EnrollmentID:        "ENR-001",
		Level:               level,
		LevelEnteredAt:      entered,
		FirstNonCompliantAt: timePtr(anchor),
		Version:             1,
	}
}

func TestAdvance_SingleStep(t *testing.T) {
	tests := []struct {
		name       string
		rec        Record
		verdict    compliance.Verdict
		now        time.Time
		wantLevel  Level
		wantEvents int
	}{
		{
			name:      "first evaluation compliant is a no-op",
			rec:       NewRecord("ENR-001", day0),
			verdict:   compliant,
			now:       day0,
			wantLevel: LevelCompliant,
		},
		{
			name:       "first evaluation non-compliant starts episode",
			rec:        NewRecord("ENR-001", day0),
			verdict:    failing,
			now:        day0,
			wantLevel:  LevelNonCompliant,
			wantEvents: 1,
		},
		{
			name:      "six days non-compliant stays NonCompliant",
			rec:       nonCompliantSince(day0, LevelNonCompliant, day0),
			verdict:   failing,
			now:       at(6),
			wantLevel: LevelNonCompliant,
		},
		{
			name:       "seven days escalates to L1",
			rec:        nonCompliantSince(day0, LevelNonCompliant, day0),
			verdict:    failing,
			now:        at(7),
			wantLevel:  LevelEscalatedL1,
			wantEvents: 1,
		},
		{
			name:       "fourteen days from L1 escalates to L2",
			rec:        nonCompliantSince(day0, LevelEscalatedL1, at(7)),
			verdict:    failing,
			now:        at(14),
			wantLevel:  LevelEscalatedL2,
			wantEvents: 1,
		},
		{
			name:      "L3 stays L3",
			rec:       nonCompliantSince(day0, LevelEscalatedL3, at(21)),
			verdict:   failing,
			now:       at(40),
			wantLevel: LevelEscalatedL3,
		},
		{
			name:      "resolved record ignores compliant verdicts",
			rec:       Record{EnrollmentID: "ENR-001", Level: LevelResolvedManually, LevelEnteredAt: day0, FirstNonCompliantAt: timePtr(day0), ResolutionNote: "waived", ResolvedBy: "admin-1", ResolvedAt: timePtr(day0), Version: 3},
			verdict:   compliant,
			now:       at(30),
			wantLevel: LevelResolvedManually,
		},
		{
			name:      "first compliant observation keeps level",
			rec:       nonCompliantSince(day0, LevelEscalatedL2, at(14)),
			verdict:   compliant,
			now:       at(15),
			wantLevel: LevelEscalatedL2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, events := Advance(tt.rec, tt.verdict, tt.now, DefaultPolicy())
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", got.Level, tt.wantLevel)
			}
			if len(events) != tt.wantEvents {
				t.Errorf("len(events) = %d, want %d", len(events), tt.wantEvents)
			}
			if err := got.CheckInvariants(); err != nil {
				t.Errorf("invariant violated: %v", err)
			}
			if got.Version != tt.rec.Version {
				t.Errorf("Version = %d, want unchanged %d", got.Version, tt.rec.Version)
			}
		})
	}
}

func TestAdvance_Idempotent(t *testing.T) {
	starts := []Record{
		NewRecord("ENR-001", day0),
		nonCompliantSince(day0, LevelNonCompliant, day0),
		nonCompliantSince(day0, LevelEscalatedL1, at(7)),
	}
	for _, rec := range starts {
		for _, v := range []compliance.Verdict{compliant, failing} {
			for _, now := range []time.Time{at(3), at(9), at(22)} {
				first, _ := Advance(rec, v, now, DefaultPolicy())
				second, events := Advance(first, v, now, DefaultPolicy())
				if len(events) != 0 {
					t.Errorf("from %v verdict=%v now=%v: second call emitted %d events", rec.Level, v.Compliant, now, len(events))
				}
				if !second.Equal(first) {
					t.Errorf("from %v verdict=%v now=%v: second call changed record", rec.Level, v.Compliant, now)
				}
			}
		}
	}
}

func TestAdvance_CatchUpJumpsDirectlyToL3(t *testing.T) {
	now := at(22)
	rec := nonCompliantSince(now.Add(-22*day), LevelNonCompliant, now.Add(-22*day))

	got, events := Advance(rec, failing, now, DefaultPolicy())

	if got.Level != LevelEscalatedL3 {
		t.Fatalf("Level = %v, want %v", got.Level, LevelEscalatedL3)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].From != LevelNonCompliant || events[0].To != LevelEscalatedL3 {
		t.Errorf("event = %v -> %v, want NonCompliant -> EscalatedL3", events[0].From, events[0].To)
	}
	if events[0].NotifyRole != RoleExecutive {
		t.Errorf("NotifyRole = %q, want %q", events[0].NotifyRole, RoleExecutive)
	}
}

func TestAdvance_MonotonicWithinEpisode(t *testing.T) {
	rec := NewRecord("ENR-001", day0)
	prev := rec.Level

	// Mix non-compliant days with short compliant streaks that never reach
	// the de-escalation window.
	for d := 0; d <= 30; d++ {
		v := failing
		if d%5 == 1 || d%5 == 2 {
			v = compliant
		}
		var events []Event
		rec, events = Advance(rec, v, at(d), DefaultPolicy())
		if rec.Level.rank() < prev.rank() {
			t.Fatalf("day %d: level decreased %v -> %v", d, prev, rec.Level)
		}
		for _, ev := range events {
			if ev.To.rank() <= ev.From.rank() {
				t.Errorf("day %d: non-increasing event %v -> %v", d, ev.From, ev.To)
			}
		}
		prev = rec.Level
	}
	if rec.Level != LevelEscalatedL3 {
		t.Errorf("final level = %v, want %v", rec.Level, LevelEscalatedL3)
	}
}

func TestAdvance_StreakBreakPreventsDeescalation(t *testing.T) {
	rec, _ := Advance(NewRecord("ENR-001", day0), failing, day0, DefaultPolicy())

	// Compliant on days 1-4, broken on day 5, compliant again from day 6.
	for d := 1; d <= 12; d++ {
		v := compliant
		if d == 5 {
			v = failing
		}
		var events []Event
		rec, events = Advance(rec, v, at(d), DefaultPolicy())
		for _, ev := range events {
			if ev.To == LevelCompliant {
				t.Fatalf("day %d: de-escalated after broken streak", d)
			}
		}
	}
	if rec.Level != LevelNonCompliant {
		t.Fatalf("Level = %v, want %v", rec.Level, LevelNonCompliant)
	}
	if rec.ConsecutiveCompliantSince == nil || !rec.ConsecutiveCompliantSince.Equal(at(6)) {
		t.Errorf("ConsecutiveCompliantSince = %v, want %v", rec.ConsecutiveCompliantSince, at(6))
	}

	// Day 13 completes seven uninterrupted days from day 6.
	rec, events := Advance(rec, compliant, at(13), DefaultPolicy())
	if rec.Level != LevelCompliant {
		t.Fatalf("Level = %v, want %v", rec.Level, LevelCompliant)
	}
	if len(events) != 1 || events[0].Reason != "sustained compliance ≥7d" {
		t.Errorf("events = %+v, want one sustained compliance event", events)
	}
	if rec.FirstNonCompliantAt != nil || rec.ConsecutiveCompliantSince != nil {
		t.Error("de-escalation should clear episode anchors")
	}
}

func TestAdvance_DeescalatesFromEscalatedLevel(t *testing.T) {
	rec := nonCompliantSince(day0, LevelEscalatedL3, at(21))

	rec, _ = Advance(rec, compliant, at(25), DefaultPolicy())
	rec, events := Advance(rec, compliant, at(32), DefaultPolicy())

	if rec.Level != LevelCompliant {
		t.Fatalf("Level = %v, want %v", rec.Level, LevelCompliant)
	}
	if len(events) != 1 || events[0].From != LevelEscalatedL3 {
		t.Errorf("events = %+v, want single event from EscalatedL3", events)
	}
}

func TestAdvance_EpisodeScenario(t *testing.T) {
	p := DefaultPolicy()
	rec := NewRecord("ENR-042", day0)

	steps := []struct {
		day  int
		want Level
	}{
		{0, LevelNonCompliant},
		{7, LevelEscalatedL1},
		{14, LevelEscalatedL2},
		{21, LevelEscalatedL3},
	}
	for _, s := range steps {
		var events []Event
		rec, events = Advance(rec, failing, at(s.day), p)
		if rec.Level != s.want {
			t.Fatalf("day %d: Level = %v, want %v", s.day, rec.Level, s.want)
		}
		if len(events) != 1 {
			t.Fatalf("day %d: len(events) = %d, want 1", s.day, len(events))
		}
		rec.Version++
	}
	if !rec.FirstNonCompliantAt.Equal(day0) {
		t.Errorf("FirstNonCompliantAt = %v, want %v", rec.FirstNonCompliantAt, day0)
	}

	rec, ev, err := Resolve(rec, "waived", "admin-7", at(22))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Level != LevelResolvedManually || ev.TriggeredBy != TriggerAdmin {
		t.Fatalf("after resolve: level=%v trigger=%v", rec.Level, ev.TriggeredBy)
	}
	if !rec.FirstNonCompliantAt.Equal(day0) {
		t.Error("Resolve must not modify FirstNonCompliantAt")
	}
	rec.Version++

	rec, events := Advance(rec, failing, at(30), p)
	if rec.Level != LevelNonCompliant {
		t.Fatalf("day 30: Level = %v, want %v", rec.Level, LevelNonCompliant)
	}
	if !rec.FirstNonCompliantAt.Equal(at(30)) {
		t.Errorf("day 30: FirstNonCompliantAt = %v, want %v", rec.FirstNonCompliantAt, at(30))
	}
	if rec.ResolutionNote != "" || rec.ResolvedAt != nil {
		t.Error("new episode should clear resolution fields")
	}
	if len(events) != 1 || events[0].From != LevelResolvedManually {
		t.Errorf("events = %+v, want one event from ResolvedManually", events)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"non-compliant resolves", nonCompliantSince(day0, LevelNonCompliant, day0), false},
		{"escalated resolves", nonCompliantSince(day0, LevelEscalatedL2, at(14)), false},
		{"compliant is rejected", Record{EnrollmentID: "ENR-001", Level: LevelCompliant, LevelEnteredAt: day0, Version: 2}, true},
		{"already resolved is rejected", Record{EnrollmentID: "ENR-001", Level: LevelResolvedManually, LevelEnteredAt: day0, Version: 2}, true},
		{"never evaluated is rejected", NewRecord("ENR-001", day0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ev, err := Resolve(tt.rec, "waived", "admin-1", at(15))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if ev != (Event{}) {
					t.Errorf("rejected resolve produced event %+v", ev)
				}
				if !got.Equal(tt.rec) {
					t.Error("rejected resolve changed record")
				}
				return
			}
			if got.ResolvedBy != "admin-1" || got.ResolutionNote != "waived" {
				t.Errorf("resolution fields = %q/%q", got.ResolvedBy, got.ResolutionNote)
			}
			if ev.From != tt.rec.Level || ev.To != LevelResolvedManually {
				t.Errorf("event = %v -> %v", ev.From, ev.To)
			}
		})
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"zero l1", Policy{L1Days: 0, L2Days: 14, L3Days: 21, DeescalationDays: 7}, true},
		{"l2 not above l1", Policy{L1Days: 7, L2Days: 7, L3Days: 21, DeescalationDays: 7}, true},
		{"l3 below l2", Policy{L1Days: 7, L2Days: 14, L3Days: 10, DeescalationDays: 7}, true},
		{"zero window", Policy{L1Days: 7, L2Days: 14, L3Days: 21}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
