package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/compliance/internal/core/compliance"
)

const day = 24 * time.Hour

// Policy holds the time thresholds of the state machine, in whole days.
type Policy struct {
	L1Days           int
	L2Days           int
	L3Days           int
	DeescalationDays int
}

// DefaultPolicy returns the 7/14/21 day escalation chain with a 7 day
// de-escalation window.
func DefaultPolicy() Policy {
	return Policy{L1Days: 7, L2Days: 14, L3Days: 21, DeescalationDays: 7}
}

// Validate reports an error unless escalation days are positive and strictly increasing.
func (p Policy) Validate() error {
	if p.L1Days <= 0 {
		return fmt.Errorf("l1 escalation days must be positive, got %d", p.L1Days)
	}
	if p.L2Days <= p.L1Days {
		return fmt.Errorf("l2 escalation days (%d) must exceed l1 (%d)", p.L2Days, p.L1Days)
	}
	if p.L3Days <= p.L2Days {
		return fmt.Errorf("l3 escalation days (%d) must exceed l2 (%d)", p.L3Days, p.L2Days)
	}
	if p.DeescalationDays <= 0 {
		return fmt.Errorf("de-escalation days must be positive, got %d", p.DeescalationDays)
	}
	return nil
}

// TargetLevel returns the highest escalation level whose threshold elapsed meets.
func (p Policy) TargetLevel(elapsed time.Duration) Level {
	switch {
	case elapsed >= time.Duration(p.L3Days)*day:
		return LevelEscalatedL3
	case elapsed >= time.Duration(p.L2Days)*day:
		return LevelEscalatedL2
	case elapsed >= time.Duration(p.L1Days)*day:
		return LevelEscalatedL1
	default:
		return LevelNonCompliant
	}
}

func (p Policy) thresholdDays(l Level) int {
	switch l {
	case LevelEscalatedL1:
		return p.L1Days
	case LevelEscalatedL2:
		return p.L2Days
	case LevelEscalatedL3:
		return p.L3Days
	case LevelCompliant, LevelNonCompliant, LevelResolvedManually:
		return 0
	}
	return 0
}

// Advance applies one verdict observed at now to rec and returns the next
// record plus the events of the transition. At most one event is emitted per
// call; a missed run catches up with a single jump to the computed level.
// Applying the same verdict twice at the same instant emits nothing the
// second time.
func Advance(rec Record, verdict compliance.Verdict, now time.Time, policy Policy) (Record, []Event) {
	next := rec
	next.LastEvaluatedAt = timePtr(now)

	if verdict.Compliant {
		return advanceCompliant(next, now, policy)
	}
	return advanceNonCompliant(next, verdict, now, policy)
}

func advanceCompliant(rec Record, now time.Time, policy Policy) (Record, []Event) {
	switch rec.Level {
	case LevelCompliant, LevelResolvedManually:
		return rec, nil
	case LevelNonCompliant, LevelEscalatedL1, LevelEscalatedL2, LevelEscalatedL3:
	}

	if rec.ConsecutiveCompliantSince == nil {
		rec.ConsecutiveCompliantSince = timePtr(now)
		return rec, nil
	}

	window := time.Duration(policy.DeescalationDays) * day
	if now.Sub(*rec.ConsecutiveCompliantSince) < window {
		return rec, nil
	}

	ev := newEvent(rec, LevelCompliant,
		fmt.Sprintf("sustained compliance ≥%dd", policy.DeescalationDays),
		now, TriggerSystem, "")

	rec.Level = LevelCompliant
	rec.LevelEnteredAt = now
	rec.FirstNonCompliantAt = nil
	rec.ConsecutiveCompliantSince = nil
	clearResolution(&rec)
	return rec, []Event{ev}
}

func advanceNonCompliant(rec Record, verdict compliance.Verdict, now time.Time, policy Policy) (Record, []Event) {
	rec.ConsecutiveCompliantSince = nil

	switch rec.Level {
	case LevelCompliant:
		return startEpisode(rec, verdict, now, "non-compliance detected")
	case LevelResolvedManually:
		return startEpisode(rec, verdict, now, "non-compliance detected after manual resolution")
	case LevelNonCompliant, LevelEscalatedL1, LevelEscalatedL2, LevelEscalatedL3:
	}

	anchor := rec.LevelEnteredAt
	if rec.FirstNonCompliantAt != nil {
		anchor = *rec.FirstNonCompliantAt
	} else {
		rec.FirstNonCompliantAt = timePtr(anchor)
	}

	target := policy.TargetLevel(now.Sub(anchor))
	if target.rank() <= rec.Level.rank() {
		return rec, nil
	}

	ev := newEvent(rec, target,
		fmt.Sprintf("non-compliant ≥%dd", policy.thresholdDays(target)),
		now, TriggerSystem, "")

	rec.Level = target
	rec.LevelEnteredAt = now
	return rec, []Event{ev}
}

func startEpisode(rec Record, verdict compliance.Verdict, now time.Time, reason string) (Record, []Event) {
	if len(verdict.Reasons) > 0 {
		reason = fmt.Sprintf("%s (%s)", reason, joinReasons(verdict.Reasons))
	}
	ev := newEvent(rec, LevelNonCompliant, reason, now, TriggerSystem, "")

	rec.Level = LevelNonCompliant
	rec.LevelEnteredAt = now
	rec.FirstNonCompliantAt = timePtr(now)
	clearResolution(&rec)
	return rec, []Event{ev}
}

// Resolve closes the current episode by admin decision. first_noncompliant_at
// is kept until the next episode starts.
func Resolve(rec Record, note, resolvedBy string, now time.Time) (Record, Event, error) {
	check := CanResolve(ResolveContext{
		EnrollmentID: rec.EnrollmentID,
		RecordExists: !rec.IsNew(),
		Level:        rec.Level,
		Note:         note,
		ResolvedBy:   resolvedBy,
	})
	if err := check.Error(); err != nil {
		return rec, Event{}, err
	}

	ev := newEvent(rec, LevelResolvedManually, "resolved manually: "+note, now, TriggerAdmin, resolvedBy)

	next := rec
	next.Level = LevelResolvedManually
	next.LevelEnteredAt = now
	next.ConsecutiveCompliantSince = nil
	next.ResolutionNote = note
	next.ResolvedBy = resolvedBy
	next.ResolvedAt = timePtr(now)
	return next, ev, nil
}

func clearResolution(rec *Record) {
	rec.ResolutionNote = ""
	rec.ResolvedBy = ""
	rec.ResolvedAt = nil
}

func joinReasons(reasons []compliance.FailureReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
