// Package compliance contains the pure business logic for compliance evaluation.
// Evaluate maps training facts to a verdict without side effects.
package compliance

import "math"

// DefaultThreshold is the minimum overall score required when no policy
// value is configured.
const DefaultThreshold = 80.0

const (
	minScore = 0.0
	maxScore = 100.0
)

// FailureReason names one failed compliance condition.
type FailureReason string

const (
	ReasonIncompleteModules   FailureReason = "incomplete_modules"
	ReasonFailedQuiz          FailureReason = "failed_quiz"
	ReasonScoreBelowThreshold FailureReason = "score_below_threshold"
)

// Facts is a per-enrollment snapshot produced by the training system.
type Facts struct {
	CompletedAllModules bool    `json:"completed_all_modules"`
	PassedAllQuizzes    bool    `json:"passed_all_quizzes"`
	OverallScore        float64 `json:"overall_score"`
}

// Verdict is the outcome of evaluating Facts against a threshold.
type Verdict struct {
	Compliant bool
	// Reasons lists failed conditions in a fixed order. Empty when compliant.
	Reasons []FailureReason
	// Score is the overall score after clamping to [0,100].
	Score     float64
	Threshold float64
	// ScoreClamped is set when the reported score was outside [0,100] or NaN.
	ScoreClamped bool
}

// Has reports whether the verdict contains the given reason.
func (v Verdict) Has(reason FailureReason) bool {
	for _, r := range v.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Evaluate computes the compliance verdict for facts.
// A non-positive or NaN threshold falls back to DefaultThreshold.
func Evaluate(facts Facts, threshold float64) Verdict {
	if math.IsNaN(threshold) || threshold <= 0 {
		threshold = DefaultThreshold
	}

	score, clamped := clampScore(facts.OverallScore)

	var reasons []FailureReason
	if !facts.CompletedAllModules {
		reasons = append(reasons, ReasonIncompleteModules)
	}
	if !facts.PassedAllQuizzes {
		reasons = append(reasons, ReasonFailedQuiz)
	}
	if score < threshold {
		reasons = append(reasons, ReasonScoreBelowThreshold)
	}

	return Verdict{
		Compliant:    len(reasons) == 0,
		Reasons:      reasons,
		Score:        score,
		Threshold:    threshold,
		ScoreClamped: clamped,
	}
}

// Policy resolves the score threshold for a requirement set.
type Policy struct {
	DefaultThreshold float64
	// Overrides maps requirement-set IDs to their own threshold.
	Overrides map[string]float64
}

// DefaultPolicy returns a policy using DefaultThreshold for every requirement set.
func DefaultPolicy() Policy {
	return Policy{DefaultThreshold: DefaultThreshold}
}

// ThresholdFor returns the override for requirementSetID, falling back to the
// policy default and then DefaultThreshold. Non-positive values count as unset,
// matching Evaluate.
func (p Policy) ThresholdFor(requirementSetID string) float64 {
	if t, ok := p.Overrides[requirementSetID]; ok && t > 0 {
		return t
	}
	if p.DefaultThreshold > 0 {
		return p.DefaultThreshold
	}
	return DefaultThreshold
}

func clampScore(score float64) (float64, bool) {
	switch {
	case math.IsNaN(score):
		return minScore, true
	case score < minScore:
		return minScore, true
	case score > maxScore:
		return maxScore, true
	default:
		return score, false
	}
}
