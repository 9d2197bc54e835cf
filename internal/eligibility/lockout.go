package eligibility

import (
	"sort"
	"strings"
	"time"

	"healthcert/internal/domain"
)

// Lockout error codes by anchoring test kit.
const (
	LockoutCodePCR = 2
	LockoutCodeLFT = 3
)

// LockoutPolicy detects the positive-test lockout pattern independently of the
// rule set. It runs before the rule evaluator; a non-nil result short-circuits
// certificate generation for the scenario.
type LockoutPolicy struct {
	// LockoutPeriodDays is how long a lockout episode blocks issuance.
	LockoutPeriodDays int
	// StackingPeriodDays absorbs follow-up positives into the previous episode.
	StackingPeriodDays int
	// NegationTestPeriodDays is the window in which a later negative NAAT test
	// negates a non-NAAT positive.
	NegationTestPeriodDays int
}

// Check returns the active lockout, or nil when issuance may proceed.
//
// A positive counts toward lockout when it is itself NAAT, or when no negative
// NAAT test exists strictly after it within the negation window. Counted
// positives collapse into non-overlapping episodes: a positive anchors a new
// episode only when it falls more than the stacking period after the previous
// anchor.
func (p LockoutPolicy) Check(tests []*domain.DiagnosticTest, now time.Time) *domain.IneligibilityResult {
	positives := make([]*domain.DiagnosticTest, 0, len(tests))
	for _, t := range tests {
		if t.IsPositive() {
			positives = append(positives, t)
		}
	}
	if len(positives) == 0 {
		return nil
	}
	sort.Slice(positives, func(i, j int) bool {
		return positives[i].Taken.Before(positives[j].Taken)
	})

	stacking := daysToDuration(p.StackingPeriodDays)
	lockout := daysToDuration(p.LockoutPeriodDays)

	var active *domain.DiagnosticTest
	var anchor *domain.DiagnosticTest
	for _, pos := range positives {
		if !p.counts(pos, tests) {
			continue
		}
		if anchor != nil && !pos.Taken.After(anchor.Taken.Add(stacking)) {
			// absorbed into the previous episode
			continue
		}
		anchor = pos
		if now.Before(anchor.Taken.Add(lockout)) {
			active = anchor
		}
	}
	if active == nil {
		return nil
	}

	return &domain.IneligibilityResult{
		ErrorCode:  lockoutCode(active.TestKit),
		RetryAfter: active.Taken.Add(lockout),
	}
}

// counts reports whether a positive result contributes to lockout.
func (p LockoutPolicy) counts(pos *domain.DiagnosticTest, all []*domain.DiagnosticTest) bool {
	if pos.IsNAAT {
		return true
	}
	window := pos.Taken.Add(daysToDuration(p.NegationTestPeriodDays))
	for _, t := range all {
		if t.IsNAAT && !t.IsPositive() && t.Taken.After(pos.Taken) && !t.Taken.After(window) {
			return false
		}
	}
	return true
}

func lockoutCode(testKit string) int {
	switch {
	case strings.EqualFold(testKit, "PCR"):
		return LockoutCodePCR
	case strings.EqualFold(testKit, "LFT"):
		return LockoutCodeLFT
	}
	return 0
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
