package eligibility

import (
	"time"

	"healthcert/internal/domain"
)

// boosterSettlingPeriod is the mandatory wait after a booster that arrived
// outside the grace window. Fixed by policy, not configurable.
const boosterSettlingPeriod = 10 * 24 * time.Hour

// BoosterPolicy holds the externally configured booster timing windows.
type BoosterPolicy struct {
	// MinimumPeriod is the hard floor between the last primary-course dose and
	// a booster. Earlier boosters are invalid outright.
	MinimumPeriod time.Duration
	// GracePeriod is the window after the last primary-course dose within
	// which a booster counts immediately.
	GracePeriod time.Duration
}

// WithinWindow reports whether the most recent booster dose falls in a valid
// temporal window relative to the primary course. Three-tier policy:
//
//  1. booster before lastPrimary+MinimumPeriod: invalid (hard floor)
//  2. booster within lastPrimary+GracePeriod: valid
//  3. late booster: valid only once the settling period has elapsed
func (p BoosterPolicy) WithinWindow(results []domain.Result, now time.Time) bool {
	var booster, primary *domain.Vaccine
	for _, r := range results {
		v, ok := r.(*domain.Vaccine)
		if !ok {
			continue
		}
		if v.IsBooster {
			if booster == nil || v.Occurrence.After(booster.Occurrence) {
				booster = v
			}
		} else {
			if primary == nil || v.Occurrence.After(primary.Occurrence) {
				primary = v
			}
		}
	}
	if booster == nil || primary == nil {
		return false
	}

	if booster.Occurrence.Before(primary.Occurrence.Add(p.MinimumPeriod)) {
		return false
	}
	if primary.Occurrence.Add(p.GracePeriod).After(booster.Occurrence) {
		return true
	}
	if booster.Occurrence.Add(boosterSettlingPeriod).Before(now) {
		return true
	}
	// late booster, settling period still in progress
	return false
}
