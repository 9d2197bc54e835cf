package eligibility

import (
	"sort"
	"strings"
	"time"

	"healthcert/internal/domain"
)

// conditionMatch is the outcome of evaluating one condition against a result
// set. results holds the surviving matches sorted most-recent-first.
type conditionMatch struct {
	results     []domain.Result
	expiry      time.Time
	eligibility time.Time
	satisfied   bool
}

// matchCondition evaluates a single condition. all is the unfiltered input set,
// consulted for invalidating follow-up results; results is the scenario-
// classified set the condition matches against. effective is the evaluation
// time.
func matchCondition(cond *domain.EligibilityCondition, results []domain.Result, all []domain.Result, effective time.Time) conditionMatch {
	// 1. variant filter
	typed := make([]domain.Result, 0, len(results))
	for _, r := range results {
		if r.ProductType() == cond.ProductType {
			typed = append(typed, r)
		}
	}

	// 2. allowed-country filter
	typed = filterByCountry(cond, typed)

	// 3. product selection
	candidates := selectProduct(cond, typed)

	// 4. result value + dual time window, newest first
	upper := effective.Add(-hoursDur(cond.ResultValidAfterHours))
	lower := upper.Add(-hoursDur(cond.EligibilityPeriodHours))
	filtered := candidates[:0:0]
	for _, r := range candidates {
		if cond.Result != "" && !strings.EqualFold(r.ResultValue(), cond.Result) {
			continue
		}
		t := r.DateTime()
		if t.Before(lower) || t.After(upper) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].DateTime().After(filtered[j].DateTime())
	})

	// 5. pairwise gap constraint for multi-dose conditions
	if cond.MinCount > 1 && (cond.MinimumHoursBetweenResults != nil || cond.MaximumHoursBetweenResults != nil) {
		filtered = filterByGaps(cond, filtered)
	}

	// 6. invalidating follow-up results
	filtered = applyNotFollowedBy(cond, filtered, all)

	if len(filtered) < cond.MinCount {
		return conditionMatch{results: filtered}
	}

	mostRecent := filtered[0].DateTime()
	earliest := filtered[len(filtered)-1].DateTime()

	expiry := earliest.Add(hoursDur(cond.ResultValidAfterHours + cond.EligibilityPeriodHours))
	eligibility := expiry
	if cond.MostRecentResultMaxHoursAgo != nil {
		maxAge := hoursDur(*cond.MostRecentResultMaxHoursAgo)
		if mostRecent.Before(effective.Add(-maxAge)) {
			return conditionMatch{results: filtered}
		}
		if cutoff := mostRecent.Add(maxAge); cutoff.Before(expiry) {
			expiry = cutoff
			eligibility = cutoff
		}
	}

	return conditionMatch{
		results:     filtered,
		expiry:      expiry,
		eligibility: eligibility,
		satisfied:   true,
	}
}

// filterByCountry applies the allowed-country map. An empty map allows every
// result. Otherwise the result's key (SNOMED code for vaccines, validity-type
// label for tests) must be present, and the keyed allow-list must either be
// empty (any country) or contain the result's country code.
func filterByCountry(cond *domain.EligibilityCondition, results []domain.Result) []domain.Result {
	if len(cond.AllowedCountries) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		key := r.ValidityType()
		if v, ok := r.(*domain.Vaccine); ok && v.SnomedCode != "" {
			key = v.SnomedCode
		}
		allowed, ok := cond.AllowedCountries[key]
		if !ok {
			continue
		}
		if len(allowed) == 0 {
			out = append(out, r)
			continue
		}
		for _, c := range allowed {
			if strings.EqualFold(c, r.Country()) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// selectProduct picks results "of the given product" via whichever selector the
// condition carries: a SNOMED code set, a named product, or the ordered
// vaccine-combination rule.
func selectProduct(cond *domain.EligibilityCondition, typed []domain.Result) []domain.Result {
	switch {
	case len(cond.SnomedCodes) > 0:
		out := typed[:0:0]
		for _, r := range typed {
			v, ok := r.(*domain.Vaccine)
			if !ok {
				continue
			}
			for _, code := range cond.SnomedCodes {
				if code == v.SnomedCode {
					out = append(out, r)
					break
				}
			}
		}
		return out

	case cond.Product != "":
		out := typed[:0:0]
		for _, r := range typed {
			if strings.EqualFold(r.ValidityType(), cond.Product) {
				out = append(out, r)
			}
		}
		return out

	case len(cond.VaccineCombinations) > 0:
		if matchesCombination(cond.VaccineCombinations, typed) {
			// a positional match qualifies the whole type-filtered set, not
			// just the matched window
			return typed
		}
		return nil
	}
	return nil
}

// matchesCombination slides every configured combination over the results in
// administration order, looking for an exact positional validity-type match.
func matchesCombination(combinations [][]string, typed []domain.Result) bool {
	ordered := make([]domain.Result, len(typed))
	copy(ordered, typed)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DateTime().Before(ordered[j].DateTime())
	})

	for _, combo := range combinations {
		if len(combo) == 0 || len(combo) > len(ordered) {
			continue
		}
		for offset := 0; offset+len(combo) <= len(ordered); offset++ {
			match := true
			for i, want := range combo {
				if !strings.EqualFold(ordered[offset+i].ValidityType(), want) {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}

// filterByGaps keeps results that participate in at least one consecutive pair
// whose gap satisfies both bounds. Pairs are checked in descending order and
// are not transitively chained.
func filterByGaps(cond *domain.EligibilityCondition, sorted []domain.Result) []domain.Result {
	if len(sorted) < 2 {
		return nil
	}
	keep := make([]bool, len(sorted))
	for i := 0; i+1 < len(sorted); i++ {
		gap := sorted[i].DateTime().Sub(sorted[i+1].DateTime())
		if cond.MinimumHoursBetweenResults != nil && gap < hoursDur(*cond.MinimumHoursBetweenResults) {
			continue
		}
		if cond.MaximumHoursBetweenResults != nil && gap > hoursDur(*cond.MaximumHoursBetweenResults) {
			continue
		}
		keep[i] = true
		keep[i+1] = true
	}
	out := sorted[:0:0]
	for i, r := range sorted {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

// applyNotFollowedBy drops candidates at or before the latest invalidating
// result. Invalidating results are searched in the full input set so a later
// positive test can void earlier vaccinations.
func applyNotFollowedBy(cond *domain.EligibilityCondition, sorted []domain.Result, all []domain.Result) []domain.Result {
	if len(cond.NotFollowedBy) == 0 || len(sorted) == 0 {
		return sorted
	}
	earliest := sorted[len(sorted)-1].DateTime()

	var latestInvalidating time.Time
	for _, r := range all {
		if !r.DateTime().After(earliest) {
			continue
		}
		for _, inv := range cond.NotFollowedBy {
			if strings.EqualFold(r.ValidityType(), inv.ValidityType) && strings.EqualFold(r.ResultValue(), inv.Result) {
				if r.DateTime().After(latestInvalidating) {
					latestInvalidating = r.DateTime()
				}
				break
			}
		}
	}
	if latestInvalidating.IsZero() {
		return sorted
	}
	out := sorted[:0:0]
	for _, r := range sorted {
		if r.DateTime().After(latestInvalidating) {
			out = append(out, r)
		}
	}
	return out
}

func hoursDur(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
