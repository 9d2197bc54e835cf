package eligibility

import "healthcert/internal/domain"

// ChildDoseSnomedCode identifies the pediatric vaccine formulation. Child
// doses are excluded from primary-course baselines.
const ChildDoseSnomedCode = "39330711000001103"

// Classify filters a result set for the given scenario. Domestic and Isolation
// certificates require a primary-course baseline, so pediatric doses and
// booster doses are removed before condition matching; other scenarios see the
// full set. Self-administered unsupervised tests never count in any scenario.
// Pure function over an immutable input sequence.
func Classify(results []domain.Result, scenario domain.Scenario) []domain.Result {
	baseline := scenario == domain.ScenarioDomestic || scenario == domain.ScenarioIsolation

	out := make([]domain.Result, 0, len(results))
	for _, r := range results {
		switch v := r.(type) {
		case *domain.Vaccine:
			if baseline && (v.IsBooster || v.SnomedCode == ChildDoseSnomedCode) {
				continue
			}
		case *domain.DiagnosticTest:
			if v.IsSelfAdministered() {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// RemoveBoosters strips booster-flagged doses from a result set. Dual of the
// booster window check: scenarios whose baseline must exclude boosters use it
// before matching.
func RemoveBoosters(results []domain.Result) []domain.Result {
	out := make([]domain.Result, 0, len(results))
	for _, r := range results {
		if v, ok := r.(*domain.Vaccine); ok && v.IsBooster {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DiagnosticTests extracts the diagnostic-test variant from a mixed result set.
func DiagnosticTests(results []domain.Result) []*domain.DiagnosticTest {
	out := make([]*domain.DiagnosticTest, 0, len(results))
	for _, r := range results {
		if t, ok := r.(*domain.DiagnosticTest); ok {
			out = append(out, t)
		}
	}
	return out
}
