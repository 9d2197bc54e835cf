package eligibility

import (
	"log/slog"
	"time"

	"healthcert/internal/domain"
	"healthcert/internal/eligibility/metrics"
)

// Evaluator applies a rule configuration to a result set and produces
// candidate certificates. It holds no mutable state; every call receives its
// own immutable snapshot of rules and results and may run concurrently.
type Evaluator struct {
	booster BoosterPolicy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithLogger sets a logger for skipped-rule diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator builds an evaluator with the given booster timing policy.
func NewEvaluator(booster BoosterPolicy, opts ...Option) *Evaluator {
	e := &Evaluator{booster: booster}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateCertificates evaluates every rule independently against the result
// set at the effective time and returns one candidate certificate per
// satisfied rule. Candidates carry provisional expiry/eligibility timestamps
// and empty token lists; identity, UVCI and tokens are attached by the
// certificate builder.
//
// Re-evaluating the same inputs yields identical candidates.
func (e *Evaluator) GenerateCertificates(results []domain.Result, rules []domain.EligibilityRules, effective time.Time) []*domain.Certificate {
	start := time.Now()
	defer func() {
		e.metrics.ObserveEvaluateLatency(time.Since(start))
	}()

	var certificates []*domain.Certificate
	for i := range rules {
		rule := &rules[i]
		if err := rule.Validate(); err != nil {
			// malformed rule is excluded, not fatal to the evaluation
			if e.logger != nil {
				e.logger.Warn("skipping malformed eligibility rule", "rule", rule.Name, "error", err)
			}
			e.metrics.IncRuleOutcome(string(rule.Scenario), "skipped")
			continue
		}

		if rule.Booster && !e.booster.WithinWindow(results, effective) {
			e.metrics.IncRuleOutcome(string(rule.Scenario), "skipped")
			continue
		}

		matchable := results
		if !rule.Booster {
			matchable = Classify(results, rule.Scenario)
		}

		cert, ok := e.evaluateRule(rule, matchable, results, effective)
		if !ok {
			e.metrics.IncRuleOutcome(string(rule.Scenario), "failed")
			continue
		}
		e.metrics.IncRuleOutcome(string(rule.Scenario), "satisfied")
		certificates = append(certificates, cert)
	}
	return certificates
}

// evaluateRule checks every condition of one rule. A condition directed
// Ineligible with a non-empty match vetoes the rule (explicit exclusion wins);
// a condition directed Eligible with no match fails it (absence of proof is
// failure, never silently skipped).
func (e *Evaluator) evaluateRule(rule *domain.EligibilityRules, matchable, all []domain.Result, effective time.Time) (*domain.Certificate, bool) {
	var (
		expiry      time.Time
		eligibility time.Time
		justifying  []domain.Result
	)
	seen := make(map[domain.Result]struct{})

	for i := range rule.Conditions {
		cond := &rule.Conditions[i]
		match := matchCondition(cond, matchable, all, effective)

		if cond.EligibilityDirection == domain.DirectionIneligible {
			if len(match.results) > 0 {
				return nil, false
			}
			continue
		}

		if !match.satisfied {
			return nil, false
		}
		if match.expiry.After(expiry) {
			expiry = match.expiry
		}
		if match.eligibility.After(eligibility) {
			eligibility = match.eligibility
		}
		for _, r := range match.results {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			justifying = append(justifying, r)
		}
	}

	if rule.ValidityPeriodHours > 0 {
		if limit := effective.Add(hoursDur(rule.ValidityPeriodHours)); limit.Before(expiry) {
			expiry = limit
			if limit.Before(eligibility) {
				eligibility = limit
			}
		}
	}

	return &domain.Certificate{
		ValidityEnd:        expiry,
		EligibilityEnd:     eligibility,
		Type:               rule.CertificateType,
		Scenario:           rule.Scenario,
		Policy:             rule.Policy,
		PolicyMask:         rule.PolicyMask,
		EligibilityResults: justifying,
	}, true
}
