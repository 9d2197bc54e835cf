package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthcert/internal/barcode"
	"healthcert/internal/domain"
	"healthcert/internal/eligibility"
	"healthcert/internal/eligibility/metrics"
	"healthcert/internal/platform/config"
	"healthcert/internal/rules"
	"healthcert/internal/telemetry"
	"healthcert/internal/uvci"
	"healthcert/pkg/requestcontext"
)

// ErrNoRules marks a missing or empty rule set for the requested scenario.
// Configuration fault: fatal, non-retryable, never silently defaulted.
var ErrNoRules = errors.New("no eligibility rules configured")

// Service builds certificates from a subject's medical results. It is
// stateless and re-entrant: every call works on its own immutable snapshot of
// rules and results.
type Service struct {
	rules     rules.Loader
	container string
	filename  string
	evaluator *eligibility.Evaluator
	lockout   eligibility.LockoutPolicy
	uvci      *uvci.Generator
	encoder   *barcode.Encoder
	telemetry *telemetry.Publisher
	issuer    config.Issuer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithTelemetry sets the issuance event publisher.
func WithTelemetry(p *telemetry.Publisher) Option {
	return func(s *Service) { s.telemetry = p }
}

// WithMetrics sets the metrics collector shared with the evaluator.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the certificate builder.
func NewService(
	loader rules.Loader,
	flags config.RuleFlags,
	evaluator *eligibility.Evaluator,
	lockout eligibility.LockoutPolicy,
	generator *uvci.Generator,
	encoder *barcode.Encoder,
	issuer config.Issuer,
	opts ...Option,
) *Service {
	s := &Service{
		rules:     loader,
		container: flags.Container,
		filename:  rules.FilenameForFlags(flags),
		evaluator: evaluator,
		lockout:   lockout,
		uvci:      generator,
		encoder:   encoder,
		issuer:    issuer,
		tracer:    otel.Tracer("healthcert/certificate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildCertificatesFromResults evaluates the rule set for a scenario and
// returns the issued certificates, an ineligibility outcome, or neither (no
// qualifying certificate; callers decide fallback).
//
// Within one call, UVCI generation completes and is durably visible before QR
// encoding begins, since the encoded payload embeds the UVCI. On cancellation
// no partially-built certificate is returned; an already-inserted UVCI for a
// cancelled encode is orphaned but harmless.
func (s *Service) BuildCertificatesFromResults(ctx context.Context, results []domain.Result, subject domain.Subject, scenario domain.Scenario, certType *domain.CertificateType) (domain.CertificateContainer, error) {
	ctx, span := s.tracer.Start(ctx, "BuildCertificatesFromResults",
		trace.WithAttributes(attribute.String("scenario", string(scenario))))
	defer span.End()

	effective := requestcontext.Now(ctx)

	if outcome := s.lockout.Check(eligibility.DiagnosticTests(results), effective); outcome != nil {
		s.metrics.IncLockoutCheck("locked")
		return domain.CertificateContainer{Ineligibility: outcome}, nil
	}
	s.metrics.IncLockoutCheck("clear")

	cfg, err := s.rules.FetchRuleConfiguration(ctx, s.container, s.filename)
	if err != nil {
		return domain.CertificateContainer{}, err
	}

	scenarioRules := make([]domain.EligibilityRules, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if rule.Scenario == scenario {
			scenarioRules = append(scenarioRules, rule)
		}
	}
	if len(scenarioRules) == 0 {
		return domain.CertificateContainer{}, fmt.Errorf("%w for scenario %q", ErrNoRules, scenario)
	}

	candidates := s.evaluator.GenerateCertificates(results, scenarioRules, effective)
	if certType != nil {
		filtered := candidates[:0:0]
		for _, cert := range candidates {
			if cert.Type == *certType {
				filtered = append(filtered, cert)
			}
		}
		candidates = filtered
	}

	issued := make([]*domain.Certificate, 0, len(candidates))
	for _, cert := range candidates {
		if err := ctx.Err(); err != nil {
			return domain.CertificateContainer{}, err
		}
		if err := s.finalize(ctx, cert, subject, effective); err != nil {
			return domain.CertificateContainer{}, err
		}
		issued = append(issued, cert)
		s.emitIssuance(cert, results)
	}

	return domain.CertificateContainer{Certificates: issued}, nil
}

// finalize attaches identity, clamps and normalizes timestamps, records the
// UVCI, and populates the token list.
func (s *Service) finalize(ctx context.Context, cert *domain.Certificate, subject domain.Subject, effective time.Time) error {
	cert.Name = subject.FullName()
	cert.DateOfBirth = subject.DateOfBirth
	cert.Country = s.issuer.Country
	cert.Authority = s.issuer.Authority

	s.applyClamps(cert, subject, effective)
	normalizeTimestamps(cert)

	identifier, err := s.uvci.GenerateAndInsert(
		ctx,
		s.issuer.Authority,
		s.issuer.Country,
		uvci.SubjectHash(cert.Name, cert.DateOfBirth),
		cert.Type,
		cert.Scenario,
		cert.ValidityEnd,
	)
	if err != nil {
		return fmt.Errorf("generate uvci: %w", err)
	}
	cert.UniqueCertificateIdentifier = identifier

	tokens, err := s.encoder.Encode(ctx, cert, subject)
	if err != nil {
		return fmt.Errorf("encode certificate: %w", err)
	}
	cert.QRCodes = tokens
	return nil
}

// applyClamps enforces the proofing-level and grace-period expiry caps.
// Subjects below the highest proofing tier get a short-lived certificate
// unless they are in the U12 access bracket.
func (s *Service) applyClamps(cert *domain.Certificate, subject domain.Subject, effective time.Time) {
	if subject.ProofingLevel != domain.ProofingP9 && !subject.UnderTwelve {
		if limit := effective.Add(time.Duration(s.issuer.P5CertificateExpiryInHours) * time.Hour); limit.Before(cert.ValidityEnd) {
			cert.ValidityEnd = limit
			if limit.Before(cert.EligibilityEnd) {
				cert.EligibilityEnd = limit
			}
		}
	}
	if subject.GracePeriodEnd != nil && subject.GracePeriodEnd.After(effective) {
		if end := *subject.GracePeriodEnd; end.Before(cert.ValidityEnd) {
			cert.ValidityEnd = end
		}
		if end := *subject.GracePeriodEnd; end.Before(cert.EligibilityEnd) {
			cert.EligibilityEnd = end
		}
	}
}

func normalizeTimestamps(cert *domain.Certificate) {
	cert.ValidityEnd = cert.ValidityEnd.UTC().Truncate(time.Second)
	cert.EligibilityEnd = cert.EligibilityEnd.UTC().Truncate(time.Second)
	if cert.ValidityStart != nil {
		start := cert.ValidityStart.UTC().Truncate(time.Second)
		cert.ValidityStart = &start
	}
	cert.DateOfBirth = cert.DateOfBirth.UTC().Truncate(time.Second)
}

// emitIssuance fires the analytics event recording which vaccinations were
// used and which were excluded. Fire-and-forget: failures never reach the
// caller.
func (s *Service) emitIssuance(cert *domain.Certificate, results []domain.Result) {
	if s.telemetry == nil {
		return
	}
	used := make(map[domain.Result]struct{}, len(cert.EligibilityResults))
	for _, r := range cert.EligibilityResults {
		used[r] = struct{}{}
	}
	event := telemetry.Event{
		Scenario:        cert.Scenario,
		CertificateType: cert.Type,
		UVCI:            cert.UniqueCertificateIdentifier,
	}
	for _, r := range results {
		v, ok := r.(*domain.Vaccine)
		if !ok {
			continue
		}
		label := v.Product.Display + "/" + v.Occurrence.UTC().Format("2006-01-02")
		if _, ok := used[r]; ok {
			event.UsedResults = append(event.UsedResults, label)
		} else {
			event.ExcludedResults = append(event.ExcludedResults, label)
		}
	}
	s.telemetry.Emit(event)
}

// GenerateQRCodes re-runs the encoding pipeline for an already-built
// certificate. Exposed for collaborators that re-render tokens.
func (s *Service) GenerateQRCodes(ctx context.Context, cert *domain.Certificate, subject domain.Subject) ([]string, error) {
	return s.encoder.Encode(ctx, cert, subject)
}
