package uvci

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"

	"healthcert/internal/domain"
	"healthcert/pkg/platform/sentinel"
)

var insertRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "healthcert_uvci_insert_retries_total",
	Help: "Total UVCI insert retries after uniqueness conflicts",
})

// Record is the durable trace of one issued identifier. Created once per
// certificate, never mutated; used only for uniqueness lookups and audit.
type Record struct {
	UVCI            string
	Authority       string
	Country         string
	SubjectHash     string
	CertificateType domain.CertificateType
	Scenario        domain.Scenario
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Store persists UVCI records. Insert must return sentinel.ErrConflict
// (possibly wrapped) when the identifier already exists among non-expired
// records for the same authority and scenario.
type Store interface {
	Insert(ctx context.Context, record Record) error
}

// Generator produces globally unique certificate identifiers and records them
// durably before returning. The identifier format is an external contract and
// must remain byte-stable.
type Generator struct {
	store Store
	// attempts bounds retries on uniqueness conflicts; exhaustion is fatal.
	attempts int
}

// NewGenerator builds a generator over a store with the given retry bound.
func NewGenerator(store Store, attempts int) *Generator {
	if attempts < 1 {
		attempts = 1
	}
	return &Generator{store: store, attempts: attempts}
}

// SubjectHash derives the stable subject key from name and date of birth.
// blake2b keeps it deterministic so uniqueness lookups and audit can correlate
// certificates for one person without storing identity data.
func SubjectHash(name string, dateOfBirth time.Time) string {
	sum := blake2b.Sum256([]byte(name + "|" + dateOfBirth.UTC().Format("2006-01-02")))
	return hex.EncodeToString(sum[:])
}

// GenerateAndInsert returns a unique identifier after durably recording it.
// On a uniqueness conflict a fresh identifier is generated and inserted again,
// bounded by the configured attempt count.
func (g *Generator) GenerateAndInsert(ctx context.Context, authority, country, subjectHash string, certType domain.CertificateType, scenario domain.Scenario, expiry time.Time) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		identifier := format(authority, country, scenario, certType)
		err := g.store.Insert(ctx, Record{
			UVCI:            identifier,
			Authority:       authority,
			Country:         country,
			SubjectHash:     subjectHash,
			CertificateType: certType,
			Scenario:        scenario,
			CreatedAt:       time.Now().UTC(),
			ExpiresAt:       expiry,
		})
		if err == nil {
			return identifier, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return "", fmt.Errorf("insert uvci: %w", err)
		}
		insertRetries.Inc()
		lastErr = err
	}
	return "", fmt.Errorf("uvci generation exhausted %d attempts: %w", g.attempts, lastErr)
}

// format renders "{authority}/{country}/{fragment}/{code}". The fragment is an
// upper-hex slice of a fresh random UUID; the trailing code identifies the
// scenario/type combination for scanning apps.
func format(authority, country string, scenario domain.Scenario, certType domain.CertificateType) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	return fmt.Sprintf("%s/%s/%s/%d", authority, country, fragment, scenarioTypeCode(scenario, certType))
}

// scenarioTypeCode is part of the identifier contract; codes are stable.
func scenarioTypeCode(scenario domain.Scenario, certType domain.CertificateType) int {
	switch scenario {
	case domain.ScenarioDomestic:
		return 1
	case domain.ScenarioIsolation:
		return 4
	case domain.ScenarioInternational:
		if certType == domain.TypeRecovery {
			return 3
		}
		return 2
	}
	return 0
}
