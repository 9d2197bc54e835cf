package domain

import (
	"fmt"
	"time"
)

// Scenario is the certificate issuance context. Each scenario carries its own
// rule set and encoding format.
type Scenario string

const (
	ScenarioDomestic      Scenario = "Domestic"
	ScenarioInternational Scenario = "International"
	ScenarioIsolation     Scenario = "Isolation"
)

// ParseScenario validates a scenario value at the trust boundary.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ScenarioDomestic, ScenarioInternational, ScenarioIsolation:
		return Scenario(s), nil
	}
	return "", fmt.Errorf("unknown certificate scenario %q", s)
}

// CertificateType identifies what kind of proof a certificate carries.
type CertificateType string

const (
	TypeVaccination CertificateType = "Vaccination"
	TypeRecovery    CertificateType = "Recovery"
	TypeDomestic    CertificateType = "Domestic"
	TypeExemption   CertificateType = "Exemption"
)

// ProofingLevel is the identity-verification tier of the authenticated subject.
type ProofingLevel string

const (
	ProofingP5 ProofingLevel = "P5"
	// ProofingP9 is the highest tier; expiry is not clamped for it.
	ProofingP9 ProofingLevel = "P9"
)

// Subject is the authenticated person a certificate is issued for.
type Subject struct {
	FamilyName    string
	GivenName     string
	DateOfBirth   time.Time
	ProofingLevel ProofingLevel
	// UnderTwelve marks the U12 access bracket, which is exempt from the
	// proofing expiry clamp.
	UnderTwelve bool
	// GracePeriodEnd, when set, bounds certificate validity for subjects whose
	// proofing elevation is pending reverification.
	GracePeriodEnd *time.Time
}

// FullName renders "GIVEN FAMILY" for certificate display.
func (s Subject) FullName() string {
	switch {
	case s.GivenName == "":
		return s.FamilyName
	case s.FamilyName == "":
		return s.GivenName
	}
	return s.GivenName + " " + s.FamilyName
}

// Certificate is the produced entity. The builder constructs it with a
// provisional expiry/eligibility pair and an empty token list, mutates it once
// to attach identity, UVCI and encoded tokens, and returns it immutable.
// It is never persisted; only its UVCI is durably recorded.
type Certificate struct {
	Name           string
	DateOfBirth    time.Time
	ValidityStart  *time.Time
	ValidityEnd    time.Time
	EligibilityEnd time.Time
	Type           CertificateType
	Scenario       Scenario
	QRCodes        []string
	// UniqueCertificateIdentifier is the UVCI embedded in every token.
	UniqueCertificateIdentifier string
	Policy                      []string
	PolicyMask                  int
	Country                     string
	Authority                   string
	// EligibilityResults is a read-only view into the classified result set
	// that justified issuance, not an owning copy.
	EligibilityResults []Result
}

// QRCodeForDose returns the token for a vaccination dose index. Index 0 is the
// most recently administered dose; the token list is stored reversed relative
// to administration order, which is load-bearing for already-issued
// certificates and must not change.
func (c *Certificate) QRCodeForDose(index int) (string, error) {
	if index < 0 || index >= len(c.QRCodes) {
		return "", fmt.Errorf("dose index %d out of range [0,%d)", index, len(c.QRCodes))
	}
	return c.QRCodes[index], nil
}

// IneligibilityResult is a legitimate business outcome, not an error: the
// subject is locked out of issuance until RetryAfter.
type IneligibilityResult struct {
	// ErrorCode is derived from the anchoring test kit: PCR=2, LFT=3.
	ErrorCode  int
	RetryAfter time.Time
}

// CertificateContainer is what BuildCertificatesFromResults returns. At most
// one of Ineligibility / Certificates is populated; both empty means no
// qualifying certificate was found, which callers treat as fallback, not error.
type CertificateContainer struct {
	Certificates  []*Certificate
	Ineligibility *IneligibilityResult
}
