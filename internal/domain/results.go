package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProductType discriminates the two medical result variants for rule matching.
type ProductType string

const (
	ProductVaccination ProductType = "Vaccination"
	ProductDiagnostic  ProductType = "Diagnostic"
)

// Result is the common read-only view over vaccination and diagnostic-test
// records. Implementations are immutable once constructed from source data.
type Result interface {
	ProductType() ProductType
	// DateTime is when the dose was administered or the sample taken.
	DateTime() time.Time
	// ResultValue is the free-text result, compared case-insensitively.
	ResultValue() string
	// ValidityType is the product or test-kit name used for rule matching.
	ValidityType() string
	// Country is the ISO country code the result was recorded in.
	Country() string
}

// Coding pairs a terminology code with its display name.
type Coding struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Vaccine is a single administered vaccination dose.
type Vaccine struct {
	Occurrence           time.Time
	Result               string
	DoseNumber           int
	TotalSeriesOfDoses   int
	VaccineManufacturer  Coding
	Disease              Coding
	VaccineType          Coding
	Product              Coding
	BatchNumber          string
	CountryOfVaccination string
	Authority            string
	SnomedCode           string
	IsBooster            bool
	DateEntered          time.Time
}

// earliest plausible vaccination date accepted from source systems
var vaccinationEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewVaccine validates source data at construction so malformed records are
// excluded from evaluation rather than failing it (see error taxonomy).
func NewVaccine(v Vaccine) (*Vaccine, error) {
	if v.DoseNumber < 1 {
		return nil, fmt.Errorf("vaccine dose number must be >= 1, got %d", v.DoseNumber)
	}
	if v.Occurrence.Before(vaccinationEpoch) {
		return nil, fmt.Errorf("vaccination date %s precedes %s", v.Occurrence.Format(time.RFC3339), vaccinationEpoch.Format("2006-01-02"))
	}
	if v.Occurrence.After(time.Now()) {
		return nil, fmt.Errorf("vaccination date %s is in the future", v.Occurrence.Format(time.RFC3339))
	}
	if v.VaccineManufacturer.Code == "" && v.VaccineManufacturer.Display == "" {
		return nil, fmt.Errorf("vaccine manufacturer is required")
	}
	return &v, nil
}

func (v *Vaccine) ProductType() ProductType { return ProductVaccination }
func (v *Vaccine) DateTime() time.Time     { return v.Occurrence }
func (v *Vaccine) ResultValue() string     { return v.Result }
func (v *Vaccine) ValidityType() string    { return v.Product.Display }
func (v *Vaccine) Country() string         { return v.CountryOfVaccination }

// Diagnostic test processing codes. Self-administered unsupervised results are
// filtered out by the classifier.
const (
	ProcessingSupervised       = "SUPERVISED"
	ProcessingSelfAdministered = "SELF_ADMINISTERED"
)

// DiagnosticTest is a single diagnostic test result.
type DiagnosticTest struct {
	Taken          time.Time
	Result         string
	TestKit        string
	CountryCode    string
	ProcessingCode string
	Disease        string
	Authority      string
	IsNAAT         bool
}

func (t *DiagnosticTest) ProductType() ProductType { return ProductDiagnostic }
func (t *DiagnosticTest) DateTime() time.Time      { return t.Taken }
func (t *DiagnosticTest) ResultValue() string      { return t.Result }
func (t *DiagnosticTest) ValidityType() string     { return t.TestKit }
func (t *DiagnosticTest) Country() string          { return t.CountryCode }

// IsPositive classifies the free-text result field.
func (t *DiagnosticTest) IsPositive() bool {
	return strings.EqualFold(t.Result, "Positive") || strings.EqualFold(t.Result, "Detected")
}

// IsSelfAdministered reports whether the test was taken without supervision.
func (t *DiagnosticTest) IsSelfAdministered() bool {
	return t.ProcessingCode == ProcessingSelfAdministered
}
