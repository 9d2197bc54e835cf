package httptransport

import (
	"fmt"
	"time"

	"healthcert/internal/domain"
)

// resultPayload is the wire form of one medical result. The type field selects
// the variant; unknown types are rejected at the boundary.
type resultPayload struct {
	Type string `json:"type"`

	// common
	DateTime time.Time `json:"dateTime"`
	Result   string    `json:"result"`
	Country  string    `json:"country"`

	// vaccine fields
	DoseNumber         int           `json:"doseNumber,omitempty"`
	TotalSeriesOfDoses int           `json:"totalSeriesOfDoses,omitempty"`
	Manufacturer       domain.Coding `json:"manufacturer,omitempty"`
	Disease            domain.Coding `json:"disease,omitempty"`
	VaccineType        domain.Coding `json:"vaccineType,omitempty"`
	Product            domain.Coding `json:"product,omitempty"`
	BatchNumber        string        `json:"batchNumber,omitempty"`
	Authority          string        `json:"authority,omitempty"`
	SnomedCode         string        `json:"snomedCode,omitempty"`
	IsBooster          bool          `json:"isBooster,omitempty"`
	DateEntered        time.Time     `json:"dateEntered,omitempty"`

	// diagnostic test fields
	TestKit        string `json:"testKit,omitempty"`
	ProcessingCode string `json:"processingCode,omitempty"`
	TargetDisease  string `json:"targetDisease,omitempty"`
	IsNAAT         bool   `json:"isNAAT,omitempty"`
}

type buildRequest struct {
	Results         []resultPayload `json:"results"`
	CertificateType string          `json:"certificateType,omitempty"`
}

// toDomain converts the request body, excluding malformed records instead of
// failing the whole build (validation errors exclude the triggering result).
func (r buildRequest) toDomain() ([]domain.Result, *domain.CertificateType, []string) {
	var (
		results  []domain.Result
		excluded []string
	)
	for i, p := range r.Results {
		switch p.Type {
		case "Vaccine":
			v, err := domain.NewVaccine(domain.Vaccine{
				Occurrence:           p.DateTime,
				Result:               p.Result,
				DoseNumber:           p.DoseNumber,
				TotalSeriesOfDoses:   p.TotalSeriesOfDoses,
				VaccineManufacturer:  p.Manufacturer,
				Disease:              p.Disease,
				VaccineType:          p.VaccineType,
				Product:              p.Product,
				BatchNumber:          p.BatchNumber,
				CountryOfVaccination: p.Country,
				Authority:            p.Authority,
				SnomedCode:           p.SnomedCode,
				IsBooster:            p.IsBooster,
				DateEntered:          p.DateEntered,
			})
			if err != nil {
				excluded = append(excluded, fmt.Sprintf("results[%d]: %v", i, err))
				continue
			}
			results = append(results, v)
		case "DiagnosticTest":
			results = append(results, &domain.DiagnosticTest{
				Taken:          p.DateTime,
				Result:         p.Result,
				TestKit:        p.TestKit,
				CountryCode:    p.Country,
				ProcessingCode: p.ProcessingCode,
				Disease:        p.TargetDisease,
				Authority:      p.Authority,
				IsNAAT:         p.IsNAAT,
			})
		default:
			excluded = append(excluded, fmt.Sprintf("results[%d]: unknown type %q", i, p.Type))
		}
	}

	var certType *domain.CertificateType
	if r.CertificateType != "" {
		t := domain.CertificateType(r.CertificateType)
		certType = &t
	}
	return results, certType, excluded
}
