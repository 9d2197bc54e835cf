package domain

import "fmt"

// EligibilityDirection states whether a condition proves eligibility or
// explicitly disproves it.
type EligibilityDirection string

const (
	DirectionEligible   EligibilityDirection = "Eligible"
	DirectionIneligible EligibilityDirection = "Ineligible"
)

// EligibilityConfiguration is the root of a rule configuration blob. Loaded
// read-only per evaluation; the engine never mutates it.
type EligibilityConfiguration struct {
	Rules []EligibilityRules `json:"rules"`
}

// EligibilityRules is one named rule: a certificate is produced only when all
// of its conditions hold.
type EligibilityRules struct {
	Name            string               `json:"Name"`
	Scenario        Scenario             `json:"Scenario"`
	CertificateType CertificateType      `json:"CertificateType"`
	// ValidityPeriodHours caps certificate expiry relative to evaluation time
	// when positive.
	ValidityPeriodHours int                    `json:"ValidityPeriodHours"`
	Booster             bool                   `json:"Booster"`
	Policy              []string               `json:"Policy"`
	PolicyMask          int                    `json:"PolicyMask"`
	Conditions          []EligibilityCondition `json:"Conditions"`
}

// InvalidatingResult names a validity-type/result combination that voids
// earlier matches when it appears after them.
type InvalidatingResult struct {
	ValidityType string `json:"ValidityType"`
	Result       string `json:"Result"`
}

// EligibilityCondition is one requirement inside a rule. Exactly one of
// SnomedCodes, Product, or VaccineCombinations selects the matching products.
type EligibilityCondition struct {
	ProductType ProductType `json:"ProductType"`
	// AllowedCountries is keyed by SNOMED code (vaccines) or validity-type
	// label (tests). An empty map allows everything; a present key with an
	// empty list allows any country for that product.
	AllowedCountries    map[string][]string `json:"AllowedCountries"`
	SnomedCodes         []string            `json:"SnomedCodes"`
	Product             string              `json:"Product"`
	VaccineCombinations [][]string          `json:"VaccineCombinations"`
	Result              string              `json:"Result"`
	MinCount            int                 `json:"MinCount"`
	// Gap bounds apply pairwise to consecutive matches when MinCount > 1.
	MinimumHoursBetweenResults *int `json:"MinimumHoursBetweenResults"`
	MaximumHoursBetweenResults *int `json:"MaximumHoursBetweenResults"`
	EligibilityPeriodHours     int  `json:"EligibilityPeriodHours"`
	ResultValidAfterHours      int  `json:"ResultValidAfterHours"`
	NotFollowedBy              []InvalidatingResult `json:"NotFollowedBy"`
	MostRecentResultMaxHoursAgo *int                `json:"MostRecentResultMaxHoursAgo"`
	EligibilityDirection        EligibilityDirection `json:"EligibilityDirection"`
}

// Validate enforces the structural invariants of a condition.
func (c *EligibilityCondition) Validate() error {
	selectors := 0
	if len(c.SnomedCodes) > 0 {
		selectors++
	}
	if c.Product != "" {
		selectors++
	}
	if len(c.VaccineCombinations) > 0 {
		selectors++
	}
	if selectors != 1 {
		return fmt.Errorf("condition must set exactly one of SnomedCodes, Product, VaccineCombinations; got %d", selectors)
	}
	switch c.EligibilityDirection {
	case DirectionEligible, DirectionIneligible:
	default:
		return fmt.Errorf("unknown eligibility direction %q", c.EligibilityDirection)
	}
	if c.MinCount < 1 {
		return fmt.Errorf("condition MinCount must be >= 1, got %d", c.MinCount)
	}
	return nil
}

// Validate checks a rule and all of its conditions.
func (r *EligibilityRules) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q has no conditions", r.Name)
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("rule %q condition %d: %w", r.Name, i, err)
		}
	}
	return nil
}
