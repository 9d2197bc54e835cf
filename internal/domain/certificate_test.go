package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CertificateSuite struct {
	suite.Suite
}

func TestCertificateSuite(t *testing.T) {
	suite.Run(t, new(CertificateSuite))
}

func (s *CertificateSuite) TestParseScenario() {
	s.Run("known scenarios", func() {
		for _, raw := range []string{"Domestic", "International", "Isolation"} {
			got, err := ParseScenario(raw)
			s.Require().NoError(err)
			s.Equal(Scenario(raw), got)
		}
	})

	s.Run("unknown scenario", func() {
		_, err := ParseScenario("domestic")
		s.Error(err)
	})
}

func (s *CertificateSuite) TestSubjectFullName() {
	s.Equal("Anna Müller", Subject{GivenName: "Anna", FamilyName: "Müller"}.FullName())
	s.Equal("Müller", Subject{FamilyName: "Müller"}.FullName())
	s.Equal("Anna", Subject{GivenName: "Anna"}.FullName())
}

func (s *CertificateSuite) TestQRCodeForDose() {
	cert := &Certificate{QRCodes: []string{"HC1:AAA", "HC1:BBB"}}

	s.Run("valid index", func() {
		token, err := cert.QRCodeForDose(0)
		s.Require().NoError(err)
		s.Equal("HC1:AAA", token)
	})

	s.Run("out of range", func() {
		_, err := cert.QRCodeForDose(2)
		s.Error(err)
		_, err = cert.QRCodeForDose(-1)
		s.Error(err)
	})
}

func (s *CertificateSuite) TestConditionValidate() {
	base := EligibilityCondition{
		ProductType:          ProductVaccination,
		Product:              "Comirnaty",
		MinCount:             1,
		EligibilityDirection: DirectionEligible,
	}

	s.Run("single selector passes", func() {
		cond := base
		s.NoError(cond.Validate())
	})

	s.Run("no selector fails", func() {
		cond := base
		cond.Product = ""
		s.Error(cond.Validate())
	})

	s.Run("two selectors fail", func() {
		cond := base
		cond.SnomedCodes = []string{"123"}
		s.Error(cond.Validate())
	})

	s.Run("unknown direction fails", func() {
		cond := base
		cond.EligibilityDirection = "Maybe"
		s.Error(cond.Validate())
	})

	s.Run("min count below one fails", func() {
		cond := base
		cond.MinCount = 0
		s.Error(cond.Validate())
	})
}

func (s *CertificateSuite) TestRuleValidate() {
	rule := EligibilityRules{
		Name:     "two-dose",
		Scenario: ScenarioDomestic,
		Conditions: []EligibilityCondition{{
			ProductType:          ProductVaccination,
			Product:              "Comirnaty",
			MinCount:             2,
			EligibilityDirection: DirectionEligible,
		}},
	}

	s.Run("valid rule", func() {
		s.NoError(rule.Validate())
	})

	s.Run("missing name", func() {
		broken := rule
		broken.Name = ""
		s.Error(broken.Validate())
	})

	s.Run("no conditions", func() {
		broken := rule
		broken.Conditions = nil
		s.Error(broken.Validate())
	})

	s.Run("invalid condition surfaces with context", func() {
		broken := rule
		broken.Conditions = []EligibilityCondition{{ProductType: ProductVaccination}}
		err := broken.Validate()
		s.Require().Error(err)
		s.Contains(err.Error(), "two-dose")
	})
}
