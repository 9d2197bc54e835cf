package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ResultsSuite struct {
	suite.Suite
}

func TestResultsSuite(t *testing.T) {
	suite.Run(t, new(ResultsSuite))
}

func validVaccine() Vaccine {
	return Vaccine{
		Occurrence:          time.Now().Add(-200 * 24 * time.Hour),
		DoseNumber:          1,
		VaccineManufacturer: Coding{Code: "ORG-100030215"},
		Product:             Coding{Code: "EU/1/20/1528", Display: "Comirnaty"},
	}
}

func (s *ResultsSuite) TestNewVaccine() {
	s.Run("valid record", func() {
		v, err := NewVaccine(validVaccine())
		s.Require().NoError(err)
		s.Equal(ProductVaccination, v.ProductType())
		s.Equal("Comirnaty", v.ValidityType())
	})

	s.Run("dose number below one", func() {
		v := validVaccine()
		v.DoseNumber = 0
		_, err := NewVaccine(v)
		s.Error(err)
	})

	s.Run("date before the vaccination epoch", func() {
		v := validVaccine()
		v.Occurrence = time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC)
		_, err := NewVaccine(v)
		s.Error(err)
	})

	s.Run("date in the future", func() {
		v := validVaccine()
		v.Occurrence = time.Now().Add(24 * time.Hour)
		_, err := NewVaccine(v)
		s.Error(err)
	})

	s.Run("missing manufacturer", func() {
		v := validVaccine()
		v.VaccineManufacturer = Coding{}
		_, err := NewVaccine(v)
		s.Error(err)
	})
}

func (s *ResultsSuite) TestDiagnosticTest() {
	s.Run("positive result values", func() {
		for _, result := range []string{"Positive", "positive", "POSITIVE", "Detected", "detected"} {
			t := &DiagnosticTest{Result: result}
			s.True(t.IsPositive(), "result %q", result)
		}
	})

	s.Run("negative result values", func() {
		for _, result := range []string{"Negative", "Not Detected", "Void", ""} {
			t := &DiagnosticTest{Result: result}
			s.False(t.IsPositive(), "result %q", result)
		}
	})

	s.Run("self administered processing code", func() {
		s.True((&DiagnosticTest{ProcessingCode: ProcessingSelfAdministered}).IsSelfAdministered())
		s.False((&DiagnosticTest{ProcessingCode: ProcessingSupervised}).IsSelfAdministered())
	})

	s.Run("validity type is the test kit", func() {
		t := &DiagnosticTest{TestKit: "PCR", CountryCode: "GB"}
		s.Equal("PCR", t.ValidityType())
		s.Equal("GB", t.Country())
		s.Equal(ProductDiagnostic, t.ProductType())
	})
}
