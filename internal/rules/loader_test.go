package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthcert/internal/domain"
	"healthcert/internal/platform/config"
	"healthcert/pkg/platform/sentinel"
)

const testContainer = "eligibility-configuration"

const validRulesJSON = `{
	"rules": [{
		"Name": "domestic-two-dose",
		"Scenario": "Domestic",
		"CertificateType": "Domestic",
		"ValidityPeriodHours": 720,
		"Conditions": [{
			"ProductType": "Vaccination",
			"Product": "Comirnaty",
			"MinCount": 2,
			"EligibilityPeriodHours": 9600,
			"EligibilityDirection": "Eligible"
		}]
	}]
}`

type LoaderSuite struct {
	suite.Suite
	blobs  *InMemoryBlobStore
	loader *BlobLoader
	ctx    context.Context
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.blobs = NewInMemoryBlobStore()
	s.loader = NewBlobLoader(s.blobs)
	s.ctx = context.Background()
}

func (s *LoaderSuite) TestFilenameForFlags() {
	tests := []struct {
		name  string
		flags config.RuleFlags
		want  string
	}{
		{name: "default", flags: config.RuleFlags{}, want: FilenameBase},
		{name: "mandatory only", flags: config.RuleFlags{MandatoryOnly: true}, want: FilenameMandatory},
		{name: "mandatory with boosters", flags: config.RuleFlags{MandatoryOnly: true, IncludeBoosters: true}, want: FilenameMandatoryBoosters},
		{name: "boosters alone fall back to base", flags: config.RuleFlags{IncludeBoosters: true}, want: FilenameBase},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, FilenameForFlags(tt.flags))
		})
	}
}

func (s *LoaderSuite) TestFetchRuleConfiguration() {
	s.Run("parses a valid blob", func() {
		s.blobs.Put(testContainer, FilenameBase, []byte(validRulesJSON))

		cfg, err := s.loader.FetchRuleConfiguration(s.ctx, testContainer, FilenameBase)
		s.Require().NoError(err)
		s.Require().Len(cfg.Rules, 1)

		rule := cfg.Rules[0]
		s.Equal("domestic-two-dose", rule.Name)
		s.Equal(domain.ScenarioDomestic, rule.Scenario)
		s.Equal(720, rule.ValidityPeriodHours)
		s.Require().Len(rule.Conditions, 1)
		s.Equal(domain.DirectionEligible, rule.Conditions[0].EligibilityDirection)
		s.NoError(rule.Validate())
	})

	s.Run("missing blob", func() {
		_, err := s.loader.FetchRuleConfiguration(s.ctx, testContainer, "absent.json")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("malformed JSON", func() {
		s.blobs.Put(testContainer, "broken.json", []byte("{not json"))

		_, err := s.loader.FetchRuleConfiguration(s.ctx, testContainer, "broken.json")
		s.Error(err)
	})

	s.Run("empty rule set is a configuration fault", func() {
		s.blobs.Put(testContainer, "empty.json", []byte(`{"rules": []}`))

		_, err := s.loader.FetchRuleConfiguration(s.ctx, testContainer, "empty.json")
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}
