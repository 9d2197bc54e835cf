package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthcert/internal/domain"
)

type PublisherSuite struct {
	suite.Suite
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

// Issuance must never depend on telemetry being configured.
func (s *PublisherSuite) TestNilPublisherIsSafe() {
	var p *Publisher
	s.NotPanics(func() {
		p.Emit(Event{UVCI: "NHS/GB/0123456789ABCDEF/1"})
		p.Close()
	})
}

func (s *PublisherSuite) TestEmitStampsTimestamp() {
	p := &Publisher{inbox: make(chan Event, 1)}

	p.Emit(Event{UVCI: "NHS/GB/0123456789ABCDEF/1"})

	got := <-p.inbox
	s.False(got.Timestamp.IsZero())
}

func (s *PublisherSuite) TestEmitKeepsCallerTimestamp() {
	p := &Publisher{inbox: make(chan Event, 1)}
	stamp := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	p.Emit(Event{UVCI: "NHS/GB/0123456789ABCDEF/1", Timestamp: stamp})

	got := <-p.inbox
	s.Equal(stamp, got.Timestamp)
}

func (s *PublisherSuite) TestEmitDropsWhenFull() {
	p := &Publisher{inbox: make(chan Event, 1)}

	s.NotPanics(func() {
		p.Emit(Event{UVCI: "first"})
		p.Emit(Event{UVCI: "second"}) // buffer full, dropped
	})
	s.Equal("first", (<-p.inbox).UVCI)
	select {
	case e := <-p.inbox:
		s.Failf("unexpected event", "uvci %s", e.UVCI)
	default:
	}
}

func (s *PublisherSuite) TestEventWireShape() {
	event := Event{
		Scenario:        domain.ScenarioDomestic,
		CertificateType: domain.TypeDomestic,
		UVCI:            "NHS/GB/0123456789ABCDEF/1",
		UsedResults:     []string{"Comirnaty/2023-06-01"},
		ExcludedResults: []string{"Comirnaty/2021-01-15"},
		Timestamp:       time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(event)
	s.Require().NoError(err)

	var decoded map[string]any
	s.Require().NoError(json.Unmarshal(payload, &decoded))
	s.Equal("Domestic", decoded["scenario"])
	s.Equal("Domestic", decoded["certificate_type"])
	s.Equal("NHS/GB/0123456789ABCDEF/1", decoded["uvci"])
	s.Contains(decoded, "used_results")
	s.Contains(decoded, "excluded_results")
	s.Contains(decoded, "timestamp")
}
