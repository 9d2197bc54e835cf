package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthcert/internal/domain"
)

type BoosterPolicySuite struct {
	suite.Suite
	policy BoosterPolicy
}

func TestBoosterPolicySuite(t *testing.T) {
	suite.Run(t, new(BoosterPolicySuite))
}

func (s *BoosterPolicySuite) SetupTest() {
	s.policy = BoosterPolicy{
		MinimumPeriod: 90 * 24 * time.Hour,
		GracePeriod:   180 * 24 * time.Hour,
	}
}

func (s *BoosterPolicySuite) doses(primaryDay, boosterDay int) []domain.Result {
	primary := vaccineAt(primaryDay, "Comirnaty", false)
	booster := vaccineAt(boosterDay, "Comirnaty", true)
	return []domain.Result{primary, booster}
}

func (s *BoosterPolicySuite) TestWithinWindow() {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	s.Run("booster before the minimum period is invalid", func() {
		s.False(s.policy.WithinWindow(s.doses(0, 89), now))
	})

	s.Run("booster inside the grace window is valid immediately", func() {
		s.True(s.policy.WithinWindow(s.doses(0, 120), now))
	})

	s.Run("late booster valid once settled", func() {
		// booster well outside the grace window, administered long before now
		s.True(s.policy.WithinWindow(s.doses(0, 200), now))
	})

	s.Run("late booster still settling is not yet valid", func() {
		results := s.doses(0, 200)
		boosterDate := time.Date(2023, time.January, 201, 10, 0, 0, 0, time.UTC)
		s.False(s.policy.WithinWindow(results, boosterDate.Add(5*24*time.Hour)))
	})

	s.Run("booster one second before the grace boundary is valid", func() {
		primary := vaccineAt(0, "Comirnaty", false)
		booster := vaccineAt(0, "Comirnaty", true)
		booster.Occurrence = primary.Occurrence.Add(s.policy.GracePeriod - time.Second)
		s.True(s.policy.WithinWindow([]domain.Result{primary, booster}, now))
	})

	s.Run("booster exactly at the minimum period is valid", func() {
		primary := vaccineAt(0, "Comirnaty", false)
		booster := vaccineAt(0, "Comirnaty", true)
		booster.Occurrence = primary.Occurrence.Add(s.policy.MinimumPeriod)
		s.True(s.policy.WithinWindow([]domain.Result{primary, booster}, now))
	})

	s.Run("no booster dose present", func() {
		primary := vaccineAt(0, "Comirnaty", false)
		s.False(s.policy.WithinWindow([]domain.Result{primary}, now))
	})

	s.Run("no primary dose present", func() {
		booster := vaccineAt(120, "Comirnaty", true)
		s.False(s.policy.WithinWindow([]domain.Result{booster}, now))
	})

	s.Run("most recent primary anchors the window", func() {
		// a second primary dose moves the anchor forward, pushing the booster
		// back under the minimum period
		results := s.doses(0, 120)
		results = append(results, vaccineAt(60, "Comirnaty", false))
		s.False(s.policy.WithinWindow(results, now))
	})
}

// Once a dose set enters the valid window it stays valid as time advances.
func (s *BoosterPolicySuite) TestWindowIsMonotonic() {
	results := s.doses(0, 200)
	start := time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)

	entered := false
	for day := 0; day < 120; day++ {
		now := start.Add(time.Duration(day) * 24 * time.Hour)
		valid := s.policy.WithinWindow(results, now)
		if entered {
			s.True(valid, "window closed again at day %d", day)
		}
		if valid {
			entered = true
		}
	}
	s.True(entered, "window never opened")
}
