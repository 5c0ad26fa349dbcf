package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func TestTierForAttemptBoundaries(t *testing.T) {
	cfg := config.GeneratorConfig{
		MaxAttempts:        50,
		RelaxSameDayAfter:  25,
		RelaxDailyCapAfter: 30,
		RelaxAdjacentAfter: 35,
	}

	cases := []struct {
		name    string
		attempt int
		want    relaxationTier
	}{
		{"first attempt is strict", 1, relaxationTier{}},
		{"last strict attempt", 25, relaxationTier{}},
		{"same-day repeats unlock at 26", 26, relaxationTier{allowSameDayRepeat: true}},
		{"cap slack still off at 30", 30, relaxationTier{allowSameDayRepeat: true}},
		{"cap slack unlocks at 31", 31, relaxationTier{allowSameDayRepeat: true, dailyCapSlack: 1}},
		{"adjacency still off at 35", 35, relaxationTier{allowSameDayRepeat: true, dailyCapSlack: 1}},
		{"everything relaxed at 36", 36, relaxationTier{allowSameDayRepeat: true, allowAdjacentRepeat: true, dailyCapSlack: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tierForAttempt(tc.attempt, cfg))
		})
	}
}
