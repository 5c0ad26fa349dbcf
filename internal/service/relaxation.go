package service

import "github.com/noah-isme/sma-timetable-api/pkg/config"

// relaxationTier captures which placement constraints are active for a
// given attempt. Early attempts schedule strictly; as attempts burn
// down the tiers trade schedule quality for findability. The policy is
// derived in one place so it stays auditable.
type relaxationTier struct {
	allowSameDayRepeat  bool
	allowAdjacentRepeat bool
	dailyCapSlack       int
}

// tierForAttempt maps a 1-based attempt index onto the active tier.
func tierForAttempt(attempt int, cfg config.GeneratorConfig) relaxationTier {
	tier := relaxationTier{}
	if attempt > cfg.RelaxSameDayAfter {
		tier.allowSameDayRepeat = true
	}
	if attempt > cfg.RelaxAdjacentAfter {
		tier.allowAdjacentRepeat = true
	}
	if attempt > cfg.RelaxDailyCapAfter {
		tier.dailyCapSlack = 1
	}
	return tier
}
