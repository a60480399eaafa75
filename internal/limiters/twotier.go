package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/marketAuth/internal/rate"
)

// Tier names one window of a two-tier policy.
type Tier string

const (
	TierHourly Tier = "hourly"
	TierDaily  Tier = "daily"
)

const (
	defaultHourlyWindow = time.Hour
	defaultDailyWindow  = 24 * time.Hour
)

var (
	ErrLimitExceeded      = errors.New("action rate limited")
	ErrLimiterUnavailable = errors.New("action limiter unavailable")
)

// ExceededError reports which tier rejected the attempt and the nominal
// window the caller should wait.
type ExceededError struct {
	Action     string
	Tier       Tier
	Limit      int
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %s limit of %d exceeded", e.Action, e.Tier, e.Limit)
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Policy is one action's hourly and daily budget.
type Policy struct {
	Action       string
	HourlyLimit  int
	DailyLimit   int
	HourlyWindow time.Duration
	DailyWindow  time.Duration
}

// Decision carries the counts recorded by a successful Consume.
type Decision struct {
	Hourly int64
	Daily  int64
}

// TwoTier enforces a [Policy]. The daily window is counted first; if it
// rejects, the hourly counter is not touched.
type TwoTier struct {
	counter *rate.Counter
	policy  Policy
}

// NewTwoTier builds a [TwoTier] limiter. Zero windows fall back to one hour
// and one day.
func NewTwoTier(counter *rate.Counter, policy Policy) *TwoTier {
	if policy.HourlyWindow <= 0 {
		policy.HourlyWindow = defaultHourlyWindow
	}
	if policy.DailyWindow <= 0 {
		policy.DailyWindow = defaultDailyWindow
	}
	return &TwoTier{
		counter: counter,
		policy:  policy,
	}
}

// Policy returns the effective policy.
func (l *TwoTier) Policy() Policy {
	if l == nil {
		return Policy{}
	}
	return l.policy
}

// Consume records one attempt for identity against both tiers.
func (l *TwoTier) Consume(ctx context.Context, identity string) (Decision, error) {
	if l == nil {
		return Decision{}, nil
	}

	var d Decision
	daily, err := l.counter.Hit(ctx, l.key(TierDaily, identity), l.policy.DailyWindow)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	d.Daily = daily
	if daily > int64(l.policy.DailyLimit) {
		return d, &ExceededError{
			Action:     l.policy.Action,
			Tier:       TierDaily,
			Limit:      l.policy.DailyLimit,
			RetryAfter: l.policy.DailyWindow,
		}
	}

	hourly, err := l.counter.Hit(ctx, l.key(TierHourly, identity), l.policy.HourlyWindow)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	d.Hourly = hourly
	if hourly > int64(l.policy.HourlyLimit) {
		return d, &ExceededError{
			Action:     l.policy.Action,
			Tier:       TierHourly,
			Limit:      l.policy.HourlyLimit,
			RetryAfter: l.policy.HourlyWindow,
		}
	}

	return d, nil
}

func (l *TwoTier) key(tier Tier, identity string) string {
	suffix := "h"
	if tier == TierDaily {
		suffix = "d"
	}
	return l.policy.Action + ":" + suffix + ":" + identity
}
