package marketAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketAuth/challenge"
	internalaudit "github.com/MrEthical07/marketAuth/internal/audit"
	"github.com/MrEthical07/marketAuth/internal/limiters"
)

// guardAbuse charges one attempt against limiter for identity and runs the
// challenge gate on the resulting hourly count. Rejected attempts stay
// charged, so the verifier is consulted at most once per window.
func (e *Engine) guardAbuse(ctx context.Context, limiter *limiters.TwoTier, identity, accountID, proof string) error {
	decision, err := limiter.Consume(ctx, identity)
	if err != nil {
		var exceeded *limiters.ExceededError
		if errors.As(err, &exceeded) {
			rl := &RateLimitError{
				Action:     exceeded.Action,
				Tier:       string(exceeded.Tier),
				RetryAfter: exceeded.RetryAfter,
			}
			e.emitRateLimit(ctx, exceeded.Action, rl)
			return rl
		}
		return e.internalError(limiter.Policy().Action+" limiter", accountID, err)
	}

	if !e.gate.Required(decision.Hourly) {
		return nil
	}

	err = e.gate.Check(ctx, decision.Hourly, proof, clientIPFromContext(ctx))
	if err == nil {
		e.metricInc(MetricChallengePassed)
		e.emitAudit(ctx, internalaudit.EventChallenge, true, accountID, nil, func() map[string]string {
			return map[string]string{"action": limiter.Policy().Action}
		})
		return nil
	}

	var mapped error
	switch {
	case errors.Is(err, challenge.ErrRequired):
		e.metricInc(MetricChallengeRequired)
		mapped = ErrChallengeRequired
	case errors.Is(err, challenge.ErrFailed):
		e.metricInc(MetricChallengeFailed)
		mapped = ErrChallengeFailed
	default:
		return e.internalError("challenge verify", accountID, err)
	}
	e.emitAudit(ctx, internalaudit.EventChallenge, false, accountID, mapped, func() map[string]string {
		return map[string]string{"action": limiter.Policy().Action}
	})
	return mapped
}
