package retrypolicy

import (
	"math/rand"
	"time"
)

// Policy computes the backoff delay before a retry attempt. It is a pure
// calculator: it never sleeps and never schedules anything itself.
type Policy struct {
	// MaxRetries is the number of re-deliveries after the initial attempt.
	// A batch that has failed MaxRetries+1 times total is given up on.
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// New builds a policy, clamping the jitter factor into [0, 1].
func New(maxRetries int, baseDelay, maxDelay time.Duration, jitterFactor float64) Policy {
	if jitterFactor < 0 {
		jitterFactor = 0
	}
	if jitterFactor > 1 {
		jitterFactor = 1
	}
	return Policy{
		MaxRetries:   maxRetries,
		BaseDelay:    baseDelay,
		MaxDelay:     maxDelay,
		JitterFactor: jitterFactor,
	}
}

// Delay returns baseDelay doubled per attempt, capped at maxDelay, then
// scaled by a uniform random factor in [1-jitter, 1+jitter]. Attempts are
// zero-indexed: Delay(0) with zero jitter is exactly BaseDelay.
func (p Policy) Delay(attempt uint32) time.Duration {
	delay := p.BaseDelay
	for i := uint32(0); i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFactor > 0 {
		scale := 1 + (rand.Float64()*2-1)*p.JitterFactor
		delay = time.Duration(float64(delay) * scale)
	}
	return delay
}
