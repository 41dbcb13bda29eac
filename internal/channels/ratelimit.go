package channels

import (
	"context"

	"golang.org/x/time/rate"
)

const (
	// DefaultSendRate matches Telegram's advice of about one message per
	// second to a single chat.
	DefaultSendRate = 1.0

	// DefaultSendBurst lets short bursts through before throttling.
	DefaultSendBurst = 3
)

// SendLimiter throttles outbound sends to a single peer.
// Safe for concurrent use.
type SendLimiter struct {
	lim *rate.Limiter
}

// NewSendLimiter creates a limiter allowing perSecond sends with the given burst.
// Non-positive values fall back to the defaults.
func NewSendLimiter(perSecond float64, burst int) *SendLimiter {
	if perSecond <= 0 {
		perSecond = DefaultSendRate
	}
	if burst <= 0 {
		burst = DefaultSendBurst
	}
	return &SendLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a send is allowed or ctx is done.
func (l *SendLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}
