package notification

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedPublisher caps the outbound message rate of another Publisher.
type RateLimitedPublisher struct {
	next    Publisher
	limiter *rate.Limiter
}

// NewRateLimitedPublisher wraps next with a token bucket of perSecond tokens and burst size.
// A non-positive perSecond returns next unchanged.
func NewRateLimitedPublisher(next Publisher, perSecond float64, burst int) Publisher {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedPublisher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Publish waits for a token and forwards msg.
func (p *RateLimitedPublisher) Publish(ctx context.Context, msg Message) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return p.next.Publish(ctx, msg)
}

// Close closes the wrapped publisher.
func (p *RateLimitedPublisher) Close(ctx context.Context) error {
	return p.next.Close(ctx)
}
