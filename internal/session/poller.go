package session

import (
	"context"
	"time"

	"github.com/brogergvhs/sushidl/internal/providers/sushiscan"
	"golang.org/x/time/rate"
)

// Poller spaces out live probes so a watch loop cannot hammer the site.
type Poller struct {
	eval    *Evaluator
	limiter *rate.Limiter
}

func NewPoller(e *Evaluator, every time.Duration) *Poller {
	return &Poller{
		eval:    e,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Evaluate waits for the limiter before probing. It only fails when ctx ends
// while waiting.
func (p *Poller) Evaluate(ctx context.Context, d sushiscan.Domain, cookie, userAgent, probeURL string) (State, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return defaultState(d, cookie), err
	}
	return p.eval.Evaluate(ctx, d, cookie, userAgent, probeURL), nil
}
