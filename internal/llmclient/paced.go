package llmclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// PacedClient spaces oracle calls out: a fixed delay before every call plus
// an optional requests-per-minute ceiling.
type PacedClient struct {
	next    schemas.LLMClient
	delay   time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewPacedClient wraps next. A zero delay and zero rpm make it a pass-through.
func NewPacedClient(next schemas.LLMClient, delay time.Duration, rpm int, logger *zap.Logger) *PacedClient {
	p := &PacedClient{
		next:   next,
		delay:  delay,
		logger: logger.Named("llm_pacer"),
	}
	if rpm > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return p
}

// Generate waits out the pacing delay and the limiter, then delegates.
func (p *PacedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Generate(ctx, req)
}

func (p *PacedClient) Close() error {
	return p.next.Close()
}

func (p *PacedClient) wait(ctx context.Context) error {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Debug("Rate limiter wait aborted", zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
	return nil
}
