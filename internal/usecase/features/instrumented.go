package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/petmatch/internal/domain"
	"github.com/kailas-cloud/petmatch/internal/domain/pet"
	"github.com/kailas-cloud/petmatch/internal/metrics"
)

// InstrumentedProvider wraps a Provider with a per-call timeout and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai;
// this layer counts timeouts and guarantees every failure wraps domain.ErrFeatureProvider.
type InstrumentedProvider struct {
	inner    Provider
	provider string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInstrumentedProvider wraps inner. A zero timeout disables the deadline.
func NewInstrumentedProvider(
	inner Provider, provider, model string,
	timeout time.Duration, logger *zap.Logger,
) *InstrumentedProvider {
	return &InstrumentedProvider{
		inner:    inner,
		provider: provider,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
}

// Analyze delegates to the inner provider under the configured deadline.
func (p *InstrumentedProvider) Analyze(ctx context.Context, pt pet.Pet) (pet.Features, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	f, err := p.inner.Analyze(ctx, pt)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.FeatureErrorsTotal.WithLabelValues(p.provider, p.model, "timeout").Inc()
		}
		p.logger.Error("Feature extraction failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.String("pet_id", pt.ID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if !errors.Is(err, domain.ErrFeatureProvider) {
			err = fmt.Errorf("%w: %w", domain.ErrFeatureProvider, err)
		}
		return pet.Features{}, fmt.Errorf("analyze pet %s: %w", pt.ID, err)
	}

	p.logger.Debug("Feature extraction completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.String("pet_id", pt.ID),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(f.Vector)),
		zap.String("breed_estimate", f.BreedEstimate),
	)
	return f, nil
}
