package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

// Resolved wraps a payload with the name of the source that produced it.
type Resolved[T any] struct {
	Source string
	Data   T
}

// SourceResolver tries market sources in priority order and returns the first
// valid answer. It holds no state between calls and never retries a source
// within one call; retry over time is the poller's job.
type SourceResolver struct {
	sources []domain.MarketSource
	timeout time.Duration
	logger  *zap.Logger
}

func NewSourceResolver(sources []domain.MarketSource, timeout time.Duration, logger *zap.Logger) *SourceResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceResolver{
		sources: sources,
		timeout: timeout,
		logger:  logger,
	}
}

func (r *SourceResolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

func (r *SourceResolver) FetchMarketSnapshot(ctx context.Context) (Resolved[[]domain.MarketEntity], error) {
	return executeWithFallback(ctx, r, "market snapshot", func(ctx context.Context, s domain.MarketSource) ([]domain.MarketEntity, error) {
		return s.FetchMarkets(ctx)
	})
}

func (r *SourceResolver) FetchHistoricalSeries(ctx context.Context, entityID string, rangeDays int) (Resolved[[]domain.PricePoint], error) {
	if entityID == "" {
		return Resolved[[]domain.PricePoint]{}, fmt.Errorf("historical series: empty entity id")
	}
	if rangeDays <= 0 {
		rangeDays = 7
	}
	op := fmt.Sprintf("historical series %s/%dd", entityID, rangeDays)
	return executeWithFallback(ctx, r, op, func(ctx context.Context, s domain.MarketSource) ([]domain.PricePoint, error) {
		return s.FetchHistory(ctx, entityID, rangeDays)
	})
}

func executeWithFallback[T any](ctx context.Context, r *SourceResolver, operation string, fn func(context.Context, domain.MarketSource) (T, error)) (Resolved[T], error) {
	var failures []domain.SourceFailure

	for i, src := range r.sources {
		if err := ctx.Err(); err != nil {
			failures = append(failures, domain.SourceFailure{Source: src.Name(), Err: err})
			break
		}

		result, err := callWithTimeout(ctx, r.timeout, src, fn)
		if err == nil {
			if i > 0 {
				r.logger.Info("Operation succeeded on fallback source",
					zap.String("operation", operation),
					zap.String("source", src.Name()),
				)
			}
			return Resolved[T]{Source: src.Name(), Data: result}, nil
		}

		failures = append(failures, domain.SourceFailure{Source: src.Name(), Err: err})
		r.logger.Warn("Source failed, advancing",
			zap.String("operation", operation),
			zap.String("source", src.Name()),
			zap.Error(err),
		)
	}

	return Resolved[T]{}, &domain.SourceExhaustedError{Operation: operation, Failures: failures}
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, src domain.MarketSource, fn func(context.Context, domain.MarketSource) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(ctx, src)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("%w: %s timed out after %s: %w", domain.ErrTransport, src.Name(), timeout, err)
	}
	return result, err
}
