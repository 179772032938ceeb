// Package pipeline consumes notification candidates and turns them into
// queued push messages: blocking check, rate limit, enrichment, formatting,
// enqueue. Any step may drop the candidate; a dropped candidate is final.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/graysky/push-notifs/internal/domain"
	"github.com/graysky/push-notifs/internal/metrics"
	"github.com/graysky/push-notifs/internal/ratelimit"
)

// Enricher resolves display names, context text, and block relationships.
// Implemented by the enrichment cache.
type Enricher interface {
	GetProfile(ctx context.Context, did string) (string, error)
	GetContextPost(ctx context.Context, uri string) (string, error)
	GetContextFeed(ctx context.Context, uri string) (string, error)
	IsBlocking(ctx context.Context, subject, target string) (bool, error)
}

// RateLimiter bounds notifications per recipient.
type RateLimiter interface {
	Check(ctx context.Context, recipient string) (ratelimit.Result, error)
}

// Queuer appends a formatted message to the dispatch queue.
type Queuer interface {
	Enqueue(ctx context.Context, msg domain.Message) error
}

// FollowChecker reports whether one account follows another. Used only for
// the best-effort "followed you back" upgrade.
type FollowChecker interface {
	IsFollowing(ctx context.Context, actor, other string) (bool, error)
}

// Pipeline runs a pool of workers over the candidate channel.
type Pipeline struct {
	enricher Enricher
	limiter  RateLimiter
	queue    Queuer
	follows  FollowChecker
	metrics  *metrics.Collector
	logger   *slog.Logger
	workers  int
}

// New creates a Pipeline. workers <= 0 defaults to 4.
func New(
	enricher Enricher,
	limiter RateLimiter,
	queue Queuer,
	follows FollowChecker,
	collector *metrics.Collector,
	logger *slog.Logger,
	workers int,
) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		enricher: enricher,
		limiter:  limiter,
		queue:    queue,
		follows:  follows,
		metrics:  collector,
		logger:   logger,
		workers:  workers,
	}
}

// Run consumes candidates until the channel closes or the context is
// cancelled. A failing candidate never stops the workers.
func (p *Pipeline) Run(ctx context.Context, candidates <-chan domain.Candidate) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case candidate, ok := <-candidates:
					if !ok {
						return
					}
					p.handle(ctx, candidate)
				}
			}
		}()
	}
	wg.Wait()
}

func (p *Pipeline) handle(ctx context.Context, candidate domain.Candidate) {
	if err := p.Process(ctx, candidate); err != nil {
		p.metrics.RecordDrop("error")
		p.logger.Error("failed to process candidate",
			"kind", candidate.Kind,
			"creator", candidate.Creator,
			"subject", candidate.Subject,
			"error", err,
		)
	}
}

// Process runs one candidate through every pipeline step. Deliberate drops
// (blocked, rate limited) return nil.
func (p *Pipeline) Process(ctx context.Context, candidate domain.Candidate) error {
	blocking, err := p.enricher.IsBlocking(ctx, candidate.Subject, candidate.Creator)
	if err != nil {
		return fmt.Errorf("blocking check: %w", err)
	}
	if blocking {
		p.metrics.RecordDrop("blocked")
		p.logger.Info("suppressed notification from blocked account",
			"creator", candidate.Creator,
			"subject", candidate.Subject,
		)
		return nil
	}

	limit, err := p.limiter.Check(ctx, candidate.Subject)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if limit.Exceeded {
		p.metrics.RecordDrop("rate_limited")
		p.logger.Info("suppressed notification over rate limit",
			"subject", candidate.Subject,
			"count", limit.Count,
		)
		return nil
	}

	msg, err := p.buildMessage(ctx, candidate)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if err := p.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	p.metrics.RecordMessageQueued()
	return nil
}
