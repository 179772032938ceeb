// Package accounts maintains an in-memory snapshot of every registered
// account, refreshed periodically from the backing store.
package accounts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/graysky/push-notifs/internal/domain"
)

// Registry implements domain.AccountView over a point-in-time snapshot of the
// account store. The snapshot is replaced wholesale by each refresh via an
// atomic pointer swap, so readers never observe a partially-updated map.
type Registry struct {
	repo     domain.AccountRepository
	logger   *slog.Logger
	snapshot atomic.Pointer[map[string]*domain.Account]
}

// NewRegistry creates a Registry with an empty snapshot. Call Refresh or
// Start to populate it.
func NewRegistry(repo domain.AccountRepository, logger *slog.Logger) *Registry {
	r := &Registry{
		repo:   repo,
		logger: logger,
	}
	empty := make(map[string]*domain.Account)
	r.snapshot.Store(&empty)
	return r
}

// IsRelevantAccount reports whether the DID has a device registration.
func (r *Registry) IsRelevantAccount(did string) bool {
	_, ok := (*r.snapshot.Load())[did]
	return ok
}

// PushTokens returns the active device tokens for the DID.
func (r *Registry) PushTokens(did string) []string {
	account, ok := (*r.snapshot.Load())[did]
	if !ok {
		return nil
	}
	tokens := make([]string, len(account.Tokens))
	for i, t := range account.Tokens {
		tokens[i] = t.Token
	}
	return tokens
}

// Len returns the number of registered accounts in the current snapshot.
func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}

// Refresh performs one bulk load from the backing store and swaps in the new
// snapshot. On error the previous snapshot stays in place; staleness is
// preferred over unavailability.
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.repo.ListAccounts(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]*domain.Account, len(list))
	for _, account := range list {
		next[account.DID] = account
	}
	r.snapshot.Store(&next)

	return nil
}

// Start refreshes immediately and then on the given interval until the
// context is cancelled. Refresh failures are logged, not propagated.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	r.runRefresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runRefresh(ctx)
		}
	}
}

func (r *Registry) runRefresh(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("account refresh failed, keeping previous snapshot", "error", err)
		return
	}
	r.logger.Info("account registry refreshed", "accounts", r.Len())
}
