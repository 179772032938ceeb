package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/graysky/push-notifs/internal/domain"
	"github.com/lib/pq"
)

// Repository implements domain.AccountRepository and domain.TokenDisabler
// using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// ListAccounts returns every user with at least one non-disabled push token,
// joined with their mute and mute-list identifiers, in a single bulk query.
func (r *Repository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			u.did,
			COALESCE(array_agg(DISTINCT m.muted_did) FILTER (WHERE m.muted_did IS NOT NULL), '{}'),
			COALESCE(array_agg(DISTINCT ml.list_uri) FILTER (WHERE ml.list_uri IS NOT NULL), '{}'),
			COALESCE(array_agg(DISTINCT t.platform || '|' || t.token) FILTER (WHERE t.token IS NOT NULL), '{}')
		FROM users u
		JOIN push_tokens t ON t.user_did = u.did AND NOT t.disabled
		LEFT JOIN mutes m ON m.user_did = u.did
		LEFT JOIN mute_lists ml ON ml.user_did = u.did
		GROUP BY u.did`,
	)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var (
			a         domain.Account
			rawTokens []string
		)
		err := rows.Scan(
			&a.DID,
			pq.Array(&a.Mutes),
			pq.Array(&a.MuteLists),
			pq.Array(&rawTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		for _, raw := range rawTokens {
			platform, token, ok := splitToken(raw)
			if !ok {
				continue
			}
			a.Tokens = append(a.Tokens, domain.PushToken{Platform: platform, Token: token})
		}
		accounts = append(accounts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// DisableToken marks a push token as disabled so the next registry refresh
// excludes it.
func (r *Repository) DisableToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE push_tokens SET disabled = TRUE WHERE token = $1`, token,
	)
	if err != nil {
		return fmt.Errorf("disable token: %w", err)
	}
	return nil
}

// splitToken unpacks the "platform|token" aggregate produced by ListAccounts.
// Tokens may themselves contain '|', so only the first separator counts.
func splitToken(raw string) (platform, token string, ok bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '|' {
			return raw[:i], raw[i+1:], true
		}
	}
	return "", "", false
}
