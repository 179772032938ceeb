package domain

import "context"

// AccountView is the read-only registry lookup used by the classifier and the
// push sender. Implementations must be safe for concurrent use.
type AccountView interface {
	// IsRelevantAccount reports whether the DID has at least one registered
	// device and should therefore receive notifications.
	IsRelevantAccount(did string) bool

	// PushTokens returns the active device tokens for the DID, or nil if the
	// account is not registered.
	PushTokens(did string) []string
}

// AccountRepository loads registered accounts from the backing store.
type AccountRepository interface {
	// ListAccounts returns every account with at least one non-disabled push
	// token, joined with its mute and mute-list identifiers.
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// TokenDisabler marks a device token as permanently dead so the next registry
// refresh excludes it.
type TokenDisabler interface {
	DisableToken(ctx context.Context, token string) error
}
