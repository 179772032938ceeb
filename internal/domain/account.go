package domain

// PushToken is one registered device of an account.
type PushToken struct {
	Platform string
	Token    string
}

// Account is a registered user with at least one active device. Accounts are
// materialized wholesale by the registry refresh and treated as immutable
// snapshots by every reader.
type Account struct {
	DID       string
	Mutes     []string // DIDs of muted users
	MuteLists []string // at-uris of muted lists
	Tokens    []PushToken
}
