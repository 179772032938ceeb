package domain

// Kind identifies the type of action behind a notification candidate.
type Kind string

const (
	KindFollow  Kind = "follow"
	KindReply   Kind = "reply"
	KindQuote   Kind = "quote"
	KindMention Kind = "mention"
	KindLike    Kind = "like"
	KindRepost  Kind = "repost"
)

// Candidate is a normalized firehose commit that might warrant a push
// notification. Creator is never equal to Subject, and Subject is always a
// registered account at the time the candidate is built; both invariants are
// enforced by the classifier before emission.
type Candidate struct {
	Kind    Kind
	Creator string // DID of the account that performed the action
	Subject string // DID of the account that should be notified

	// URI is the at-uri of the post (reply/quote/mention) or of the liked or
	// reposted record. Empty for follows.
	URI string

	// Text is the post text carried on the commit itself, when present.
	Text string
}
