package domain

// Push providers reject oversized payloads. Title and body are clamped
// before a message is queued.
const (
	MaxTitleLen = 178
	MaxBodyLen  = 1024
)

// Message is a fully-formatted push notification awaiting delivery. Path is a
// deep link the client opens when the notification is tapped.
type Message struct {
	Recipient string `json:"did"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Path      string `json:"path"`
}

// NewMessage builds a Message with title and body clamped to provider limits.
func NewMessage(recipient, title, body, path string) Message {
	return Message{
		Recipient: recipient,
		Title:     Truncate(title, MaxTitleLen),
		Body:      Truncate(body, MaxBodyLen),
		Path:      path,
	}
}

// Truncate returns the first n characters of s, appending "..." if truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
