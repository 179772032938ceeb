package domain

import "strings"

// ATURI is a parsed at-uri of the form at://{did}/{collection}/{rkey}.
type ATURI struct {
	DID        string
	Collection string
	RKey       string
}

// ParseATURI splits an at-uri into its authority, collection, and record key.
// Returns false for anything that doesn't have all three segments.
func ParseATURI(uri string) (ATURI, bool) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return ATURI{}, false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ATURI{}, false
	}
	return ATURI{DID: parts[0], Collection: parts[1], RKey: parts[2]}, true
}

// AuthorOfURI returns the DID segment of an at-uri, or "" if the uri is
// malformed.
func AuthorOfURI(uri string) string {
	parsed, ok := ParseATURI(uri)
	if !ok {
		return ""
	}
	return parsed.DID
}
