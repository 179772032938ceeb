package firehose

import "encoding/json"

// Collection NSIDs this service subscribes to.
const (
	collectionFollow = "app.bsky.graph.follow"
	collectionPost   = "app.bsky.feed.post"
	collectionLike   = "app.bsky.feed.like"
	collectionRepost = "app.bsky.feed.repost"
)

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream. Record is decoded
// lazily per collection by the classifier.
type jetstreamCommit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid"`
}

// followRecord is the content of an app.bsky.graph.follow record.
type followRecord struct {
	Subject string `json:"subject"`
}

// subjectRecord is the shared shape of like and repost records.
type subjectRecord struct {
	Subject strongRef `json:"subject"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Text   string          `json:"text"`
	Reply  *replyRef       `json:"reply,omitempty"`
	Embed  json.RawMessage `json:"embed,omitempty"`
	Facets []facet         `json:"facets,omitempty"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// facet is a rich-text annotation; only mention features are of interest.
type facet struct {
	Features []facetFeature `json:"features"`
}

type facetFeature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
}

const mentionFeatureType = "app.bsky.richtext.facet#mention"

// quotedRecordURI extracts the at-uri of a quoted record from a post embed,
// handling both plain record embeds and record-with-media embeds. Returns ""
// when the embed does not quote a record.
func quotedRecordURI(embed json.RawMessage) string {
	if len(embed) == 0 {
		return ""
	}

	var probe struct {
		Type   string          `json:"$type"`
		Record json.RawMessage `json:"record,omitempty"`
	}
	if err := json.Unmarshal(embed, &probe); err != nil {
		return ""
	}

	switch probe.Type {
	case "app.bsky.embed.record":
		var ref strongRef
		if err := json.Unmarshal(probe.Record, &ref); err != nil {
			return ""
		}
		return ref.URI

	case "app.bsky.embed.recordWithMedia":
		var inner struct {
			Record strongRef `json:"record"`
		}
		if err := json.Unmarshal(probe.Record, &inner); err != nil {
			return ""
		}
		return inner.Record.URI

	default:
		return ""
	}
}
