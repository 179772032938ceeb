package firehose

import (
	"encoding/json"
	"fmt"

	"github.com/graysky/push-notifs/internal/domain"
)

// classify turns one "create" commit into zero or more notification
// candidates. Every emitted candidate targets a registered account other than
// the actor; malformed records are treated as non-matching, never as errors.
func classify(event *jetstreamEvent, accounts domain.AccountView) []domain.Candidate {
	commit := event.Commit
	creator := event.DID

	switch commit.Collection {
	case collectionFollow:
		var record followRecord
		if err := json.Unmarshal(commit.Record, &record); err != nil {
			return nil
		}
		subject := record.Subject
		if subject == "" || subject == creator || !accounts.IsRelevantAccount(subject) {
			return nil
		}
		return []domain.Candidate{{
			Kind:    domain.KindFollow,
			Creator: creator,
			Subject: subject,
		}}

	case collectionPost:
		var record postRecord
		if err := json.Unmarshal(commit.Record, &record); err != nil {
			return nil
		}
		postURI := fmt.Sprintf("at://%s/%s/%s", creator, commit.Collection, commit.RKey)
		return classifyPost(creator, postURI, &record, accounts)

	case collectionLike, collectionRepost:
		var record subjectRecord
		if err := json.Unmarshal(commit.Record, &record); err != nil {
			return nil
		}
		subject := domain.AuthorOfURI(record.Subject.URI)
		if subject == "" || subject == creator || !accounts.IsRelevantAccount(subject) {
			return nil
		}
		kind := domain.KindLike
		if commit.Collection == collectionRepost {
			kind = domain.KindRepost
		}
		return []domain.Candidate{{
			Kind:    kind,
			Creator: creator,
			Subject: subject,
			URI:     record.Subject.URI,
		}}

	default:
		return nil
	}
}

// classifyPost inspects a post in priority order: reply, then quote, then
// mentions. A reply notifies the root author when registered, otherwise the
// parent author, never both.
func classifyPost(creator, postURI string, record *postRecord, accounts domain.AccountView) []domain.Candidate {
	if record.Reply != nil {
		rootSubject := domain.AuthorOfURI(record.Reply.Root.URI)
		parentSubject := domain.AuthorOfURI(record.Reply.Parent.URI)
		if rootSubject == "" || parentSubject == "" {
			return nil
		}

		var subject string
		switch {
		case rootSubject != creator && accounts.IsRelevantAccount(rootSubject):
			subject = rootSubject
		case parentSubject != creator && accounts.IsRelevantAccount(parentSubject):
			subject = parentSubject
		default:
			return nil
		}

		return []domain.Candidate{{
			Kind:    domain.KindReply,
			Creator: creator,
			Subject: subject,
			URI:     postURI,
			Text:    record.Text,
		}}
	}

	if uri := quotedRecordURI(record.Embed); uri != "" {
		subject := domain.AuthorOfURI(uri)
		if subject == "" || subject == creator || !accounts.IsRelevantAccount(subject) {
			return nil
		}
		return []domain.Candidate{{
			Kind:    domain.KindQuote,
			Creator: creator,
			Subject: subject,
			URI:     postURI,
			Text:    record.Text,
		}}
	}

	if len(record.Facets) > 0 {
		var candidates []domain.Candidate
		notified := make(map[string]struct{})
		for _, f := range record.Facets {
			for _, feature := range f.Features {
				if feature.Type != mentionFeatureType {
					continue
				}
				subject := feature.DID
				if subject == "" || subject == creator || !accounts.IsRelevantAccount(subject) {
					continue
				}
				if _, seen := notified[subject]; seen {
					continue
				}
				notified[subject] = struct{}{}
				candidates = append(candidates, domain.Candidate{
					Kind:    domain.KindMention,
					Creator: creator,
					Subject: subject,
					URI:     postURI,
					Text:    record.Text,
				})
			}
		}
		return candidates
	}

	return nil
}
