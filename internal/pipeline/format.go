package pipeline

import (
	"context"
	"fmt"

	"github.com/graysky/push-notifs/internal/domain"
)

const (
	postCollection = "app.bsky.feed.post"
	feedCollection = "app.bsky.feed.generator"
)

// buildMessage enriches the candidate and formats the recipient-facing
// message. Failures resolving required fields abandon the candidate; only
// the "followed you back" lookup is best-effort.
func (p *Pipeline) buildMessage(ctx context.Context, candidate domain.Candidate) (domain.Message, error) {
	name, err := p.enricher.GetProfile(ctx, candidate.Creator)
	if err != nil {
		return domain.Message{}, fmt.Errorf("resolve creator profile: %w", err)
	}

	switch candidate.Kind {
	case domain.KindFollow:
		body := name + " followed you"
		if followedBack, err := p.follows.IsFollowing(ctx, candidate.Subject, candidate.Creator); err != nil {
			// Best-effort upgrade only; fall back to the plain message.
			p.logger.Warn("followed-back lookup failed",
				"creator", candidate.Creator,
				"subject", candidate.Subject,
				"error", err,
			)
		} else if followedBack {
			body = name + " followed you back"
		}
		return domain.NewMessage(candidate.Subject, "New follower!", body, deepLinkPath(candidate)), nil

	case domain.KindReply, domain.KindQuote, domain.KindMention:
		text := candidate.Text
		if text == "" {
			text, err = p.enricher.GetContextPost(ctx, candidate.URI)
			if err != nil {
				return domain.Message{}, fmt.Errorf("resolve post text: %w", err)
			}
		}
		return domain.NewMessage(candidate.Subject, titleFor(candidate.Kind, name, false), text, deepLinkPath(candidate)), nil

	case domain.KindLike, domain.KindRepost:
		onFeed := isFeedURI(candidate.URI)
		var body string
		if onFeed {
			body, err = p.enricher.GetContextFeed(ctx, candidate.URI)
		} else {
			body, err = p.enricher.GetContextPost(ctx, candidate.URI)
		}
		if err != nil {
			return domain.Message{}, fmt.Errorf("resolve context: %w", err)
		}
		return domain.NewMessage(candidate.Subject, titleFor(candidate.Kind, name, onFeed), body, deepLinkPath(candidate)), nil

	default:
		return domain.Message{}, fmt.Errorf("unknown candidate kind %q", candidate.Kind)
	}
}

// titleFor builds the notification title for a kind. onFeed distinguishes
// likes of feed generators from likes of posts.
func titleFor(kind domain.Kind, name string, onFeed bool) string {
	switch kind {
	case domain.KindLike:
		if onFeed {
			return name + " liked your feed"
		}
		return name + " liked your post"
	case domain.KindRepost:
		return name + " reposted your post"
	case domain.KindReply:
		return name + " replied to your post"
	case domain.KindQuote:
		return name + " quoted your post"
	case domain.KindMention:
		return name + " mentioned you"
	default:
		return ""
	}
}

// deepLinkPath derives the client deep link from the candidate. Follows open
// the follower's profile; everything else opens the referenced post or feed.
func deepLinkPath(candidate domain.Candidate) string {
	if candidate.Kind == domain.KindFollow {
		return "/profile/" + candidate.Creator
	}

	parsed, ok := domain.ParseATURI(candidate.URI)
	if !ok {
		return "/notifications"
	}
	switch parsed.Collection {
	case postCollection:
		return fmt.Sprintf("/profile/%s/post/%s", parsed.DID, parsed.RKey)
	case feedCollection:
		return fmt.Sprintf("/profile/%s/feed/%s", parsed.DID, parsed.RKey)
	default:
		return "/notifications"
	}
}

func isFeedURI(uri string) bool {
	parsed, ok := domain.ParseATURI(uri)
	return ok && parsed.Collection == feedCollection
}
