// Package firehose subscribes to the Jetstream commit stream and turns
// relevant commits into notification candidates.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/graysky/push-notifs/internal/domain"
	"github.com/graysky/push-notifs/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// A connection that survives this long resets the reconnect backoff.
	healthyConnAge = time.Minute
)

// wantedCollections is the set of AT Proto collection NSIDs this subscriber
// requests from Jetstream.
var wantedCollections = []string{
	collectionFollow,
	collectionPost,
	collectionLike,
	collectionRepost,
}

// Subscriber connects to the Jetstream firehose, classifies commit events,
// and forwards candidates over a bounded channel. The websocket read loop
// never blocks on downstream work: when the channel is full the candidate is
// dropped and counted.
type Subscriber struct {
	url      string
	accounts domain.AccountView
	metrics  *metrics.Collector
	logger   *slog.Logger
	out      chan domain.Candidate
}

// NewSubscriber creates a new firehose subscriber with the given candidate
// buffer size.
func NewSubscriber(
	firehoseURL string,
	accounts domain.AccountView,
	collector *metrics.Collector,
	logger *slog.Logger,
	buffer int,
) *Subscriber {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Subscriber{
		url:      firehoseURL,
		accounts: accounts,
		metrics:  collector,
		logger:   logger,
		out:      make(chan domain.Candidate, buffer),
	}
}

// Candidates returns the channel of classified notification candidates.
func (s *Subscriber) Candidates() <-chan domain.Candidate {
	return s.out
}

// Start connects to the firehose and processes events until the context is
// cancelled. It automatically reconnects with bounded exponential backoff;
// no cursor is kept, so events during a gap are lost (accepted tradeoff).
func (s *Subscriber) Start(ctx context.Context) error {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		started := time.Now()
		err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) >= healthyConnAge {
			backoff = initialBackoff
		}

		s.logger.Error("firehose connection error, reconnecting",
			"error", err,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Subscriber) buildURL() string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL := s.buildURL()
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.logger.Info("connected to firehose")

	var eventsReceived, candidatesEmitted, candidatesDropped int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		eventsReceived++
		s.metrics.RecordEventReceived()

		var event jetstreamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		if event.Kind != "commit" || event.Commit == nil || event.Commit.Operation != "create" {
			continue
		}
		s.metrics.RecordCommitHandled()

		for _, candidate := range classify(&event, s.accounts) {
			s.metrics.RecordCandidate(string(candidate.Kind))
			select {
			case s.out <- candidate:
				candidatesEmitted++
			default:
				// The pipeline is behind; ingestion must not block.
				candidatesDropped++
				s.metrics.RecordDrop("overflow")
			}
		}

		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("firehose stats",
				"events_received", eventsReceived,
				"candidates_emitted", candidatesEmitted,
				"candidates_dropped", candidatesDropped,
			)
			lastStatsLog = time.Now()
		}
	}
}
