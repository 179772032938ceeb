package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/graysky/push-notifs/internal/domain"
	"github.com/graysky/push-notifs/internal/metrics"
)

// PushGateway is the subset of the gateway client the sender uses. Split out
// so tests can fake the provider.
type PushGateway interface {
	SendBatch(ctx context.Context, messages []PushMessage) ([]Ticket, error)
	GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error)
}

// ticketRef pairs a gateway ticket ID with the device token it was issued
// for, so a dead-device receipt can be traced back to its token.
type ticketRef struct {
	id    string
	token string
}

// Sender drains the dispatch queue on a short interval, fans each message out
// to the recipient's device tokens, and sends provider-sized chunks. Accepted
// tickets are double-buffered: the reconciler checks the previous interval's
// batch while the current one accumulates, giving the gateway its minimum
// processing time before receipts are queried.
type Sender struct {
	queue    *Queue
	gateway  PushGateway
	accounts domain.AccountView
	disabler domain.TokenDisabler
	metrics  *metrics.Collector
	logger   *slog.Logger

	// pace caps the rate of gateway send calls.
	pace *rate.Limiter

	mu       sync.Mutex
	incoming []ticketRef
	pending  []ticketRef
}

// NewSender creates a Sender.
func NewSender(
	queue *Queue,
	gateway PushGateway,
	accounts domain.AccountView,
	disabler domain.TokenDisabler,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Sender {
	return &Sender{
		queue:    queue,
		gateway:  gateway,
		accounts: accounts,
		disabler: disabler,
		metrics:  collector,
		logger:   logger,
		pace:     rate.NewLimiter(rate.Limit(6), 6), // send chunks, per second
	}
}

// Start runs the drain loop and the receipt loop on independent tickers until
// the context is cancelled. The loops never block each other.
func (s *Sender) Start(ctx context.Context, drainInterval, receiptInterval time.Duration) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Let in-flight messages out before exit.
				s.DrainOnce(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				s.DrainOnce(ctx)
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(receiptInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckReceiptsOnce(ctx)
			}
		}
	}()

	wg.Wait()
}

// DrainOnce pops everything currently queued, expands recipients to device
// tokens, and sends the result in gateway-sized chunks. A failing chunk or
// message never blocks its siblings.
func (s *Sender) DrainOnce(ctx context.Context) {
	messages, err := s.queue.DrainAll(ctx)
	if err != nil {
		s.logger.Error("failed to drain queue", "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	var batch []PushMessage
	for _, msg := range messages {
		for _, token := range s.accounts.PushTokens(msg.Recipient) {
			batch = append(batch, PushMessage{
				To:    token,
				Title: msg.Title,
				Body:  msg.Body,
				Data:  map[string]string{"path": msg.Path},
			})
		}
	}
	if len(batch) == 0 {
		return
	}

	s.logger.Info("sending push notifications",
		"messages", len(messages),
		"pushes", len(batch),
	)

	for start := 0; start < len(batch); start += SendChunkSize {
		end := start + SendChunkSize
		if end > len(batch) {
			end = len(batch)
		}
		s.sendChunk(ctx, batch[start:end])
	}
}

func (s *Sender) sendChunk(ctx context.Context, chunk []PushMessage) {
	if err := s.pace.Wait(ctx); err != nil {
		return
	}

	tickets, err := s.gateway.SendBatch(ctx, chunk)
	if err != nil {
		s.logger.Error("failed to send chunk", "size", len(chunk), "error", err)
		return
	}

	accepted := 0
	errored := 0
	for i, ticket := range tickets {
		if ticket.Status != "ok" {
			errored++
			s.logger.Error("gateway rejected message",
				"error_code", ticket.ErrorCode(),
				"message", ticket.Message,
			)
			continue
		}
		accepted++
		s.mu.Lock()
		s.incoming = append(s.incoming, ticketRef{id: ticket.ID, token: chunk[i].To})
		s.mu.Unlock()
	}

	s.metrics.RecordPushesSent(accepted)
	s.metrics.RecordPushErrors(errored)
}

// CheckReceiptsOnce swaps the ticket buffers and checks the batch collected
// during the previous interval. Permanently dead device tokens are disabled
// in the backing store; transient receipt errors are logged and ignored (the
// notification is not resent).
func (s *Sender) CheckReceiptsOnce(ctx context.Context) {
	s.mu.Lock()
	tickets := s.pending
	s.pending = s.incoming
	s.incoming = nil
	s.mu.Unlock()

	if len(tickets) == 0 {
		return
	}

	byID := make(map[string]string, len(tickets))
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		byID[t.id] = t.token
		ids = append(ids, t.id)
	}

	for start := 0; start < len(ids); start += ReceiptChunkSize {
		end := start + ReceiptChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		s.checkReceiptChunk(ctx, ids[start:end], byID)
	}
}

func (s *Sender) checkReceiptChunk(ctx context.Context, ids []string, byID map[string]string) {
	receipts, err := s.gateway.GetReceipts(ctx, ids)
	if err != nil {
		s.logger.Error("failed to get receipts", "count", len(ids), "error", err)
		return
	}
	s.metrics.RecordReceiptsChecked(len(receipts))

	for id, receipt := range receipts {
		if receipt.Status == "ok" {
			continue
		}

		s.logger.Error("push delivery failed",
			"error_code", receipt.ErrorCode(),
			"message", receipt.Message,
		)

		if receipt.ErrorCode() != ErrorDeviceNotRegistered {
			continue
		}

		token, ok := byID[id]
		if !ok {
			continue
		}
		if err := s.disabler.DisableToken(ctx, token); err != nil {
			s.logger.Error("failed to disable dead token", "error", err)
			continue
		}
		s.metrics.RecordTokenDisabled()
		s.logger.Info("disabled unregistered device token")
	}
}
