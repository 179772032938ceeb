// Package push delivers queued messages through the Expo push gateway and
// reconciles delivery receipts.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Gateway chunk limits imposed by the Expo API.
const (
	SendChunkSize    = 100
	ReceiptChunkSize = 1000
)

// ErrorDeviceNotRegistered is the receipt error code for a permanently dead
// device token.
const ErrorDeviceNotRegistered = "DeviceNotRegistered"

// PushMessage is one gateway-bound notification for a single device token.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Ticket is the gateway's per-message response to a send call. Status "ok"
// carries an ID for the later receipt check.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *ticketDetails `json:"details,omitempty"`
}

// Receipt is the gateway's asynchronous delivery outcome for a ticket.
type Receipt struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details *ticketDetails `json:"details,omitempty"`
}

type ticketDetails struct {
	Error string `json:"error,omitempty"`
}

// ErrorCode returns the provider error code, or "" when none was reported.
func (t *Ticket) ErrorCode() string {
	if t.Details == nil {
		return ""
	}
	return t.Details.Error
}

// ErrorCode returns the provider error code, or "" when none was reported.
func (r *Receipt) ErrorCode() string {
	if r.Details == nil {
		return ""
	}
	return r.Details.Error
}

// Gateway is an HTTP client for the Expo push API.
type Gateway struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewGateway creates a Gateway for the given API base URL (e.g.
// https://exp.host/--/api/v2/push). accessToken may be empty.
func NewGateway(baseURL, accessToken string) *Gateway {
	return &Gateway{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendBatch submits one chunk of at most SendChunkSize messages and returns
// one ticket per message, in order.
func (g *Gateway) SendBatch(ctx context.Context, messages []PushMessage) ([]Ticket, error) {
	if len(messages) > SendChunkSize {
		return nil, fmt.Errorf("batch of %d exceeds chunk size %d", len(messages), SendChunkSize)
	}

	var resp struct {
		Data []Ticket `json:"data"`
	}
	if err := g.post(ctx, "/send", messages, &resp); err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}

	if len(resp.Data) != len(messages) {
		return nil, fmt.Errorf("gateway returned %d tickets for %d messages", len(resp.Data), len(messages))
	}
	return resp.Data, nil
}

// GetReceipts fetches delivery receipts for at most ReceiptChunkSize ticket
// IDs. Tickets the gateway has not yet processed are absent from the result.
func (g *Gateway) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	if len(ids) > ReceiptChunkSize {
		return nil, fmt.Errorf("batch of %d exceeds chunk size %d", len(ids), ReceiptChunkSize)
	}

	var resp struct {
		Data map[string]Receipt `json:"data"`
	}
	body := map[string][]string{"ids": ids}
	if err := g.post(ctx, "/getReceipts", body, &resp); err != nil {
		return nil, fmt.Errorf("get receipts: %w", err)
	}
	return resp.Data, nil
}

func (g *Gateway) post(ctx context.Context, path string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
