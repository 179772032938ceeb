package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}

		var messages []PushMessage
		if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("got %d messages", len(messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"status": "ok", "id": "t1"},
				{"status": "error", "message": "bad token", "details": map[string]string{"error": ErrorDeviceNotRegistered}},
			},
		})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "test-token")
	tickets, err := g.SendBatch(context.Background(), []PushMessage{
		{To: "token-1", Title: "a"},
		{To: "token-2", Title: "b"},
	})
	if err != nil {
		t.Fatalf("send batch: %v", err)
	}

	if tickets[0].Status != "ok" || tickets[0].ID != "t1" {
		t.Errorf("ticket 0 = %+v", tickets[0])
	}
	if tickets[1].Status != "error" || tickets[1].ErrorCode() != ErrorDeviceNotRegistered {
		t.Errorf("ticket 1 = %+v", tickets[1])
	}
}

func TestSendBatchRejectsOversizedChunk(t *testing.T) {
	g := NewGateway("http://gateway.invalid", "")
	oversized := make([]PushMessage, SendChunkSize+1)
	if _, err := g.SendBatch(context.Background(), oversized); err == nil {
		t.Fatal("expected oversized batch to be rejected locally")
	}
}

func TestSendBatchTicketCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "")
	if _, err := g.SendBatch(context.Background(), []PushMessage{{To: "token-1"}}); err == nil {
		t.Fatal("expected error on ticket/message count mismatch")
	}
}

func TestGetReceipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getReceipts" {
			t.Errorf("path = %s", r.URL.Path)
		}

		var body map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body["ids"]) != 2 {
			t.Fatalf("ids = %v", body["ids"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"t1": map[string]string{"status": "ok"},
				"t2": map[string]any{
					"status":  "error",
					"details": map[string]string{"error": ErrorDeviceNotRegistered},
				},
			},
		})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "")
	receipts, err := g.GetReceipts(context.Background(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("get receipts: %v", err)
	}

	if receipts["t1"].Status != "ok" {
		t.Errorf("t1 = %+v", receipts["t1"])
	}
	if r := receipts["t2"]; r.Status != "error" || r.ErrorCode() != ErrorDeviceNotRegistered {
		t.Errorf("t2 = %+v", r)
	}
}
