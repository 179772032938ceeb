package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetProfile(t *testing.T) {
	tests := []struct {
		name string
		resp map[string]string
		want string
	}{
		{
			name: "display name",
			resp: map[string]string{"handle": "alice.test", "displayName": "Alice"},
			want: "Alice",
		},
		{
			name: "falls back to handle",
			resp: map[string]string{"handle": "alice.test"},
			want: "alice.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/xrpc/app.bsky.actor.getProfile" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("actor"); got != "did:a" {
					t.Errorf("actor = %q", got)
				}
				json.NewEncoder(w).Encode(tt.resp)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			got, err := c.GetProfile(context.Background(), "did:a")
			if err != nil {
				t.Fatalf("get profile: %v", err)
			}
			if got != tt.want {
				t.Errorf("name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetPostText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"thread": map[string]any{
				"$type": "app.bsky.feed.defs#threadViewPost",
				"post": map[string]any{
					"record": map[string]string{"text": "hello world"},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	got, err := c.GetPostText(context.Background(), "at://did:b/app.bsky.feed.post/p1")
	if err != nil {
		t.Fatalf("get post text: %v", err)
	}
	if got != "hello world" {
		t.Errorf("text = %q", got)
	}
}

func TestGetPostTextNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"thread": map[string]any{"$type": "app.bsky.feed.defs#notFoundPost"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.GetPostText(context.Background(), "at://did:b/app.bsky.feed.post/p1"); err == nil {
		t.Fatal("expected error for a non-viewable post")
	}
}

func TestIsFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"relationships": []map[string]string{{
				"$type":     "app.bsky.graph.defs#relationship",
				"did":       "did:a",
				"following": "at://did:b/app.bsky.graph.follow/f1",
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	following, err := c.IsFollowing(context.Background(), "did:b", "did:a")
	if err != nil {
		t.Fatalf("is following: %v", err)
	}
	if !following {
		t.Error("expected following = true")
	}
}

func TestListAllBlocksPaginates(t *testing.T) {
	var pds *httptest.Server
	pds = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/com.atproto.repo.listRecords" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("collection"); got != "app.bsky.graph.block" {
			t.Errorf("collection = %q", got)
		}

		switch r.URL.Query().Get("cursor") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"cursor": "page2",
				"records": []map[string]any{
					{"value": map[string]string{"subject": "did:x"}},
				},
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{
					{"value": map[string]string{"subject": "did:y"}},
				},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer pds.Close()

	plc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/did:b" {
			t.Errorf("plc path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"service": []map[string]string{{
				"id":              "#atproto_pds",
				"type":            "AtprotoPersonalDataServer",
				"serviceEndpoint": pds.URL,
			}},
		})
	}))
	defer plc.Close()

	c := NewClient("http://appview.invalid", plc.URL)
	blocks, err := c.ListAllBlocks(context.Background(), "did:b")
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 2 || blocks[0] != "did:x" || blocks[1] != "did:y" {
		t.Errorf("blocks = %v, want [did:x did:y]", blocks)
	}
}

func TestGetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"InternalServerError"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.GetProfile(context.Background(), "did:a"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
