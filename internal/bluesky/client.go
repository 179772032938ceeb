// Package bluesky is a minimal read-only AT Protocol client used to enrich
// notifications with profile, post, and graph data.
package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultAppView = "https://api.bsky.app"

// Client calls the public AppView API, the PLC directory, and individual PDS
// hosts. All calls are idempotent reads and safe to retry.
type Client struct {
	appview      string
	plcDirectory string
	httpClient   *http.Client
}

// NewClient creates a new client. If appview or plcDirectory are empty they
// default to the public Bluesky endpoints.
func NewClient(appview, plcDirectory string) *Client {
	if appview == "" {
		appview = defaultAppView
	}
	if plcDirectory == "" {
		plcDirectory = "https://plc.directory"
	}
	return &Client{
		appview:      appview,
		plcDirectory: plcDirectory,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetProfile returns the display name of the account, falling back to the
// handle when no display name is set.
func (c *Client) GetProfile(ctx context.Context, did string) (string, error) {
	var resp struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	}

	params := url.Values{"actor": {did}}
	if err := c.get(ctx, c.appview, "/xrpc/app.bsky.actor.getProfile", params, &resp); err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}

	if resp.DisplayName != "" {
		return resp.DisplayName, nil
	}
	return resp.Handle, nil
}

// GetPostText returns the text of the post at the given at-uri.
func (c *Client) GetPostText(ctx context.Context, uri string) (string, error) {
	var resp struct {
		Thread struct {
			Type string `json:"$type"`
			Post struct {
				Record struct {
					Text string `json:"text"`
				} `json:"record"`
			} `json:"post"`
		} `json:"thread"`
	}

	params := url.Values{
		"uri":          {uri},
		"depth":        {"0"},
		"parentHeight": {"0"},
	}
	if err := c.get(ctx, c.appview, "/xrpc/app.bsky.feed.getPostThread", params, &resp); err != nil {
		return "", fmt.Errorf("get post thread: %w", err)
	}

	if resp.Thread.Type != "app.bsky.feed.defs#threadViewPost" {
		return "", fmt.Errorf("post %s is not viewable", uri)
	}
	return resp.Thread.Post.Record.Text, nil
}

// GetFeedGeneratorName returns the display name of a feed generator record.
func (c *Client) GetFeedGeneratorName(ctx context.Context, uri string) (string, error) {
	var resp struct {
		View struct {
			DisplayName string `json:"displayName"`
		} `json:"view"`
	}

	params := url.Values{"feed": {uri}}
	if err := c.get(ctx, c.appview, "/xrpc/app.bsky.feed.getFeedGenerator", params, &resp); err != nil {
		return "", fmt.Errorf("get feed generator: %w", err)
	}
	return resp.View.DisplayName, nil
}

// IsFollowing reports whether actor follows other. Used for the best-effort
// "followed you back" message upgrade.
func (c *Client) IsFollowing(ctx context.Context, actor, other string) (bool, error) {
	var resp struct {
		Relationships []struct {
			Type      string `json:"$type"`
			DID       string `json:"did"`
			Following string `json:"following"`
		} `json:"relationships"`
	}

	params := url.Values{"actor": {actor}, "others": {other}}
	if err := c.get(ctx, c.appview, "/xrpc/app.bsky.graph.getRelationships", params, &resp); err != nil {
		return false, fmt.Errorf("get relationships: %w", err)
	}

	for _, rel := range resp.Relationships {
		if rel.DID == other && rel.Following != "" {
			return true, nil
		}
	}
	return false, nil
}

// ListAllBlocks pages through the account's full block list on its own PDS
// (the AppView does not serve listRecords) and returns the blocked DIDs.
func (c *Client) ListAllBlocks(ctx context.Context, did string) ([]string, error) {
	pds, err := c.ResolvePDS(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("resolve pds: %w", err)
	}

	var blocks []string
	cursor := ""
	for {
		var resp struct {
			Cursor  string `json:"cursor"`
			Records []struct {
				Value struct {
					Subject string `json:"subject"`
				} `json:"value"`
			} `json:"records"`
		}

		params := url.Values{
			"repo":       {did},
			"collection": {"app.bsky.graph.block"},
			"limit":      {"100"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		if err := c.get(ctx, pds, "/xrpc/com.atproto.repo.listRecords", params, &resp); err != nil {
			return nil, fmt.Errorf("list blocks: %w", err)
		}

		for _, rec := range resp.Records {
			blocks = append(blocks, rec.Value.Subject)
		}

		cursor = resp.Cursor
		if cursor == "" {
			return blocks, nil
		}
	}
}

// ResolvePDS looks up the DID document in the PLC directory and returns the
// account's PDS endpoint.
func (c *Client) ResolvePDS(ctx context.Context, did string) (string, error) {
	var doc struct {
		Service []struct {
			ID              string `json:"id"`
			Type            string `json:"type"`
			ServiceEndpoint string `json:"serviceEndpoint"`
		} `json:"service"`
	}

	if err := c.get(ctx, c.plcDirectory, "/"+did, nil, &doc); err != nil {
		return "", fmt.Errorf("fetch did document: %w", err)
	}

	for _, svc := range doc.Service {
		if svc.ID == "#atproto_pds" {
			return svc.ServiceEndpoint, nil
		}
	}
	return "", fmt.Errorf("no pds service in did document for %s", did)
}

func (c *Client) get(ctx context.Context, host, path string, params url.Values, result any) error {
	u := host + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
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
