package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/engine"
)

const (
	defaultServerURL = "http://127.0.0.1:37777"
	httpTimeout      = 5 * time.Second
)

// Client talks to a running nudge server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL respects the
// NUDGE_URL env var and falls back to http://127.0.0.1:37777.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("NUDGE_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// do sends a request with an optional JSON body and returns the response body.
func (c *Client) do(method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.serverURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Evaluate runs one pass of surface on the server. limit <= 0 uses the
// surface's configured cap.
func (c *Client) Evaluate(surface string, limit int) (engine.Result, error) {
	path := "/api/surfaces/" + url.PathEscape(surface) + "/evaluate"
	if limit > 0 {
		path += "?max=" + strconv.Itoa(limit)
	}
	var res engine.Result
	data, err := c.do(http.MethodPost, path, nil)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// Dismiss hides a candidate for the server's session.
func (c *Client) Dismiss(id string) error {
	_, err := c.do(http.MethodPost, "/api/candidates/"+url.PathEscape(id)+"/dismiss", nil)
	return err
}

// Act performs actionID on a recently shown candidate.
func (c *Client) Act(id, actionID string) error {
	_, err := c.do(http.MethodPost, "/api/candidates/"+url.PathEscape(id)+"/act", map[string]string{"action_id": actionID})
	return err
}

// Cooldowns is the server's view of today's cooldown state.
type Cooldowns struct {
	Records       []cooldown.Record `json:"records"`
	Dismissed     []string          `json:"dismissed"`
	PendingWrites int               `json:"pending_writes"`
}

// Cooldowns fetches today's cooldown records.
func (c *Client) Cooldowns() (Cooldowns, error) {
	var out Cooldowns
	data, err := c.do(http.MethodGet, "/api/cooldowns", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode cooldowns: %w", err)
	}
	return out, nil
}
