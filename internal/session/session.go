// Package session wraps outbound API calls with bearer credentials and
// recovers from credential expiry by performing a single coordinated refresh,
// replaying affected requests with the new credential afterward.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const refreshPath = "/api/auth/refresh"

// TerminalAuthError reports an unrecoverable authentication failure: the
// refresh credential is gone or the refresh endpoint rejected it. The client
// has already purged its credential store; the caller decides how the user
// re-authenticates.
type TerminalAuthError struct {
	Reason string
	Err    error
}

func (e *TerminalAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %v", e.Reason, e.Err)
	}
	return "session: " + e.Reason
}

func (e *TerminalAuthError) Unwrap() error {
	return e.Err
}

type contextKey struct{ name string }

var retriedKey = contextKey{"retried"}

// Client issues authenticated API requests against a single backend.
type Client struct {
	http    *http.Client
	baseURL string
	store   Store
	state   refreshState
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New constructs a Client for baseURL persisting credentials in store.
func New(baseURL string, store Store, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials stores a freshly issued credential pair (login flow).
func (c *Client) SetCredentials(creds Credentials) error {
	return c.store.Save(creds)
}

// Logout discards all stored credentials.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// NewRequest builds a request against the client's base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

// Do sends the request with the current access credential attached. A 401
// response triggers one coordinated refresh and a single resubmission; a 401
// on the resubmitted request propagates untouched. A request that already
// carries an Authorization header is never mutated.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if creds, ok := c.store.Load(); ok && creds.Access != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || wasRetried(req) {
		return resp, nil
	}

	// The response is consumed: this request now goes through the refresh
	// protocol and is resubmitted with the new credential.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	access, err := c.refreshAccess(req.Context())
	if err != nil {
		return nil, err
	}

	retry, err := c.cloneForRetry(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+access)

	// Goes back through Do so the retried marker is honored: a second 401
	// propagates instead of triggering another refresh.
	return c.Do(retry)
}

// Get issues an authenticated GET against path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostJSON issues an authenticated POST with a JSON body against path.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// refreshAccess returns a fresh access credential, either by leading the
// refresh call or by waiting on one already in flight. At most one refresh
// request is ever on the wire; every waiter settles with the same outcome,
// in the order it enqueued.
func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	wait, leader := c.state.acquireOrEnqueue()
	if !leader {
		select {
		case res := <-wait:
			if res.err != nil {
				return "", res.err
			}
			return res.creds.Access, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	creds, err := c.doRefresh(ctx)
	c.state.settleAll(refreshResult{creds: creds, err: err})
	if err != nil {
		return "", err
	}
	return creds.Access, nil
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// doRefresh performs the refresh call and rotates the stored credentials.
// Both failure paths are terminal: the store is purged and the caller gets a
// *TerminalAuthError.
func (c *Client) doRefresh(ctx context.Context) (Credentials, error) {
	current, ok := c.store.Load()
	if !ok || current.Refresh == "" {
		c.store.Clear()
		return Credentials{}, &TerminalAuthError{Reason: "no refresh credential"}
	}

	payload, err := json.Marshal(refreshTokenRequest{RefreshToken: current.Refresh})
	if err != nil {
		return Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.store.Clear()
		return Credentials{}, &TerminalAuthError{Reason: "refresh call failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.store.Clear()
		return Credentials{}, &TerminalAuthError{
			Reason: fmt.Sprintf("refresh rejected with status %d", resp.StatusCode),
		}
	}

	var rotated refreshTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil {
		c.store.Clear()
		return Credentials{}, &TerminalAuthError{Reason: "malformed refresh response", Err: err}
	}
	if rotated.AccessToken == "" {
		c.store.Clear()
		return Credentials{}, &TerminalAuthError{Reason: "refresh response missing access token"}
	}

	next := Credentials{Access: rotated.AccessToken, Refresh: rotated.RefreshToken}
	if next.Refresh == "" {
		// Refresh credential rotation is optional on the server side.
		next.Refresh = current.Refresh
	}

	if err := c.store.Save(next); err != nil {
		return Credentials{}, err
	}
	return next, nil
}

// cloneForRetry duplicates the request, rewinding its body, and marks the
// copy so a second 401 is never intercepted again.
func (c *Client) cloneForRetry(req *http.Request) (*http.Request, error) {
	retry := req.Clone(context.WithValue(req.Context(), retriedKey, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

func wasRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey).(bool)
	return retried
}
