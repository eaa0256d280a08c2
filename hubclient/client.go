// Package hubclient is the typed HTTP client the originating service and
// liquidity providers use to reach the hub, plus the peer-to-peer Locked
// notification between adjacent liquidity providers.
package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

const (
	quotePath      = "/quote"
	discoveryPath  = "/payment/discovery"
	setupPath      = "/payment/setup"
	lockedPath     = "/payment/locked"
	completionPath = "/payment/completion"
)

// Config configures the client.
type Config struct {
	// HubURL is the base URL of the hub.
	HubURL string
	// GatewayURL is the base URL of the liquidity-provider gateway used
	// for direct Locked notifications; the peer's host name becomes the
	// first path segment.
	GatewayURL string
	// SharedSecret is sent in the shared transport header on every hub call.
	SharedSecret string
	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
	// Timeout for requests when no HTTPClient is given (default 30s).
	Timeout time.Duration
}

// Client talks to the hub and to peer liquidity providers.
type Client struct {
	hubURL       string
	gatewayURL   string
	sharedSecret string
	httpClient   *http.Client
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		hubURL:       strings.TrimSuffix(cfg.HubURL, "/"),
		gatewayURL:   strings.TrimSuffix(cfg.GatewayURL, "/"),
		sharedSecret: cfg.SharedSecret,
		httpClient:   httpClient,
	}
}

// Quote requests a rate from the hub.
func (c *Client) Quote(ctx context.Context, req crossborder.QuoteRequest) (crossborder.QuoteResponse, error) {
	var resp crossborder.QuoteResponse
	err := c.postJSON(ctx, c.hubURL+quotePath, "", req, &resp, http.StatusOK)
	return resp, err
}

// Discovery relays a discovery request through the hub to the host named
// by forwardHost.
func (c *Client) Discovery(ctx context.Context, forwardHost string, req crossborder.DiscoveryRequest) (crossborder.DiscoveryResponse, error) {
	var resp crossborder.DiscoveryResponse
	err := c.postJSON(ctx, c.hubURL+discoveryPath, forwardHost, req, &resp, http.StatusOK)
	return resp, err
}

// Setup relays a setup request through the hub.
func (c *Client) Setup(ctx context.Context, forwardHost string, req crossborder.SetupRequest) (crossborder.SetupResponse, error) {
	var resp crossborder.SetupResponse
	err := c.postJSON(ctx, c.hubURL+setupPath, forwardHost, req, &resp, http.StatusOK)
	return resp, err
}

// Completion relays a completion message through the hub.
func (c *Client) Completion(ctx context.Context, forwardHost string, req crossborder.CompletionRequest) (crossborder.CompletionResponse, error) {
	var resp crossborder.CompletionResponse
	err := c.postJSON(ctx, c.hubURL+completionPath, forwardHost, req, &resp, http.StatusOK)
	return resp, err
}

// Locked notifies the peer liquidity provider reachable as peerHost that
// a lock toward it now exists. Peers acknowledge with 201.
func (c *Client) Locked(ctx context.Context, peerHost string, req crossborder.LockedRequest) error {
	url := fmt.Sprintf("%s/%s%s", c.gatewayURL, peerHost, lockedPath)
	return c.postJSON(ctx, url, "", req, nil, http.StatusCreated)
}

func (c *Client) postJSON(ctx context.Context, url, forwardHost string, in, out interface{}, wantStatus int) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sharedSecret != "" {
		req.Header.Set(crossborder.HeaderShared, c.sharedSecret)
	}
	if forwardHost != "" {
		req.Header.Set(crossborder.HeaderForwardHost, forwardHost)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return crossborder.WrapError(crossborder.ErrCodeRelay, "POST "+url, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return crossborder.Errorf(crossborder.ErrCodeRelay,
			"POST %s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
