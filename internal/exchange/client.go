package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/netlabgo/netmeter/internal/codec"
)

// defaultClientTimeout bounds each exchange round trip. Clients run on
// measurement workers where a hung fetch must not stall the experiment.
const defaultClientTimeout = 10 * time.Second

// Client issues GET/POST requests against an exchange server. Remote
// measurement workers use it to fetch their inputs and post results;
// the controller uses the same client for the loopback drain step.
//
// Failures never escape as errors: a worker that cannot reach the
// controller logs the problem and continues with an absent value,
// matching the protocol's best-effort semantics.
type Client struct {
	addr       string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests
// and for deployments that need custom transports.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientLogger sets a custom logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the exchange server at addr
// ("host:port"). No connection is opened until the first request.
func NewClient(addr string, opts ...ClientOption) *Client {
	c := &Client{
		addr: addr,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Recv pulls the value stored under key. The server answers with either
// the broadcast value for the key or this host's per-address value; see
// Store.Lookup for the precedence. On any failure Recv logs and returns
// absent.
func (c *Client) Recv(ctx context.Context, key string) (any, bool) {
	payload, ok := c.get(ctx, key)
	if !ok {
		return nil, false
	}

	v, err := payload.Decode()
	if err != nil {
		c.logger.Error("failed to decode response", "addr", c.addr, "key", key, "error", err)
		return nil, false
	}
	return v, true
}

// RecvSnapshot pulls the server's entire received-data store via the
// reserved key. This is the drain step of the stop protocol.
func (c *Client) RecvSnapshot(ctx context.Context) (map[string]codec.Payload, bool) {
	payload, ok := c.get(ctx, ReservedKey)
	if !ok {
		return nil, false
	}

	snapshot, err := codec.DecodeSnapshot(payload.Data)
	if err != nil {
		c.logger.Error("failed to decode snapshot", "addr", c.addr, "error", err)
		return nil, false
	}
	return snapshot, true
}

// Send posts a value under key. The server stores it under
// "<key>_<thisClientAddress>". The call blocks for the HTTP round trip
// but reports nothing back: the confirmation or error is logged, and
// callers that need stronger guarantees should verify via Results on
// the controller side.
func (c *Client) Send(ctx context.Context, v any, key string) {
	payload, err := codec.Encode(v)
	if err != nil {
		c.logger.Error("failed to encode value", "addr", c.addr, "key", key, "error", err)
		return
	}

	url := fmt.Sprintf("http://%s/%s", c.addr, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload.Data))
	if err != nil {
		c.logger.Error("failed to create request", "addr", c.addr, "key", key, "error", err)
		return
	}
	req.Header.Set("Content-Type", codec.ContentType)
	if payload.Structured {
		req.Header.Set(codec.EncodingHeader, codec.EncodingJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("send failed", "addr", c.addr, "key", key, "error", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBody))
	if err != nil {
		c.logger.Error("failed to read confirmation", "addr", c.addr, "key", key, "error", err)
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 206 {
		c.logger.Info("send confirmed", "addr", c.addr, "key", key, "confirmation", string(body))
	} else {
		c.logger.Error("send rejected", "addr", c.addr, "key", key, "status", resp.StatusCode, "body", string(body))
	}
}

// get performs the GET round trip shared by Recv and RecvSnapshot.
func (c *Client) get(ctx context.Context, key string) (codec.Payload, bool) {
	url := fmt.Sprintf("http://%s/%s", c.addr, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Error("failed to create request", "addr", c.addr, "key", key, "error", err)
		return codec.Payload{}, false
	}
	req.Header.Set("Content-Type", codec.ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("recv failed", "addr", c.addr, "key", key, "error", err)
		return codec.Payload{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 206 {
		c.logger.Error("recv miss", "addr", c.addr, "key", key, "status", resp.StatusCode)
		return codec.Payload{}, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read response", "addr", c.addr, "key", key, "error", err)
		return codec.Payload{}, false
	}

	c.logger.Info("recv ok", "addr", c.addr, "key", key, "bytes", len(body))

	return codec.Payload{
		Data:       body,
		Structured: resp.Header.Get(codec.EncodingHeader) != "",
	}, true
}
