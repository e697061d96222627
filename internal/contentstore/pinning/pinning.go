// Package pinning stores payloads through an IPFS pinning service: JSON is
// pinned with an authenticated POST and read back through the public gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"credledger/internal/contentstore"
)

const (
	backendName     = "pinning"
	pinJSONPath     = "/pinning/pinJSONToIPFS"
	maxResponseSize = 10 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	APIURL     string
	GatewayURL string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Logger     *slog.Logger
}

// Client implements contentstore.Store against a pinning service.
type Client struct {
	apiURL     string
	gatewayURL string
	apiKey     string
	apiSecret  string
	client     HTTPDoer
	logger     *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		client:     client,
		logger:     logger,
	}
}

type pinRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata pinMetadata     `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Put pins payload and returns the address reported by the service.
func (c *Client) Put(ctx context.Context, payload json.RawMessage) (contentstore.Address, error) {
	canonical, err := contentstore.Canonicalize(payload)
	if err != nil {
		return "", err
	}
	localAddr, err := contentstore.AddressOf(canonical)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(pinRequest{
		Content:  canonical,
		Metadata: pinMetadata{Name: localAddr.String()},
	})
	if err != nil {
		return "", c.fail(contentstore.ErrStoreRejected, "put", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+pinJSONPath, bytes.NewReader(body))
	if err != nil {
		return "", c.fail(contentstore.ErrStoreUnavailable, "put", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)

	respBody, status, err := c.do(req)
	if err != nil {
		return "", c.fail(contentstore.ErrStoreUnavailable, "put", 0, err)
	}

	switch {
	case status >= 200 && status < 300:
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return "", c.fail(contentstore.ErrStoreRejected, "put", status, errors.New(snippet(respBody)))
	default:
		return "", c.fail(contentstore.ErrStoreUnavailable, "put", status, errors.New(snippet(respBody)))
	}

	var pinned pinResponse
	if err := json.Unmarshal(respBody, &pinned); err != nil {
		return "", c.fail(contentstore.ErrStoreUnavailable, "put", status, fmt.Errorf("decode pin response: %w", err))
	}
	addr, err := contentstore.ParseAddress(pinned.IpfsHash)
	if err != nil {
		return "", c.fail(contentstore.ErrStoreUnavailable, "put", status, err)
	}

	c.logger.DebugContext(ctx, "payload pinned", "content_address", addr.String(), "bytes", len(canonical))
	return addr, nil
}

// Get fetches the payload for addr through the gateway.
func (c *Client) Get(ctx context.Context, addr contentstore.Address) (json.RawMessage, error) {
	if _, err := contentstore.ParseAddress(addr.String()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/ipfs/"+addr.String(), nil)
	if err != nil {
		return nil, c.fail(contentstore.ErrStoreUnavailable, "get", 0, err)
	}
	req.Header.Set("Accept", "application/json")

	respBody, status, err := c.do(req)
	if err != nil {
		return nil, c.fail(contentstore.ErrStoreUnavailable, "get", 0, err)
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound, status == http.StatusGone:
		return nil, &contentstore.BackendError{Kind: contentstore.ErrNotFound, Backend: backendName, Op: "get", StatusCode: status}
	default:
		return nil, c.fail(contentstore.ErrStoreUnavailable, "get", status, errors.New(snippet(respBody)))
	}

	if !json.Valid(respBody) {
		return nil, c.fail(contentstore.ErrStoreUnavailable, "get", status, errors.New("gateway returned non-JSON content"))
	}
	return respBody, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) fail(kind error, op string, status int, cause error) error {
	return &contentstore.BackendError{
		Kind:       kind,
		Backend:    backendName,
		Op:         op,
		StatusCode: status,
		Underlying: cause,
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

var _ contentstore.Store = (*Client)(nil)
