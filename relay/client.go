// Package relay is the client for the remote gasless-relay API: structured
// contract writes on behalf of sponsor wallets, and asynchronous
// transaction-status polling with multi-shape response normalization.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	writeContractPath   = "/v1/write/contract"
	transactionsPath    = "/v1/transactions/"
	secretKeyHeader     = "x-secret-key"
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
	defaultHTTPTimeout  = 30 * time.Second
)

// ErrPollingTimeout is returned when the poll budget is exhausted without a
// terminal status. Its text is part of the settlement result contract.
var ErrPollingTimeout = errors.New("Transaction polling timeout")

// ExecutionOptions describes who executes the relayed call. Type is always
// "EOA": the account-abstraction path is unsupported on some target chains.
type ExecutionOptions struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	ChainID int64  `json:"chainId"`
}

// ContractCall is one call in a contract-write request. The relay expects a
// human-readable method signature and an ordered parameter list; numeric
// values are stringified to avoid precision loss in JSON.
type ContractCall struct {
	ContractAddress string   `json:"contractAddress"`
	Method          string   `json:"method"`
	Params          []string `json:"params"`
}

// ClientConfig configures a relay client.
type ClientConfig struct {
	// BaseURL of the relay API, without a trailing slash.
	BaseURL string

	// APIKey is sent as the x-secret-key header on every request. Required.
	APIKey string

	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client

	// PollInterval between status polls. Defaults to 2s.
	PollInterval time.Duration

	// MaxPollAttempts before giving up. Defaults to 30.
	MaxPollAttempts int

	// Logger for submissions and poll retries. Defaults to a nop logger.
	Logger *zap.Logger
}

// Client talks to the relay API. The API key is read once at construction
// and reused for all calls.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
	log          *zap.Logger
}

// NewClient validates the configuration and creates a client. A missing API
// key is a hard construction failure so misconfiguration surfaces at
// startup rather than on the first settlement.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("relay API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("relay base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}
	maxAttempts := cfg.MaxPollAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultPollAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   httpClient,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		log:          log,
	}, nil
}

// WriteContract submits a contract call to the relay and normalizes the
// polymorphic response. A non-2xx status is terminal; there is no retry at
// this stage.
func (c *Client) WriteContract(ctx context.Context, opts ExecutionOptions, call ContractCall) (Response, error) {
	body, err := json.Marshal(map[string]interface{}{
		"executionOptions": opts,
		"params":           []ContractCall{call},
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal write request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+writeContractPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("relay write request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("relay write failed (%d): %s", resp.StatusCode, string(responseBody))
	}

	c.log.Debug("relay write accepted",
		zap.String("sponsor", opts.From),
		zap.Int64("chainId", opts.ChainID),
		zap.ByteString("response", responseBody))

	return normalizeResponse(responseBody), nil
}

// PollTransaction polls the status endpoint for an opaque transaction or
// queue identifier until it yields a hash, fails terminally, or the attempt
// budget runs out. Transient HTTP errors are logged and retried; they never
// abort the poll.
func (c *Client) PollTransaction(ctx context.Context, id string) (string, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.pollInterval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		status, err := c.fetchStatus(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.log.Warn("transaction status poll failed",
				zap.String("id", id),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if hash := status.hash(); hash != "" {
			return hash, nil
		}
		if status.failed() {
			return "", errors.New(status.errorMessage())
		}
		// Pending, or a success status whose hash has not propagated yet.
	}

	return "", ErrPollingTimeout
}

func (c *Client) fetchStatus(ctx context.Context, id string) (*transactionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+transactionsPath+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set(secretKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status request failed (%d): %s", resp.StatusCode, string(body))
	}

	var status transactionStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &status, nil
}
