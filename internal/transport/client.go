// Package transport implements the league.v2 RPC transport: an HTTP
// JSON-RPC 2.0 client with per-endpoint retry and circuit breaking
// (spec.md §4.3), and the HTTP server that exposes an agent's /mcp
// endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/evenodd-league/agents/internal/resilience"
	"github.com/evenodd-league/agents/internal/svcerr"
)

// rpcRequest is a JSON-RPC 2.0 request envelope (spec.md §7 "Transport").
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      string          `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      string          `json:"id"`
}

type rpcError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// toServiceError reconstructs the typed domain error the remote agent
// reported, so svcerr.As/svcerr.Is keep working across the RPC boundary
// (spec.md §9: the domain code travels in error.data.domain_code). Falls
// back to a generic protocol error when the remote didn't nest one, e.g.
// a malformed-request response from a peer that predates this field.
func (e *rpcError) toServiceError() error {
	code, _ := e.Data["domain_code"].(string)
	if code == "" {
		return svcerr.Protocol(e.Message)
	}
	se := svcerr.New(svcerr.Code(code), e.Message)
	if details, ok := e.Data["details"].(map[string]interface{}); ok {
		se.Details = details
	}
	return se
}

// Client dispatches JSON-RPC calls to remote agents over /mcp, applying
// retry with exponential backoff and a per-endpoint circuit breaker
// (spec.md §4.3). One Client instance is shared across all outbound calls
// made by an agent.
type Client struct {
	httpClient *http.Client
	retry      resilience.RetryConfig
	cbConfig   resilience.Config

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker

	idSeq uint64
}

// NewClient builds a transport client with the given per-request timeout,
// retry policy, and circuit breaker policy.
func NewClient(timeout time.Duration, retry resilience.RetryConfig, cb resilience.Config) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		cbConfig:   cb,
		breakers:   make(map[string]*resilience.CircuitBreaker),
	}
}

func (c *Client) breakerFor(endpoint string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[endpoint]
	if !ok {
		cb = resilience.New(c.cbConfig)
		c.breakers[endpoint] = cb
	}
	return cb
}

func (c *Client) nextID() string {
	c.mu.Lock()
	c.idSeq++
	id := c.idSeq
	c.mu.Unlock()
	return fmt.Sprintf("%d", id)
}

// Call sends method with the given already-encoded envelope params to
// endpoint and decodes the raw JSON-RPC result. It retries TIMEOUT and
// TRANSPORT failures with exponential backoff (spec.md §4.3: up to
// MaxAttempts retries, delay = Base * 2^attempt); RPC-level errors
// returned by the remote agent are not retried. The endpoint's circuit
// breaker gates every attempt and records transport-level outcomes only.
func (c *Client) Call(ctx context.Context, endpoint, method string, params json.RawMessage) (json.RawMessage, error) {
	cb := c.breakerFor(endpoint)

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retry.Delay(attempt - 1)):
			}
		}

		if err := cb.Allow(); err != nil {
			return nil, svcerr.Connection(endpoint, err)
		}

		result, err := c.doOnce(ctx, endpoint, method, params)
		if err == nil {
			cb.RecordSuccess()
			return result, nil
		}

		if !isTransportFailure(err) {
			// RPC-level error: does not count against the circuit breaker
			// and is not retried (spec.md §4.3).
			return nil, err
		}

		cb.RecordFailure()
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint, method string, params json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	})
	if err != nil {
		return nil, svcerr.Protocol(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, svcerr.Connection(endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportFailure{cause: svcerr.Connection(endpoint, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &transportFailure{cause: svcerr.Connection(endpoint, err)}
	}

	if resp.StatusCode >= 500 {
		return nil, &transportFailure{cause: svcerr.Connection(endpoint, fmt.Errorf("status %d", resp.StatusCode))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, svcerr.Protocol(fmt.Sprintf("decode response: %v", err))
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error.toServiceError()
	}
	return rpcResp.Result, nil
}

// transportFailure marks an error as a connection/timeout failure that
// should be retried and counted against the circuit breaker, as opposed
// to an RPC-level error from a reachable remote (spec.md §4.3).
type transportFailure struct {
	cause error
}

func (t *transportFailure) Error() string { return t.cause.Error() }
func (t *transportFailure) Unwrap() error { return t.cause }

func isTransportFailure(err error) bool {
	_, ok := err.(*transportFailure)
	return ok
}
