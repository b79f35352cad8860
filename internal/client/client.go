// Package client talks to a prm server over its HTTP API. Transactions are
// signed locally; the private key never leaves the process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/types"
)

// DefaultAddr is used when no server address is given.
const DefaultAddr = "http://localhost:8080"

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Code    uint32 // host response code, 0 when the HTTP layer rejected the call
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server returned %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client wraps an HTTP client bound to one server.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the server at addr (e.g. "http://localhost:8080").
func New(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RecordPayment signs a record_payment transaction with kp and submits it.
func (c *Client) RecordPayment(ctx context.Context, kp *identity.Keypair, recipient identity.AccountID, amount types.Amount) (types.PaymentRecorded, error) {
	tx, err := types.NewRecordPayment(recipient, amount)
	if err != nil {
		return types.PaymentRecorded{}, err
	}
	stx, err := tx.Sign(kp)
	if err != nil {
		return types.PaymentRecorded{}, err
	}
	return c.Submit(ctx, stx)
}

// Submit sends a signed record_payment transaction for execution.
func (c *Client) Submit(ctx context.Context, stx *types.SignedTransaction) (types.PaymentRecorded, error) {
	var ev types.PaymentRecorded
	resp, err := c.postSigned(ctx, "/api/tx", stx)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(resp.Data, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}

// Check asks the server to validate stx without executing it.
func (c *Client) Check(ctx context.Context, stx *types.SignedTransaction) error {
	_, err := c.postSigned(ctx, "/api/tx/check", stx)
	return err
}

// History returns the records sent by account (hex or SS58).
func (c *Client) History(ctx context.Context, account string) ([]types.PaymentRecord, error) {
	var history []types.PaymentRecord
	err := c.get(ctx, "/api/history?account="+url.QueryEscape(account), &history)
	return history, err
}

// MyHistory returns the records sent by the holder of kp.
func (c *Client) MyHistory(ctx context.Context, kp *identity.Keypair) ([]types.PaymentRecord, error) {
	stx, err := types.NewMyHistoryQuery().Sign(kp)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/api/history/me", stx)
	if err != nil {
		return nil, err
	}
	var history []types.PaymentRecord
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return history, nil
}

// RecentEvents returns up to n recent notifications (all retained when n <= 0).
func (c *Client) RecentEvents(ctx context.Context, n int) ([]events.Event, error) {
	path := "/api/events/recent"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var recent []events.Event
	err := c.get(ctx, path, &recent)
	return recent, err
}

// hostResponse mirrors the server's transaction response envelope.
type hostResponse struct {
	Code uint32          `json:"code"`
	Log  string          `json:"log"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) postSigned(ctx context.Context, path string, stx *types.SignedTransaction) (*hostResponse, error) {
	body, err := c.do(ctx, http.MethodPost, path, stx)
	if err != nil {
		return nil, err
	}
	var resp hostResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// do performs one request and turns non-2xx answers into *Error.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope struct {
			Code  uint32 `json:"code"`
			Log   string `json:"log"`
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Code = envelope.Code
			switch {
			case envelope.Error != "":
				apiErr.Message = envelope.Error
			case envelope.Log != "":
				apiErr.Message = envelope.Log
			}
		}
		return nil, apiErr
	}
	return body, nil
}
