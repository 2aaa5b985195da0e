package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HorizonClient talks to the ledger's HTTP gateway. Each call is a fresh
// request/response; the client holds no connection state beyond the pooled
// transport.
type HorizonClient struct {
	baseURL string
	network string
	http    *http.Client
}

// NewHorizonClient builds a client for the given gateway endpoint and network
// passphrase. The endpoint/passphrase pair selects test vs production once per
// process; it is not a per-call choice.
func NewHorizonClient(baseURL, network string) *HorizonClient {
	return &HorizonClient{
		baseURL: baseURL,
		network: network,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Network returns the network passphrase transactions must be signed for.
func (c *HorizonClient) Network() string {
	return c.network
}

// LoadAccount fetches the current snapshot for an address.
func (c *HorizonClient) LoadAccount(ctx context.Context, address string) (AccountSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/accounts/"+address, nil)
	if err != nil {
		return AccountSnapshot{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return AccountSnapshot{}, fmt.Errorf("load account: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var snapshot AccountSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return AccountSnapshot{}, fmt.Errorf("decode account: %w", err)
		}
		return snapshot, nil
	case http.StatusNotFound:
		return AccountSnapshot{}, ErrAccountNotFound
	default:
		return AccountSnapshot{}, fmt.Errorf("load account: unexpected status %d", resp.StatusCode)
	}
}

type submitResponse struct {
	Hash        string   `json:"hash"`
	ResultCodes []string `json:"result_codes"`
}

// Submit posts a signed envelope. A structured rejection comes back as a
// RejectedError with the gateway's result codes intact.
func (c *HorizonClient) Submit(ctx context.Context, env Envelope) (SubmitResult, error) {
	body, err := env.MarshalBinary()
	if err != nil {
		return SubmitResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SubmitResult{}, fmt.Errorf("decode submit response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return SubmitResult{Hash: decoded.Hash}, nil
	case http.StatusBadRequest:
		return SubmitResult{}, Reject(decoded.ResultCodes...)
	default:
		return SubmitResult{}, fmt.Errorf("submit transaction: unexpected status %d", resp.StatusCode)
	}
}
