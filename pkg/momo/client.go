// pkg/momo/client.go
package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transaction statuses reported by the provider.
const (
	StatusPending = "PENDING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Client talks to the mobile-money provider for deposits (collections) and
// payouts (disbursements). With MockAPI set it answers locally, which is how
// dev and test environments run without provider credentials.
type Client struct {
	BaseURL   string
	APIKey    string
	APISecret string
	MockAPI   bool
	client    *http.Client
}

// TransactionStatus is the provider's view of one transaction.
type TransactionStatus struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

func NewClient(baseURL, apiKey, apiSecret string, mockAPI bool) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		APISecret: apiSecret,
		MockAPI:   mockAPI,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type paymentRequest struct {
	PhoneNumber string `json:"phone_number"`
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type paymentResponse struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
}

// RequestDeposit asks the provider to collect amount from the subscriber's
// mobile-money account. Returns the provider's transaction ref; the actual
// confirmation arrives asynchronously and is picked up by the deposit worker.
func (c *Client) RequestDeposit(ctx context.Context, phoneNumber string, amount int64) (string, error) {
	if c.MockAPI {
		return "MOCK-" + uuid.NewString(), nil
	}
	resp, err := c.post(ctx, "/collections", paymentRequest{
		PhoneNumber: phoneNumber,
		Amount:      amount,
		ExternalRef: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	return resp.TransactionRef, nil
}

// RequestPayout asks the provider to send amount to the subscriber.
func (c *Client) RequestPayout(ctx context.Context, phoneNumber string, amount int64) error {
	if c.MockAPI {
		return nil
	}
	_, err := c.post(ctx, "/disbursements", paymentRequest{
		PhoneNumber: phoneNumber,
		Amount:      amount,
		ExternalRef: uuid.NewString(),
	})
	return err
}

// GetTransactionStatus polls the provider for a transaction's state. In mock
// mode every transaction is confirmed immediately.
func (c *Client) GetTransactionStatus(ctx context.Context, ref string) (*TransactionStatus, error) {
	if c.MockAPI {
		return &TransactionStatus{Ref: ref, Status: StatusSuccess}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transactions/"+ref, nil)
	if err != nil {
		return nil, err
	}
	c.sign(req)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying transaction %s: %w", ref, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d for transaction %s", res.StatusCode, ref)
	}

	var status TransactionStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding transaction status: %w", err)
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, body paymentRequest) (*paymentResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("provider returned %d for %s", res.StatusCode, path)
	}

	var out paymentResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return &out, nil
}

func (c *Client) sign(req *http.Request) {
	req.Header.Set("X-Api-Key", c.APIKey)
	req.Header.Set("X-Api-Secret", c.APISecret)
}
