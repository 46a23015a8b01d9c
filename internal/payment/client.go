package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/metervend/internal/config"
	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined is returned when the gateway processed the request but
	// refused the charge.
	ErrDeclined = errors.New("payment declined")
)

// Gateway authorizes top-up payments with an external collector
type Gateway interface {
	PayNow(ctx context.Context, amount decimal.Decimal, phone, email string) (string, error)
}

// Client is an HTTP client for a Paynow-style mobile payment gateway
type Client struct {
	baseURL        string
	integrationID  string
	integrationKey string
	httpClient     *http.Client
}

// NewClient creates a payment gateway client
func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		integrationID:  cfg.IntegrationID,
		integrationKey: cfg.IntegrationKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type chargeRequest struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type chargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// PayNow authorizes a charge of amount against the subscriber's mobile money
// account and returns the gateway reference. Each call carries a fresh UUID
// reference; the gateway deduplicates on it.
func (c *Client) PayNow(ctx context.Context, amount decimal.Decimal, phone, email string) (string, error) {
	ref := uuid.New().String()

	body, err := json.Marshal(chargeRequest{
		Reference: ref,
		Amount:    amount.StringFixed(2),
		Phone:     phone,
		Email:     email,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Integration-ID", c.integrationID)
	req.Header.Set("X-Integration-Key", c.integrationKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var charge chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return "", fmt.Errorf("payment gateway response: %w", err)
	}

	if charge.Status != "paid" {
		return "", ErrDeclined
	}
	return charge.Reference, nil
}
