// Package gateway talks to the external payment provider used for card
// deposits and bank payouts. Outcomes arrive asynchronously on the webhook
// endpoint; the client only initiates.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type Client struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

func NewClient(baseURL, callbackURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type ChargeRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  domain.Currency
	Email     string
}

type PayoutRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      domain.Currency
	AccountNumber string
	BankName      string
}

type chargePayload struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type payoutPayload struct {
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	CallbackURL   string `json:"callback_url"`
}

type initResponse struct {
	ProviderRef      string `json:"provider_ref"`
	AuthorizationURL string `json:"authorization_url"`
}

// InitializeCharge asks the provider to collect funds from the user. The
// returned provider reference and checkout URL are surfaced to the caller.
func (c *Client) InitializeCharge(ctx context.Context, req ChargeRequest) (providerRef, checkoutURL string, err error) {
	payload := chargePayload{
		Reference:   req.Reference,
		Amount:      req.Amount.String(),
		Currency:    string(req.Currency),
		Email:       req.Email,
		CallbackURL: c.callbackURL,
	}

	var resp initResponse
	if err := c.post(ctx, "/charges", payload, &resp); err != nil {
		return "", "", fmt.Errorf("InitializeCharge: %w", err)
	}
	return resp.ProviderRef, resp.AuthorizationURL, nil
}

// InitiatePayout asks the provider to pay out to an external bank account.
func (c *Client) InitiatePayout(ctx context.Context, req PayoutRequest) (providerRef string, err error) {
	payload := payoutPayload{
		Reference:     req.Reference,
		Amount:        req.Amount.String(),
		Currency:      string(req.Currency),
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		CallbackURL:   c.callbackURL,
	}

	var resp initResponse
	if err := c.post(ctx, "/payouts", payload, &resp); err != nil {
		return "", fmt.Errorf("InitiatePayout: %w", err)
	}
	return resp.ProviderRef, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	log.InfoContext(ctx, "provider response received",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
