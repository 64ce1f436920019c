package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/interfaces"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

type walletClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWalletClient returns a RefundSubmitter backed by the wallet
// service. Refund submission is single-shot: a duplicate broadcast is
// worse than a retryable failure, so build/network errors are returned
// to the caller instead of retried here.
func NewWalletClient(cfg config.WalletConfig, logger zerolog.Logger) interfaces.RefundSubmitter {
	return &walletClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type refundRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type refundResponse struct {
	TxHash string `json:"tx_hash"`
}

func (c *walletClient) SubmitRefund(ctx context.Context, destination, amount string) (string, error) {
	payload, err := json.Marshal(refundRequest{
		Destination: destination,
		Amount:      amount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/refunds", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create refund request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("destination", destination).Msg("Refund request failed")
		return "", fmt.Errorf("%w: %v", domain.ErrRefundSubmission, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", domain.ErrRefundSubmission, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("destination", destination).
			Str("body", string(body)).
			Msg("Wallet service rejected refund")
		return "", fmt.Errorf("%w: wallet service returned status %d", domain.ErrRefundSubmission, resp.StatusCode)
	}

	var result refundResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", domain.ErrRefundSubmission, err)
	}

	if result.TxHash == "" {
		return "", fmt.Errorf("%w: wallet service returned empty tx hash", domain.ErrRefundSubmission)
	}

	c.logger.Info().
		Str("destination", destination).
		Str("amount", amount).
		Str("tx_hash", result.TxHash).
		Msg("Refund submitted")

	return result.TxHash, nil
}
