package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/interfaces"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

type indexerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewIndexerClient(cfg config.IndexerConfig, logger zerolog.Logger) interfaces.LedgerClient {
	return &indexerClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// GetTransaction retrieves transaction metadata by hash
func (c *indexerClient) GetTransaction(ctx context.Context, txHash string) (*models.TransactionInfo, error) {
	endpoint := fmt.Sprintf("/v1/txs/%s", txHash)

	var info models.TransactionInfo
	if err := c.makeRequest(ctx, "GET", endpoint, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txHash, err)
	}

	return &info, nil
}

// GetTransactionUTXOs retrieves the input/output set of a transaction
func (c *indexerClient) GetTransactionUTXOs(ctx context.Context, txHash string) (*models.TransactionUTXOs, error) {
	endpoint := fmt.Sprintf("/v1/txs/%s/utxos", txHash)

	var utxos models.TransactionUTXOs
	if err := c.makeRequest(ctx, "GET", endpoint, nil, &utxos); err != nil {
		return nil, fmt.Errorf("failed to get utxos for transaction %s: %w", txHash, err)
	}

	return &utxos, nil
}

// GetAddressTransactions retrieves an address's recent transactions, newest first
func (c *indexerClient) GetAddressTransactions(ctx context.Context, address string, count int) ([]models.AddressTransaction, error) {
	endpoint := fmt.Sprintf("/v1/addresses/%s/transactions", address)
	params := url.Values{}
	params.Add("order", "desc")
	if count > 0 {
		params.Add("count", strconv.Itoa(count))
	}

	var txs []models.AddressTransaction
	if err := c.makeRequestWithParams(ctx, "GET", endpoint, params, &txs); err != nil {
		return nil, fmt.Errorf("failed to get transactions for address %s: %w", address, err)
	}

	return txs, nil
}

// makeRequest makes an HTTP request with retries
func (c *indexerClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}, response interface{}) error {
	return c.makeRequestWithParams(ctx, method, endpoint, nil, response)
}

// makeRequestWithParams makes an HTTP request with URL parameters and retries
func (c *indexerClient) makeRequestWithParams(ctx context.Context, method, endpoint string, params url.Values, response interface{}) error {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(1<<(attempt-1))): // Exponential backoff
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Warn().Err(err).Int("attempt", attempt+1).Str("url", fullURL).Msg("Indexer request failed, retrying")
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", err)
				continue
			}

			if err := json.Unmarshal(body, response); err != nil {
				lastErr = fmt.Errorf("failed to unmarshal response: %w", err)
				continue
			}

			return nil
		}

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return domain.ErrTxNotFound
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error (status %d): %s", resp.StatusCode, string(body))
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Str("url", fullURL).Msg("Indexer server error, retrying")
			continue
		}

		// Client errors (4xx) - don't retry
		return fmt.Errorf("client error (status %d): %s", resp.StatusCode, string(body))
	}

	log.Error().Err(lastErr).Str("url", fullURL).Int("max_retries", c.maxRetries).Msg("Indexer request failed after all retries")
	return fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}
