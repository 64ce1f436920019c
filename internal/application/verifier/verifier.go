package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/K33P-repo/k33p-backend/internal/domain/interfaces"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

// IDepositVerifier decides whether a qualifying deposit to the protocol
// address exists. Stateless; safe for concurrent use.
type IDepositVerifier interface {
	// VerifyByWallet scans the sender's recent transactions, newest
	// first, and accepts the first one satisfying every predicate.
	VerifyByWallet(ctx context.Context, senderAddress string) models.VerificationResult

	// VerifyByTxID runs the same predicates against a named transaction.
	VerifyByTxID(ctx context.Context, txHash, senderAddress string) models.VerificationResult
}

type depositVerifier struct {
	ledger         interfaces.LedgerClient
	depositAddress string
	expectedAmount decimal.Decimal
	minConfirms    int
	maxAge         time.Duration
	scanWindow     int
	strictSender   bool
	candidateTTL   time.Duration
	logger         zerolog.Logger
}

func New(ledger interfaces.LedgerClient, cfg config.VerificationConfig, logger zerolog.Logger) (IDepositVerifier, error) {
	expected, err := decimal.NewFromString(cfg.ExpectedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid expected amount %q: %w", cfg.ExpectedAmount, err)
	}

	scanWindow := cfg.ScanWindow
	if scanWindow <= 0 {
		scanWindow = 15
	}
	candidateTTL := cfg.CandidateTimeout
	if candidateTTL <= 0 {
		candidateTTL = 10 * time.Second
	}
	maxAge := cfg.MaxTxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	return &depositVerifier{
		ledger:         ledger,
		depositAddress: cfg.DepositAddress,
		expectedAmount: expected,
		minConfirms:    cfg.MinConfirmations,
		maxAge:         maxAge,
		scanWindow:     scanWindow,
		strictSender:   cfg.StrictSenderMatch,
		candidateTTL:   candidateTTL,
		logger:         logger,
	}, nil
}

func (v *depositVerifier) VerifyByWallet(ctx context.Context, senderAddress string) models.VerificationResult {
	txs, err := v.ledger.GetAddressTransactions(ctx, senderAddress, v.scanWindow)
	if err != nil {
		v.logger.Warn().Err(err).Str("sender", senderAddress).Msg("Failed to list sender transactions")
		return models.InvalidResult(models.ReasonNoQualifyingTx, "no qualifying transaction found")
	}

	// Newest-first: the first candidate passing every predicate wins,
	// older qualifying transactions in the window are ignored.
	for _, tx := range txs {
		result := v.checkCandidate(ctx, tx.TxHash, senderAddress)
		if result.Valid {
			return result
		}
		v.logger.Debug().
			Str("tx_hash", tx.TxHash).
			Str("sender", senderAddress).
			Str("reason", string(result.Reason)).
			Msg("Candidate transaction rejected")
	}

	return models.InvalidResult(models.ReasonNoQualifyingTx, "no qualifying transaction found")
}

func (v *depositVerifier) VerifyByTxID(ctx context.Context, txHash, senderAddress string) models.VerificationResult {
	return v.checkCandidate(ctx, txHash, senderAddress)
}

// checkCandidate applies the per-transaction predicates. An indexer
// error or timeout on a candidate counts as "not found" for that
// candidate only.
func (v *depositVerifier) checkCandidate(ctx context.Context, txHash, senderAddress string) models.VerificationResult {
	ctx, cancel := context.WithTimeout(ctx, v.candidateTTL)
	defer cancel()

	info, err := v.ledger.GetTransaction(ctx, txHash)
	if err != nil {
		return models.InvalidResult(models.ReasonNotFound,
			fmt.Sprintf("transaction %s not found", txHash))
	}

	utxos, err := v.ledger.GetTransactionUTXOs(ctx, txHash)
	if err != nil {
		return models.InvalidResult(models.ReasonNotFound,
			fmt.Sprintf("utxos for transaction %s not found", txHash))
	}

	matched, reason := v.matchDepositOutput(utxos)
	if matched == "" {
		return models.InvalidResult(reason,
			fmt.Sprintf("transaction %s has no qualifying output to the deposit address", txHash))
	}

	blockTime := info.Time()
	if age := time.Since(blockTime); age > v.maxAge {
		return models.InvalidResult(models.ReasonTooOld,
			fmt.Sprintf("transaction %s is %s old, maximum is %s", txHash, age.Truncate(time.Second), v.maxAge))
	}

	fromAddress := ""
	if len(utxos.Inputs) > 0 {
		fromAddress = utxos.Inputs[0].Address
	}
	if senderAddress != "" && fromAddress != senderAddress {
		// Lenient by default: address reuse and change outputs make the
		// first input an unreliable sender signal. Strict mode rejects.
		if v.strictSender {
			return models.InvalidResult(models.ReasonSenderMismatch,
				fmt.Sprintf("transaction %s first input %s does not match claimed sender", txHash, fromAddress))
		}
		v.logger.Warn().
			Str("tx_hash", txHash).
			Str("claimed_sender", senderAddress).
			Str("first_input", fromAddress).
			Msg("Sender address mismatch on deposit transaction")
	}

	if info.Confirmations < v.minConfirms {
		return models.InvalidResult(models.ReasonTooFewConfirms,
			fmt.Sprintf("transaction %s has %d confirmations, need %d", txHash, info.Confirmations, v.minConfirms))
	}

	return models.ValidResult(&models.TransactionDetails{
		TxID:          txHash,
		Amount:        matched,
		FromAddress:   fromAddress,
		ToAddress:     v.depositAddress,
		BlockTime:     blockTime,
		Confirmations: info.Confirmations,
	})
}

// matchDepositOutput returns the lovelace quantity of the first output
// paying at least the expected amount to the deposit address, or the
// reason none qualifies.
func (v *depositVerifier) matchDepositOutput(utxos *models.TransactionUTXOs) (string, models.InvalidReason) {
	sawDepositOutput := false
	for _, out := range utxos.Outputs {
		if out.Address != v.depositAddress {
			continue
		}
		sawDepositOutput = true

		qty := out.Quantity(models.UnitLovelace)
		if qty == "" {
			continue
		}
		amount, err := decimal.NewFromString(qty)
		if err != nil {
			continue
		}
		if amount.GreaterThanOrEqual(v.expectedAmount) {
			return qty, ""
		}
	}

	if sawDepositOutput {
		return "", models.ReasonAmountTooLow
	}
	return "", models.ReasonOutputMismatch
}
