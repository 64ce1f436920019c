package models

import "time"

// InvalidReason classifies why a candidate transaction failed
// verification. The state machine does not distinguish sub-reasons,
// but they are preserved for diagnostics.
type InvalidReason string

const (
	ReasonNotFound       InvalidReason = "not_found"
	ReasonNoQualifyingTx InvalidReason = "no_qualifying_transaction"
	ReasonOutputMismatch InvalidReason = "output_mismatch"
	ReasonAmountTooLow   InvalidReason = "amount_insufficient"
	ReasonTooOld         InvalidReason = "too_old"
	ReasonTooFewConfirms InvalidReason = "insufficient_confirmations"
	ReasonSenderMismatch InvalidReason = "sender_mismatch"
)

// TransactionDetails is the verified view of a deposit transaction,
// produced by the verifier and consumed by the reconciliation manager.
// It is never persisted as-is.
type TransactionDetails struct {
	TxID          string    `json:"tx_id"`
	Amount        string    `json:"amount"` // lovelace
	FromAddress   string    `json:"from_address"`
	ToAddress     string    `json:"to_address"`
	BlockTime     time.Time `json:"block_time"`
	Confirmations int       `json:"confirmations"`
}

// VerificationResult is either Valid carrying TransactionDetails or
// Invalid carrying a reason. Every call site must handle both cases.
type VerificationResult struct {
	Valid   bool                `json:"valid"`
	Details *TransactionDetails `json:"details,omitempty"`
	Reason  InvalidReason       `json:"reason,omitempty"`
	Message string              `json:"message,omitempty"`
}

func ValidResult(details *TransactionDetails) VerificationResult {
	return VerificationResult{Valid: true, Details: details}
}

func InvalidResult(reason InvalidReason, message string) VerificationResult {
	return VerificationResult{Valid: false, Reason: reason, Message: message}
}
