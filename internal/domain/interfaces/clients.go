package interfaces

import (
	"context"

	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

// LedgerClient is the read-only contract over the ledger-indexing
// service.
type LedgerClient interface {
	// GetTransaction retrieves transaction metadata by hash.
	GetTransaction(ctx context.Context, txHash string) (*models.TransactionInfo, error)

	// GetTransactionUTXOs retrieves a transaction's input/output set.
	GetTransactionUTXOs(ctx context.Context, txHash string) (*models.TransactionUTXOs, error)

	// GetAddressTransactions lists an address's recent transactions,
	// newest first, bounded by count.
	GetAddressTransactions(ctx context.Context, address string, count int) ([]models.AddressTransaction, error)
}

// RefundSubmitter builds and broadcasts the on-chain refund payment.
type RefundSubmitter interface {
	// SubmitRefund pays amount (lovelace) to destination and returns the
	// submitted transaction hash.
	SubmitRefund(ctx context.Context, destination, amount string) (string, error)
}

// StatusBroadcaster pushes lifecycle updates to connected clients.
type StatusBroadcaster interface {
	Broadcast(update *models.StatusUpdate)
}
