package depositrepo

import (
	"context"
	"time"

	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

// IDepositRepository is the persistence contract for deposit lifecycle
// records. Lookups return (nil, nil) when no record matches. Lifecycle
// writes are conditional: MarkRefunded only flips an unrefunded record
// (zero rows affected reports domain.ErrAlreadyRefunded) and
// MarkSignupCompleted only flips a verified, uncompleted record.
type IDepositRepository interface {
	Create(ctx context.Context, rec *models.DepositRecord) error
	GetByUserAddress(ctx context.Context, userAddress string) (*models.DepositRecord, error)
	GetByUserID(ctx context.Context, userID string) (*models.DepositRecord, error)
	SetSenderWallet(ctx context.Context, userAddress, wallet string) error

	// RecordAttempt counts a failed verification attempt.
	RecordAttempt(ctx context.Context, userAddress string, at time.Time) error

	// MarkVerified flips verified, stores the deposit tx, and counts the
	// attempt. A later call may reassign the deposit tx id when a retry
	// finds a different qualifying transaction.
	MarkVerified(ctx context.Context, userAddress, depositTxID string, at time.Time) error

	MarkRefunded(ctx context.Context, userAddress, refundTxID string, at time.Time) error
	MarkSignupCompleted(ctx context.Context, userAddress string) error

	ListUnverified(ctx context.Context, limit int) ([]*models.DepositRecord, error)
}
