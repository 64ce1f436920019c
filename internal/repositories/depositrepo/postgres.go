package depositrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
	"github.com/K33P-repo/k33p-backend/internal/infrastructure/database"
)

type depositRepository struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IDepositRepository {
	return &depositRepository{
		db:     db.Db,
		logger: logger,
	}
}

const uniqueViolation = "23505"

func (r *depositRepository) Create(ctx context.Context, rec *models.DepositRecord) error {
	query := `
		INSERT INTO deposit_records (
			id, user_address, user_id, phone_commitment, auth_commitment,
			sender_wallet, deposit_tx_id, expected_amount, verified,
			verification_attempts, last_verification_at, signup_completed,
			refunded, refund_tx_id, refund_at, created_at, updated_at
		) VALUES (
			:id, :user_address, :user_id, :phone_commitment, :auth_commitment,
			:sender_wallet, :deposit_tx_id, :expected_amount, :verified,
			:verification_attempts, :last_verification_at, :signup_completed,
			:refunded, :refund_tx_id, :refund_at, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrRecordExists
		}
		r.logger.Error().Err(err).Str("user_address", rec.UserAddress).Msg("Failed to create deposit record")
		return fmt.Errorf("failed to create deposit record: %w", err)
	}

	return nil
}

func (r *depositRepository) GetByUserAddress(ctx context.Context, userAddress string) (*models.DepositRecord, error) {
	var rec models.DepositRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM deposit_records WHERE user_address = $1`, userAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_address", userAddress).Msg("Failed to get deposit record by address")
		return nil, fmt.Errorf("failed to get deposit record by address: %w", err)
	}

	return &rec, nil
}

func (r *depositRepository) GetByUserID(ctx context.Context, userID string) (*models.DepositRecord, error) {
	var rec models.DepositRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM deposit_records WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get deposit record by user id")
		return nil, fmt.Errorf("failed to get deposit record by user id: %w", err)
	}

	return &rec, nil
}

func (r *depositRepository) SetSenderWallet(ctx context.Context, userAddress, wallet string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deposit_records SET sender_wallet = $1, updated_at = now() WHERE user_address = $2`,
		wallet, userAddress)
	if err != nil {
		r.logger.Error().Err(err).Str("user_address", userAddress).Msg("Failed to set sender wallet")
		return fmt.Errorf("failed to set sender wallet: %w", err)
	}

	return requireRow(res, domain.ErrRecordNotFound)
}

func (r *depositRepository) RecordAttempt(ctx context.Context, userAddress string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deposit_records
		SET verification_attempts = verification_attempts + 1,
		    last_verification_at = $1,
		    updated_at = now()
		WHERE user_address = $2`,
		at, userAddress)
	if err != nil {
		r.logger.Error().Err(err).Str("user_address", userAddress).Msg("Failed to record verification attempt")
		return fmt.Errorf("failed to record verification attempt: %w", err)
	}

	return requireRow(res, domain.ErrRecordNotFound)
}

func (r *depositRepository) MarkVerified(ctx context.Context, userAddress, depositTxID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deposit_records
		SET verified = true,
		    deposit_tx_id = $1,
		    verification_attempts = verification_attempts + 1,
		    last_verification_at = $2,
		    updated_at = now()
		WHERE user_address = $3`,
		depositTxID, at, userAddress)
	if err != nil {
		r.logger.Error().Err(err).Str("user_address", userAddress).Str("deposit_tx_id", depositTxID).Msg("Failed to mark deposit verified")
		return fmt.Errorf("failed to mark deposit verified: %w", err)
	}

	return requireRow(res, domain.ErrRecordNotFound)
}

// MarkRefunded is a single conditional write: a record that is already
// refunded is left untouched and reported as domain.ErrAlreadyRefunded,
// which turns the check-then-act refund race into a store guarantee.
func (r *depositRepository) MarkRefunded(ctx context.Context, userAddress, refundTxID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deposit_records
		SET refunded = true,
		    refund_tx_id = $1,
		    refund_at = $2,
		    updated_at = now()
		WHERE user_address = $3 AND refunded = false`,
		refundTxID, at, userAddress)
	if err != nil {
		r.logger.Error().Err(err).Str("user_address", userAddress).Msg("Failed to mark deposit refunded")
		return fmt.Errorf("failed to mark deposit refunded: %w", err)
	}

	return requireRow(res, domain.ErrAlreadyRefunded)
}

func (r *depositRepository) MarkSignupCompleted(ctx context.Context, userAddress string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE deposit_records
		SET signup_completed = true,
		    updated_at = now()
		WHERE user_address = $1 AND verified = true AND signup_completed = false`,
		userAddress)
	if err != nil {
		r.logger.Error().Err(err).Str("user_address", userAddress).Msg("Failed to mark signup completed")
		return fmt.Errorf("failed to mark signup completed: %w", err)
	}

	return requireRow(res, domain.ErrNotVerified)
}

func (r *depositRepository) ListUnverified(ctx context.Context, limit int) ([]*models.DepositRecord, error) {
	var recs []*models.DepositRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM deposit_records
		WHERE verified = false
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list unverified deposit records")
		return nil, fmt.Errorf("failed to list unverified deposit records: %w", err)
	}

	return recs, nil
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
