package reconciler

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/K33P-repo/k33p-backend/internal/application/verifier"
	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/interfaces"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
	"github.com/K33P-repo/k33p-backend/internal/repositories/depositrepo"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

// IReconciliationService owns the deposit record lifecycle: signup
// recording, on-demand and batch verification, refund issuance and
// signup completion.
type IReconciliationService interface {
	RecordSignup(ctx context.Context, req *models.SignupRequest) (*models.SignupResult, error)
	RetryVerification(ctx context.Context, userAddress string) (*models.RetryResult, error)
	AutoVerifyAll(ctx context.Context)
	ProcessRefund(ctx context.Context, userAddress, destination string) (*models.RefundResult, error)
	CompleteSignup(ctx context.Context, userAddress string) (string, error)
	AttachSenderWallet(ctx context.Context, userAddress, wallet string) error
	GetRecord(ctx context.Context, userAddress string) (*models.DepositRecord, error)
}

const refundLockStripes = 64

type reconciliationService struct {
	repo        depositrepo.IDepositRepository
	verifier    verifier.IDepositVerifier
	refunds     interfaces.RefundSubmitter
	broadcaster interfaces.StatusBroadcaster
	cfg         config.VerificationConfig
	salt        string
	refundLocks [refundLockStripes]sync.Mutex
	logger      zerolog.Logger
}

func NewReconciliationService(
	repo depositrepo.IDepositRepository,
	depositVerifier verifier.IDepositVerifier,
	refunds interfaces.RefundSubmitter,
	broadcaster interfaces.StatusBroadcaster,
	cfg config.VerificationConfig,
	commitmentSalt string,
	logger zerolog.Logger,
) IReconciliationService {
	return &reconciliationService{
		repo:        repo,
		verifier:    depositVerifier,
		refunds:     refunds,
		broadcaster: broadcaster,
		cfg:         cfg,
		salt:        commitmentSalt,
		logger:      logger,
	}
}

func (s *reconciliationService) RecordSignup(ctx context.Context, req *models.SignupRequest) (*models.SignupResult, error) {
	if err := validateSignup(req); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetByUserAddress(ctx, req.UserAddress); err != nil {
		return nil, fmt.Errorf("failed to check existing record: %w", err)
	} else if existing != nil {
		return nil, domain.ErrRecordExists
	}
	if existing, err := s.repo.GetByUserID(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("failed to check existing record: %w", err)
	} else if existing != nil {
		return nil, domain.ErrRecordExists
	}

	now := time.Now().UTC()
	rec := &models.DepositRecord{
		ID:              uuid.New().String(),
		UserAddress:     req.UserAddress,
		UserID:          req.UserID,
		PhoneCommitment: models.NewCommitment(s.salt, req.Phone),
		AuthCommitment:  models.NewCommitment(s.salt, req.UserID, req.Phone, authSecret(req)),
		SenderWallet:    req.SenderWallet,
		ExpectedAmount:  s.cfg.ExpectedAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_address", rec.UserAddress).
		Str("user_id", rec.UserID).
		Bool("has_sender_wallet", rec.SenderWallet != "").
		Msg("Deposit record created")
	s.broadcast("signup_recorded", rec.UserAddress, rec.UserID, "", "pending", "Signup recorded")

	if rec.SenderWallet == "" {
		return &models.SignupResult{
			Success:        true,
			Verified:       false,
			Message:        "Signup recorded. Send the deposit to the protocol address to continue.",
			DepositAddress: s.cfg.DepositAddress,
		}, nil
	}

	verified, err := s.verifyRecord(ctx, rec)
	if err != nil {
		// The record itself was created; the caller retries verification
		// later, but the store failure must not vanish.
		s.logger.Error().Err(err).Str("user_address", rec.UserAddress).Msg("Inline verification failed to persist")
	}
	if !verified {
		return &models.SignupResult{
			Success:        true,
			Verified:       false,
			Message:        "Signup recorded. Deposit not found yet; retry once the transaction confirms.",
			DepositAddress: s.cfg.DepositAddress,
		}, nil
	}

	return &models.SignupResult{
		Success:  true,
		Verified: true,
		Message:  "Signup recorded and deposit verified.",
	}, nil
}

func (s *reconciliationService) RetryVerification(ctx context.Context, userAddress string) (*models.RetryResult, error) {
	rec, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	if rec.SenderWallet == "" {
		return nil, domain.ErrNoSenderWallet
	}

	verified, err := s.verifyRecord(ctx, rec)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	if !verified {
		return &models.RetryResult{
			Success:  false,
			Message:  "No qualifying deposit transaction found",
			Attempts: updated.VerificationAttempts,
		}, nil
	}

	return &models.RetryResult{
		Success:  true,
		Message:  "Deposit verified",
		Attempts: updated.VerificationAttempts,
	}, nil
}

// AutoVerifyAll sweeps all unverified records. Records without a sender
// wallet are skipped, one record's failure never aborts the sweep, and
// an inter-record delay keeps the indexer under its rate limits.
func (s *reconciliationService) AutoVerifyAll(ctx context.Context) {
	limit := s.cfg.SweepBatchSize
	if limit <= 0 {
		limit = 100
	}

	recs, err := s.repo.ListUnverified(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list unverified records for sweep")
		return
	}

	s.logger.Info().Int("count", len(recs)).Msg("Starting auto-verification sweep")

	for i, rec := range recs {
		if i > 0 && s.cfg.SweepDelay > 0 {
			select {
			case <-ctx.Done():
				s.logger.Warn().Msg("Auto-verification sweep cancelled")
				return
			case <-time.After(s.cfg.SweepDelay):
			}
		}

		if rec.SenderWallet == "" {
			s.logger.Debug().Str("user_address", rec.UserAddress).Msg("Skipping record without sender wallet")
			continue
		}

		if _, err := s.verifyRecord(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("user_address", rec.UserAddress).Msg("Sweep verification failed for record")
		}
	}
}

// ProcessRefund issues the refund for a verified deposit. Issuance is
// serialized per record: a striped lock stops concurrent submissions in
// this process and the store's conditional write stops them across
// processes.
func (s *reconciliationService) ProcessRefund(ctx context.Context, userAddress, destination string) (*models.RefundResult, error) {
	lock := s.refundLock(userAddress)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	if rec.Refunded {
		return nil, domain.ErrAlreadyRefunded
	}

	if !rec.Verified {
		// The indexer may simply not have caught up yet; fold the common
		// refund-before-verification race into a single call.
		if rec.SenderWallet == "" {
			return nil, domain.ErrNoSenderWallet
		}
		verified, err := s.verifyRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		if !verified {
			return nil, domain.ErrNotVerified
		}
	}

	dest := destination
	if dest == "" {
		dest = rec.SenderWallet
	}
	if dest == "" {
		return nil, domain.ErrNoSenderWallet
	}

	refundTxID, err := s.refunds.SubmitRefund(ctx, dest, rec.ExpectedAmount)
	if err != nil {
		// Not marked refunded: the record stays retryable.
		s.logger.Error().Err(err).Str("user_address", userAddress).Msg("Refund submission failed")
		return nil, err
	}

	if err := s.repo.MarkRefunded(ctx, userAddress, refundTxID, time.Now().UTC()); err != nil {
		// A concurrent writer won the conditional update after our
		// submission; surface it loudly, this is double-refund territory.
		s.logger.Error().Err(err).
			Str("user_address", userAddress).
			Str("refund_tx_id", refundTxID).
			Msg("Failed to mark record refunded after submission")
		return nil, err
	}

	s.logger.Info().
		Str("user_address", userAddress).
		Str("destination", dest).
		Str("refund_tx_id", refundTxID).
		Msg("Refund processed")
	s.broadcast("refund_submitted", userAddress, rec.UserID, refundTxID, "refunded", "Refund submitted")

	return &models.RefundResult{
		Success:    true,
		Message:    "Refund submitted",
		RefundTxID: refundTxID,
	}, nil
}

// CompleteSignup marks a verified signup complete and returns the
// refund transaction id when present, otherwise the deposit one.
func (s *reconciliationService) CompleteSignup(ctx context.Context, userAddress string) (string, error) {
	rec, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", domain.ErrRecordNotFound
	}
	if !rec.Verified {
		return "", domain.ErrNotVerified
	}
	if rec.SignupCompleted {
		return "", domain.ErrSignupCompleted
	}

	if err := s.repo.MarkSignupCompleted(ctx, userAddress); err != nil {
		return "", err
	}

	s.logger.Info().Str("user_address", userAddress).Msg("Signup completed")
	s.broadcast("signup_completed", userAddress, rec.UserID, rec.DepositTxID, "completed", "Signup completed")

	if rec.RefundTxID != "" {
		return rec.RefundTxID, nil
	}
	return rec.DepositTxID, nil
}

func (s *reconciliationService) AttachSenderWallet(ctx context.Context, userAddress, wallet string) error {
	if wallet == "" {
		return domain.NewValidationError("sender_wallet", "must not be empty")
	}

	rec, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrRecordNotFound
	}

	return s.repo.SetSenderWallet(ctx, userAddress, wallet)
}

func (s *reconciliationService) GetRecord(ctx context.Context, userAddress string) (*models.DepositRecord, error) {
	rec, err := s.repo.GetByUserAddress(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

// verifyRecord runs one verification attempt for the record and applies
// the outcome. The attempt is counted regardless of outcome.
func (s *reconciliationService) verifyRecord(ctx context.Context, rec *models.DepositRecord) (bool, error) {
	now := time.Now().UTC()
	result := s.verifier.VerifyByWallet(ctx, rec.SenderWallet)

	if !result.Valid {
		s.logger.Info().
			Str("user_address", rec.UserAddress).
			Str("sender_wallet", rec.SenderWallet).
			Str("reason", string(result.Reason)).
			Str("detail", result.Message).
			Msg("Deposit verification attempt failed")
		if err := s.repo.RecordAttempt(ctx, rec.UserAddress, now); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.repo.MarkVerified(ctx, rec.UserAddress, result.Details.TxID, now); err != nil {
		return false, err
	}

	s.logger.Info().
		Str("user_address", rec.UserAddress).
		Str("deposit_tx_id", result.Details.TxID).
		Str("amount", result.Details.Amount).
		Int("confirmations", result.Details.Confirmations).
		Msg("Deposit verified")
	s.broadcast("deposit_verified", rec.UserAddress, rec.UserID, result.Details.TxID, "verified", "Deposit verified")

	return true, nil
}

func (s *reconciliationService) refundLock(userAddress string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userAddress))
	return &s.refundLocks[h.Sum32()%refundLockStripes]
}

func (s *reconciliationService) broadcast(updateType, userAddress, userID, txHash, status, message string) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(&models.StatusUpdate{
		Type:        updateType,
		UserAddress: userAddress,
		UserID:      userID,
		TxHash:      txHash,
		Status:      status,
		Message:     message,
		Timestamp:   time.Now().UTC(),
	})
}

// authSecret picks the method-specific secret folded into the auth
// commitment.
func authSecret(req *models.SignupRequest) string {
	switch req.Method {
	case models.MethodPIN:
		return req.PIN
	case models.MethodBiometric:
		return string(req.BiometricType) + ":" + req.Biometric
	default:
		return req.Phone
	}
}
