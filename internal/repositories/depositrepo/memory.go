package depositrepo

import (
	"context"
	"sync"
	"time"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

// memoryRepository is the in-memory fallback implementation, selected
// once at startup for development and used throughout the test suites.
// It enforces the same conditional-write semantics as the Postgres
// implementation.
type memoryRepository struct {
	mu        sync.RWMutex
	byAddress map[string]*models.DepositRecord
	byUserID  map[string]string // user_id -> user_address
}

func NewMemory() IDepositRepository {
	return &memoryRepository{
		byAddress: make(map[string]*models.DepositRecord),
		byUserID:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(ctx context.Context, rec *models.DepositRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byAddress[rec.UserAddress]; ok {
		return domain.ErrRecordExists
	}
	if _, ok := r.byUserID[rec.UserID]; ok {
		return domain.ErrRecordExists
	}

	cp := *rec
	r.byAddress[rec.UserAddress] = &cp
	r.byUserID[rec.UserID] = rec.UserAddress
	return nil
}

func (r *memoryRepository) GetByUserAddress(ctx context.Context, userAddress string) (*models.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byAddress[userAddress]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepository) GetByUserID(ctx context.Context, userID string) (*models.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.byUserID[userID]
	if !ok {
		return nil, nil
	}
	cp := *r.byAddress[addr]
	return &cp, nil
}

func (r *memoryRepository) SetSenderWallet(ctx context.Context, userAddress, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byAddress[userAddress]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.SenderWallet = wallet
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) RecordAttempt(ctx context.Context, userAddress string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byAddress[userAddress]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.VerificationAttempts++
	rec.LastVerificationAt = &at
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) MarkVerified(ctx context.Context, userAddress, depositTxID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byAddress[userAddress]
	if !ok {
		return domain.ErrRecordNotFound
	}
	rec.Verified = true
	rec.DepositTxID = depositTxID
	rec.VerificationAttempts++
	rec.LastVerificationAt = &at
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) MarkRefunded(ctx context.Context, userAddress, refundTxID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byAddress[userAddress]
	if !ok {
		return domain.ErrAlreadyRefunded
	}
	if rec.Refunded {
		return domain.ErrAlreadyRefunded
	}
	rec.Refunded = true
	rec.RefundTxID = refundTxID
	rec.RefundAt = &at
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) MarkSignupCompleted(ctx context.Context, userAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byAddress[userAddress]
	if !ok || !rec.Verified || rec.SignupCompleted {
		return domain.ErrNotVerified
	}
	rec.SignupCompleted = true
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) ListUnverified(ctx context.Context, limit int) ([]*models.DepositRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recs []*models.DepositRecord
	for _, rec := range r.byAddress {
		if rec.Verified {
			continue
		}
		cp := *rec
		recs = append(recs, &cp)
		if limit > 0 && len(recs) >= limit {
			break
		}
	}
	return recs, nil
}
