package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
	"github.com/K33P-repo/k33p-backend/internal/repositories/depositrepo"
	"github.com/K33P-repo/k33p-backend/pkg/config"
)

const (
	testDepositAddr = "addr_test1_protocol_deposit"
	testUserAddr    = "addr_test1_user"
	testWallet      = "addr_test1_wallet"
)

// fakeVerifier resolves per-wallet results, falling back to a queue
// consumed in order.
type fakeVerifier struct {
	mu       sync.Mutex
	byWallet map[string]models.VerificationResult
	queue    []models.VerificationResult
	calls    int
}

func (f *fakeVerifier) VerifyByWallet(ctx context.Context, sender string) models.VerificationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r, ok := f.byWallet[sender]; ok {
		return r
	}
	if len(f.queue) > 0 {
		r := f.queue[0]
		f.queue = f.queue[1:]
		return r
	}
	return models.InvalidResult(models.ReasonNoQualifyingTx, "no qualifying transaction found")
}

func (f *fakeVerifier) VerifyByTxID(ctx context.Context, txHash, sender string) models.VerificationResult {
	return f.VerifyByWallet(ctx, sender)
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	txID  string
	err   error
}

func (f *fakeSubmitter) SubmitRefund(ctx context.Context, destination, amount string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.txID, nil
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func validDeposit(txID string) models.VerificationResult {
	return models.ValidResult(&models.TransactionDetails{
		TxID:        txID,
		Amount:      "2000000",
		FromAddress: testWallet,
		ToAddress:   testDepositAddr,
	})
}

type fixture struct {
	svc       IReconciliationService
	repo      depositrepo.IDepositRepository
	verifier  *fakeVerifier
	submitter *fakeSubmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := depositrepo.NewMemory()
	v := &fakeVerifier{byWallet: make(map[string]models.VerificationResult)}
	sub := &fakeSubmitter{txID: "refund_tx_1"}

	svc := NewReconciliationService(repo, v, sub, nil, config.VerificationConfig{
		DepositAddress: testDepositAddr,
		ExpectedAmount: "2000000",
		SweepBatchSize: 100,
	}, "test-salt", zerolog.Nop())

	return &fixture{svc: svc, repo: repo, verifier: v, submitter: sub}
}

// checkInvariants asserts the lifecycle invariants that must hold at
// every observed state.
func checkInvariants(t *testing.T, rec *models.DepositRecord) {
	t.Helper()
	if rec.Refunded {
		assert.True(t, rec.Verified, "refunded implies verified")
	}
	if rec.SignupCompleted {
		assert.True(t, rec.Verified, "signup completed implies verified")
	}
	assert.GreaterOrEqual(t, rec.VerificationAttempts, 0)
}

func (f *fixture) record(t *testing.T, addr string) *models.DepositRecord {
	t.Helper()
	rec, err := f.repo.GetByUserAddress(context.Background(), addr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	checkInvariants(t, rec)
	return rec
}

func signupRequest(addr, userID string) *models.SignupRequest {
	return &models.SignupRequest{
		UserAddress: addr,
		UserID:      userID,
		Phone:       "+15551234567",
	}
}

func TestRecordSignup_NoWalletReturnsDepositAddress(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.RecordSignup(context.Background(), signupRequest(testUserAddr, "john_doe"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Verified)
	assert.Equal(t, testDepositAddr, result.DepositAddress)

	rec := f.record(t, testUserAddr)
	assert.False(t, rec.Verified)
	assert.Equal(t, 0, rec.VerificationAttempts)
	assert.True(t, rec.PhoneCommitment.WellFormed())
	assert.True(t, rec.AuthCommitment.WellFormed())
}

func TestRecordSignup_WithWalletVerifiesInline(t *testing.T) {
	f := newFixture(t)
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")

	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet

	result, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.Empty(t, result.DepositAddress)

	rec := f.record(t, testUserAddr)
	assert.True(t, rec.Verified)
	assert.Equal(t, "deposit_tx_1", rec.DepositTxID)
	assert.Equal(t, 1, rec.VerificationAttempts)
}

// failingVerifyRepo breaks the verified write while leaving record
// creation intact.
type failingVerifyRepo struct {
	depositrepo.IDepositRepository
	err error
}

func (r *failingVerifyRepo) MarkVerified(ctx context.Context, userAddress, depositTxID string, at time.Time) error {
	return r.err
}

func TestRecordSignup_StoreFailureDuringInlineVerify(t *testing.T) {
	repo := &failingVerifyRepo{
		IDepositRepository: depositrepo.NewMemory(),
		err:                errors.New("connection reset"),
	}
	v := &fakeVerifier{byWallet: map[string]models.VerificationResult{
		testWallet: validDeposit("deposit_tx_1"),
	}}

	svc := NewReconciliationService(repo, v, &fakeSubmitter{txID: "refund_tx_1"}, nil, config.VerificationConfig{
		DepositAddress: testDepositAddr,
		ExpectedAmount: "2000000",
	}, "test-salt", zerolog.Nop())

	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet

	result, err := svc.RecordSignup(context.Background(), req)
	require.NoError(t, err, "the record was created; a failed verified write must not fail the signup")
	assert.True(t, result.Success)
	assert.False(t, result.Verified)
	assert.Equal(t, testDepositAddr, result.DepositAddress)

	rec, err := repo.GetByUserAddress(context.Background(), testUserAddr)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Verified)
}

func TestRecordSignup_Conflicts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordSignup(context.Background(), signupRequest(testUserAddr, "john_doe"))
	require.NoError(t, err)

	// Same user address, different user id.
	_, err = f.svc.RecordSignup(context.Background(), signupRequest(testUserAddr, "jane_doe"))
	assert.ErrorIs(t, err, domain.ErrRecordExists)

	// Same user id, different address.
	_, err = f.svc.RecordSignup(context.Background(), signupRequest("addr_test1_other", "john_doe"))
	assert.ErrorIs(t, err, domain.ErrRecordExists)
}

func TestRecordSignup_InputValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*models.SignupRequest)
	}{
		{"short user id", func(r *models.SignupRequest) { r.UserID = "ab" }},
		{"user id with dash", func(r *models.SignupRequest) { r.UserID = "john-doe" }},
		{"empty phone", func(r *models.SignupRequest) { r.Phone = "" }},
		{"alpha phone", func(r *models.SignupRequest) { r.Phone = "not-a-phone" }},
		{"short pin", func(r *models.SignupRequest) {
			r.Method = models.MethodPIN
			r.PIN = "123"
		}},
		{"alpha pin", func(r *models.SignupRequest) {
			r.Method = models.MethodPIN
			r.PIN = "12a4"
		}},
		{"biometric without payload", func(r *models.SignupRequest) {
			r.Method = models.MethodBiometric
			r.BiometricType = models.BiometricFace
		}},
		{"biometric with unknown type", func(r *models.SignupRequest) {
			r.Method = models.MethodBiometric
			r.Biometric = "payload"
			r.BiometricType = "retina"
		}},
		{"unknown method", func(r *models.SignupRequest) { r.Method = "carrier_pigeon" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := signupRequest(testUserAddr, "john_doe")
			tc.mutate(req)

			_, err := f.svc.RecordSignup(context.Background(), req)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)

			// No state mutated.
			rec, err := f.repo.GetByUserAddress(context.Background(), testUserAddr)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestRecordSignup_ValidPINAndBiometric(t *testing.T) {
	f := newFixture(t)

	pinReq := signupRequest(testUserAddr, "john_doe")
	pinReq.Method = models.MethodPIN
	pinReq.PIN = "1234"
	_, err := f.svc.RecordSignup(context.Background(), pinReq)
	require.NoError(t, err)

	bioReq := signupRequest("addr_test1_other", "jane_doe")
	bioReq.Method = models.MethodBiometric
	bioReq.Biometric = "payload"
	bioReq.BiometricType = models.BiometricFingerprint
	_, err = f.svc.RecordSignup(context.Background(), bioReq)
	require.NoError(t, err)
}

func TestRetryVerification_CountsAttempts(t *testing.T) {
	f := newFixture(t)
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.record(t, testUserAddr).VerificationAttempts)

	// K failed retries add exactly K attempts.
	for i := 0; i < 3; i++ {
		result, err := f.svc.RetryVerification(context.Background(), testUserAddr)
		require.NoError(t, err)
		assert.False(t, result.Success)
	}
	assert.Equal(t, 4, f.record(t, testUserAddr).VerificationAttempts)
}

func TestRetryVerification_RequiresWallet(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordSignup(context.Background(), signupRequest(testUserAddr, "john_doe"))
	require.NoError(t, err)

	_, err = f.svc.RetryVerification(context.Background(), testUserAddr)
	assert.ErrorIs(t, err, domain.ErrNoSenderWallet)
	assert.Equal(t, 0, f.record(t, testUserAddr).VerificationAttempts)
}

func TestRetryVerification_UnknownRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RetryVerification(context.Background(), "addr_test1_unknown")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestProcessRefund_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	result, err := f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "refund_tx_1", result.RefundTxID)

	// Second call: distinct already-refunded error, no second submission.
	_, err = f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
	assert.Equal(t, 1, f.submitter.callCount())

	rec := f.record(t, testUserAddr)
	assert.True(t, rec.Refunded)
	assert.Equal(t, "refund_tx_1", rec.RefundTxID)
	assert.NotNil(t, rec.RefundAt)
}

func TestProcessRefund_ConcurrentRequestsSubmitOnce(t *testing.T) {
	f := newFixture(t)
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ProcessRefund(context.Background(), testUserAddr, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	alreadyRefunded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
			alreadyRefunded++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, alreadyRefunded)
	assert.Equal(t, 1, f.submitter.callCount(), "exactly one refund submission")
}

func TestProcessRefund_InlineVerification(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordSignup(context.Background(), signupRequest(testUserAddr, "john_doe"))
	require.NoError(t, err)
	require.NoError(t, f.svc.AttachSenderWallet(context.Background(), testUserAddr, testWallet))

	// The record is still unverified; the refund call folds the
	// verification in instead of failing outright.
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")

	result, err := f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	require.NoError(t, err)
	assert.True(t, result.Success)

	rec := f.record(t, testUserAddr)
	assert.True(t, rec.Verified)
	assert.True(t, rec.Refunded)
}

func TestProcessRefund_UnverifiedAndUnverifiable(t *testing.T) {
	f := newFixture(t)
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	assert.ErrorIs(t, err, domain.ErrNotVerified)
	assert.Equal(t, 0, f.submitter.callCount())

	rec := f.record(t, testUserAddr)
	assert.False(t, rec.Refunded)
	assert.Equal(t, 2, rec.VerificationAttempts, "signup attempt plus inline refund attempt")
}

func TestProcessRefund_SubmissionFailureStaysRetryable(t *testing.T) {
	f := newFixture(t)
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	f.submitter.err = domain.ErrRefundSubmission
	_, err = f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	assert.ErrorIs(t, err, domain.ErrRefundSubmission)
	assert.False(t, f.record(t, testUserAddr).Refunded)

	// Retry after the wallet service recovers.
	f.submitter.err = nil
	result, err := f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, f.record(t, testUserAddr).Refunded)
}

func TestCompleteSignup(t *testing.T) {
	f := newFixture(t)
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	// Not verified yet.
	_, err = f.svc.CompleteSignup(context.Background(), testUserAddr)
	assert.ErrorIs(t, err, domain.ErrNotVerified)

	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	_, err = f.svc.RetryVerification(context.Background(), testUserAddr)
	require.NoError(t, err)

	txID, err := f.svc.CompleteSignup(context.Background(), testUserAddr)
	require.NoError(t, err)
	assert.Equal(t, "deposit_tx_1", txID)
	assert.True(t, f.record(t, testUserAddr).SignupCompleted)

	_, err = f.svc.CompleteSignup(context.Background(), testUserAddr)
	assert.ErrorIs(t, err, domain.ErrSignupCompleted)
}

func TestCompleteSignup_ReturnsRefundTxAfterRefund(t *testing.T) {
	f := newFixture(t)
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	req := signupRequest(testUserAddr, "john_doe")
	req.SenderWallet = testWallet
	_, err := f.svc.RecordSignup(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.ProcessRefund(context.Background(), testUserAddr, "")
	require.NoError(t, err)

	txID, err := f.svc.CompleteSignup(context.Background(), testUserAddr)
	require.NoError(t, err)
	assert.Equal(t, "refund_tx_1", txID)
}

func TestAutoVerifyAll_IsolatesFailures(t *testing.T) {
	f := newFixture(t)

	// No wallet: skipped entirely.
	_, err := f.svc.RecordSignup(context.Background(), signupRequest("addr_test1_a", "user_a"))
	require.NoError(t, err)

	// Wallet with no qualifying deposit: attempt counted, stays unverified.
	reqB := signupRequest("addr_test1_b", "user_b")
	reqB.SenderWallet = "addr_test1_wallet_b"
	_, err = f.svc.RecordSignup(context.Background(), reqB)
	require.NoError(t, err)

	// Wallet with a qualifying deposit: verified by the sweep.
	reqC := signupRequest("addr_test1_c", "user_c")
	reqC.SenderWallet = "addr_test1_wallet_c"
	_, err = f.svc.RecordSignup(context.Background(), reqC)
	require.NoError(t, err)
	f.verifier.byWallet["addr_test1_wallet_c"] = validDeposit("deposit_tx_c")

	f.svc.AutoVerifyAll(context.Background())

	recA := f.record(t, "addr_test1_a")
	assert.False(t, recA.Verified)
	assert.Equal(t, 0, recA.VerificationAttempts)

	recB := f.record(t, "addr_test1_b")
	assert.False(t, recB.Verified)
	assert.Equal(t, 2, recB.VerificationAttempts, "signup attempt plus sweep attempt")

	recC := f.record(t, "addr_test1_c")
	assert.True(t, recC.Verified)
	assert.Equal(t, "deposit_tx_c", recC.DepositTxID)
}

// TestSignupLifecycleEndToEnd walks the full scenario: record without a
// wallet, fail a retry, succeed a retry, refund once, refuse a second
// refund.
func TestSignupLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.RecordSignup(ctx, signupRequest(testUserAddr, "john_doe"))
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.NotEmpty(t, result.DepositAddress)

	require.NoError(t, f.svc.AttachSenderWallet(ctx, testUserAddr, testWallet))

	// First retry: wallet has no matching transactions.
	retry, err := f.svc.RetryVerification(ctx, testUserAddr)
	require.NoError(t, err)
	assert.False(t, retry.Success)
	assert.Equal(t, 1, retry.Attempts)

	// Second retry: a qualifying deposit appeared.
	f.verifier.byWallet[testWallet] = validDeposit("deposit_tx_1")
	retry, err = f.svc.RetryVerification(ctx, testUserAddr)
	require.NoError(t, err)
	assert.True(t, retry.Success)
	assert.Equal(t, 2, retry.Attempts)

	rec := f.record(t, testUserAddr)
	assert.True(t, rec.Verified)
	assert.Equal(t, "deposit_tx_1", rec.DepositTxID)

	refund, err := f.svc.ProcessRefund(ctx, testUserAddr, "")
	require.NoError(t, err)
	assert.True(t, refund.Success)
	assert.True(t, f.record(t, testUserAddr).Refunded)

	_, err = f.svc.ProcessRefund(ctx, testUserAddr, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
	assert.Equal(t, 1, f.submitter.callCount())
}
