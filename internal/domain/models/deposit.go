package models

import "time"

// VerificationMethod selects how the user proves ownership of their
// identity at signup.
type VerificationMethod string

const (
	MethodPhone     VerificationMethod = "phone"
	MethodPIN       VerificationMethod = "pin"
	MethodBiometric VerificationMethod = "biometric"
)

// BiometricType enumerates the recognized biometric subtypes.
type BiometricType string

const (
	BiometricFace        BiometricType = "face"
	BiometricFingerprint BiometricType = "fingerprint"
	BiometricVoice       BiometricType = "voice"
	BiometricIris        BiometricType = "iris"
)

// DepositRecord is the per-user deposit lifecycle record. Exactly one
// exists per (user_address, user_id) pair; both keys resolve to the
// same row.
type DepositRecord struct {
	ID                   string     `json:"id" db:"id"`
	UserAddress          string     `json:"user_address" db:"user_address"`
	UserID               string     `json:"user_id" db:"user_id"`
	PhoneCommitment      Commitment `json:"phone_commitment" db:"phone_commitment"`
	AuthCommitment       Commitment `json:"auth_commitment" db:"auth_commitment"`
	SenderWallet         string     `json:"sender_wallet,omitempty" db:"sender_wallet"`
	DepositTxID          string     `json:"deposit_tx_id,omitempty" db:"deposit_tx_id"`
	ExpectedAmount       string     `json:"expected_amount" db:"expected_amount"` // lovelace
	Verified             bool       `json:"verified" db:"verified"`
	VerificationAttempts int        `json:"verification_attempts" db:"verification_attempts"`
	LastVerificationAt   *time.Time `json:"last_verification_at,omitempty" db:"last_verification_at"`
	SignupCompleted      bool       `json:"signup_completed" db:"signup_completed"`
	Refunded             bool       `json:"refunded" db:"refunded"`
	RefundTxID           string     `json:"refund_tx_id,omitempty" db:"refund_tx_id"`
	RefundAt             *time.Time `json:"refund_at,omitempty" db:"refund_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// SignupRequest carries the inputs to signup recording.
type SignupRequest struct {
	UserAddress   string             `json:"user_address" binding:"required"`
	UserID        string             `json:"user_id" binding:"required"`
	Phone         string             `json:"phone" binding:"required"`
	SenderWallet  string             `json:"sender_wallet,omitempty"`
	Method        VerificationMethod `json:"verification_method,omitempty"`
	PIN           string             `json:"pin,omitempty"`
	Biometric     string             `json:"biometric_data,omitempty"`
	BiometricType BiometricType      `json:"biometric_type,omitempty"`
}

// SignupResult is returned from signup recording. A signup that cannot
// yet verify still succeeds at the record-created level and hands back
// the deposit address so the user has an actionable next step.
type SignupResult struct {
	Success        bool   `json:"success"`
	Verified       bool   `json:"verified"`
	Message        string `json:"message"`
	DepositAddress string `json:"deposit_address,omitempty"`
}

// RetryResult is returned from an on-demand re-verification.
type RetryResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}

// RefundResult is returned from refund processing.
type RefundResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RefundTxID string `json:"refund_tx_id,omitempty"`
}

// StatusUpdate is a real-time lifecycle notification pushed to
// connected websocket clients.
type StatusUpdate struct {
	Type        string    `json:"type"`
	UserAddress string    `json:"user_address,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
