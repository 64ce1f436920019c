// Package chain re-derives the deposit/refund invariants at
// transaction-authorization level. It mirrors the on-chain validator
// script: pure predicates over a decoded transaction body, trusting
// nothing from the off-chain database.
package chain

// Redeemer is the action requested when spending a protocol UTXO.
type Redeemer int

const (
	ProcessSignup Redeemer = iota
	ProcessRefund
	ProcessDeletion
)

func (r Redeemer) String() string {
	switch r {
	case ProcessSignup:
		return "process_signup"
	case ProcessRefund:
		return "process_refund"
	case ProcessDeletion:
		return "process_deletion"
	default:
		return "unknown"
	}
}

// ParseRedeemer maps the wire name back to a Redeemer.
func ParseRedeemer(name string) (Redeemer, bool) {
	switch name {
	case "process_signup":
		return ProcessSignup, true
	case "process_refund":
		return ProcessRefund, true
	case "process_deletion":
		return ProcessDeletion, true
	default:
		return 0, false
	}
}

// Datum is the state attached to a protocol UTXO. Each variant carries
// its own field-level validity predicate.
type Datum interface {
	// Wallet returns the address whose signing key must authorize the
	// spend.
	Wallet() string

	// Timestamp returns the datum's unix-seconds timestamp.
	Timestamp() int64

	// FieldsValid checks the variant's length/range predicates.
	FieldsValid() bool
}

// Timestamps outside [2020-01-01, 2100-01-01) are implausible for any
// datum this protocol writes.
const (
	minPlausibleTimestamp = 1577836800
	maxPlausibleTimestamp = 4102444800
)

const (
	maxAddressLen   = 128
	minUserIDLen    = 3
	maxUserIDLen    = 32
	commitmentLen   = 64
	maxRefundReason = 128
)

// SignupDatum records a pending identity signup.
type SignupDatum struct {
	WalletAddress  string
	UserID         string
	AuthCommitment string
	CreatedAt      int64
}

func (d SignupDatum) Wallet() string   { return d.WalletAddress }
func (d SignupDatum) Timestamp() int64 { return d.CreatedAt }

func (d SignupDatum) FieldsValid() bool {
	if d.WalletAddress == "" || len(d.WalletAddress) > maxAddressLen {
		return false
	}
	if len(d.UserID) < minUserIDLen || len(d.UserID) > maxUserIDLen {
		return false
	}
	if len(d.AuthCommitment) != commitmentLen {
		return false
	}
	return plausibleTimestamp(d.CreatedAt)
}

// RefundDatum records a completed refund.
type RefundDatum struct {
	WalletAddress string
	Amount        uint64
	Reason        string
	RefundedAt    int64
}

func (d RefundDatum) Wallet() string   { return d.WalletAddress }
func (d RefundDatum) Timestamp() int64 { return d.RefundedAt }

func (d RefundDatum) FieldsValid() bool {
	if d.WalletAddress == "" || len(d.WalletAddress) > maxAddressLen {
		return false
	}
	if d.Amount == 0 {
		return false
	}
	if d.Reason == "" || len(d.Reason) > maxRefundReason {
		return false
	}
	return plausibleTimestamp(d.RefundedAt)
}

// DeleteDatum records an identity deletion request.
type DeleteDatum struct {
	WalletAddress string
	RequestedAt   int64
}

func (d DeleteDatum) Wallet() string   { return d.WalletAddress }
func (d DeleteDatum) Timestamp() int64 { return d.RequestedAt }

func (d DeleteDatum) FieldsValid() bool {
	if d.WalletAddress == "" || len(d.WalletAddress) > maxAddressLen {
		return false
	}
	return plausibleTimestamp(d.RequestedAt)
}

func plausibleTimestamp(ts int64) bool {
	return ts >= minPlausibleTimestamp && ts < maxPlausibleTimestamp
}

// TxInput is one input of the authorizing transaction, reduced to the
// fields the validator inspects.
type TxInput struct {
	Address  string
	Lovelace uint64
}

// TxOutput is one output of the authorizing transaction.
type TxOutput struct {
	Address  string
	Lovelace uint64
}

// TxBody is the decoded transaction body the validator is asked to
// authorize. RequiredSigners holds the key hashes of the wallets whose
// signatures the transaction demands. ValidFrom/ValidTo bound the
// validity window in unix seconds; zero means unbounded on that side.
type TxBody struct {
	Inputs          []TxInput
	Outputs         []TxOutput
	RequiredSigners []string
	ValidFrom       int64
	ValidTo         int64
}
