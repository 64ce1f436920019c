package chain

import "errors"

// Params are the protocol constants the predicates are evaluated
// against.
type Params struct {
	// MinOutputLovelace is the minimum balance every output of an
	// authorizing transaction must carry.
	MinOutputLovelace uint64

	// RefundLovelace is the fixed protocol deposit/refund amount.
	RefundLovelace uint64

	// MaxValidityWindow bounds the transaction validity interval width,
	// in seconds.
	MaxValidityWindow int64
}

var (
	ErrWrongRedeemer      = errors.New("redeemer does not match datum variant")
	ErrBelowMinBalance    = errors.New("output below protocol minimum balance")
	ErrInvalidDatumFields = errors.New("datum field validation failed")
	ErrUnboundedValidity  = errors.New("transaction validity window is unbounded")
	ErrValidityTooWide    = errors.New("transaction validity window exceeds maximum")
	ErrTimestampOutside   = errors.New("datum timestamp outside validity window")
	ErrMissingSigner      = errors.New("wallet signature not required by transaction")
	ErrNoRefundInput      = errors.New("no input from wallet covering the refund amount")
	ErrNoRefundOutput     = errors.New("no output paying exactly the refund amount to wallet")
)

// Authorize decides whether spending a protocol UTXO is permitted. It
// is a pure predicate over the datum, redeemer and transaction body;
// nil means the spend is authorized. Signer entries are compared as the
// wallet's key material rendered the same way the datum renders it.
func Authorize(p Params, datum Datum, redeemer Redeemer, tx *TxBody) error {
	if !redeemerMatches(datum, redeemer) {
		return ErrWrongRedeemer
	}

	for _, out := range tx.Outputs {
		if out.Lovelace < p.MinOutputLovelace {
			return ErrBelowMinBalance
		}
	}

	if !datum.FieldsValid() {
		return ErrInvalidDatumFields
	}

	if err := checkValidityWindow(p, datum, tx); err != nil {
		return err
	}

	if !signedBy(tx, datum.Wallet()) {
		return ErrMissingSigner
	}

	if redeemer == ProcessSignup {
		// Signup authorization couples to an atomic self-refund: the
		// wallet funds the transaction with at least the refund amount
		// and gets exactly the refund amount back.
		if err := checkAtomicRefund(p, datum.Wallet(), tx); err != nil {
			return err
		}
	}

	return nil
}

func redeemerMatches(datum Datum, redeemer Redeemer) bool {
	switch datum.(type) {
	case SignupDatum:
		return redeemer == ProcessSignup
	case RefundDatum:
		return redeemer == ProcessRefund
	case DeleteDatum:
		return redeemer == ProcessDeletion
	default:
		return false
	}
}

func checkValidityWindow(p Params, datum Datum, tx *TxBody) error {
	if tx.ValidFrom == 0 || tx.ValidTo == 0 {
		return ErrUnboundedValidity
	}
	if tx.ValidTo <= tx.ValidFrom || tx.ValidTo-tx.ValidFrom > p.MaxValidityWindow {
		return ErrValidityTooWide
	}

	ts := datum.Timestamp()
	if ts < tx.ValidFrom || ts > tx.ValidTo {
		return ErrTimestampOutside
	}

	return nil
}

func signedBy(tx *TxBody, wallet string) bool {
	for _, signer := range tx.RequiredSigners {
		if signer == wallet {
			return true
		}
	}
	return false
}

func checkAtomicRefund(p Params, wallet string, tx *TxBody) error {
	funded := false
	for _, in := range tx.Inputs {
		if in.Address == wallet && in.Lovelace >= p.RefundLovelace {
			funded = true
			break
		}
	}
	if !funded {
		return ErrNoRefundInput
	}

	for _, out := range tx.Outputs {
		if out.Address == wallet && out.Lovelace == p.RefundLovelace {
			return nil
		}
	}
	return ErrNoRefundOutput
}
