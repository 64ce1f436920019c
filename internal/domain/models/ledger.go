package models

import "time"

// Ledger indexer response models. Amounts cross the wire as strings,
// denominated per asset unit; native currency is the "lovelace" unit.

const UnitLovelace = "lovelace"

// TransactionInfo is the indexer's metadata view of a transaction.
type TransactionInfo struct {
	Hash          string `json:"hash"`
	BlockHeight   int64  `json:"block_height"`
	BlockTime     int64  `json:"block_time"` // unix seconds
	Confirmations int    `json:"confirmations"`
}

// Time returns the block timestamp as a time.Time.
func (t *TransactionInfo) Time() time.Time {
	return time.Unix(t.BlockTime, 0).UTC()
}

// AssetAmount is one asset quantity attached to a UTXO.
type AssetAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// UTXOEntry is one input or output of a transaction.
type UTXOEntry struct {
	Address string        `json:"address"`
	Amount  []AssetAmount `json:"amount"`
}

// Quantity returns the quantity of the given unit on this entry, or ""
// when the entry carries none of it.
func (u *UTXOEntry) Quantity(unit string) string {
	for _, a := range u.Amount {
		if a.Unit == unit {
			return a.Quantity
		}
	}
	return ""
}

// TransactionUTXOs is the indexer's input/output view of a transaction.
type TransactionUTXOs struct {
	Hash    string      `json:"hash"`
	Inputs  []UTXOEntry `json:"inputs"`
	Outputs []UTXOEntry `json:"outputs"`
}

// AddressTransaction is one entry of an address's transaction list.
type AddressTransaction struct {
	TxHash    string `json:"tx_hash"`
	BlockTime int64  `json:"block_time"`
}
