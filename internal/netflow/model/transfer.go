package model

import "math/big"

// Transfer is one decoded ERC-20 Transfer log.
// Addresses and hashes are lowercased 0x-hex; (TxHash, LogIndex) is the identity.
type Transfer struct {
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint64   `json:"log_index"`
	BlockNumber uint64   `json:"block_number"`
	Contract    string   `json:"contract"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	AmountWei   *big.Int `json:"amount_wei"`
}

// NetflowState is the single-row cumulative aggregate.
type NetflowState struct {
	CumulativeIn  *big.Int
	CumulativeOut *big.Int
	LastBlock     *int64 // nil until a transfer has matched the exchange set
}

// Net returns in - out. May be negative.
func (s NetflowState) Net() *big.Int {
	return new(big.Int).Sub(s.CumulativeIn, s.CumulativeOut)
}
