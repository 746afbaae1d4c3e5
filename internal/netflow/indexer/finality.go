package indexer

// FinalityGate decides, against the current head, whether a block is deep
// enough to treat as final. Stateless; a transfer that fails the gate is
// dropped, not queued for a second look (the stream will not redeliver it,
// so such transfers are permanently missed — accepted trade-off for never
// recording a non-final one).
type FinalityGate struct {
	Confirmations uint64
}

func (g FinalityGate) Final(head, block uint64) bool {
	if block > head {
		return false
	}
	return head-block >= g.Confirmations
}
