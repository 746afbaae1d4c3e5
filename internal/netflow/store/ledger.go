package store

import (
	"context"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
)

// RecordTransfer appends one transfer. Replaying the same (tx_hash, log_index)
// is a no-op: inserted=false, no error, no second row. There is no update or
// delete path for this table.
func (s *Store) RecordTransfer(ctx context.Context, t model.Transfer) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (tx_hash, log_index, block_number, contract, from_addr, to_addr, amount_wei)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
		ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		t.TxHash, int64(t.LogIndex), int64(t.BlockNumber), t.Contract, t.From, t.To, t.AmountWei.String(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
