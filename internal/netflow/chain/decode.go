package chain

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
)

// TransferTopic is keccak("Transfer(address,address,uint256)").
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ErrNotTransfer marks logs that don't carry the indexed from/to topics.
// Callers skip these; they are not worth a log line per event.
var ErrNotTransfer = errors.New("log is not an indexed Transfer event")

// DecodeTransfer maps a raw log to a Transfer.
// topic1 = from, topic2 = to (each left-padded to 32 bytes), data = amount
// as a big-endian unsigned integer.
func DecodeTransfer(lg types.Log) (model.Transfer, error) {
	if len(lg.Topics) < 3 || lg.Topics[0] != TransferTopic {
		return model.Transfer{}, ErrNotTransfer
	}
	from := common.BytesToAddress(lg.Topics[1].Bytes()[12:])
	to := common.BytesToAddress(lg.Topics[2].Bytes()[12:])

	return model.Transfer{
		TxHash:      strings.ToLower(lg.TxHash.Hex()),
		LogIndex:    uint64(lg.Index),
		BlockNumber: lg.BlockNumber,
		Contract:    strings.ToLower(lg.Address.Hex()),
		From:        strings.ToLower(from.Hex()),
		To:          strings.ToLower(to.Hex()),
		AmountWei:   new(big.Int).SetBytes(lg.Data),
	}, nil
}
