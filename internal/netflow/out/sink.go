package out

import (
	"context"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
)

type Sink interface {
	Emit(ctx context.Context, typ string, v any) error
	Close() error
}

// TransferMsg is the firehose payload for one recorded transfer, with its
// classification against the exchange set.
type TransferMsg struct {
	model.Transfer
	ToExchange   bool `json:"to_exchange"`
	FromExchange bool `json:"from_exchange"`
}
