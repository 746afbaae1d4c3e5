package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Source is what the ingestion side needs from the chain: a live Transfer log
// stream for one token contract, plus the current head. The ethclient
// implementation below is the only real one; tests substitute fakes.
type Source interface {
	SubscribeTransfers(ctx context.Context, out chan<- types.Log) (ethereum.Subscription, error)
	HeadBlock(ctx context.Context) (uint64, error)
}

type Client struct {
	ec    *ethclient.Client
	token common.Address
}

// Dial connects to an EVM node over WebSocket. Plain HTTP endpoints won't do:
// log subscriptions need a push transport.
func Dial(ctx context.Context, rpcURL string, token common.Address) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{ec: ec, token: token}, nil
}

func (c *Client) Close() {
	if c.ec != nil {
		c.ec.Close()
	}
}

func (c *Client) SubscribeTransfers(ctx context.Context, out chan<- types.Log) (ethereum.Subscription, error) {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.token},
		Topics:    [][]common.Hash{{TransferTopic}},
	}
	sub, err := c.ec.SubscribeFilterLogs(ctx, q, out)
	if err != nil {
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}
	return sub, nil
}

func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	return c.ec.BlockNumber(ctx)
}
