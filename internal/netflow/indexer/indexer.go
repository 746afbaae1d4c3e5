package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/chain"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/out"
	"github.com/chenzhangda16/polygon-netflow/pkg/obs"
)

// dedupHorizonBlocks is how long a transfer identity stays in the in-memory
// duplicate cache. Past that the ledger's ON CONFLICT catches replays.
const dedupHorizonBlocks = 256

type Ledger interface {
	RecordTransfer(ctx context.Context, t model.Transfer) (inserted bool, err error)
}

type Aggregator interface {
	ApplyTransfer(ctx context.Context, t model.Transfer, toIsExchange, fromIsExchange bool) error
}

type Membership interface {
	IsMember(addr string) bool
}

// Journal archives raw logs before the finality gate; best effort.
type Journal interface {
	Append(lg types.Log) error
}

type Config struct {
	Confirmations uint64
	LogBuffer     int
}

// Indexer drives the per-event pipeline:
// decode -> finality -> record -> classify -> aggregate.
// One event is processed to completion before the next is taken.
type Indexer struct {
	cfg Config

	src    chain.Source
	ledger Ledger
	reg    Membership
	agg    Aggregator

	journal Journal  // optional
	sink    out.Sink // optional

	gate FinalityGate
	seen *recentKeys
}

func New(cfg Config, src chain.Source, ledger Ledger, reg Membership, agg Aggregator) (*Indexer, error) {
	if src == nil || ledger == nil || reg == nil || agg == nil {
		return nil, errors.New("source/ledger/registry/aggregator required")
	}
	if cfg.LogBuffer <= 0 {
		cfg.LogBuffer = 256
	}
	return &Indexer{
		cfg:    cfg,
		src:    src,
		ledger: ledger,
		reg:    reg,
		agg:    agg,
		gate:   FinalityGate{Confirmations: cfg.Confirmations},
		seen:   newRecentKeys(4096),
	}, nil
}

// WithJournal attaches a raw-log journal. Call before Run.
func (ix *Indexer) WithJournal(j Journal) *Indexer { ix.journal = j; return ix }

// WithSink attaches a firehose sink for recorded transfers. Call before Run.
func (ix *Indexer) WithSink(s out.Sink) *Indexer { ix.sink = s; return ix }

// Run subscribes from the current head (no backfill) and processes events
// until ctx is canceled or the subscription drops. A dropped subscription is
// fatal to the caller; per-event failures are logged and skipped.
func (ix *Indexer) Run(ctx context.Context) error {
	head, err := ix.src.HeadBlock(ctx)
	if err != nil {
		return fmt.Errorf("initial head lookup: %w", err)
	}
	log.Printf("[indexer] starting from head block %d confirmations=%d", head, ix.cfg.Confirmations)

	logs := make(chan types.Log, ix.cfg.LogBuffer)
	sub, err := ix.src.SubscribeTransfers(ctx, logs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	log.Printf("[indexer] subscribed to Transfer logs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return fmt.Errorf("subscription lost: %w", err)
		case lg := <-logs:
			if err := ix.handleLog(ctx, lg); err != nil {
				log.Printf("[indexer] handle log err: tx=%s idx=%d err=%v", lg.TxHash.Hex(), lg.Index, err)
			}
		}
	}
}

func (ix *Indexer) handleLog(ctx context.Context, lg types.Log) error {
	if ix.journal != nil {
		if err := ix.journal.Append(lg); err != nil {
			log.Printf("[indexer] journal append err: %v", err)
		}
	}

	t, err := chain.DecodeTransfer(lg)
	if errors.Is(err, chain.ErrNotTransfer) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	// Finality is judged against the head at processing time, one lookup per
	// event. Not-yet-final transfers are dropped for good (see FinalityGate).
	head, err := ix.src.HeadBlock(ctx)
	if err != nil {
		return fmt.Errorf("head lookup: %w", err)
	}
	if !ix.gate.Final(head, t.BlockNumber) {
		obs.P("not final, dropping: block=%d head=%d tx=%s idx=%d",
			t.BlockNumber, head, t.TxHash, t.LogIndex)
		return nil
	}

	key := t.TxHash + ":" + strconv.FormatUint(t.LogIndex, 10)
	ix.seen.Evict(head)
	if ix.seen.Seen(key, head) {
		obs.P("duplicate delivery: tx=%s idx=%d", t.TxHash, t.LogIndex)
		return nil
	}

	inserted, err := ix.ledger.RecordTransfer(ctx, t)
	if err != nil {
		// Key not cached: a redelivery after a transient storage error must
		// reach the ledger, not die in the duplicate cache.
		return fmt.Errorf("record: %w", err)
	}
	ix.seen.Add(key, head+dedupHorizonBlocks)
	if !inserted {
		// Replayed delivery that outlived the cache. Already accounted.
		return nil
	}

	toEx := ix.reg.IsMember(t.To)
	fromEx := ix.reg.IsMember(t.From)
	if toEx || fromEx {
		if err := ix.agg.ApplyTransfer(ctx, t, toEx, fromEx); err != nil {
			return fmt.Errorf("aggregate: %w", err)
		}
		log.Printf("[indexer] applied: block=%d amount=%s in=%v out=%v", t.BlockNumber, t.AmountWei, toEx, fromEx)
	}

	if ix.sink != nil {
		if err := ix.sink.Emit(ctx, "transfer", out.TransferMsg{
			Transfer:     t,
			ToExchange:   toEx,
			FromExchange: fromEx,
		}); err != nil {
			log.Printf("[indexer] sink emit err: tx=%s idx=%d err=%v", t.TxHash, t.LogIndex, err)
		}
	}
	return nil
}
