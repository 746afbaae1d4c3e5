package indexer

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/chain"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/model"
	"github.com/chenzhangda16/polygon-netflow/internal/netflow/registry"
)

const (
	exchangeAddr = "0xf977814e90da44bfa03b6295a0616a897441acec"
	otherAddr    = "0x1111111111111111111111111111111111111111"
)

// ---- fakes ----

type fakeSub struct{ errCh chan error }

func (s *fakeSub) Unsubscribe()      {}
func (s *fakeSub) Err() <-chan error { return s.errCh }

type fakeSource struct {
	head    uint64
	headErr error
	logs    chan types.Log
	subErr  chan error
	failSub bool
}

func (f *fakeSource) SubscribeTransfers(ctx context.Context, out chan<- types.Log) (ethereum.Subscription, error) {
	if f.failSub {
		return nil, errors.New("ws refused")
	}
	go func() {
		for lg := range f.logs {
			out <- lg
		}
	}()
	return &fakeSub{errCh: f.subErr}, nil
}

func (f *fakeSource) HeadBlock(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]model.Transfer
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]model.Transfer{}}
}

func (l *fakeLedger) key(t model.Transfer) string {
	return t.TxHash + ":" + strconv.FormatUint(t.LogIndex, 10)
}

func (l *fakeLedger) RecordTransfer(ctx context.Context, t model.Transfer) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if _, ok := l.rows[l.key(t)]; ok {
		return false, nil
	}
	l.rows[l.key(t)] = t
	return true, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type fakeAgg struct {
	mu        sync.Mutex
	in, out   *big.Int
	lastBlock int64
	applies   int
}

func newFakeAgg() *fakeAgg {
	return &fakeAgg{in: big.NewInt(0), out: big.NewInt(0)}
}

func (a *fakeAgg) ApplyTransfer(ctx context.Context, t model.Transfer, toEx, fromEx bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applies++
	if toEx {
		a.in.Add(a.in, t.AmountWei)
		if int64(t.BlockNumber) > a.lastBlock {
			a.lastBlock = int64(t.BlockNumber)
		}
	}
	if fromEx {
		a.out.Add(a.out, t.AmountWei)
		if int64(t.BlockNumber) > a.lastBlock {
			a.lastBlock = int64(t.BlockNumber)
		}
	}
	return nil
}

// ---- helpers ----

func addrTopic(hexAddr string) common.Hash {
	var h common.Hash
	copy(h[12:], common.HexToAddress(hexAddr).Bytes())
	return h
}

func transferLog(from, to string, amount *big.Int, block uint64, tx string, idx uint) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x455e53cbb86018ac2b8092fdcd39d8444affc3f6"),
		Topics:      []common.Hash{chain.TransferTopic, addrTopic(from), addrTopic(to)},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash(tx),
		Index:       idx,
	}
}

func pol(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestIndexer(t *testing.T, src *fakeSource, ledger *fakeLedger, agg *fakeAgg) *Indexer {
	t.Helper()
	reg := registry.New([]registry.Entry{{Address: exchangeAddr, Exchange: "binance"}})
	ix, err := New(Config{Confirmations: 20}, src, ledger, reg, agg)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

// ---- tests ----

func TestInboundTransferAggregated(t *testing.T) {
	// A -> X, amount 3 POL, block 100, head 130, conf 20: final, inbound.
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, exchangeAddr, pol(3), 100, "0x01", 0)
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatalf("handleLog: %v", err)
	}

	if ledger.count() != 1 {
		t.Errorf("ledger rows = %d, want 1", ledger.count())
	}
	if agg.in.Cmp(pol(3)) != 0 {
		t.Errorf("cumulative_in = %s, want %s", agg.in, pol(3))
	}
	if agg.out.Sign() != 0 {
		t.Errorf("cumulative_out = %s, want 0", agg.out)
	}
	if agg.lastBlock != 100 {
		t.Errorf("last_block = %d, want 100", agg.lastBlock)
	}
}

func TestDuplicateDeliveryCountedOnce(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, exchangeAddr, pol(1), 100, "0x02", 3)
	for i := 0; i < 3; i++ {
		if err := ix.handleLog(context.Background(), lg); err != nil {
			t.Fatalf("handleLog #%d: %v", i, err)
		}
	}

	if ledger.count() != 1 {
		t.Errorf("ledger rows = %d, want 1", ledger.count())
	}
	if agg.applies != 1 {
		t.Errorf("aggregator applied %d times, want 1", agg.applies)
	}
	if agg.in.Cmp(pol(1)) != 0 {
		t.Errorf("cumulative_in = %s, want %s", agg.in, pol(1))
	}
}

func TestReplayPastCacheStillCountedOnce(t *testing.T) {
	// A second indexer instance (fresh cache) must still not double-count:
	// the ledger reports already_present and aggregation is skipped.
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()

	lg := transferLog(otherAddr, exchangeAddr, pol(2), 100, "0x03", 0)

	ix1 := newTestIndexer(t, src, ledger, agg)
	if err := ix1.handleLog(context.Background(), lg); err != nil {
		t.Fatal(err)
	}
	ix2 := newTestIndexer(t, src, ledger, agg)
	if err := ix2.handleLog(context.Background(), lg); err != nil {
		t.Fatal(err)
	}

	if ledger.count() != 1 {
		t.Errorf("ledger rows = %d, want 1", ledger.count())
	}
	if agg.applies != 1 {
		t.Errorf("aggregator applied %d times, want 1", agg.applies)
	}
}

func TestSelfTransferIncrementsBoth(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(exchangeAddr, exchangeAddr, pol(5), 100, "0x04", 0)
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatal(err)
	}

	if agg.in.Cmp(pol(5)) != 0 || agg.out.Cmp(pol(5)) != 0 {
		t.Errorf("in/out = %s/%s, want both %s", agg.in, agg.out, pol(5))
	}
}

func TestNonMemberTransferRecordedButNotAggregated(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, "0x2222222222222222222222222222222222222222", pol(7), 100, "0x05", 0)
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatal(err)
	}

	if ledger.count() != 1 {
		t.Errorf("ledger rows = %d, want 1", ledger.count())
	}
	if agg.applies != 0 {
		t.Errorf("aggregator applied %d times, want 0", agg.applies)
	}
}

func TestNotFinalTransferDropped(t *testing.T) {
	// head 110, block 100, conf 20: only 10 deep. Dropped entirely, and the
	// pipeline never revisits it even once it matures.
	src := &fakeSource{head: 110}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, exchangeAddr, pol(1), 100, "0x06", 0)
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatal(err)
	}
	if ledger.count() != 0 {
		t.Errorf("non-final transfer recorded: rows = %d", ledger.count())
	}

	// Head advances past the depth, but the source does not redeliver, so
	// the transfer stays missing from accounting. Known gap, kept on purpose.
	src.head = 200
	if ledger.count() != 0 || agg.applies != 0 {
		t.Error("dropped transfer must not reappear without redelivery")
	}
}

func TestNonTransferLogSkipped(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}, BlockNumber: 100}
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatalf("malformed log should be skipped without error, got %v", err)
	}
	if ledger.count() != 0 {
		t.Error("malformed log produced a ledger row")
	}
}

func TestLedgerErrorSkipsEvent(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	ledger.err = errors.New("pg down")
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, exchangeAddr, pol(1), 100, "0x07", 0)
	if err := ix.handleLog(context.Background(), lg); err == nil {
		t.Fatal("expected error from ledger")
	}
	if agg.applies != 0 {
		t.Error("aggregation ran despite ledger failure")
	}

	// Pipeline keeps going: next event on a healthy ledger works.
	ledger.err = nil
	lg2 := transferLog(otherAddr, exchangeAddr, pol(1), 101, "0x08", 0)
	if err := ix.handleLog(context.Background(), lg2); err != nil {
		t.Fatalf("healthy event after failure: %v", err)
	}
	if agg.applies != 1 {
		t.Errorf("aggregator applied %d times, want 1", agg.applies)
	}
}

func TestRedeliveryAfterLedgerErrorRecorded(t *testing.T) {
	src := &fakeSource{head: 130}
	ledger := newFakeLedger()
	ledger.err = errors.New("pg down")
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	lg := transferLog(otherAddr, exchangeAddr, pol(4), 100, "0x0a", 2)
	if err := ix.handleLog(context.Background(), lg); err == nil {
		t.Fatal("expected error from ledger")
	}

	// The failed event must not sit in the duplicate cache: the same
	// delivery against a healthy ledger is recorded and aggregated.
	ledger.err = nil
	if err := ix.handleLog(context.Background(), lg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if ledger.count() != 1 {
		t.Errorf("redelivered transfer not recorded: ledger rows = %d, want 1", ledger.count())
	}
	if agg.applies != 1 || agg.in.Cmp(pol(4)) != 0 {
		t.Errorf("aggregator: applies=%d in=%s, want one apply of %s", agg.applies, agg.in, pol(4))
	}
}

func TestRunFatalOnSubscriptionLoss(t *testing.T) {
	src := &fakeSource{
		head:   130,
		logs:   make(chan types.Log),
		subErr: make(chan error, 1),
	}
	ledger := newFakeLedger()
	agg := newFakeAgg()
	ix := newTestIndexer(t, src, ledger, agg)

	done := make(chan error, 1)
	go func() { done <- ix.Run(context.Background()) }()

	// One good event flows through first.
	src.logs <- transferLog(otherAddr, exchangeAddr, pol(1), 100, "0x09", 0)
	waitFor(t, func() bool { return ledger.count() == 1 })

	src.subErr <- errors.New("ws closed")
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil after subscription loss")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after subscription loss")
	}
}

func TestRunFatalOnSubscribeFailure(t *testing.T) {
	src := &fakeSource{head: 130, failSub: true}
	ix := newTestIndexer(t, src, newFakeLedger(), newFakeAgg())
	if err := ix.Run(context.Background()); err == nil {
		t.Fatal("expected error when subscription cannot be established")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
