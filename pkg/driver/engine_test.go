package driver

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/turbofish-org/orga/pkg/config"
	"github.com/turbofish-org/orga/pkg/events"
	"github.com/turbofish-org/orga/pkg/ledger"
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	return newTestEngineWith(t, ledger.New())
}

func newTestEngineWith(t *testing.T, app Application) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.ResultCacheCapacity = 64

	bus := events.NewBroker()
	bus.Start()
	t.Cleanup(bus.Stop)

	e, err := NewEngine(cfg, app, bus)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

// seed loads account's opening balance via Engine.Seed, bypassing ledger's
// transfer-only Application (which has no minting operation) the way a
// real deployment's genesis state would be loaded before any block runs.
func seed(t *testing.T, e *Engine, account string, amount int64) {
	t.Helper()
	require.NoError(t, e.Seed([]byte("balance:"+account), []byte(strconv.FormatInt(amount, 10))))
}

func TestEngineBeginDeliverEndCommit(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 100)

	require.NoError(t, e.BeginBlock(1, nil))
	code, _, err := e.DeliverTx(ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 40}))
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)

	_, err = e.EndBlock(1)
	require.NoError(t, err)
	root, err := e.Commit()
	require.NoError(t, err)
	require.NotEmpty(t, root)

	_, value, _, err := e.Query("/account", []byte("balance:alice"), 0)
	require.NoError(t, err)
	require.Equal(t, "60", string(value))

	_, value, _, err = e.Query("/account", []byte("balance:bob"), 0)
	require.NoError(t, err)
	require.Equal(t, "40", string(value))
}

func TestEngineDeliverTxWithoutOpenBlockFails(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.DeliverTx(ledger.EncodeTransfer(ledger.Transfer{From: "a", To: "b", Amount: 1}))
	require.Error(t, err)
}

func TestEngineDoubleBeginBlockFails(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.BeginBlock(1, nil))
	require.Error(t, e.BeginBlock(1, nil))
}

func TestEngineInsufficientFundsRejectedWithoutCorruptingState(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 10)

	require.NoError(t, e.BeginBlock(1, nil))
	code, _, err := e.DeliverTx(ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 500}))
	require.NoError(t, err)
	require.Equal(t, uint32(1), code)

	_, err = e.EndBlock(1)
	require.NoError(t, err)
	_, err = e.Commit()
	require.NoError(t, err)

	_, value, _, err := e.Query("/account", []byte("balance:alice"), 0)
	require.NoError(t, err)
	require.Equal(t, "10", string(value))
}

func TestEngineApplyBatchRunsConcurrentDisjointTransfers(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 100)
	seed(t, e, "carol", 100)

	results, root, err := e.ApplyBatch(context.Background(), 1, nil, [][]byte{
		ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 20}),
		ledger.EncodeTransfer(ledger.Transfer{From: "carol", To: "dave", Amount: 30}),
	})
	require.NoError(t, err)
	require.NotEmpty(t, root)
	// results[0] is the implicit begin_block, results[1]/[2] the transfers.
	require.Len(t, results, 4)
	require.Equal(t, uint32(0), results[1].Code)
	require.Equal(t, uint32(0), results[2].Code)

	_, value, _, err := e.Query("/account", []byte("balance:bob"), 0)
	require.NoError(t, err)
	require.Equal(t, "20", string(value))
	_, value, _, err = e.Query("/account", []byte("balance:dave"), 0)
	require.NoError(t, err)
	require.Equal(t, "30", string(value))
}

func TestEngineCheckTxDoesNotMutateCommittedState(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 100)

	code, _, err := e.CheckTx(ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 25}))
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)

	_, value, _, err := e.Query("/account", []byte("balance:alice"), 0)
	require.NoError(t, err)
	require.Equal(t, "100", string(value))
}

func TestEngineDeliverTxReplaysCachedResult(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 100)

	payload := ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 10})

	// Warm the cache via CheckTx against a mempool buffer seeded identically
	// to the block that is about to open.
	code, _, err := e.CheckTx(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)

	require.NoError(t, e.BeginBlock(2, nil))
	code, _, err = e.DeliverTx(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)
	_, err = e.EndBlock(2)
	require.NoError(t, err)
	_, err = e.Commit()
	require.NoError(t, err)

	_, value, _, err := e.Query("/account", []byte("balance:bob"), 0)
	require.NoError(t, err)
	require.Equal(t, "10", string(value))
}

// countingApp wraps ledger.App counting Tx executions, to tell a genuine
// cache replay apart from a silent re-execution that happens to land on
// the same state.
type countingApp struct {
	inner *ledger.App
	execs int
}

func (c *countingApp) Execute(h *txcontext.Context, kind types.Kind, payload []byte) ([]byte, uint32, error) {
	if kind == types.KindTx {
		c.execs++
	}
	return c.inner.Execute(h, kind, payload)
}

func (c *countingApp) KeyHint(kind types.Kind, payload []byte) *types.KeyHint {
	return c.inner.KeyHint(kind, payload)
}

func TestEngineCacheReplaySkipsReExecution(t *testing.T) {
	app := &countingApp{inner: ledger.New()}
	e := newTestEngineWith(t, app)
	seed(t, e, "alice", 100)

	payload := ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 10})
	code, _, err := e.CheckTx(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)
	require.Equal(t, 1, app.execs)

	// No prior transition in the block writes alice or bob, so the cached
	// read-set still matches and the writeset replays without a second
	// Execute call.
	require.NoError(t, e.BeginBlock(1, nil))
	code, _, err = e.DeliverTx(payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), code)
	require.Equal(t, 1, app.execs, "a valid cache entry must replay, not re-execute")

	_, err = e.EndBlock(1)
	require.NoError(t, err)
	_, err = e.Commit()
	require.NoError(t, err)

	_, value, _, err := e.Query("/account", []byte("balance:alice"), 0)
	require.NoError(t, err)
	require.Equal(t, "90", string(value))
	_, value, _, err = e.Query("/account", []byte("balance:bob"), 0)
	require.NoError(t, err)
	require.Equal(t, "10", string(value))
}

func TestEngineRejectedTxIsNotInstalledInCache(t *testing.T) {
	e := newTestEngine(t)
	seed(t, e, "alice", 10)

	require.NoError(t, e.BeginBlock(1, nil))
	before := e.CacheLen()

	code, _, err := e.DeliverTx(ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 500}))
	require.NoError(t, err)
	require.Equal(t, uint32(1), code)
	require.Equal(t, before, e.CacheLen(), "a rejected transition must not leave a replayable cache entry")
}

func TestEngineCacheLenAndHeightReporting(t *testing.T) {
	e := newTestEngine(t)
	require.Equal(t, uint64(0), e.Height())

	seed(t, e, "alice", 1)
	require.NoError(t, e.BeginBlock(5, nil))
	require.Equal(t, uint64(5), e.Height())

	_, _, err := e.DeliverTx(ledger.EncodeTransfer(ledger.Transfer{From: "alice", To: "bob", Amount: 1}))
	require.NoError(t, err)
	require.Greater(t, e.CacheLen(), 0)
}
