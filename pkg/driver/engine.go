package driver

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/turbofish-org/orga/pkg/cache"
	"github.com/turbofish-org/orga/pkg/config"
	"github.com/turbofish-org/orga/pkg/engineerr"
	"github.com/turbofish-org/orga/pkg/events"
	"github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/metrics"
	"github.com/turbofish-org/orga/pkg/scheduler"
	"github.com/turbofish-org/orga/pkg/store"
	"github.com/turbofish-org/orga/pkg/txcontext"
	"github.com/turbofish-org/orga/pkg/types"
)

// Engine is the driver's core. One Engine serves one backing bbolt file and
// holds at most one in-progress block at a time; BeginBlock/DeliverTx/
// EndBlock/Commit are not safe to call concurrently with each other, since
// the scheduler thread performs all set-intersection and dispatch work
// serially. CheckTx takes the same lock as block processing, so it runs
// between those calls rather than alongside them; Query reads only the
// pinned committed snapshot and may run concurrently with block processing.
type Engine struct {
	cfg   config.Config
	bolt  *store.BoltStore
	sched *scheduler.Scheduler
	cache *cache.Cache
	app   Application
	bus   *events.Broker
	log   zerolog.Logger

	mu        sync.Mutex // guards everything below
	committed *store.Snapshot
	height    uint64
	block     *store.BufferedStore // the current block's working state, nil between blocks
	mempool   []*store.BufferedStore

	// snapMu orders Query reads of the committed snapshot against the
	// close-and-repin every commit performs. Swappers hold mu as well;
	// Query holds only snapMu.RLock so it never queues behind block
	// processing.
	snapMu sync.RWMutex
}

// NewEngine opens (or creates) the bbolt file at cfg.DataDir/engine.db and wires
// the scheduler and result cache per cfg.
func NewEngine(cfg config.Config, app Application, bus *events.Broker) (*Engine, error) {
	b, err := store.OpenBoltStore(cfg.DataDir + "/engine.db")
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.ResultCacheCapacity)
	if err != nil {
		b.Close()
		return nil, err
	}
	snap, err := b.Snapshot()
	if err != nil {
		b.Close()
		return nil, err
	}
	mw := cfg.MempoolWorkers
	if mw < 1 {
		mw = 1
	}
	e := &Engine{
		cfg:       cfg,
		bolt:      b,
		cache:     c,
		app:       app,
		bus:       bus,
		log:       log.WithComponent("driver"),
		committed: snap,
		mempool:   make([]*store.BufferedStore, mw),
		sched: scheduler.New(scheduler.Config{
			WorkerCount:                cfg.WorkerCount,
			EnableAxiomA3:              cfg.EnableAxiomA3,
			EnableSpeculativeDiscovery: cfg.EnableSpeculativeDiscovery,
			BloomBits:                  cfg.BloomBits,
			BloomHashes:                cfg.BloomHashes,
			OnReschedule: func(id types.Fingerprint, reason string) {
				bus.Publish(&events.Event{
					Type:     events.EventTransitionRescheduled,
					Message:  id.String(),
					Metadata: map[string]string{"reason": reason},
				})
			},
		}),
	}
	e.resetMempool()
	return e, nil
}

// Close releases the backing bbolt file and the pinned committed snapshot.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapMu.Lock()
	if e.committed != nil {
		e.committed.Close()
		e.committed = nil
	}
	e.snapMu.Unlock()
	return e.bolt.Close()
}

// repinCommitted pins a fresh snapshot of the backing engine and retires
// the previous one, waiting out any Query currently reading it. Callers
// must hold e.mu.
func (e *Engine) repinCommitted() error {
	snap, err := e.bolt.Snapshot()
	if err != nil {
		return err
	}
	e.snapMu.Lock()
	if e.committed != nil {
		e.committed.Close()
	}
	e.committed = snap
	e.snapMu.Unlock()
	return nil
}

// CacheLen reports the current number of result-cache entries, for the
// metrics collector.
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Len()
}

// Height reports the height of the block most recently opened.
func (e *Engine) Height() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

// Seed writes key/value straight to the backing engine and re-pins the
// committed snapshot, bypassing the application entirely. It exists for
// loading genesis state before any block has been processed - the ledger
// demo application, for instance, has no minting transition, so its
// opening balances have nowhere else to come from. Seed must not be called
// while a block is open.
func (e *Engine) Seed(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block != nil {
		return fmt.Errorf("driver: Seed called with a block already open")
	}
	if err := e.bolt.Put(key, value); err != nil {
		return err
	}
	if err := e.repinCommitted(); err != nil {
		return fmt.Errorf("driver: seed: pin new snapshot: %w", err)
	}
	e.resetMempool()
	return nil
}

func (e *Engine) resetMempool() {
	for i := range e.mempool {
		e.mempool[i] = store.NewBufferedStore(e.committed)
	}
}

// BeginBlock opens a new block buffered store over the last committed
// snapshot and, if the application declares one, runs the begin-of-block
// hook as the first transition of the block's canonical order.
func (e *Engine) BeginBlock(height uint64, headerBytes []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block != nil {
		return fmt.Errorf("driver: BeginBlock called with a block already open at height %d", e.height)
	}
	e.height = height
	e.block = store.NewBufferedStore(e.committed)
	heightLogger := log.WithHeight(height)
	heightLogger.Info().Msg("begin block")

	t := types.Transition{
		ID:      types.Fingerprint32(append([]byte("begin_block:"), headerBytes...)),
		Payload: headerBytes,
		Kind:    types.KindBeginBlock,
		Hint:    e.app.KeyHint(types.KindBeginBlock, headerBytes),
		Gas:     e.cfg.GasCeilingPerTx,
	}
	_, err := e.runOne(t)
	return err
}

// DeliverTx enqueues and immediately executes payload's transition against
// the in-progress block buffered store, returning its application result
// code and bytes. A cache hit whose read-set still matches the block's
// current state replays the cached writeset instead of re-executing.
//
// Because Raft delivers one log entry at a time, a single DeliverTx call is
// a degenerate one-transition scheduler epoch; ApplyBatch is the entry
// point that gives the scheduler more than one transition to parallelize
// at once, for callers that know the whole canonical order of a block up
// front.
func (e *Engine) DeliverTx(payload []byte) (code uint32, result []byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block == nil {
		return 0, nil, fmt.Errorf("driver: DeliverTx called with no block open")
	}
	fp := types.Fingerprint32(payload)

	if entry, ok := e.cache.Lookup(fp); ok {
		valid, verr := cache.ReplayValid(entry, e.block)
		if verr != nil {
			return 0, nil, verr
		}
		if valid {
			if err := e.replay(entry); err != nil {
				return 0, nil, err
			}
			metrics.CacheHitsTotal.Inc()
			e.log.Debug().Str("transition", fp.String()).Msg("result cache replay")
			return 0, nil, nil
		}
		e.bus.Publish(&events.Event{Type: events.EventCacheInvalidated, Message: fp.String()})
	}
	metrics.CacheMissesTotal.Inc()

	t := types.Transition{
		ID:      fp,
		Payload: payload,
		Kind:    types.KindTx,
		Hint:    e.app.KeyHint(types.KindTx, payload),
		Gas:     e.cfg.GasCeilingPerTx,
	}
	res, err := e.runOne(t)
	if err != nil {
		return 0, nil, err
	}
	return res.Code, res.Output, nil
}

// replay applies a cached entry's writeset directly to the block buffered
// store without re-executing the transition.
func (e *Engine) replay(entry *cache.Entry) error {
	for _, kv := range entry.WriteSet.Sorted() {
		if kv.Op.IsDelete {
			if err := e.block.Delete(kv.Key); err != nil {
				return err
			}
			continue
		}
		if err := e.block.Put(kv.Key, kv.Op.Value); err != nil {
			return err
		}
	}
	return nil
}

// runOne executes t via the scheduler as a singleton batch against the
// current block buffered store and installs its result into the cache.
func (e *Engine) runOne(t types.Transition) (types.ExecResult, error) {
	results, err := e.sched.RunBlock(context.Background(), e.block, []types.Transition{t}, e.executor)
	if err != nil {
		return types.ExecResult{}, fmt.Errorf("driver: %w", err)
	}
	res := results[0]
	e.bus.Publish(&events.Event{Type: events.EventTransitionExecuted, Message: t.ID.String()})
	e.install(t.ID, res)
	return res, nil
}

// install stores res's delta and read-value hashes under id for future
// replay. Only committed executions install: caching a rejected
// transition's fingerprint would let a later identical submission "replay"
// a result the application never produced.
func (e *Engine) install(id types.Fingerprint, res types.ExecResult) {
	if res.Err != nil || res.Delta == nil {
		return
	}
	_ = e.cache.Install(id, res.ReadSet, cache.HashObservations(res.Observed), res.Delta)
}

// EndBlock runs the application's end-of-block hook as the final transition
// of the block's canonical order and returns its result bytes (conventionally
// validator updates; opaque to the engine).
func (e *Engine) EndBlock(height uint64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block == nil {
		return nil, fmt.Errorf("driver: EndBlock called with no block open")
	}
	t := types.Transition{
		ID:   types.Fingerprint32([]byte(fmt.Sprintf("end_block:%d", height))),
		Kind: types.KindEndBlock,
		Hint: e.app.KeyHint(types.KindEndBlock, nil),
		Gas:  e.cfg.GasCeilingPerTx,
	}
	res, err := e.runOne(t)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Commit flushes the block buffered store to the backing bbolt engine as a
// single atomic batch, computes the commit root as a hash over the sorted
// merged writeset, pins a new committed snapshot, and resets the engine for
// the next block.
func (e *Engine) Commit() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block == nil {
		return nil, fmt.Errorf("driver: Commit called with no block open")
	}

	timer := metrics.NewTimer()
	rootBytes := rootHash(e.block)
	deleted := types.NewKeySet()
	e.block.Each(func(key []byte, isDeleted bool, _ []byte) {
		if isDeleted {
			deleted.Add(key)
		}
	})

	if err := e.bolt.CommitDelta(e.block); err != nil {
		return nil, fmt.Errorf("%w: %v", engineerr.ErrCommit, err)
	}

	if err := e.repinCommitted(); err != nil {
		return nil, fmt.Errorf("%w: pin new snapshot: %v", engineerr.ErrCommit, err)
	}
	e.resetMempool()
	e.block = nil
	timer.ObserveDuration(metrics.CommitDuration)

	for _, fp := range e.cache.EvictForDeletedKeys(deleted) {
		e.bus.Publish(&events.Event{Type: events.EventCacheInvalidated, Message: fp.String()})
	}

	e.bus.Publish(&events.Event{Type: events.EventBlockCommitted, Message: fmt.Sprintf("height=%d", e.height)})
	e.log.Info().Uint64("height", e.height).Str("root", fmt.Sprintf("%x", rootBytes)).Msg("commit")
	return rootBytes, nil
}

// rootHash hashes delta's merged writeset in its canonical (sorted) order:
// a hash over the final sorted write log.
func rootHash(delta *store.BufferedStore) []byte {
	h := sha256.New()
	delta.Each(func(key []byte, deleted bool, value []byte) {
		h.Write(key)
		if deleted {
			h.Write([]byte{0})
		} else {
			h.Write([]byte{1})
			h.Write(value)
		}
	})
	return h.Sum(nil)
}

// ApplyBatch runs transitions (the full canonical order of a block already
// known up front) through the scheduler in one pass, giving the epoch
// scheduler genuine concurrency across transitions, then flushes the result
// to the backing engine exactly as Commit does.
func (e *Engine) ApplyBatch(ctx context.Context, height uint64, headerBytes []byte, payloads [][]byte) ([]types.ExecResult, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.block != nil {
		return nil, nil, fmt.Errorf("driver: ApplyBatch called with a block already open")
	}
	e.height = height
	block := store.NewBufferedStore(e.committed)

	transitions := make([]types.Transition, 0, len(payloads)+2)
	transitions = append(transitions, types.Transition{
		ID:   types.Fingerprint32(append([]byte("begin_block:"), headerBytes...)),
		Kind: types.KindBeginBlock,
		Hint: e.app.KeyHint(types.KindBeginBlock, headerBytes),
		Gas:  e.cfg.GasCeilingPerTx,
	})
	for _, p := range payloads {
		transitions = append(transitions, types.Transition{
			ID:      types.Fingerprint32(p),
			Payload: p,
			Kind:    types.KindTx,
			Hint:    e.app.KeyHint(types.KindTx, p),
			Gas:     e.cfg.GasCeilingPerTx,
		})
	}
	transitions = append(transitions, types.Transition{
		ID:   types.Fingerprint32([]byte(fmt.Sprintf("end_block:%d", height))),
		Kind: types.KindEndBlock,
		Hint: e.app.KeyHint(types.KindEndBlock, nil),
		Gas:  e.cfg.GasCeilingPerTx,
	})

	results, err := e.sched.RunBlock(ctx, block, transitions, e.executor)
	if err != nil {
		return nil, nil, fmt.Errorf("driver: apply batch: %w", err)
	}
	for i, t := range transitions {
		e.install(t.ID, results[i])
	}

	rootBytes := rootHash(block)
	deleted := types.NewKeySet()
	block.Each(func(key []byte, isDeleted bool, _ []byte) {
		if isDeleted {
			deleted.Add(key)
		}
	})

	if err := e.bolt.CommitDelta(block); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engineerr.ErrCommit, err)
	}
	if err := e.repinCommitted(); err != nil {
		return nil, nil, fmt.Errorf("%w: pin new snapshot: %v", engineerr.ErrCommit, err)
	}
	e.resetMempool()

	for _, fp := range e.cache.EvictForDeletedKeys(deleted) {
		e.bus.Publish(&events.Event{Type: events.EventCacheInvalidated, Message: fp.String()})
	}

	e.bus.Publish(&events.Event{Type: events.EventBlockCommitted, Message: fmt.Sprintf("height=%d", height)})
	return results, rootBytes, nil
}

// CheckTx executes payload against one of cfg.MempoolWorkers mempool
// buffered stores, selected by fingerprint[0] % MempoolWorkers (a
// "scheduled" mempool divergence strategy, chosen to maximize cache-hit
// rate into block processing), and installs its result into the shared
// result cache without touching committed state.
func (e *Engine) CheckTx(payload []byte) (code uint32, result []byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fp := types.Fingerprint32(payload)
	mp := e.mempool[mempoolIndex(fp, len(e.mempool))]

	hint := e.app.KeyHint(types.KindTx, payload)
	tc := txcontext.New(mp, hint, e.cfg.GasCeilingPerTx)
	out, respCode, execErr := e.app.Execute(tc, types.KindTx, payload)

	if execErr != nil {
		tc.Discard()
		return respCode, out, nil
	}
	if err := tc.Commit(); err != nil {
		return 0, nil, err
	}

	_ = e.cache.Install(fp, tc.ReadSet(), cache.HashObservations(tc.ReadObservations()), tc.Delta())
	return respCode, out, nil
}

// Query serves path/key against a pinned read-only view of the most
// recently committed state. height is currently ignored (only the latest
// committed snapshot is retained); proof is always nil for the bbolt
// backing engine, which exposes no merkle proof primitive - a specific
// merkle tree shape is out of scope here.
func (e *Engine) Query(path string, key []byte, height uint64) (code uint32, value []byte, proof []byte, err error) {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()

	if e.committed == nil {
		return 1, nil, nil, fmt.Errorf("driver: Query after Close")
	}
	v, ok, gerr := e.committed.Get(key)
	if gerr != nil {
		return 1, nil, nil, gerr
	}
	if !ok {
		return 1, nil, nil, nil
	}
	return 0, v, nil, nil
}

// executor adapts Application.Execute to the scheduler.Executor signature,
// threading the transition's Kind through for application dispatch.
func (e *Engine) executor(tc *txcontext.Context, t types.Transition) ([]byte, uint32, error) {
	return e.app.Execute(tc, t.Kind, t.Payload)
}
