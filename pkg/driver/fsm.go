package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/store"
)

// newRestoreDelta builds a BufferedStore over an empty base that replaces
// current's contents with pairs: a tombstone for every existing key, then a
// put per snapshot pair (puts overwrite the tombstones for keys present in
// both). Replayed through BoltStore.CommitDelta like any other block delta,
// so a restore never leaves keys behind that the snapshot does not hold.
func newRestoreDelta(current store.Store, pairs []kvPair) (*store.BufferedStore, error) {
	b := store.NewBufferedStore(store.NullStore{})
	it, err := current.Range(nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.Next() {
		b.Delete(append([]byte(nil), it.Key()...))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	for _, p := range pairs {
		b.Put(p.Key, p.Value)
	}
	return b, nil
}

// FSM implements raft.FSM over an Engine. Where a typical Raft-backed
// store dispatches typed state commands (create, update, delete, ...),
// Apply here dispatches the ABCI-style message family -
// BeginBlock/DeliverTx/EndBlock/Commit entries, each one committed Raft log
// entry standing in for one message the consensus layer delivers to the
// engine. Raft itself supplies the total order and durability of that
// stream; the engine assumes nothing else from it.
type FSM struct {
	engine *Engine
}

// NewFSM wraps engine as a raft.FSM.
func NewFSM(engine *Engine) *FSM {
	return &FSM{engine: engine}
}

// Command is one Raft log entry: an ABCI-style message plus its payload.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

type beginBlockCmd struct {
	Height uint64 `json:"height"`
	Header []byte `json:"header"`
}

type deliverTxCmd struct {
	Payload []byte `json:"payload"`
}

type endBlockCmd struct {
	Height uint64 `json:"height"`
}

// Result is what Apply returns for every command; raft.ApplyLog callers
// type-assert raft.ApplyFuture.Response().(*Result).
type Result struct {
	Code  uint32
	Bytes []byte
	Err   error
}

// Apply applies one committed Raft log entry to the engine.
func (f *FSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return &Result{Err: fmt.Errorf("driver: unmarshal command: %w", err)}
	}

	switch cmd.Op {
	case "begin_block":
		var c beginBlockCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return &Result{Err: err}
		}
		err := f.engine.BeginBlock(c.Height, c.Header)
		return &Result{Err: err}

	case "deliver_tx":
		var c deliverTxCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return &Result{Err: err}
		}
		code, out, err := f.engine.DeliverTx(c.Payload)
		return &Result{Code: code, Bytes: out, Err: err}

	case "end_block":
		var c endBlockCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return &Result{Err: err}
		}
		out, err := f.engine.EndBlock(c.Height)
		return &Result{Bytes: out, Err: err}

	case "commit":
		root, err := f.engine.Commit()
		return &Result{Bytes: root, Err: err}

	default:
		return &Result{Err: fmt.Errorf("driver: unknown command %q", cmd.Op)}
	}
}

// kvPair is one exported (key, value) pair, used by Snapshot/Restore.
type kvPair struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

// engineSnapshot is the full committed key/value namespace at the time
// Snapshot was called. Where a typed Raft store snapshots several distinct
// collections, this engine has a single untyped byte-key/byte-value
// namespace, so there is exactly one slice of pairs.
type engineSnapshot struct {
	Pairs []kvPair `json:"pairs"`
}

// Snapshot captures every key currently committed, for Raft log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()

	it, err := f.engine.committed.Range(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("driver: snapshot range: %w", err)
	}
	defer it.Close()

	var snap engineSnapshot
	for it.Next() {
		snap.Pairs = append(snap.Pairs, kvPair{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("driver: snapshot iterate: %w", err)
	}
	return &snap, nil
}

// Restore replaces the engine's backing state with rc's snapshot contents,
// applied as a single atomic batch.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap engineSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("driver: decode snapshot: %w", err)
	}

	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()

	fsmLogger := log.WithComponent("driver")
	fsmLogger.Info().Int("keys", len(snap.Pairs)).Msg("restoring snapshot")

	delta, err := newRestoreDelta(f.engine.committed, snap.Pairs)
	if err != nil {
		return fmt.Errorf("driver: restore: %w", err)
	}
	if err := f.engine.bolt.CommitDelta(delta); err != nil {
		return fmt.Errorf("driver: restore: %w", err)
	}
	if err := f.engine.repinCommitted(); err != nil {
		return fmt.Errorf("driver: restore: pin snapshot: %w", err)
	}
	f.engine.resetMempool()
	return nil
}

// Persist writes the snapshot to sink as JSON.
func (s *engineSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases the snapshot's resources; engineSnapshot holds none.
func (s *engineSnapshot) Release() {}
