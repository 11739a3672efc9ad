package driver

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/turbofish-org/orga/pkg/config"
	"github.com/turbofish-org/orga/pkg/events"
	"github.com/turbofish-org/orga/pkg/log"
)

// Driver is the durable, ordered message pump: a single-node Raft log
// (standing in for the consensus protocol proper, which this package
// deliberately does not implement) whose committed entries are the
// canonical BeginBlock/DeliverTx/EndBlock/Commit sequence the Engine
// executes. The Raft timeout tuning and TCP transport/log/stable/snapshot
// store wiring are the same shape used for clustered orchestration
// elsewhere in this codebase; this driver narrows that down to just the
// FSM needed to apply to the engine (see DESIGN.md).
type Driver struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft   *raft.Raft
	fsm    *FSM
	Engine *Engine
	Bus    *events.Broker
}

// New opens the engine and wires (but does not yet bootstrap) the Raft log.
func New(nodeID, bindAddr string, cfg config.Config, app Application) (*Driver, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("driver: create data dir: %w", err)
	}
	bus := events.NewBroker()
	bus.Start()

	engine, err := NewEngine(cfg, app, bus)
	if err != nil {
		return nil, err
	}

	return &Driver{
		nodeID:   nodeID,
		bindAddr: bindAddr,
		dataDir:  cfg.DataDir,
		fsm:      NewFSM(engine),
		Engine:   engine,
		Bus:      bus,
	}, nil
}

// Bootstrap starts a single-node Raft cluster rooted at this Driver, tuned
// for sub-10s failover - the same heartbeat/election/lease/commit timeouts
// used elsewhere in this codebase for clustered coordination.
func (d *Driver) Bootstrap() error {
	rc := raft.DefaultConfig()
	rc.LocalID = raft.ServerID(d.nodeID)
	rc.HeartbeatTimeout = 500 * time.Millisecond
	rc.ElectionTimeout = 500 * time.Millisecond
	rc.CommitTimeout = 50 * time.Millisecond
	rc.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", d.bindAddr)
	if err != nil {
		return fmt.Errorf("driver: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(d.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("driver: create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(d.dataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("driver: create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(d.dataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("driver: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(d.dataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("driver: create stable store: %w", err)
	}

	r, err := raft.NewRaft(rc, d.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("driver: create raft: %w", err)
	}
	d.raft = r

	future := d.raft.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: rc.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("driver: bootstrap cluster: %w", err)
	}
	driverLogger := log.WithComponent("driver")
	driverLogger.Info().Str("node_id", d.nodeID).Msg("raft bootstrapped")
	return nil
}

// apply marshals cmd and submits it through Raft, blocking until the log
// entry commits and the FSM applies it, then returns the FSM's Result.
func (d *Driver) apply(op string, data interface{}) (*Result, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("driver: marshal %s command: %w", op, err)
	}
	cmd, err := json.Marshal(Command{Op: op, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("driver: marshal command envelope: %w", err)
	}
	future := d.raft.Apply(cmd, 10*time.Second)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("driver: raft apply %s: %w", op, err)
	}
	res, ok := future.Response().(*Result)
	if !ok {
		return nil, fmt.Errorf("driver: unexpected raft response type for %s", op)
	}
	return res, res.Err
}

// BeginBlock submits a begin_block entry through Raft.
func (d *Driver) BeginBlock(height uint64, headerBytes []byte) error {
	_, err := d.apply("begin_block", beginBlockCmd{Height: height, Header: headerBytes})
	return err
}

// DeliverTx submits a deliver_tx entry through Raft.
func (d *Driver) DeliverTx(payload []byte) (code uint32, result []byte, err error) {
	res, err := d.apply("deliver_tx", deliverTxCmd{Payload: payload})
	if res == nil {
		return 0, nil, err
	}
	return res.Code, res.Bytes, err
}

// EndBlock submits an end_block entry through Raft.
func (d *Driver) EndBlock(height uint64) ([]byte, error) {
	res, err := d.apply("end_block", endBlockCmd{Height: height})
	if res == nil {
		return nil, err
	}
	return res.Bytes, err
}

// Commit submits a commit entry through Raft and returns the new root hash.
func (d *Driver) Commit() ([]byte, error) {
	res, err := d.apply("commit", struct{}{})
	if res == nil {
		return nil, err
	}
	return res.Bytes, err
}

// CheckTx and Query bypass Raft entirely - CheckTx runs against mempool
// buffered stores, Query against a pinned read snapshot - so they call
// straight through to the Engine.
func (d *Driver) CheckTx(payload []byte) (uint32, []byte, error) { return d.Engine.CheckTx(payload) }
func (d *Driver) Query(path string, key []byte, height uint64) (uint32, []byte, []byte, error) {
	return d.Engine.Query(path, key, height)
}

// CacheLen and Height delegate to the engine so Driver alone satisfies
// metrics.StatsSource.
func (d *Driver) CacheLen() int  { return d.Engine.CacheLen() }
func (d *Driver) Height() uint64 { return d.Engine.Height() }

// IsLeader reports whether this node currently holds Raft leadership.
func (d *Driver) IsLeader() bool {
	return d.raft != nil && d.raft.State() == raft.Leader
}

// RaftStats exposes the subset of hashicorp/raft's stats the metrics
// collector polls.
func (d *Driver) RaftStats() map[string]string {
	if d.raft == nil {
		return nil
	}
	return d.raft.Stats()
}

// Close shuts down Raft and the engine.
func (d *Driver) Close() error {
	if d.raft != nil {
		if err := d.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("driver: raft shutdown: %w", err)
		}
	}
	d.Bus.Stop()
	return d.Engine.Close()
}
