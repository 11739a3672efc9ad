package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/driver"
	"github.com/turbofish-org/orga/pkg/ledger"
	applog "github.com/turbofish-org/orga/pkg/log"
	"gopkg.in/yaml.v3"
)

// applyBatch is the on-disk shape of an apply file: one block of transfers,
// applied as a single BeginBlock/DeliverTx*/EndBlock/Commit sequence.
type applyBatch struct {
	Height    uint64            `yaml:"height"`
	Transfers []ledger.Transfer `yaml:"transfers"`
}

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "load a batch of transfers into a fresh node before it starts serving",
	Long: `apply runs an embedded driver.Driver directly against this node's
data directory - it is not a client of a running node's gRPC API, since
BeginBlock/DeliverTx/EndBlock/Commit are only reachable through a node's own
Raft log. Use it to seed a node's initial state before 'orga serve' takes
over the same data directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("orga apply: read batch file: %w", err)
	}
	var batch applyBatch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("orga apply: parse batch file: %w", err)
	}

	nodeID, _ := cmd.Flags().GetString("node-id")
	raftAddr, _ := cmd.Flags().GetString("raft-addr")

	drv, err := driver.New(nodeID, raftAddr, cfg, ledger.New())
	if err != nil {
		return fmt.Errorf("orga apply: new driver: %w", err)
	}
	defer drv.Close()

	if err := drv.Bootstrap(); err != nil {
		return fmt.Errorf("orga apply: bootstrap raft: %w", err)
	}
	if err := waitForLeader(drv, 10*time.Second); err != nil {
		return fmt.Errorf("orga apply: %w", err)
	}

	if err := drv.BeginBlock(batch.Height, nil); err != nil {
		return fmt.Errorf("orga apply: begin block: %w", err)
	}
	for i, t := range batch.Transfers {
		payload := ledger.EncodeTransfer(t)
		code, _, err := drv.DeliverTx(payload)
		if err != nil {
			return fmt.Errorf("orga apply: deliver transfer %d: %w", i, err)
		}
		cmdLogger := applog.WithComponent("cmd")
		cmdLogger.Info().
			Int("index", i).Uint32("code", code).
			Str("from", t.From).Str("to", t.To).Int64("amount", t.Amount).
			Msg("transfer delivered")
	}
	if _, err := drv.EndBlock(batch.Height); err != nil {
		return fmt.Errorf("orga apply: end block: %w", err)
	}
	root, err := drv.Commit()
	if err != nil {
		return fmt.Errorf("orga apply: commit: %w", err)
	}

	fmt.Printf("applied %d transfer(s) at height %d, root %x\n", len(batch.Transfers), batch.Height, root)
	return nil
}

// waitForLeader polls IsLeader until the single-node Raft cluster elects
// itself, bounding how long a CLI invocation can block on startup.
func waitForLeader(drv *driver.Driver, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if drv.IsLeader() {
			return nil
		}
		time.Sleep(25 * time.Millisecond)
	}
	return fmt.Errorf("raft did not elect a leader within %s", timeout)
}
