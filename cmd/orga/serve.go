package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/api"
	"github.com/turbofish-org/orga/pkg/driver"
	"github.com/turbofish-org/orga/pkg/ledger"
	applog "github.com/turbofish-org/orga/pkg/log"
	"github.com/turbofish-org/orga/pkg/metrics"
	"github.com/turbofish-org/orga/pkg/security"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a node: Raft log, engine core, and the Query/CheckTx/Watch API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)

	nodeID, _ := cmd.Flags().GetString("node-id")
	raftAddr, _ := cmd.Flags().GetString("raft-addr")

	drv, err := driver.New(nodeID, raftAddr, cfg, ledger.New())
	if err != nil {
		return fmt.Errorf("orga serve: new driver: %w", err)
	}
	defer drv.Close()

	if err := drv.Bootstrap(); err != nil {
		return fmt.Errorf("orga serve: bootstrap raft: %w", err)
	}

	bundle, err := security.NodeBundle(nodeID)
	if err != nil {
		return fmt.Errorf("orga serve: cert bundle: %w", err)
	}
	if !bundle.Exists() {
		return fmt.Errorf("orga serve: no certificate bundle at %s; run 'orga certs init --node-id %s' first", bundle.Dir, nodeID)
	}

	apiServer, err := api.NewServer(drv, bundle)
	if err != nil {
		return fmt.Errorf("orga serve: new api server: %w", err)
	}

	healthServer := api.NewHealthServer(drv)
	collector := metrics.NewCollector(drv)
	collector.Start()
	defer collector.Stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- apiServer.Start(cfg.ListenAddr)
	}()
	go func() {
		errCh <- healthServer.Start(cfg.MetricsAddr)
	}()

	cmdLogger := applog.WithComponent("cmd")
	cmdLogger.Info().
		Str("node_id", nodeID).
		Str("listen_addr", cfg.ListenAddr).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("orga node serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		cmdLogger := applog.WithComponent("cmd")
		cmdLogger.Info().Str("signal", sig.String()).Msg("shutting down")
		apiServer.Stop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("orga serve: %w", err)
	}
}
