// Command orga is the CLI around the engine core: it serves a single node
// (driver + API), applies a batch of transitions from a file, queries
// committed state, and watches the driver's event stream.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/turbofish-org/orga/pkg/config"
	"github.com/turbofish-org/orga/pkg/log"
	"gopkg.in/yaml.v3"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "orga",
	Short: "orga - a deterministic concurrent state-machine engine",
	Long: `orga drives a replicated, ordered-transaction state machine:
transitions are executed across worker goroutines while producing results
bit-identical to a serial execution of the same canonical order.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"orga version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	d := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.String("node-id", "node1", "raft node id for this process")
	pf.String("raft-addr", "127.0.0.1:26656", "raft transport bind address")
	pf.String("data-dir", d.DataDir, "directory for the backing engine file and raft log/snapshot store")
	pf.String("listen-addr", d.ListenAddr, "gRPC Query/CheckTx/Watch listen address")
	pf.String("metrics-addr", d.MetricsAddr, "HTTP health/metrics listen address")
	pf.Int("worker-count", d.WorkerCount, "number of virtual workers (default: logical CPU count)")
	pf.Int("mempool-workers", d.MempoolWorkers, "number of mempool buffered stores for CheckTx")
	pf.Int("result-cache-capacity", d.ResultCacheCapacity, "result cache LRU capacity, in entries")
	pf.Uint64("bloom-bits", d.BloomBits, "Bloom filter bitmap size")
	pf.Uint64("bloom-hashes", d.BloomHashes, "Bloom filter hash function count")
	pf.Uint64("gas-ceiling", d.GasCeilingPerTx, "per-transition gas ceiling, 0 disables the check")
	pf.Bool("enable-axiom-a3", d.EnableAxiomA3, "enable the optional write-skew/serial-flush axiom")
	pf.Bool("enable-speculative-discovery", d.EnableSpeculativeDiscovery, "enable speculative execution of discovery-mode transitions")
	pf.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	pf.Bool("log-json", d.LogJSON, "output logs in JSON format")
	pf.String("config", "", "optional YAML config file merged under these flags")
}

// loadConfig builds a config.Config from flag defaults, an optional
// --config YAML file, and explicitly-set flags, in that precedence order:
// an explicitly-set flag always beats the file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("orga: read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("orga: parse config file: %w", err)
		}
	}

	if v, err := flags.GetString("data-dir"); err == nil && flags.Changed("data-dir") {
		cfg.DataDir = v
	}
	if v, err := flags.GetString("listen-addr"); err == nil && flags.Changed("listen-addr") {
		cfg.ListenAddr = v
	}
	if v, err := flags.GetString("metrics-addr"); err == nil && flags.Changed("metrics-addr") {
		cfg.MetricsAddr = v
	}
	if v, err := flags.GetInt("worker-count"); err == nil && flags.Changed("worker-count") {
		cfg.WorkerCount = v
	}
	if v, err := flags.GetInt("mempool-workers"); err == nil && flags.Changed("mempool-workers") {
		cfg.MempoolWorkers = v
	}
	if v, err := flags.GetInt("result-cache-capacity"); err == nil && flags.Changed("result-cache-capacity") {
		cfg.ResultCacheCapacity = v
	}
	if v, err := flags.GetUint64("bloom-bits"); err == nil && flags.Changed("bloom-bits") {
		cfg.BloomBits = v
	}
	if v, err := flags.GetUint64("bloom-hashes"); err == nil && flags.Changed("bloom-hashes") {
		cfg.BloomHashes = v
	}
	if v, err := flags.GetUint64("gas-ceiling"); err == nil && flags.Changed("gas-ceiling") {
		cfg.GasCeilingPerTx = v
	}
	if v, err := flags.GetBool("enable-axiom-a3"); err == nil && flags.Changed("enable-axiom-a3") {
		cfg.EnableAxiomA3 = v
	}
	if v, err := flags.GetBool("enable-speculative-discovery"); err == nil && flags.Changed("enable-speculative-discovery") {
		cfg.EnableSpeculativeDiscovery = v
	}
	if v, err := flags.GetString("log-level"); err == nil && flags.Changed("log-level") {
		cfg.LogLevel = v
	}
	if v, err := flags.GetBool("log-json"); err == nil && flags.Changed("log-json") {
		cfg.LogJSON = v
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	return cfg, nil
}

func initLogging(cfg config.Config) {
	level := log.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.LogJSON})
}
