// Package config holds the engine's recognized options plus the ambient
// fields cmd/orga binds to flags.
package config

import "runtime"

// Config is the engine's full set of recognized options.
type Config struct {
	// WorkerCount is the number of virtual worker slots the scheduler runs.
	WorkerCount int
	// MempoolWorkers is M, the number of mempool buffered stores CheckTx
	// executes against.
	MempoolWorkers int
	// ResultCacheCapacity bounds the result cache's LRU (entries, not bytes).
	ResultCacheCapacity int
	// BloomBits and BloomHashes parameterize the Bloom summaries the
	// scheduler uses as an intersection pre-check before a precise set
	// comparison.
	BloomBits   uint64
	BloomHashes uint64
	// GasCeilingPerTx is the default per-transition gas ceiling; 0 disables
	// the check.
	GasCeilingPerTx uint64
	// EnableAxiomA3 turns on the optional write-skew/serial-flush axiom.
	// Off by default: A3 conflicts degrade to a conflict (A4).
	EnableAxiomA3 bool
	// EnableSpeculativeDiscovery turns on speculative execution of
	// discovery-mode transitions. Off by default.
	EnableSpeculativeDiscovery bool

	// DataDir is where the backing bbolt file and Raft log/snapshot store
	// live.
	DataDir string
	// ListenAddr is the gRPC Query/CheckTx listen address.
	ListenAddr string
	// MetricsAddr is the HTTP health/metrics listen address.
	MetricsAddr string
	// LogLevel and LogJSON configure pkg/log.
	LogLevel string
	LogJSON  bool
}

// Default returns the engine's default configuration.
func Default() Config {
	return Config{
		WorkerCount:                runtime.NumCPU(),
		MempoolWorkers:             1,
		ResultCacheCapacity:        4096,
		BloomBits:                  2048,
		BloomHashes:                4,
		GasCeilingPerTx:            0,
		EnableAxiomA3:              false,
		EnableSpeculativeDiscovery: false,
		DataDir:                    "./data",
		ListenAddr:                 "127.0.0.1:26650",
		MetricsAddr:                "127.0.0.1:26660",
		LogLevel:                   "info",
		LogJSON:                    false,
	}
}
