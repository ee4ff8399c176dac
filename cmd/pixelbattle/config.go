package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config represents the JSON configuration file structure.
type Config struct {
	General GeneralConfig `json:"general"`
	RPC     RPCConfig     `json:"rpc"`
	Metrics MetricsConfig `json:"metrics"`
	Runtime RuntimeConfig `json:"runtime"`
	Client  ClientConfig  `json:"client"`
}

// GeneralConfig holds general application settings.
type GeneralConfig struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	Addr              string  `json:"addr"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	TrustForwardedFor bool    `json:"trust_forwarded_for"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// RuntimeConfig holds bank settings.
type RuntimeConfig struct {
	ComputeUnits uint64 `json:"compute_units"`
	AirdropLimit uint64 `json:"airdrop_limit"`
}

// ClientConfig holds settings for the client subcommands.
type ClientConfig struct {
	RPCURL  string `json:"rpc_url"`
	Keypair string `json:"keypair"`
}

// defaultConfigDir is where the config file and default keypair live.
func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".x1-pixelbattle"
	}
	return filepath.Join(home, ".config", "x1-pixelbattle")
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	dir := defaultConfigDir()
	return Config{
		General: GeneralConfig{
			DataDir:  filepath.Join(dir, "data"),
			LogLevel: "info",
		},
		RPC: RPCConfig{
			Addr:              "127.0.0.1:8899",
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
		Runtime: RuntimeConfig{
			ComputeUnits: 200_000,
			AirdropLimit: 10_000_000_000,
		},
		Client: ClientConfig{
			RPCURL:  "http://127.0.0.1:8899",
			Keypair: filepath.Join(dir, "id.json"),
		},
	}
}

// loadConfig loads configuration from the specified JSON file.
// If the file doesn't exist, it returns the default configuration.
func loadConfig(configPath string, log *logrus.Entry) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", configPath).Debug("config file not found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	log.WithField("path", configPath).Debug("loaded configuration")
	return cfg, nil
}

// options are the effective settings after config and flags are merged.
type options struct {
	configFile string

	dataDir     string
	logLevel    string
	rpcAddr     string
	rps         float64
	burst       int
	trustProxy  bool
	metrics     bool
	metricsAddr string

	computeUnits uint64
	airdropLimit uint64

	rpcURL       string
	keypair      string
	programID    string
	computeLimit uint
}

// registerFlags binds the flags shared by every subcommand.
func registerFlags(fs *flag.FlagSet, o *options) {
	fs.StringVar(&o.configFile, "config", filepath.Join(defaultConfigDir(), "config.json"), "Path to JSON configuration file")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.rpcURL, "url", "", "JSON-RPC endpoint for client commands")
	fs.StringVar(&o.keypair, "keypair", "", "Keypair file signing client transactions")
	fs.StringVar(&o.programID, "program-id", "", "Pixel battle program id")
	fs.UintVar(&o.computeLimit, "compute-limit", 0, "Compute unit limit requested by client transactions (0 keeps the bank default)")
}

// registerServeFlags binds the flags only serve understands.
func registerServeFlags(fs *flag.FlagSet, o *options) {
	fs.StringVar(&o.dataDir, "data-dir", "", "Data directory for the accounts database (:memory: keeps it in memory)")
	fs.StringVar(&o.rpcAddr, "rpc-addr", "", "RPC server listen address")
	fs.Float64Var(&o.rps, "rpc-rps", 0, "Requests per second allowed per client (0 disables the limit)")
	fs.IntVar(&o.burst, "rpc-burst", 0, "Request burst allowed per client")
	fs.BoolVar(&o.trustProxy, "rpc-trust-forwarded-for", false, "Key rate limits on the last X-Forwarded-For hop (only behind a trusted proxy)")
	fs.BoolVar(&o.metrics, "enable-metrics", false, "Enable Prometheus metrics server")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Metrics server listen address")
	fs.Uint64Var(&o.computeUnits, "compute-units", 0, "Compute budget per transaction")
	fs.Uint64Var(&o.airdropLimit, "airdrop-limit", 0, "Largest single airdrop in lamports (0 disables airdrops)")
}

// applyConfigWithCLIOverrides applies config values and lets CLI flags
// explicitly set on fs override them.
func applyConfigWithCLIOverrides(fs *flag.FlagSet, cfg Config, o *options) {
	flagSet := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		flagSet[f.Name] = true
	})

	// General settings
	if !flagSet["data-dir"] {
		o.dataDir = cfg.General.DataDir
	}
	if !flagSet["log-level"] {
		o.logLevel = cfg.General.LogLevel
	}

	// RPC settings
	if !flagSet["rpc-addr"] {
		o.rpcAddr = cfg.RPC.Addr
	}
	if !flagSet["rpc-rps"] {
		o.rps = cfg.RPC.RequestsPerSecond
	}
	if !flagSet["rpc-burst"] {
		o.burst = cfg.RPC.Burst
	}
	if !flagSet["rpc-trust-forwarded-for"] {
		o.trustProxy = cfg.RPC.TrustForwardedFor
	}

	// Metrics settings
	if !flagSet["enable-metrics"] {
		o.metrics = cfg.Metrics.Enabled
	}
	if !flagSet["metrics-addr"] {
		o.metricsAddr = cfg.Metrics.Addr
	}

	// Runtime settings
	if !flagSet["compute-units"] {
		o.computeUnits = cfg.Runtime.ComputeUnits
	}
	if !flagSet["airdrop-limit"] {
		o.airdropLimit = cfg.Runtime.AirdropLimit
	}

	// Client settings
	if !flagSet["url"] {
		o.rpcURL = cfg.Client.RPCURL
	}
	if !flagSet["keypair"] {
		o.keypair = cfg.Client.Keypair
	}
}

// newLogger builds the process logger at level.
func newLogger(level string) (*logrus.Entry, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)
	return logrus.NewEntry(logger), nil
}
