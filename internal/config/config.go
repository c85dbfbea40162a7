// Package config centralizes runtime configuration for the cmx node. It loads
// a JSON configuration file, merges it over sensible defaults and then
// applies command-line overrides. Development builds run on defaults when the
// file is not present. Production operators should place a JSON file at
// /etc/cmx/config.json or specify a different path via the CONFIG_FILE env
// var or --configfile.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"

	"carbonex.market/cmx/internal/ledger"
)

// Storage backends for the world state.
const (
	BackendSQLite  = ledger.BackendSQLite
	BackendLevelDB = ledger.BackendLevelDB
	BackendMemory  = ledger.BackendMemory
)

// Execution modes.
const (
	// ModeStandalone executes invocations submitted to the HTTP gateway
	// directly against the local world state.
	ModeStandalone = "standalone"

	// ModeConsensus serves the ABCI application to a Tendermint node and
	// forwards gateway submissions to Tendermint for ordering.
	ModeConsensus = "consensus"
)

const defaultConfigPath = "/etc/cmx/config.json"

// Config holds configurable options for the cmx node.
type Config struct {
	ConfigFile  string `json:"-" short:"C" long:"configfile" description:"Path to JSON configuration file"`
	ShowVersion bool   `json:"-" short:"V" long:"version" description:"Display version information and exit"`

	DataDir            string `json:"data_dir" short:"b" long:"datadir" description:"Directory to store the world state"`
	Backend            string `json:"backend" long:"backend" description:"World state backend {sqlite, leveldb, memory}"`
	KeyFile            string `json:"key_file" long:"keyfile" description:"Node identity key, created on first start"`
	Port               int    `json:"port" short:"p" long:"port" description:"HTTP gateway port"`
	Mode               string `json:"mode" long:"mode" description:"Execution mode {standalone, consensus}"`
	ABCIAddress        string `json:"abci_address" long:"abci-addr" description:"ABCI socket address Tendermint connects to"`
	TendermintRPC      string `json:"tendermint_rpc" long:"rpc-addr" description:"Tendermint RPC address used to broadcast invocations"`
	TendermintHome     string `json:"tendermint_home" long:"tmhome" description:"Tendermint home directory"`
	LogFile            string `json:"log_file" long:"logfile" description:"Rotated log file"`
	LogLevel           string `json:"log_level" short:"d" long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}"`
	CacheSize          uint32 `json:"cache_size" long:"cachesize" description:"Number of committed world state entries kept in memory"`
	MaxConflictRetries int    `json:"max_conflict_retries" long:"maxretries" description:"Gateway re-executions of an invocation after a read conflict"`
	GovernmentID       string `json:"government_id" long:"government" description:"Hex public key allowed to initialize the government profile (empty: first caller)"`
	DocsDir            string `json:"docs_dir" long:"docsdir" description:"Directory of AsciiDoc documentation served at /docs"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" long:"shutdowntimeout" description:"Grace period for HTTP shutdown"`
}

var cfg *Config

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:            "data",
		Backend:            BackendSQLite,
		KeyFile:            "cmx_key.pem",
		Port:               8080,
		Mode:               ModeStandalone,
		ABCIAddress:        "unix://cmx.sock",
		TendermintRPC:      "http://localhost:26657",
		TendermintHome:     "",
		LogFile:            filepath.Join("logs", "cmx.log"),
		LogLevel:           "info",
		CacheSize:          4096,
		MaxConflictRetries: 3,
		DocsDir:            "docs",
		ShutdownTimeout:    5 * time.Second,
	}
}

// LoadConfig reads a JSON file at path. If the file does not exist or
// cannot be parsed, LoadConfig returns defaults (and no error) so that the
// node can run in development with minimal friction.
func LoadConfig(path string) (*Config, error) {
	def := Default()

	if path == "" {
		cfg = def
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		cfg = def
		return cfg, nil
	}

	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		cfg = def
		return cfg, nil
	}

	// merge defaults for any zero-value fields
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.ABCIAddress == "" {
		c.ABCIAddress = def.ABCIAddress
	}
	if c.TendermintRPC == "" {
		c.TendermintRPC = def.TendermintRPC
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheSize == 0 {
		c.CacheSize = def.CacheSize
	}
	if c.MaxConflictRetries == 0 {
		c.MaxConflictRetries = def.MaxConflictRetries
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}

	c.ConfigFile = path
	cfg = &c
	return cfg, nil
}

// Load builds the node configuration from the config file named on the
// command line (or CONFIG_FILE, or the default path) and then applies the
// command-line options on top of it.
func Load(args []string) (*Config, error) {
	preCfg := struct {
		ConfigFile string `short:"C" long:"configfile"`
	}{ConfigFile: os.Getenv("CONFIG_FILE")}
	if preCfg.ConfigFile == "" {
		preCfg.ConfigFile = defaultConfigPath
	}
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	c, err := LoadConfig(preCfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	parser := flags.NewParser(c, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

// Validate checks option values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendLevelDB, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Mode {
	case ModeStandalone, ModeConsensus:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConflictRetries < 0 {
		return errors.New("max_conflict_retries must not be negative")
	}
	return nil
}

// IsHelp reports whether err is the go-flags help request.
func IsHelp(err error) bool {
	var e *flags.Error
	return errors.As(err, &e) && e.Type == flags.ErrHelp
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		LoadConfig("")
	}
	return cfg
}
