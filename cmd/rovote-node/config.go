package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/aragonzkresearch/rovote/config"
	"github.com/aragonzkresearch/rovote/db"
	"github.com/aragonzkresearch/rovote/log"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	API     APIConfig
	Prover  ProverConfig
	Log     LogConfig
	Datadir string
	DBType  string `mapstructure:"dbtype"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	ChainID uint64 `mapstructure:"chainid"`
}

// ProverConfig holds the proving configuration
type ProverConfig struct {
	Workers    int           `mapstructure:"workers"`
	CacheSize  int           `mapstructure:"cachesize"`
	JobTimeout time.Duration `mapstructure:"jobtimeout"`
	Artifacts  string        `mapstructure:"artifacts"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, config.DefaultDatadir)

	v.SetDefault("api.host", config.DefaultAPIHost)
	v.SetDefault("api.port", config.DefaultAPIPort)
	v.SetDefault("api.chainid", config.DefaultChainID)
	v.SetDefault("prover.workers", runtime.NumCPU())
	v.SetDefault("prover.cachesize", config.DefaultCircuitCacheSize)
	v.SetDefault("prover.jobtimeout", config.DefaultJobTimeout)
	v.SetDefault("log.level", config.DefaultLogLevel)
	v.SetDefault("log.output", config.DefaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("dbtype", config.DefaultDBType)

	fs := flag.NewFlagSet("rovote-node", flag.ContinueOnError)
	fs.StringP("api.host", "a", config.DefaultAPIHost, "API host")
	fs.IntP("api.port", "p", config.DefaultAPIPort, "API port")
	fs.Uint64P("api.chainid", "c", config.DefaultChainID, "chain ID of the elections served by the node")
	fs.IntP("prover.workers", "w", runtime.NumCPU(), "maximum number of proofs generated at the same time")
	fs.Int("prover.cachesize", config.DefaultCircuitCacheSize, "number of compiled circuits kept in memory")
	fs.Duration("prover.jobtimeout", config.DefaultJobTimeout, "maximum duration of an aggregation job (i.e 30m or 2h)")
	fs.String("prover.artifacts", "", "directory of the circuit artifacts (default <datadir>/artifacts)")
	fs.StringP("log.level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringP("log.output", "o", config.DefaultLogOutput, "log output (stdout, stderr or filepath)")
	fs.StringP("datadir", "d", defaultDatadirPath, "data directory for database and circuit artifacts")
	fs.String("dbtype", config.DefaultDBType, fmt.Sprintf("database backend (%s or %s)", db.TypePebble, db.TypeInMem))

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "rovote-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: rovote-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, ROVOTE_API_PORT or ROVOTE_PROVER_WORKERS\n")
	}
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("ROVOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Prover.Artifacts == "" {
		cfg.Prover.Artifacts = filepath.Join(cfg.Datadir, config.ArtifactsDir)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.API.ChainID == 0 {
		return fmt.Errorf("chain ID cannot be zero")
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.DBType != db.TypePebble && cfg.DBType != db.TypeInMem {
		return fmt.Errorf("invalid database type %q", cfg.DBType)
	}
	switch cfg.Log.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	if cfg.Prover.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive")
	}
	return nil
}
