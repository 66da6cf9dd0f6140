package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aragonzkresearch/rovote/api"
	"github.com/aragonzkresearch/rovote/census/censusdb"
	"github.com/aragonzkresearch/rovote/config"
	"github.com/aragonzkresearch/rovote/db"
	"github.com/aragonzkresearch/rovote/db/metadb"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	"github.com/aragonzkresearch/rovote/sequencer"
	"github.com/aragonzkresearch/rovote/storage"
	flag "github.com/spf13/pflag"
)

const shutdownTimeout = 30 * time.Second

// Services holds all the running services
type Services struct {
	Database  db.Database
	Storage   *storage.Storage
	CensusDB  *censusdb.CensusDB
	Sequencer *sequencer.Sequencer
	API       *api.API
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting rovote-node", "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	dbDir := filepath.Join(cfg.Datadir, config.DatabaseDir)
	log.Infow("initializing storage", "datadir", dbDir, "type", cfg.DBType)
	database, err := metadb.New(cfg.DBType, dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Database = database
	services.Storage = storage.New(database)
	if services.CensusDB, err = censusdb.NewCensusDB(database); err != nil {
		return nil, fmt.Errorf("failed to initialize census database: %w", err)
	}

	log.Infow("initializing proof engine",
		"artifacts", cfg.Prover.Artifacts,
		"cacheSize", cfg.Prover.CacheSize,
		"workers", cfg.Prover.Workers)
	engine, err := prover.NewEngine(cfg.Prover.CacheSize, prover.WithArtifactsDir(cfg.Prover.Artifacts))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proof engine: %w", err)
	}
	services.Sequencer = sequencer.New(engine, cfg.Prover.Workers)

	services.API, err = api.New(ctx, &api.APIConfig{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		ChainID:    cfg.API.ChainID,
		Storage:    services.Storage,
		CensusDB:   services.CensusDB,
		Sequencer:  services.Sequencer,
		JobTimeout: cfg.Prover.JobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Infow("rovote-node is running, ready to receive proofs!", "chainID", cfg.API.ChainID)
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.API != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := services.API.Close(ctx); err != nil {
			log.Warnw("API shutdown failed", "error", err.Error())
		}
	}
	if services.Database != nil {
		if err := services.Database.Compact(); err != nil {
			log.Warnw("database compaction failed", "error", err.Error())
		}
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
