// Package config holds the default settings of the node and its tools.
package config

import (
	"time"

	"github.com/aragonzkresearch/rovote/db"
)

const (
	// DefaultAPIHost is the address the API listens on.
	DefaultAPIHost = "0.0.0.0"
	// DefaultAPIPort is the port the API listens on.
	DefaultAPIPort = 9090
	// DefaultChainID is the chain the node accepts proofs for.
	DefaultChainID = 1
	// DefaultDatadir is the data directory, relative to the user home.
	DefaultDatadir = ".rovote"
	// DefaultDBType is the database backend.
	DefaultDBType = db.TypePebble
	// DefaultLogLevel is the log level of the node.
	DefaultLogLevel = "info"
	// DefaultLogOutput is where the logs are written.
	DefaultLogOutput = "stdout"
	// DefaultJobTimeout bounds the duration of an aggregation job.
	DefaultJobTimeout = time.Hour
	// DefaultCircuitCacheSize is the number of compiled circuits kept in
	// memory. Every census height needs its own membership circuit and one
	// aggregation circuit per level.
	DefaultCircuitCacheSize = 16
)

// Subdirectories of the data directory.
const (
	DatabaseDir  = "db"
	ArtifactsDir = "artifacts"
)
