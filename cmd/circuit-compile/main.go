// circuit-compile compiles and sets up the membership circuit of a census
// height and the aggregation circuits above it, and stores the artifacts in
// the layout the node loads them from.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aragonzkresearch/rovote/circuits/aggregator"
	"github.com/aragonzkresearch/rovote/log"
	"github.com/aragonzkresearch/rovote/prover"
	flag "github.com/spf13/pflag"
)

const manifestFile = "manifest.json"

// manifestEntry describes the artifacts of one circuit.
type manifestEntry struct {
	Key                 string `json:"key"`
	Constraints         int    `json:"constraints"`
	VerificationKeyHash string `json:"verificationKeyHash"`
}

func main() {
	var destination string
	var height, levels int
	var logLevel string

	flag.StringVar(&destination, "destination", "artifacts", "destination folder for the artifacts")
	flag.IntVar(&height, "height", 8, "census height, the census holds 2^height public keys")
	flag.IntVar(&levels, "levels", 1, "number of aggregation levels to compile above the membership circuit")
	flag.StringVar(&logLevel, "log.level", "info", "log level (debug, info, warn, error)")
	flag.Parse()
	log.Init(logLevel, "stdout", nil)

	if err := checkParams(height, levels); err != nil {
		log.Fatalf("invalid parameters: %v", err)
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		log.Fatalf("error creating destination folder: %v", err)
	}
	log.Infow("destination folder", "path", destination)

	engine, err := prover.NewEngine(levels+1, prover.WithArtifactsDir(destination))
	if err != nil {
		log.Fatalf("error creating proof engine: %v", err)
	}
	startTime := time.Now()
	if _, _, err := aggregator.Artifacts(engine, height, levels); err != nil {
		log.Fatalf("error compiling circuits: %v", err)
	}
	log.Infow("circuits ready", "height", height, "levels", levels, "elapsed", time.Since(startTime).String())

	entries, err := manifest(engine.Cached())
	if err != nil {
		log.Fatalf("error building manifest: %v", err)
	}
	if err := writeManifest(filepath.Join(destination, manifestFile), entries); err != nil {
		log.Fatalf("error writing manifest: %v", err)
	}
	for _, e := range entries {
		log.Infow("circuit", "key", e.Key, "constraints", e.Constraints, "vkHash", e.VerificationKeyHash)
	}
}

func checkParams(height, levels int) error {
	if height < 0 || height > 32 {
		return fmt.Errorf("height must be between 0 and 32, got %d", height)
	}
	if levels < 0 {
		return fmt.Errorf("levels cannot be negative, got %d", levels)
	}
	return nil
}

// manifest lists the artifacts sorted by key.
func manifest(artifacts []*prover.Artifacts) ([]manifestEntry, error) {
	entries := make([]manifestEntry, 0, len(artifacts))
	for _, a := range artifacts {
		hash, err := prover.VerifyingKeyHash(a.VerifyingKey)
		if err != nil {
			return nil, fmt.Errorf("hash verifying key of %s: %w", a.Key, err)
		}
		entries = append(entries, manifestEntry{
			Key:                 a.Key,
			Constraints:         a.CCS.GetNbConstraints(),
			VerificationKeyHash: hex.EncodeToString(hash),
		})
	}
	slices.SortFunc(entries, func(a, b manifestEntry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

func writeManifest(path string, entries []manifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
