package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aragonzkresearch/rovote/config"
	qt "github.com/frankban/quicktest"
)

func TestLoadConfig(t *testing.T) {
	c := qt.New(t)

	c.Run("defaults", func(c *qt.C) {
		cfg, err := loadConfig(nil)
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.API.Port, qt.Equals, config.DefaultAPIPort)
		c.Assert(cfg.API.ChainID, qt.Equals, uint64(config.DefaultChainID))
		c.Assert(cfg.DBType, qt.Equals, config.DefaultDBType)
		c.Assert(cfg.Prover.JobTimeout, qt.Equals, config.DefaultJobTimeout)
		c.Assert(cfg.Prover.Artifacts, qt.Equals, filepath.Join(cfg.Datadir, config.ArtifactsDir))
		c.Assert(validateConfig(cfg), qt.IsNil)
	})

	c.Run("flags", func(c *qt.C) {
		dir := c.TempDir()
		cfg, err := loadConfig([]string{
			"--api.chainid=42",
			"-p", "8080",
			"--prover.workers=3",
			"--prover.jobtimeout=2m",
			"--datadir", dir,
			"--dbtype=inmem",
		})
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.API.ChainID, qt.Equals, uint64(42))
		c.Assert(cfg.API.Port, qt.Equals, 8080)
		c.Assert(cfg.Prover.Workers, qt.Equals, 3)
		c.Assert(cfg.Prover.JobTimeout, qt.Equals, 2*time.Minute)
		c.Assert(cfg.Datadir, qt.Equals, dir)
		c.Assert(cfg.Prover.Artifacts, qt.Equals, filepath.Join(dir, config.ArtifactsDir))
		c.Assert(validateConfig(cfg), qt.IsNil)
	})

	c.Run("environment", func(c *qt.C) {
		c.Setenv("ROVOTE_API_CHAINID", "7")
		c.Setenv("ROVOTE_LOG_LEVEL", "debug")
		cfg, err := loadConfig(nil)
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.API.ChainID, qt.Equals, uint64(7))
		c.Assert(cfg.Log.Level, qt.Equals, "debug")
	})

	c.Run("unknown flag", func(c *qt.C) {
		_, err := loadConfig([]string{"--nope"})
		c.Assert(err, qt.IsNotNil)
	})
}

func TestValidateConfig(t *testing.T) {
	c := qt.New(t)
	valid := func() *Config {
		cfg, err := loadConfig(nil)
		c.Assert(err, qt.IsNil)
		return cfg
	}
	for name, mutate := range map[string]func(*Config){
		"zero chain":  func(cfg *Config) { cfg.API.ChainID = 0 },
		"bad port":    func(cfg *Config) { cfg.API.Port = 70000 },
		"bad db type": func(cfg *Config) { cfg.DBType = "leveldb" },
		"bad level":   func(cfg *Config) { cfg.Log.Level = "verbose" },
		"no timeout":  func(cfg *Config) { cfg.Prover.JobTimeout = 0 },
	} {
		c.Run(name, func(c *qt.C) {
			cfg := valid()
			mutate(cfg)
			c.Assert(validateConfig(cfg), qt.IsNotNil)
		})
	}
}
