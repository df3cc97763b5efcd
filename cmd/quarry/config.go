package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mithril-labs/quarry/pkg/snapshot"
	"github.com/rotisserie/eris"
)

type daemonConfig struct {
	// Redis backs the consumed-nonce sets and, with the REDIS storage type, snapshots.
	// Leave empty to keep nonces in memory.
	RedisAddress  string `env:"QUARRY_REDIS_ADDRESS"`
	RedisPassword string `env:"QUARRY_REDIS_PASSWORD"`

	// Publish events to NATS. The connection also backs the JETSTREAM storage type.
	EnableNATS bool `env:"QUARRY_ENABLE_NATS" envDefault:"false"`

	// Snapshot storage: "NOP", "REDIS" or "JETSTREAM".
	SnapshotStorageType string `env:"QUARRY_SNAPSHOT_STORAGE_TYPE" envDefault:"NOP"`

	// How often the engine state is saved while running. A final snapshot is always taken on
	// shutdown.
	SnapshotInterval time.Duration `env:"QUARRY_SNAPSHOT_INTERVAL" envDefault:"1m"`
}

func loadDaemonConfig() (daemonConfig, error) {
	cfg, err := env.ParseAs[daemonConfig]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse daemon config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate daemon config")
	}
	return cfg, nil
}

func (cfg *daemonConfig) validate() error {
	storage, err := snapshot.ParseStorageType(cfg.SnapshotStorageType)
	if err != nil {
		return err
	}
	switch {
	case storage == snapshot.StorageTypeRedis && cfg.RedisAddress == "":
		return eris.New("REDIS snapshot storage requires QUARRY_REDIS_ADDRESS")
	case storage == snapshot.StorageTypeJetStream && !cfg.EnableNATS:
		return eris.New("JETSTREAM snapshot storage requires QUARRY_ENABLE_NATS")
	case cfg.SnapshotInterval <= 0:
		return eris.New("snapshot interval must be positive")
	}
	return nil
}

func (cfg *daemonConfig) storageType() snapshot.StorageType {
	storage, _ := snapshot.ParseStorageType(cfg.SnapshotStorageType)
	return storage
}
