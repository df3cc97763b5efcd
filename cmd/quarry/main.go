// Command quarry runs the mining engine behind its HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/ledger"
	"github.com/mithril-labs/quarry/pkg/quarry"
	"github.com/mithril-labs/quarry/pkg/server"
	"github.com/mithril-labs/quarry/pkg/snapshot"
	"github.com/mithril-labs/quarry/pkg/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	tel, err := telemetry.New(telemetry.Options{ServiceName: "quarry"})
	if err != nil {
		logger := telemetry.GetGlobalLogger("quarry")
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer tel.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, tel); err != nil {
		tel.Logger.Error().Err(err).Msg("quarry stopped with an error")
		tel.Shutdown()
		os.Exit(1) //nolint:gocritic // telemetry is flushed above
	}
}

func run(ctx context.Context, tel telemetry.Telemetry) error {
	log := tel.GetLogger("main")

	cfg, err := loadDaemonConfig()
	if err != nil {
		return err
	}
	engineCfg, err := quarry.LoadConfig()
	if err != nil {
		return err
	}
	serverCfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return eris.Wrap(err, "failed to reach redis")
		}
		log.Info().Str("address", cfg.RedisAddress).Msg("connected to redis")
	}

	opts := []quarry.Option{quarry.WithLogger(tel.GetLogger("engine"))}
	if limit := engineCfg.SupplyCapValue(); limit != nil {
		opts = append(opts, quarry.WithLedger(ledger.NewMemory(ledger.WithSupplyCap(limit))))
	}

	var conn *nats.Conn
	if cfg.EnableNATS {
		natsCfg, err := env.ParseAs[event.NATSConfig]()
		if err != nil {
			return eris.Wrap(err, "failed to parse NATS config")
		}
		if err := natsCfg.Validate(); err != nil {
			return err
		}
		natsOpts := []nats.Option{nats.Name(natsCfg.Name)}
		if natsCfg.CredentialsFile != "" {
			natsOpts = append(natsOpts, nats.UserCredentials(natsCfg.CredentialsFile))
		}
		conn, err = nats.Connect(natsCfg.URL, natsOpts...)
		if err != nil {
			return eris.Wrap(err, "failed to connect to NATS server")
		}
		defer conn.Drain() //nolint:errcheck // best effort on exit
		opts = append(opts, quarry.WithEventSinks(event.NewNATSSinkFromConn(conn, natsCfg.SubjectPrefix)))
		log.Info().Str("url", conn.ConnectedUrl()).Msg("publishing events to NATS")
	}
	opts = append(opts, quarry.WithEventSinks(event.NewLogSink(tel.GetLogger("events"))))

	mineables, err := engineCfg.MineableConfigs(func(name string) delegate.NonceSet {
		if rdb != nil {
			return delegate.NewRedisNonceSet(rdb, "quarry:"+name)
		}
		return delegate.NewMemoryNonceSet()
	})
	if err != nil {
		return err
	}
	for _, m := range mineables {
		opts = append(opts, quarry.WithMineable(m))
	}

	engine, err := quarry.NewEngine(opts...)
	if err != nil {
		return eris.Wrap(err, "failed to create engine")
	}

	storage, err := newSnapshotStorage(ctx, cfg, rdb, conn)
	if err != nil {
		return err
	}
	if err := engine.Load(ctx, storage); err != nil {
		if !eris.Is(err, snapshot.ErrSnapshotNotFound) {
			return eris.Wrap(err, "failed to restore engine")
		}
		log.Info().Str("storage", cfg.storageType().String()).Msg("no snapshot found, starting fresh")
	}

	srv, err := server.New(engine, serverCfg, server.WithLogger(tel.GetLogger("server")))
	if err != nil {
		return err
	}

	go saveEvery(ctx, engine, storage, cfg.SnapshotInterval, log)
	serveErr := srv.Serve(ctx)

	// Take a final snapshot even if the context is already cancelled.
	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := engine.Save(saveCtx, storage); err != nil {
		log.Error().Err(err).Msg("failed to save final snapshot")
	}
	return serveErr
}

func newSnapshotStorage(
	ctx context.Context, cfg daemonConfig, rdb *redis.Client, conn *nats.Conn,
) (snapshot.Storage, error) {
	switch cfg.storageType() {
	case snapshot.StorageTypeRedis:
		return snapshot.NewRedisStorage(rdb, "quarry"), nil
	case snapshot.StorageTypeJetStream:
		storage, err := snapshot.NewJetStreamStorage(ctx, snapshot.JetStreamStorageOptions{Conn: conn})
		if err != nil {
			return nil, eris.Wrap(err, "failed to create jetstream snapshot storage")
		}
		return storage, nil
	case snapshot.StorageTypeNop, snapshot.StorageTypeUndefined:
		return snapshot.NewNopStorage(), nil
	}
	return snapshot.NewNopStorage(), nil
}

func saveEvery(ctx context.Context, engine *quarry.Engine, storage snapshot.Storage, every time.Duration,
	log zerolog.Logger,
) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var saved uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if seq := engine.Sequence(); seq != saved {
				if err := engine.Save(ctx, storage); err != nil {
					log.Error().Err(err).Msg("periodic snapshot failed")
					continue
				}
				saved = seq
			}
		}
	}
}
