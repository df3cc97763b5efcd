package snapshot

import (
	"context"
	"math"

	"github.com/caarlos0/env/v11"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rotisserie/eris"
)

const defaultObjectName = "snapshot"

// JetStreamStorage implements Storage using a NATS JetStream object store.
type JetStreamStorage struct {
	os jetstream.ObjectStore
}

var _ Storage = (*JetStreamStorage)(nil)

// NewJetStreamStorage creates the object store bucket if it does not exist yet.
func NewJetStreamStorage(ctx context.Context, opts JetStreamStorageOptions) (*JetStreamStorage, error) {
	// Explicit options take precedence over the environment.
	cfg, err := env.ParseAs[jetStreamConfig]()
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse env")
	}
	if opts.Bucket == "" {
		opts.Bucket = cfg.Bucket
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = cfg.MaxBytes
	}
	if err := opts.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid options passed")
	}

	js, err := jetstream.New(opts.Conn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create JetStream client")
	}

	if opts.MaxBytes > math.MaxInt64 {
		return nil, eris.New("snapshot storage max bytes exceeds maximum int64 value")
	}

	osConfig := jetstream.ObjectStoreConfig{
		Bucket:   opts.Bucket,
		MaxBytes: int64(opts.MaxBytes),
	}
	os, err := js.CreateObjectStore(ctx, osConfig)
	if err != nil {
		if !eris.Is(err, jetstream.ErrBucketExists) {
			return nil, eris.Wrapf(err, "failed to create ObjectStore (bucket=%s, maxBytes=%d)",
				osConfig.Bucket, osConfig.MaxBytes)
		}
		os, err = js.ObjectStore(ctx, opts.Bucket)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to get existing ObjectStore (bucket=%s)", opts.Bucket)
		}
	}

	return &JetStreamStorage{os: os}, nil
}

func (j *JetStreamStorage) Store(ctx context.Context, s *Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	// Overwrite the existing snapshot if any.
	if _, err = j.os.PutBytes(ctx, defaultObjectName, data); err != nil {
		return eris.Wrap(err, "failed to store snapshot in ObjectStore")
	}
	return nil
}

func (j *JetStreamStorage) Load(ctx context.Context) (*Snapshot, error) {
	data, err := j.os.GetBytes(ctx, defaultObjectName)
	if err != nil {
		if eris.Is(err, jetstream.ErrObjectNotFound) {
			return nil, eris.Wrap(ErrSnapshotNotFound, "no snapshot in ObjectStore")
		}
		return nil, eris.Wrap(err, "failed to get snapshot from ObjectStore")
	}
	return decode(data)
}

type jetStreamConfig struct {
	Bucket   string `env:"QUARRY_SNAPSHOT_BUCKET" envDefault:"quarry_snapshot"`
	MaxBytes uint64 `env:"QUARRY_SNAPSHOT_STORAGE_MAX_BYTES" envDefault:"0"`
}

// JetStreamStorageOptions configures the object store. Empty fields fall back to the environment.
type JetStreamStorageOptions struct {
	Conn   *nats.Conn
	Bucket string

	// Maximum bytes for snapshot storage. Zero means unlimited.
	// Required by some NATS providers like Synadia Cloud.
	MaxBytes uint64
}

func (opt *JetStreamStorageOptions) Validate() error {
	if opt.Conn == nil {
		return eris.New("NATS connection cannot be nil")
	}
	if opt.Bucket == "" {
		return eris.New("bucket name cannot be empty")
	}
	return nil
}
