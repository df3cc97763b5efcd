// Package snapshot persists point-in-time captures of engine state.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Snapshot is a point-in-time capture of engine state. Data is the CBOR encoded state produced by
// the engine; storages treat it as opaque.
type Snapshot struct {
	Sequence  uint64    `cbor:"1,keyasint"` // Number of committed operations at capture time
	Timestamp time.Time `cbor:"2,keyasint"`
	Data      []byte    `cbor:"3,keyasint"`
	Version   uint32    `cbor:"4,keyasint"`
}

const CurrentVersion uint32 = 1

var ErrSnapshotNotFound = eris.New("snapshot not found")

// Storage provides persistence for engine snapshots.
type Storage interface {
	// Store saves the snapshot, atomically replacing any existing snapshot.
	Store(ctx context.Context, snapshot *Snapshot) error

	// Load retrieves the current snapshot. Returns ErrSnapshotNotFound if none exists.
	Load(ctx context.Context) (*Snapshot, error)
}

// StorageType defines the type of snapshot storage to use.
type StorageType uint8

const (
	StorageTypeUndefined StorageType = iota
	StorageTypeNop
	StorageTypeRedis
	StorageTypeJetStream
)

const (
	nopStorageString       = "NOP"
	redisStorageString     = "REDIS"
	jetStreamStorageString = "JETSTREAM"
	undefinedStorageString = "UNDEFINED"
)

func (s StorageType) String() string {
	switch s {
	case StorageTypeUndefined:
		return undefinedStorageString
	case StorageTypeNop:
		return nopStorageString
	case StorageTypeRedis:
		return redisStorageString
	case StorageTypeJetStream:
		return jetStreamStorageString
	default:
		return undefinedStorageString
	}
}

func (s StorageType) IsValid() bool {
	return s == StorageTypeNop || s == StorageTypeRedis || s == StorageTypeJetStream
}

func ParseStorageType(s string) (StorageType, error) {
	switch strings.ToUpper(s) {
	case nopStorageString:
		return StorageTypeNop, nil
	case redisStorageString:
		return StorageTypeRedis, nil
	case jetStreamStorageString:
		return StorageTypeJetStream, nil
	default:
		return StorageTypeUndefined, eris.Errorf("invalid snapshot storage type: %s", s)
	}
}

// encode wraps a snapshot for storages that keep it as a single blob.
func encode(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, eris.New("snapshot cannot be nil")
	}
	data, err := Marshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal snapshot")
	}
	return data, nil
}

func decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal snapshot")
	}
	if s.Version == 0 || s.Version > CurrentVersion {
		return nil, eris.Errorf("unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}
