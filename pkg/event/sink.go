package event

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes every record to a zerolog logger at debug level.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) LogSink {
	return LogSink{log: log.With().Str("component", "events").Logger()}
}

func (s LogSink) Publish(r Record) error {
	ids := zerolog.Arr()
	for _, id := range r.AffectedIDs {
		ids.Uint64(id)
	}
	ev := s.log.Debug().
		Str("id", r.ID.String()).
		Str("operation", string(r.Operation)).
		Str("actor", r.Actor.Hex()).
		Array("affected_ids", ids)
	if r.Mineable != "" {
		ev = ev.Str("mineable", r.Mineable)
	}
	ev.Interface("state", r.State).Msg("event")
	return nil
}

// Recorder keeps every published record in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Publish(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything published so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Operations lists the operation of every published record, in order.
func (r *Recorder) Operations() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Operation, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Operation
	}
	return out
}

// Reset forgets all records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
