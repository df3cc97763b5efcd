// Package event carries the structured records the engine emits for external indexing. Records
// are buffered while an operation runs and only dispatched to the sinks once it has succeeded.
package event

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Operation names the state transition a record describes.
type Operation string

const (
	OpMintRig            Operation = "mint_rig"
	OpMintComponent      Operation = "mint_component"
	OpAttach             Operation = "attach"
	OpDetach             Operation = "detach"
	OpReplaceChildren    Operation = "replace_children"
	OpTransfer           Operation = "transfer"
	OpInstallBooster     Operation = "install_booster"
	OpMint               Operation = "mint"
	OpDelegatedMint      Operation = "delegated_mint"
	OpDifficultyAdjusted Operation = "difficulty_adjusted"
)

// Record is one emitted event.
type Record struct {
	ID          uuid.UUID      `json:"id"`
	Time        time.Time      `json:"time"`
	Operation   Operation      `json:"operation"`
	Actor       common.Address `json:"actor"`
	Mineable    string         `json:"mineable,omitempty"`
	AffectedIDs []uint64       `json:"affectedIds,omitempty"`
	State       any            `json:"state,omitempty"` // Resulting state, operation specific
}

// New creates a record with a fresh id.
func New(op Operation, actor common.Address, state any, affected ...uint64) Record {
	return Record{
		ID:          uuid.New(),
		Time:        time.Now().UTC(),
		Operation:   op,
		Actor:       actor,
		AffectedIDs: affected,
		State:       state,
	}
}

// Sink receives dispatched records.
type Sink interface {
	Publish(Record) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Record) error

func (f SinkFunc) Publish(r Record) error { return f(r) }

// initialBufferCapacity is the starting capacity of the pending buffer.
const initialBufferCapacity = 16

// Manager buffers records emitted during an operation and hands them to every sink on Dispatch.
type Manager struct {
	sinks  []Sink
	buffer []Record
	mu     sync.Mutex
}

// NewManager creates a manager publishing to sinks.
func NewManager(sinks ...Sink) *Manager {
	return &Manager{
		sinks:  sinks,
		buffer: make([]Record, 0, initialBufferCapacity),
	}
}

// AddSink registers another sink.
func (m *Manager) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Enqueue buffers a record until the next Dispatch or Discard.
func (m *Manager) Enqueue(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, r)
}

// Pending returns the number of buffered records.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffer)
}

// Discard drops every buffered record. Called when the enclosing operation failed.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.buffer)
	m.buffer = m.buffer[:0]
}

// Dispatch publishes buffered records in order to every sink and clears the buffer. A failing sink
// does not stop the others; all errors are collected.
func (m *Manager) Dispatch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, r := range m.buffer {
		for _, sink := range m.sinks {
			if err := sink.Publish(r); err != nil {
				errs = append(errs, err)
			}
		}
	}

	clear(m.buffer)
	m.buffer = m.buffer[:0]

	if len(errs) > 0 {
		return eris.Errorf("event dispatch encountered %d error(s): %v", len(errs), errs)
	}
	return nil
}
