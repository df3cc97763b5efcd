// Package quarry is the serialized engine over the artifact graph, the difficulty loops of every
// mining entity, and the reward ledger.
//
// Every public operation runs under one mutex, so operations are applied one at a time in the
// order they acquire it. An operation either commits entirely or leaves no trace: events are
// buffered while it runs and only dispatched once it succeeded.
package quarry

import (
	"sync"
	"time"

	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/ledger"
	"github.com/mithril-labs/quarry/pkg/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Engine struct {
	mu        sync.Mutex
	store     *artifact.Store
	ledger    ledger.Ledger
	mineables map[string]*mineable
	events    *event.Manager
	log       zerolog.Logger
	clock     func() time.Time
	sequence  uint64 // Committed mutating operations

	pending []MineableConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log.With().Str("component", "engine").Logger()
	}
}

// WithLedger replaces the default in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Engine) {
		e.ledger = l
	}
}

// WithClock overrides the time source used for difficulty windows.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithEventSinks adds sinks that receive every committed event.
func WithEventSinks(sinks ...event.Sink) Option {
	return func(e *Engine) {
		for _, s := range sinks {
			e.events.AddSink(s)
		}
	}
}

// WithMineable registers a mining entity at construction.
func WithMineable(cfg MineableConfig) Option {
	return func(e *Engine) {
		e.pending = append(e.pending, cfg)
	}
}

// NewEngine creates an engine with an empty artifact store.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		store:     artifact.NewStore(),
		ledger:    ledger.NewMemory(),
		mineables: make(map[string]*mineable),
		events:    event.NewManager(),
		log:       zerolog.Nop(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, cfg := range e.pending {
		if err := e.AddMineable(cfg); err != nil {
			return nil, err
		}
	}
	e.pending = nil
	return e, nil
}

// AddMineable registers a mining entity whose difficulty window starts now.
func (e *Engine) AddMineable(cfg MineableConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.mineables[cfg.Name]; exists {
		return eris.Wrapf(ErrMineableExists, "mineable %s", cfg.Name)
	}
	m, err := newMineable(cfg, e.clock())
	if err != nil {
		return eris.Wrap(err, "invalid mineable config")
	}
	e.mineables[cfg.Name] = m
	e.log.Info().
		Str("mineable", m.name).
		Str("difficulty", m.state.Difficulty().Dec()).
		Str("base_reward", m.baseReward.Dec()).
		Msg("mineable registered")
	return nil
}

// Mineables lists the registered mining entities by name.
func (e *Engine) Mineables() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return sortedKeys(e.mineables)
}

// Sequence returns the number of committed mutating operations.
func (e *Engine) Sequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

func (e *Engine) mineable(name string) (*mineable, error) {
	m, ok := e.mineables[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownMineable, "mineable %q", name)
	}
	return m, nil
}

// mutate runs fn as one atomic operation. Events fn enqueued are dispatched when it succeeds and
// dropped when it fails.
func (e *Engine) mutate(op event.Operation, fn func() error) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	err := fn()
	statsd.EmitOperationStat(start, string(op), err)
	if err != nil {
		e.events.Discard()
		e.log.Debug().Err(err).Str("operation", string(op)).Msg("operation rejected")
		return err
	}

	e.sequence++
	if err := e.events.Dispatch(); err != nil {
		e.log.Warn().Err(err).Str("operation", string(op)).Msg("failed to dispatch events")
	}
	return nil
}

// read runs fn under the engine lock without committing anything.
func (e *Engine) read(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}
