// Package difficulty implements the per mining entity target that gates reward issuance.
//
// Difficulty is MaxTarget / target. The target is re-evaluated lazily: the first issuance attempt
// after a window has elapsed compares the observed issuance rate with the expected one and scales
// the target inversely, at most MaxAdjustmentFactor times in either direction. Targets never drop
// below 1 or rise above MaxTarget.
package difficulty

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

const (
	DefaultWindowLength             = 600 * time.Second
	DefaultAdjustmentIntervalTarget = 10
	DefaultMaxAdjustmentFactor      = 4
)

// DefaultMaxTarget is 2^234, the easiest possible target.
func DefaultMaxTarget() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), 234) //nolint:mnd // 2^234
}

// ErrDifficultyUnderflow marks an adjustment whose target was raised to the floor of 1. It is
// reported on the Adjustment, never returned as a failure.
var ErrDifficultyUnderflow = eris.New("difficulty target below floor, clamped to 1")

// Phase is the controller state for a given instant.
type Phase uint8

const (
	PhaseAccumulating Phase = iota // Within the current window
	PhaseAdjusting                 // Window boundary crossed, retarget pending
)

func (p Phase) String() string {
	if p == PhaseAdjusting {
		return "adjusting"
	}
	return "accumulating"
}

// Config seeds a new controller. Zero values fall back to the defaults.
type Config struct {
	InitialDifficulty        uint64 // 0 is treated as 1
	WindowLength             time.Duration
	AdjustmentIntervalTarget uint64 // Expected issuances per window
	MaxAdjustmentFactor      uint64
	MaxTarget                *uint256.Int
}

func (cfg Config) withDefaults() Config {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = DefaultWindowLength
	}
	if cfg.AdjustmentIntervalTarget == 0 {
		cfg.AdjustmentIntervalTarget = DefaultAdjustmentIntervalTarget
	}
	if cfg.MaxAdjustmentFactor < 2 { //nolint:mnd // a factor of 1 would freeze the target
		cfg.MaxAdjustmentFactor = DefaultMaxAdjustmentFactor
	}
	if cfg.MaxTarget == nil || cfg.MaxTarget.IsZero() {
		cfg.MaxTarget = DefaultMaxTarget()
	}
	if cfg.InitialDifficulty == 0 {
		cfg.InitialDifficulty = 1
	}
	return cfg
}

// State is the complete, copyable difficulty state of one mining entity.
type State struct {
	Target                   uint256.Int
	MaxTarget                uint256.Int
	WindowStart              time.Time
	IssuedInWindow           uint64
	WindowLength             time.Duration
	AdjustmentIntervalTarget uint64
	MaxAdjustmentFactor      uint64
}

// Adjustment describes one retarget.
type Adjustment struct {
	At             time.Time
	PreviousTarget *uint256.Int
	Target         *uint256.Int
	Difficulty     *uint256.Int
	Issued         uint64
	Expected       uint64
	Elapsed        time.Duration
	Clamped        bool // The raw target fell below 1, see ErrDifficultyUnderflow
}

// NewState creates the initial state with the window starting at now.
func NewState(cfg Config, now time.Time) State {
	cfg = cfg.withDefaults()
	s := State{
		WindowStart:              now,
		WindowLength:             cfg.WindowLength,
		AdjustmentIntervalTarget: cfg.AdjustmentIntervalTarget,
		MaxAdjustmentFactor:      cfg.MaxAdjustmentFactor,
	}
	s.MaxTarget.Set(cfg.MaxTarget)
	s.Target.Div(cfg.MaxTarget, uint256.NewInt(cfg.InitialDifficulty))
	s.clampTarget()
	return s
}

// Validate checks a state loaded from outside, e.g. a snapshot.
func (s State) Validate() error {
	switch {
	case s.MaxTarget.IsZero():
		return eris.New("max target must be positive")
	case s.Target.IsZero() || s.Target.Gt(&s.MaxTarget):
		return eris.Errorf("target %s outside [1, %s]", s.Target.Dec(), s.MaxTarget.Dec())
	case s.WindowLength <= 0:
		return eris.New("window length must be positive")
	case s.AdjustmentIntervalTarget == 0:
		return eris.New("adjustment interval target must be positive")
	case s.MaxAdjustmentFactor < 2: //nolint:mnd // see withDefaults
		return eris.New("max adjustment factor must be at least 2")
	}
	return nil
}

// PhaseAt reports whether an issuance at now would trigger a retarget first.
func (s State) PhaseAt(now time.Time) Phase {
	if now.Sub(s.WindowStart) >= s.WindowLength {
		return PhaseAdjusting
	}
	return PhaseAccumulating
}

// Difficulty is MaxTarget / Target, at least 1.
func (s State) Difficulty() *uint256.Int {
	d := new(uint256.Int).Div(&s.MaxTarget, &s.Target)
	if d.IsZero() {
		d.SetOne()
	}
	return d
}

// EffectiveDifficulty divides the difficulty by the claimant's virtual hash rate, never going below 1.
// A zero hash rate leaves the difficulty unchanged.
func (s State) EffectiveDifficulty(vHash *uint256.Int) *uint256.Int {
	d := s.Difficulty()
	if vHash == nil || vHash.IsZero() {
		return d
	}
	d.Div(d, vHash)
	if d.IsZero() {
		d.SetOne()
	}
	return d
}

// EffectiveTarget is the target a claimant with the given hash rate must beat.
func (s State) EffectiveTarget(vHash *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(&s.MaxTarget, s.EffectiveDifficulty(vHash))
}

// Advance evaluates the window boundary at now. If the window has elapsed it returns the
// retargeted state and a description of the adjustment; otherwise the state is returned unchanged
// with a nil adjustment. s itself is not modified.
func (s State) Advance(now time.Time) (State, *Adjustment) {
	if s.PhaseAt(now) == PhaseAccumulating {
		return s, nil
	}

	elapsed := now.Sub(s.WindowStart)
	next := s
	clamped := next.retarget(elapsed)
	next.WindowStart = now
	next.IssuedInWindow = 0

	return next, &Adjustment{
		At:             now,
		PreviousTarget: new(uint256.Int).Set(&s.Target),
		Target:         new(uint256.Int).Set(&next.Target),
		Difficulty:     next.Difficulty(),
		Issued:         s.IssuedInWindow,
		Expected:       s.AdjustmentIntervalTarget,
		Elapsed:        elapsed,
		Clamped:        clamped,
	}
}

// RecordIssuance counts one accepted issuance in the current window.
func (s *State) RecordIssuance() {
	s.IssuedInWindow++
}

// retarget scales the target by (expected * elapsed) / (issued * windowLength), the ratio of the
// expected issuance rate to the observed one, bounded by MaxAdjustmentFactor. It reports whether
// the floor of 1 had to be applied.
func (s *State) retarget(elapsed time.Duration) bool {
	factor := uint256.NewInt(s.MaxAdjustmentFactor)
	upper, overflow := new(uint256.Int).MulOverflow(&s.Target, factor)
	if overflow || upper.Gt(&s.MaxTarget) {
		upper.Set(&s.MaxTarget)
	}
	lower := new(uint256.Int).Div(&s.Target, factor)

	next := new(uint256.Int).Set(upper)
	if s.IssuedInWindow > 0 {
		scaled, overflow := new(uint256.Int).MulDivOverflow(
			&s.Target, uint256.NewInt(s.AdjustmentIntervalTarget), uint256.NewInt(s.IssuedInWindow))
		if !overflow {
			scaled, overflow = scaled.MulDivOverflow(
				scaled, uint256.NewInt(uint64(elapsed)), uint256.NewInt(uint64(s.WindowLength))) //nolint:gosec // both positive
		}
		if !overflow && scaled.Lt(upper) {
			next.Set(scaled)
		}
	}
	if next.Lt(lower) {
		next.Set(lower)
	}

	s.Target.Set(next)
	return s.clampTarget()
}

func (s *State) clampTarget() bool {
	if s.Target.Gt(&s.MaxTarget) {
		s.Target.Set(&s.MaxTarget)
	}
	if s.Target.IsZero() {
		s.Target.SetOne()
		return true
	}
	return false
}
