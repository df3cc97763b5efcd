package quarry

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/mithril-labs/quarry/pkg/statsd"
	"github.com/rotisserie/eris"
)

// defaultAccuracy is the reward multiplier, in percent, of a claimant without a booster.
const defaultAccuracy = 100

// Issuance describes an accepted reward issuance.
type Issuance struct {
	Mineable            string
	Claimant            common.Address // Whose proof and booster were used
	Recipient           common.Address // Who was credited
	Reward              *uint256.Int
	Difficulty          *uint256.Int
	EffectiveDifficulty *uint256.Int
	Booster             artifact.ID // Zero when none was used
	Adjustment          *difficulty.Adjustment
}

// DifficultyInfo is a read-only view of a mining entity's difficulty loop.
type DifficultyInfo struct {
	Mineable                 string
	Difficulty               *uint256.Int
	Target                   *uint256.Int
	MaxTarget                *uint256.Int
	Phase                    difficulty.Phase
	WindowStart              time.Time
	WindowLength             time.Duration
	IssuedInWindow           uint64
	AdjustmentIntervalTarget uint64
	Challenge                common.Hash
	Issued                   uint64
	BaseReward               *uint256.Int
}

// InstallBooster makes rigID the rig whose merged statistics scale caller's mining on a mineable.
func (e *Engine) InstallBooster(name string, rigID artifact.ID, caller common.Address) error {
	return e.mutate(event.OpInstallBooster, func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		a, err := e.store.Get(rigID)
		if err != nil {
			return err
		}
		if _, ok := a.Rig(); !ok {
			return eris.Wrapf(artifact.ErrNotRig, "artifact %d is a %s", rigID, a.Kind())
		}
		if a.Owner != caller {
			return eris.Wrapf(artifact.ErrNotOwner, "rig %d is owned by %s, not %s", rigID, a.Owner.Hex(), caller.Hex())
		}

		m.boosters[caller] = rigID
		e.emitFor(name, event.OpInstallBooster, caller, boosterState{RigID: uint64(rigID)}, rigID)
		e.log.Debug().Str("mineable", name).Str("caller", caller.Hex()).Uint64("rig", uint64(rigID)).
			Msg("booster installed")
		return nil
	})
}

// InstalledBooster returns the rig installed by caller, if any.
func (e *Engine) InstalledBooster(name string, caller common.Address) (artifact.ID, bool, error) {
	var (
		id artifact.ID
		ok bool
	)
	err := e.read(func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		id, ok = m.boosters[caller]
		return nil
	})
	return id, ok, err
}

// Difficulty returns the mining entity's current difficulty loop state. Pending window boundaries
// are not applied; the next issuance does that.
func (e *Engine) Difficulty(name string) (DifficultyInfo, error) {
	var info DifficultyInfo
	err := e.read(func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		info = DifficultyInfo{
			Mineable:                 name,
			Difficulty:               m.state.Difficulty(),
			Target:                   new(uint256.Int).Set(&m.state.Target),
			MaxTarget:                new(uint256.Int).Set(&m.state.MaxTarget),
			Phase:                    m.state.PhaseAt(e.clock()),
			WindowStart:              m.state.WindowStart,
			WindowLength:             m.state.WindowLength,
			IssuedInWindow:           m.state.IssuedInWindow,
			AdjustmentIntervalTarget: m.state.AdjustmentIntervalTarget,
			Challenge:                m.challenge,
			Issued:                   m.issued,
			BaseReward:               new(uint256.Int).Set(&m.baseReward),
		}
		return nil
	})
	return info, err
}

// EffectiveDifficulty is the difficulty claimant would face right now, after any pending
// retarget and scaled by the claimant's installed booster.
func (e *Engine) EffectiveDifficulty(name string, claimant common.Address) (*uint256.Int, error) {
	var d *uint256.Int
	err := e.read(func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		state, _ := m.state.Advance(e.clock())
		b, err := e.boost(m, claimant)
		if err != nil {
			return err
		}
		d = state.EffectiveDifficulty(b.vHash)
		return nil
	})
	return d, err
}

func (e *Engine) BalanceOf(account common.Address) *uint256.Int {
	var b *uint256.Int
	_ = e.read(func() error {
		b = e.ledger.BalanceOf(account)
		return nil
	})
	return b
}

func (e *Engine) TotalSupply() *uint256.Int {
	var s *uint256.Int
	_ = e.read(func() error {
		s = e.ledger.TotalSupply()
		return nil
	})
	return s
}

// Mint claims a reward for caller with a proof of work against caller's effective target.
func (e *Engine) Mint(name string, caller common.Address, proof difficulty.Proof) (Issuance, error) {
	var out Issuance
	err := e.mutate(event.OpMint, func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		p, err := e.prepareIssuance(m, caller, caller, proof)
		if err != nil {
			statsd.EmitRejected(name, rejectReason(err))
			return err
		}
		if err := e.ledger.Credit(caller, p.reward); err != nil {
			return err
		}
		out = e.commitIssuance(m, p, event.OpMint, caller)
		return nil
	})
	return out, err
}

// DelegatedMint claims a reward authorized off-line by the token's claimant. The claimant's
// booster and proof are used; the submitter is credited. The token's nonce is consumed only when
// the issuance succeeds.
func (e *Engine) DelegatedMint(
	name string, submitter common.Address, token delegate.AuthorizationToken, proof difficulty.Proof,
) (Issuance, error) {
	var out Issuance
	err := e.mutate(event.OpDelegatedMint, func() error {
		m, err := e.mineable(name)
		if err != nil {
			return err
		}
		claimant, err := m.authority.Verify(token)
		if err != nil {
			statsd.EmitRejected(name, rejectReason(err))
			return err
		}
		p, err := e.prepareIssuance(m, claimant, submitter, proof)
		if err != nil {
			statsd.EmitRejected(name, rejectReason(err))
			return err
		}
		if err := m.authority.Commit(token); err != nil {
			return err
		}
		if err := e.ledger.Credit(submitter, p.reward); err != nil {
			// CheckCredit passed under the engine lock, so only an external ledger can get here.
			if rbErr := m.authority.Rollback(token); rbErr != nil {
				e.log.Error().Err(rbErr).Str("mineable", name).Str("claimant", claimant.Hex()).
					Str("nonce", token.Nonce.Dec()).Msg("failed to release nonce after a failed credit")
				return eris.Wrapf(err, "nonce %s stays consumed: %v", token.Nonce.Dec(), rbErr)
			}
			statsd.EmitRejected(name, rejectReason(err))
			return err
		}
		out = e.commitIssuance(m, p, event.OpDelegatedMint, submitter)
		return nil
	})
	return out, err
}

type boost struct {
	rig      artifact.ID
	vHash    *uint256.Int
	accuracy *uint256.Int
}

// boost returns the merged statistics of claimant's installed booster. A booster the claimant no
// longer owns is ignored.
func (e *Engine) boost(m *mineable, claimant common.Address) (boost, error) {
	none := boost{accuracy: uint256.NewInt(defaultAccuracy)}

	rigID, ok := m.boosters[claimant]
	if !ok {
		return none, nil
	}
	owner, err := e.store.OwnerOf(rigID)
	if err != nil || owner != claimant {
		return none, nil //nolint:nilerr // a stale booster only loses its bonus
	}
	merged, err := e.store.Merge(rigID)
	if err != nil {
		return boost{}, eris.Wrapf(err, "failed to merge booster %d", rigID)
	}
	return boost{
		rig:      rigID,
		vHash:    merged.Get(stats.VirtualHash),
		accuracy: merged.Get(stats.Accuracy),
	}, nil
}

// pendingIssuance is a fully validated issuance that has not touched any state yet.
type pendingIssuance struct {
	claimant   common.Address
	recipient  common.Address
	state      difficulty.State
	adjustment *difficulty.Adjustment
	effective  *uint256.Int
	boost      boost
	reward     *uint256.Int
}

func (e *Engine) prepareIssuance(
	m *mineable, claimant, recipient common.Address, proof difficulty.Proof,
) (pendingIssuance, error) {
	state, adj := m.state.Advance(e.clock())

	b, err := e.boost(m, claimant)
	if err != nil {
		return pendingIssuance{}, err
	}

	target := state.EffectiveTarget(b.vHash)
	if err := m.verifier.Verify(m.challenge, claimant, proof, target); err != nil {
		return pendingIssuance{}, err
	}

	reward, overflow := new(uint256.Int).MulDivOverflow(&m.baseReward, b.accuracy, uint256.NewInt(defaultAccuracy))
	if overflow {
		return pendingIssuance{}, eris.Wrapf(modifier.ErrOverflow, "reward %s x %s%%", m.baseReward.Dec(), b.accuracy.Dec())
	}
	if err := e.ledger.CheckCredit(recipient, reward); err != nil {
		return pendingIssuance{}, err
	}

	return pendingIssuance{
		claimant:   claimant,
		recipient:  recipient,
		state:      state,
		adjustment: adj,
		effective:  state.EffectiveDifficulty(b.vHash),
		boost:      b,
		reward:     reward,
	}, nil
}

func (e *Engine) commitIssuance(m *mineable, p pendingIssuance, op event.Operation, actor common.Address) Issuance {
	p.state.RecordIssuance()
	m.state = p.state
	m.issued++
	m.challenge = difficulty.NextChallenge(m.challenge, m.issued)

	if adj := p.adjustment; adj != nil {
		e.recordAdjustment(m, actor, adj)
	}

	issuance := Issuance{
		Mineable:            m.name,
		Claimant:            p.claimant,
		Recipient:           p.recipient,
		Reward:              p.reward,
		Difficulty:          m.state.Difficulty(),
		EffectiveDifficulty: p.effective,
		Booster:             p.boost.rig,
		Adjustment:          p.adjustment,
	}

	var affected []artifact.ID
	if p.boost.rig != 0 {
		affected = append(affected, p.boost.rig)
	}
	e.emitFor(m.name, op, actor, issuanceState{
		Claimant:            p.claimant,
		Recipient:           p.recipient,
		Reward:              p.reward.Dec(),
		Difficulty:          issuance.Difficulty.Dec(),
		EffectiveDifficulty: p.effective.Dec(),
		Booster:             uint64(p.boost.rig),
		Issued:              m.issued,
	}, affected...)

	statsd.EmitIssuance(m.name, op == event.OpDelegatedMint, toFloat(p.reward))
	e.log.Info().
		Str("mineable", m.name).
		Str("claimant", p.claimant.Hex()).
		Str("recipient", p.recipient.Hex()).
		Str("reward", p.reward.Dec()).
		Str("effective_difficulty", p.effective.Dec()).
		Bool("delegated", op == event.OpDelegatedMint).
		Msg("reward issued")
	return issuance
}

func (e *Engine) recordAdjustment(m *mineable, actor common.Address, adj *difficulty.Adjustment) {
	e.emitFor(m.name, event.OpDifficultyAdjusted, actor, adjustmentState{
		PreviousTarget: adj.PreviousTarget.Dec(),
		Target:         adj.Target.Dec(),
		Difficulty:     adj.Difficulty.Dec(),
		Issued:         adj.Issued,
		Expected:       adj.Expected,
		ElapsedSeconds: int64(adj.Elapsed / time.Second),
		Clamped:        adj.Clamped,
	})
	statsd.EmitDifficulty(m.name, toFloat(adj.Difficulty), adj.Clamped)

	log := e.log.Info()
	if adj.Clamped {
		log = e.log.Warn().Err(difficulty.ErrDifficultyUnderflow)
	}
	log.Str("mineable", m.name).
		Str("difficulty", adj.Difficulty.Dec()).
		Uint64("issued", adj.Issued).
		Uint64("expected", adj.Expected).
		Dur("elapsed", adj.Elapsed).
		Msg("difficulty adjusted")
}

func rejectReason(err error) string {
	switch {
	case eris.Is(err, difficulty.ErrInvalidProof):
		return "invalid_proof"
	case eris.Is(err, delegate.ErrInvalidSignature), eris.Is(err, delegate.ErrInvalidToken):
		return "invalid_signature"
	case eris.Is(err, delegate.ErrReplayedNonce):
		return "replayed_nonce"
	default:
		return "other"
	}
}

func toFloat(x *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
