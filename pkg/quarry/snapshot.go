package quarry

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/mithril-labs/quarry/pkg/ledger"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/snapshot"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

// balanceExporter is implemented by ledgers whose balances belong in engine snapshots.
type balanceExporter interface {
	Export() []ledger.Balance
	Import([]ledger.Balance) error
}

// nonceExporter is implemented by nonce sets that live in process memory.
type nonceExporter interface {
	Export() []delegate.ConsumedNonce
	Import([]delegate.ConsumedNonce)
}

// State is the serializable engine state.
type State struct {
	LastID    uint64          `cbor:"last_id"`
	Artifacts []ArtifactState `cbor:"artifacts"`
	Balances  []BalanceState  `cbor:"balances"`
	Mineables []MineableState `cbor:"mineables"`
}

type ArtifactState struct {
	ID          uint64         `cbor:"id"`
	Kind        uint8          `cbor:"kind"`
	Owner       common.Address `cbor:"owner"`
	Name        string         `cbor:"name"`
	MetadataURI string         `cbor:"uri"`
	Base        []string       `cbor:"base,omitempty"`
	Children    []uint64       `cbor:"children,omitempty"`
	Life        uint64         `cbor:"life,omitempty"`
	Modifiers   []uint64       `cbor:"modifiers,omitempty"`
}

type BalanceState struct {
	Account common.Address `cbor:"account"`
	Amount  string         `cbor:"amount"`
}

type MineableState struct {
	Name                     string         `cbor:"name"`
	Target                   string         `cbor:"target"`
	MaxTarget                string         `cbor:"max_target"`
	WindowStart              time.Time      `cbor:"window_start"`
	WindowLength             time.Duration  `cbor:"window_length"`
	IssuedInWindow           uint64         `cbor:"issued_in_window"`
	AdjustmentIntervalTarget uint64         `cbor:"adjustment_interval_target"`
	MaxAdjustmentFactor      uint64         `cbor:"max_adjustment_factor"`
	BaseReward               string         `cbor:"base_reward"`
	Challenge                common.Hash    `cbor:"challenge"`
	Issued                   uint64         `cbor:"issued"`
	Boosters                 []BoosterState `cbor:"boosters,omitempty"`
	Nonces                   []NonceState   `cbor:"nonces,omitempty"`
}

type BoosterState struct {
	Owner common.Address `cbor:"owner"`
	RigID uint64         `cbor:"rig"`
}

type NonceState struct {
	Signer common.Address `cbor:"signer"`
	Nonce  string         `cbor:"nonce"`
}

// Export captures the complete engine state.
func (e *Engine) Export() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.export()
}

func (e *Engine) export() State {
	artifacts, lastID := e.store.Export()
	st := State{LastID: uint64(lastID), Artifacts: make([]ArtifactState, 0, len(artifacts))}

	for i := range artifacts {
		a := &artifacts[i]
		as := ArtifactState{
			ID:          uint64(a.ID),
			Kind:        uint8(a.Kind()),
			Owner:       a.Owner,
			Name:        a.Name,
			MetadataURI: a.MetadataURI,
		}
		if rig, ok := a.Rig(); ok {
			as.Base = rig.Base.Decimals()
			for _, c := range rig.Children {
				as.Children = append(as.Children, uint64(c))
			}
		}
		if comp, ok := a.Component(); ok {
			as.Life = comp.Life
			// Components were decoded from legal packed values, so encoding cannot fail.
			as.Modifiers, _ = modifier.EncodeAll(comp.Modifiers)
		}
		st.Artifacts = append(st.Artifacts, as)
	}

	if exp, ok := e.ledger.(balanceExporter); ok {
		for _, b := range exp.Export() {
			st.Balances = append(st.Balances, BalanceState{Account: b.Account, Amount: b.Amount.Dec()})
		}
	}

	for _, name := range sortedKeys(e.mineables) {
		m := e.mineables[name]
		ms := MineableState{
			Name:                     m.name,
			Target:                   m.state.Target.Dec(),
			MaxTarget:                m.state.MaxTarget.Dec(),
			WindowStart:              m.state.WindowStart,
			WindowLength:             m.state.WindowLength,
			IssuedInWindow:           m.state.IssuedInWindow,
			AdjustmentIntervalTarget: m.state.AdjustmentIntervalTarget,
			MaxAdjustmentFactor:      m.state.MaxAdjustmentFactor,
			BaseReward:               m.baseReward.Dec(),
			Challenge:                m.challenge,
			Issued:                   m.issued,
		}
		for _, owner := range sortedAddresses(m.boosters) {
			ms.Boosters = append(ms.Boosters, BoosterState{Owner: owner, RigID: uint64(m.boosters[owner])})
		}
		if exp, ok := m.nonces.(nonceExporter); ok {
			for _, n := range exp.Export() {
				ms.Nonces = append(ms.Nonces, NonceState{Signer: n.Signer, Nonce: n.Nonce.Dec()})
			}
		}
		st.Mineables = append(st.Mineables, ms)
	}
	return st
}

// Import replaces the engine state. Every mineable in st must already be registered; its
// verifier and nonce backend are kept. Nothing changes unless the whole state is valid.
func (e *Engine) Import(st State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.importState(st)
}

func (e *Engine) importState(st State) error {
	store, err := restoreStore(st)
	if err != nil {
		return err
	}

	balances := make([]ledger.Balance, 0, len(st.Balances))
	for _, b := range st.Balances {
		amount, err := uint256.FromDecimal(b.Amount)
		if err != nil {
			return eris.Wrapf(err, "invalid balance for %s", b.Account.Hex())
		}
		balances = append(balances, ledger.Balance{Account: b.Account, Amount: amount})
	}

	type pending struct {
		m  *mineable
		ms MineableState
		r  restoredMineable
	}
	next := make([]pending, 0, len(st.Mineables))
	for _, ms := range st.Mineables {
		m, err := e.mineable(ms.Name)
		if err != nil {
			return err
		}
		r, err := restoreMineable(ms, store)
		if err != nil {
			return eris.Wrapf(err, "mineable %s", ms.Name)
		}
		next = append(next, pending{m: m, ms: ms, r: r})
	}

	// The ledger import is the last step that can fail.
	if exp, ok := e.ledger.(balanceExporter); ok {
		if err := exp.Import(balances); err != nil {
			return eris.Wrap(err, "failed to import balances")
		}
	} else if len(balances) > 0 {
		return eris.New("snapshot carries balances but the ledger cannot import them")
	}

	e.store = store
	for _, p := range next {
		p.m.state = p.r.state
		p.m.baseReward.Set(p.r.reward)
		p.m.boosters = p.r.boosters
		p.m.challenge = p.ms.Challenge
		p.m.issued = p.ms.Issued
		if exp, ok := p.m.nonces.(nonceExporter); ok {
			exp.Import(p.r.nonces)
		}
	}
	e.log.Info().Int("artifacts", store.Len()).Int("mineables", len(next)).Msg("engine state restored")
	return nil
}

type restoredMineable struct {
	state    difficulty.State
	reward   *uint256.Int
	boosters map[common.Address]artifact.ID
	nonces   []delegate.ConsumedNonce
}

func restoreMineable(ms MineableState, store *artifact.Store) (restoredMineable, error) {
	target, err := uint256.FromDecimal(ms.Target)
	if err != nil {
		return restoredMineable{}, eris.Wrap(err, "invalid target")
	}
	maxTarget, err := uint256.FromDecimal(ms.MaxTarget)
	if err != nil {
		return restoredMineable{}, eris.Wrap(err, "invalid max target")
	}
	reward, err := uint256.FromDecimal(ms.BaseReward)
	if err != nil {
		return restoredMineable{}, eris.Wrap(err, "invalid base reward")
	}

	state := difficulty.State{
		WindowStart:              ms.WindowStart,
		WindowLength:             ms.WindowLength,
		IssuedInWindow:           ms.IssuedInWindow,
		AdjustmentIntervalTarget: ms.AdjustmentIntervalTarget,
		MaxAdjustmentFactor:      ms.MaxAdjustmentFactor,
	}
	state.Target.Set(target)
	state.MaxTarget.Set(maxTarget)
	if err := state.Validate(); err != nil {
		return restoredMineable{}, err
	}

	boosters := make(map[common.Address]artifact.ID, len(ms.Boosters))
	for _, b := range ms.Boosters {
		a, err := store.Get(artifact.ID(b.RigID))
		if err != nil {
			return restoredMineable{}, eris.Wrapf(err, "booster of %s", b.Owner.Hex())
		}
		if _, ok := a.Rig(); !ok {
			return restoredMineable{}, eris.Wrapf(artifact.ErrNotRig, "booster %d of %s", b.RigID, b.Owner.Hex())
		}
		boosters[b.Owner] = artifact.ID(b.RigID)
	}

	nonces := make([]delegate.ConsumedNonce, 0, len(ms.Nonces))
	for _, n := range ms.Nonces {
		nonce, err := uint256.FromDecimal(n.Nonce)
		if err != nil {
			return restoredMineable{}, eris.Wrapf(err, "invalid nonce of %s", n.Signer.Hex())
		}
		nonces = append(nonces, delegate.ConsumedNonce{Signer: n.Signer, Nonce: nonce})
	}

	return restoredMineable{state: state, reward: reward, boosters: boosters, nonces: nonces}, nil
}

func restoreStore(st State) (*artifact.Store, error) {
	artifacts := make([]artifact.Artifact, 0, len(st.Artifacts))
	for _, as := range st.Artifacts {
		a := artifact.Artifact{
			ID:          artifact.ID(as.ID),
			Owner:       as.Owner,
			Name:        as.Name,
			MetadataURI: as.MetadataURI,
		}
		switch artifact.Kind(as.Kind) {
		case artifact.KindRig:
			base, err := stats.ParseDecimal(as.Base)
			if err != nil {
				return nil, eris.Wrapf(err, "rig %d base stats", as.ID)
			}
			children := make([]artifact.ID, len(as.Children))
			for i, c := range as.Children {
				children[i] = artifact.ID(c)
			}
			a.Payload = &artifact.Rig{Base: base, Children: children}
		case artifact.KindComponent:
			cmds, err := modifier.DecodeAll(as.Modifiers)
			if err != nil {
				return nil, eris.Wrapf(err, "component %d modifiers", as.ID)
			}
			a.Payload = &artifact.Component{Life: as.Life, Modifiers: cmds}
		case artifact.KindUndefined:
			return nil, eris.Errorf("artifact %d has undefined kind", as.ID)
		default:
			return nil, eris.Errorf("artifact %d has unknown kind %d", as.ID, as.Kind)
		}
		artifacts = append(artifacts, a)
	}
	return artifact.Restore(artifacts, artifact.ID(st.LastID))
}

// Snapshot encodes the engine state.
func (e *Engine) Snapshot() (*snapshot.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := snapshot.Marshal(e.export())
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode engine state")
	}
	return &snapshot.Snapshot{
		Sequence:  e.sequence,
		Timestamp: e.clock().UTC(),
		Data:      data,
		Version:   snapshot.CurrentVersion,
	}, nil
}

// Restore replaces the engine state with the one captured in s.
func (e *Engine) Restore(s *snapshot.Snapshot) error {
	var st State
	if err := snapshot.Unmarshal(s.Data, &st); err != nil {
		return eris.Wrap(err, "failed to decode engine state")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.importState(st); err != nil {
		return err
	}
	e.sequence = s.Sequence
	return nil
}

// Save stores a snapshot of the engine.
func (e *Engine) Save(ctx context.Context, storage snapshot.Storage) error {
	s, err := e.Snapshot()
	if err != nil {
		return err
	}
	if err := storage.Store(ctx, s); err != nil {
		return eris.Wrap(err, "failed to store snapshot")
	}
	e.log.Info().Uint64("sequence", s.Sequence).Int("bytes", len(s.Data)).Msg("snapshot saved")
	return nil
}

// Load restores the engine from storage. It returns snapshot.ErrSnapshotNotFound, wrapped, when
// the storage is empty.
func (e *Engine) Load(ctx context.Context, storage snapshot.Storage) error {
	s, err := storage.Load(ctx)
	if err != nil {
		return err
	}
	return e.Restore(s)
}
