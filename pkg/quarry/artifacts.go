package quarry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/stats"
)

// MintRig mints a rig to owner on behalf of caller.
func (e *Engine) MintRig(
	caller, owner common.Address, name string, base stats.Vector, metadataURI string,
) (artifact.ID, error) {
	var id artifact.ID
	err := e.mutate(event.OpMintRig, func() error {
		var err error
		id, err = e.store.MintRig(owner, name, base, metadataURI)
		if err != nil {
			return err
		}
		e.emit(event.OpMintRig, caller, mintState{Owner: owner, Kind: artifact.KindRig.String(), Name: name}, id)
		e.log.Debug().Uint64("id", uint64(id)).Str("owner", owner.Hex()).Msg("rig minted")
		return nil
	})
	return id, err
}

// MintComponent mints a component carrying the given packed modifiers to owner.
func (e *Engine) MintComponent(
	caller, owner common.Address, name string, life uint64, modifiers []uint64, metadataURI string,
) (artifact.ID, error) {
	var id artifact.ID
	err := e.mutate(event.OpMintComponent, func() error {
		var err error
		id, err = e.store.MintComponent(owner, name, life, modifiers, metadataURI)
		if err != nil {
			return err
		}
		e.emit(event.OpMintComponent, caller,
			mintState{Owner: owner, Kind: artifact.KindComponent.String(), Name: name}, id)
		e.log.Debug().Uint64("id", uint64(id)).Str("owner", owner.Hex()).Msg("component minted")
		return nil
	})
	return id, err
}

func (e *Engine) Attach(rigID, componentID artifact.ID, caller common.Address) error {
	return e.mutate(event.OpAttach, func() error {
		if err := e.store.Attach(rigID, componentID, caller); err != nil {
			return err
		}
		e.emitChildren(event.OpAttach, caller, rigID, componentID)
		return nil
	})
}

// Detach removes the child at index and returns its id.
func (e *Engine) Detach(rigID artifact.ID, index int, caller common.Address) (artifact.ID, error) {
	var removed artifact.ID
	err := e.mutate(event.OpDetach, func() error {
		var err error
		removed, err = e.store.Detach(rigID, index, caller)
		if err != nil {
			return err
		}
		e.emitChildren(event.OpDetach, caller, rigID, removed)
		return nil
	})
	return removed, err
}

func (e *Engine) ReplaceAll(rigID artifact.ID, children []artifact.ID, caller common.Address) error {
	return e.mutate(event.OpReplaceChildren, func() error {
		if err := e.store.ReplaceAll(rigID, children, caller); err != nil {
			return err
		}
		e.emitChildren(event.OpReplaceChildren, caller, rigID, children...)
		return nil
	})
}

func (e *Engine) Transfer(id artifact.ID, to, caller common.Address) error {
	return e.mutate(event.OpTransfer, func() error {
		if err := e.store.Transfer(id, to, caller); err != nil {
			return err
		}
		e.emit(event.OpTransfer, caller, transferState{From: caller, To: to}, id)
		return nil
	})
}

// Get returns a copy of the artifact.
func (e *Engine) Get(id artifact.ID) (artifact.Artifact, error) {
	var a artifact.Artifact
	err := e.read(func() error {
		var err error
		a, err = e.store.Get(id)
		return err
	})
	return a, err
}

// Holdings lists the ids owned by owner in ascending order.
func (e *Engine) Holdings(owner common.Address) []artifact.ID {
	var ids []artifact.ID
	_ = e.read(func() error {
		ids = e.store.Holdings(owner)
		return nil
	})
	return ids
}

// Parents lists the rigs currently referencing a component.
func (e *Engine) Parents(id artifact.ID) []artifact.ID {
	var ids []artifact.ID
	_ = e.read(func() error {
		ids = e.store.Parents(id)
		return nil
	})
	return ids
}

// Merge computes the effective statistics of a rig from its live composition.
func (e *Engine) Merge(rigID artifact.ID) (stats.Vector, error) {
	var v stats.Vector
	err := e.read(func() error {
		var err error
		v, err = e.store.Merge(rigID)
		return err
	})
	return v, err
}

// CheckMerged previews the statistics a rig would have with candidates as its children.
func (e *Engine) CheckMerged(rigID artifact.ID, candidates []artifact.ID) (stats.Vector, error) {
	var v stats.Vector
	err := e.read(func() error {
		var err error
		v, err = e.store.CheckMerged(rigID, candidates)
		return err
	})
	return v, err
}

// CanList reports whether caller may offer the artifact on a marketplace: caller must own it and
// it must not be attached to any rig.
func (e *Engine) CanList(id artifact.ID, caller common.Address) error {
	return e.read(func() error {
		return e.store.CheckListable(id, caller)
	})
}
