package artifact

import (
	"errors"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

// Attach appends a component to a rig's children. The caller must own both. The append is
// rejected when the rig is full or when the component's modifiers fail a requirement against the
// rig's current merged statistics.
func (s *Store) Attach(rigID, componentID ID, caller common.Address) error {
	rigArtifact, rig, err := s.rig(rigID)
	if err != nil {
		return err
	}
	if err := checkOwner(rigArtifact, caller); err != nil {
		return err
	}

	merged, err := s.fold(rig.Base, rig.Children)
	if err != nil {
		return eris.Wrapf(err, "rig %d no longer merges", rigID)
	}
	if err := s.admit(rig, &merged, len(rig.Children), componentID, caller); err != nil {
		return err
	}

	rig.Children = append(rig.Children, componentID)
	s.refs[componentID]++
	return nil
}

// Detach removes the child at index, shifting later children down by one. It returns the id of the
// removed component.
func (s *Store) Detach(rigID ID, index int, caller common.Address) (ID, error) {
	rigArtifact, rig, err := s.rig(rigID)
	if err != nil {
		return 0, err
	}
	if err := checkOwner(rigArtifact, caller); err != nil {
		return 0, err
	}
	if index < 0 || index >= len(rig.Children) {
		return 0, eris.Wrapf(ErrIndexOutOfRange, "index %d, rig %d has %d children", index, rigID, len(rig.Children))
	}

	childID := rig.Children[index]
	child, err := s.component(childID)
	if err != nil {
		return 0, err
	}
	if err := checkOwner(child, caller); err != nil {
		return 0, err
	}

	rig.Children = slices.Delete(rig.Children, index, index+1)
	s.dropRef(childID)
	return childID, nil
}

// ReplaceAll swaps the whole children list. Validation is the same as attaching every new child in
// order to an empty rig, so later requirement checks see the effect of earlier children. Nothing
// changes unless every child is admitted.
func (s *Store) ReplaceAll(rigID ID, children []ID, caller common.Address) error {
	rigArtifact, rig, err := s.rig(rigID)
	if err != nil {
		return err
	}
	if err := checkOwner(rigArtifact, caller); err != nil {
		return err
	}

	running := rig.Base
	for position, childID := range children {
		if err := s.admit(rig, &running, position, childID, caller); err != nil {
			return eris.Wrapf(err, "new child %d", position)
		}
	}

	for _, old := range rig.Children {
		s.dropRef(old)
	}
	rig.Children = append([]ID(nil), children...)
	for _, child := range rig.Children {
		s.refs[child]++
	}
	return nil
}

// Transfer changes the owner of a single artifact. A rig keeps referencing its children.
func (s *Store) Transfer(id ID, to, caller common.Address) error {
	a, err := s.get(id)
	if err != nil {
		return err
	}
	if err := checkOwner(a, caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return eris.Wrap(ErrInvalidRecipient, "cannot transfer to the zero address")
	}
	if to == a.Owner {
		return nil
	}

	s.removeHolding(a.Owner, id)
	a.Owner = to
	s.addHolding(to, id)
	return nil
}

// admit checks that componentID may occupy children[position] of rig and, if so, applies its
// modifiers to running. On error running may be partially modified and must be discarded.
func (s *Store) admit(rig *Rig, running *stats.Vector, position int, componentID ID, caller common.Address) error {
	child, err := s.component(componentID)
	if err != nil {
		return err
	}
	if err := checkOwner(child, caller); err != nil {
		return err
	}

	capacity := rig.Base.Get(stats.SocketCapacity)
	if uint256.NewInt(uint64(position)).Cmp(capacity) >= 0 { //nolint:gosec // position is never negative
		return eris.Wrapf(ErrCapacityExceeded, "rig holds at most %s components", capacity.Dec())
	}

	err = s.applyChild(running, position, componentID)
	var reqErr *RequirementError
	if errors.As(err, &reqErr) && reqErr.Command.Slot == stats.Level {
		return eris.Wrapf(ErrLevelRequirementNotMet, "component %d: %s, rig level is %s",
			componentID, reqErr.Command, reqErr.Have)
	}
	return err
}

func (s *Store) dropRef(id ID) {
	s.refs[id]--
	if s.refs[id] <= 0 {
		delete(s.refs, id)
	}
}

func checkOwner(a *Artifact, caller common.Address) error {
	if a.Owner != caller {
		return eris.Wrapf(ErrNotOwner, "%s %d is owned by %s, not %s", a.Kind(), a.ID, a.Owner.Hex(), caller.Hex())
	}
	return nil
}
