package artifact

import (
	"errors"

	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

// Merge folds the rig's children, in order, over its base statistics. The result is computed on
// every call and never stored.
func (s *Store) Merge(rigID ID) (stats.Vector, error) {
	_, rig, err := s.rig(rigID)
	if err != nil {
		return stats.Vector{}, err
	}
	return s.fold(rig.Base, rig.Children)
}

// CheckMerged folds a hypothetical children list over the rig's base statistics without touching
// the store. Ownership and capacity are not checked.
func (s *Store) CheckMerged(rigID ID, candidates []ID) (stats.Vector, error) {
	_, rig, err := s.rig(rigID)
	if err != nil {
		return stats.Vector{}, err
	}
	return s.fold(rig.Base, candidates)
}

func (s *Store) fold(base stats.Vector, children []ID) (stats.Vector, error) {
	running := base
	for position, childID := range children {
		if err := s.applyChild(&running, position, childID); err != nil {
			return stats.Vector{}, err
		}
	}
	return running, nil
}

// applyChild runs one component's modifiers against running. Requirement failures come back as
// *RequirementError; arithmetic failures keep their modifier sentinel.
func (s *Store) applyChild(running *stats.Vector, position int, childID ID) error {
	child, err := s.component(childID)
	if err != nil {
		return err
	}
	comp, _ := child.Component()

	for i, cmd := range comp.Modifiers {
		have := running.Get(cmd.Slot)
		err := cmd.Apply(running)
		if err == nil {
			continue
		}
		if errors.Is(err, modifier.ErrRequirementNotMet) {
			return &RequirementError{
				Position: position,
				ChildID:  childID,
				Index:    i,
				Command:  cmd,
				Have:     have.Dec(),
			}
		}
		return eris.Wrapf(err, "child %d (component %d) modifier %d", position, childID, i)
	}
	return nil
}
