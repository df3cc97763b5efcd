package artifact

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mithril-labs/quarry/pkg/assert"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
)

// Store is the arena of every artifact ever minted plus a secondary index from owner to held ids.
// A Store is not safe for concurrent use; callers serialize access.
//
// Every mutating method validates completely before writing, so a returned error always means the
// store is unchanged.
type Store struct {
	artifacts map[ID]*Artifact
	holdings  map[common.Address]map[ID]struct{}
	refs      map[ID]int // Number of rig child slots referencing each component
	lastID    ID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		artifacts: make(map[ID]*Artifact),
		holdings:  make(map[common.Address]map[ID]struct{}),
		refs:      make(map[ID]int),
	}
}

// Restore rebuilds a store from previously exported artifacts. lastID is the highest id ever
// allocated, which may exceed every id in artifacts.
func Restore(artifacts []Artifact, lastID ID) (*Store, error) {
	s := NewStore()
	for i := range artifacts {
		a := artifacts[i].Clone()
		if a.ID == 0 || a.ID > lastID {
			return nil, eris.Errorf("artifact id %d outside allocated range (last %d)", a.ID, lastID)
		}
		if _, exists := s.artifacts[a.ID]; exists {
			return nil, eris.Errorf("duplicate artifact id %d", a.ID)
		}
		if a.Kind() == KindUndefined {
			return nil, eris.Errorf("artifact %d has no payload", a.ID)
		}
		s.artifacts[a.ID] = &a
		s.addHolding(a.Owner, a.ID)
	}
	for _, a := range s.artifacts {
		rig, ok := a.Rig()
		if !ok {
			continue
		}
		for _, child := range rig.Children {
			if _, err := s.component(child); err != nil {
				return nil, eris.Wrapf(err, "rig %d references %d", a.ID, child)
			}
			s.refs[child]++
		}
	}
	s.lastID = lastID
	return s, nil
}

// Export returns deep copies of every artifact in id order together with the last allocated id.
func (s *Store) Export() ([]Artifact, ID) {
	ids := make([]ID, 0, len(s.artifacts))
	for id := range s.artifacts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Artifact, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.artifacts[id].Clone())
	}
	return out, s.lastID
}

// Len returns the number of minted artifacts.
func (s *Store) Len() int {
	return len(s.artifacts)
}

// MintRig creates a rig owned by owner.
func (s *Store) MintRig(owner common.Address, name string, base stats.Vector, metadataURI string) (ID, error) {
	return s.mint(owner, name, metadataURI, &Rig{Base: base})
}

// MintComponent creates a component owned by owner. Every packed modifier must decode.
func (s *Store) MintComponent(
	owner common.Address, name string, life uint64, modifiers []uint64, metadataURI string,
) (ID, error) {
	cmds, err := modifier.DecodeAll(modifiers)
	if err != nil {
		return 0, err
	}
	return s.mint(owner, name, metadataURI, &Component{Life: life, Modifiers: cmds})
}

func (s *Store) mint(owner common.Address, name, metadataURI string, payload Payload) (ID, error) {
	if owner == (common.Address{}) {
		return 0, eris.Wrap(ErrInvalidRecipient, "cannot mint to the zero address")
	}
	s.lastID++
	id := s.lastID
	s.artifacts[id] = &Artifact{
		ID:          id,
		Owner:       owner,
		Name:        name,
		MetadataURI: metadataURI,
		Payload:     payload,
	}
	s.addHolding(owner, id)
	return id, nil
}

// Get returns a deep copy of the artifact.
func (s *Store) Get(id ID) (Artifact, error) {
	a, err := s.get(id)
	if err != nil {
		return Artifact{}, err
	}
	return a.Clone(), nil
}

// OwnerOf returns the current owner of an artifact.
func (s *Store) OwnerOf(id ID) (common.Address, error) {
	a, err := s.get(id)
	if err != nil {
		return common.Address{}, err
	}
	return a.Owner, nil
}

// Holdings returns the ids owned by owner in ascending order.
func (s *Store) Holdings(owner common.Address) []ID {
	held := s.holdings[owner]
	ids := make([]ID, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IsAttached reports whether any rig currently references the component.
func (s *Store) IsAttached(id ID) bool {
	return s.refs[id] > 0
}

// Parents returns the rigs that reference the component, in ascending order.
func (s *Store) Parents(id ID) []ID {
	if !s.IsAttached(id) {
		return nil
	}
	var parents []ID
	for rigID, a := range s.artifacts {
		rig, ok := a.Rig()
		if ok && slices.Contains(rig.Children, id) {
			parents = append(parents, rigID)
		}
	}
	slices.Sort(parents)
	return parents
}

// CheckListable reports whether caller may offer the artifact on a marketplace: caller must own it
// and a component must not be referenced by any rig.
func (s *Store) CheckListable(id ID, caller common.Address) error {
	a, err := s.get(id)
	if err != nil {
		return err
	}
	if a.Owner != caller {
		return eris.Wrapf(ErrNotOwner, "artifact %d is owned by %s", id, a.Owner.Hex())
	}
	if a.Kind() == KindComponent && s.IsAttached(id) {
		return eris.Wrapf(ErrAttached, "component %d is referenced by rigs %v", id, s.Parents(id))
	}
	return nil
}

func (s *Store) get(id ID) (*Artifact, error) {
	a, ok := s.artifacts[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "artifact %d", id)
	}
	return a, nil
}

func (s *Store) rig(id ID) (*Artifact, *Rig, error) {
	a, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	rig, ok := a.Rig()
	if !ok {
		return nil, nil, eris.Wrapf(ErrNotRig, "artifact %d is a %s", id, a.Kind())
	}
	return a, rig, nil
}

func (s *Store) component(id ID) (*Artifact, error) {
	a, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if a.Kind() != KindComponent {
		return nil, eris.Wrapf(ErrNotComponent, "artifact %d is a %s", id, a.Kind())
	}
	return a, nil
}

func (s *Store) addHolding(owner common.Address, id ID) {
	held, ok := s.holdings[owner]
	if !ok {
		held = make(map[ID]struct{})
		s.holdings[owner] = held
	}
	held[id] = struct{}{}
}

func (s *Store) removeHolding(owner common.Address, id ID) {
	held := s.holdings[owner]
	_, ok := held[id]
	assert.That(ok, "artifact %d missing from holdings of %s", id, owner.Hex())
	delete(held, id)
	if len(held) == 0 {
		delete(s.holdings, owner)
	}
}
