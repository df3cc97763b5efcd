// Package artifact holds the ownership and composition graph of rigs and components, and the merge
// that folds a rig's components over its base statistics.
//
// Composition is exactly two levels deep: a Rig references Components by id, and a Component only
// carries modifiers. The Payload interface is sealed so no other shape can be stored.
package artifact

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
)

// ID identifies an artifact. Ids are allocated from a single sequence starting at 1.
type ID uint64

// Kind tells rigs and components apart.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindRig
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindRig:
		return "rig"
	case KindComponent:
		return "component"
	case KindUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Payload is the kind specific part of an artifact. It is implemented only by *Rig and *Component.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// Rig is a composite artifact: base statistics plus an ordered list of referenced components.
type Rig struct {
	Base     stats.Vector
	Children []ID
}

func (*Rig) Kind() Kind { return KindRig }

func (r *Rig) clone() Payload {
	return &Rig{Base: r.Base, Children: append([]ID(nil), r.Children...)}
}

// Component is a leaf artifact. Its modifier list never changes after minting.
type Component struct {
	Life      uint64 // Informational only
	Modifiers []modifier.Command
}

func (*Component) Kind() Kind { return KindComponent }

func (c *Component) clone() Payload {
	return &Component{Life: c.Life, Modifiers: append([]modifier.Command(nil), c.Modifiers...)}
}

// Artifact is a single minted item.
type Artifact struct {
	ID          ID
	Owner       common.Address
	Name        string
	MetadataURI string
	Payload     Payload
}

func (a *Artifact) Kind() Kind {
	if a.Payload == nil {
		return KindUndefined
	}
	return a.Payload.Kind()
}

// Rig returns the rig payload, if a is a rig.
func (a *Artifact) Rig() (*Rig, bool) {
	r, ok := a.Payload.(*Rig)
	return r, ok
}

// Component returns the component payload, if a is a component.
func (a *Artifact) Component() (*Component, bool) {
	c, ok := a.Payload.(*Component)
	return c, ok
}

// Clone returns a deep copy that shares no slices with a.
func (a *Artifact) Clone() Artifact {
	out := *a
	if a.Payload != nil {
		out.Payload = a.Payload.clone()
	}
	return out
}
