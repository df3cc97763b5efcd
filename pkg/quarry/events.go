package quarry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/event"
)

type mintState struct {
	Owner common.Address `json:"owner"`
	Kind  string         `json:"kind"`
	Name  string         `json:"name"`
}

type childrenState struct {
	Children []uint64 `json:"children"`
}

type transferState struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
}

type boosterState struct {
	RigID uint64 `json:"rigId"`
}

type issuanceState struct {
	Claimant            common.Address `json:"claimant"`
	Recipient           common.Address `json:"recipient"`
	Reward              string         `json:"reward"`
	Difficulty          string         `json:"difficulty"`
	EffectiveDifficulty string         `json:"effectiveDifficulty"`
	Booster             uint64         `json:"booster,omitempty"`
	Issued              uint64         `json:"issued"`
}

type adjustmentState struct {
	PreviousTarget string `json:"previousTarget"`
	Target         string `json:"target"`
	Difficulty     string `json:"difficulty"`
	Issued         uint64 `json:"issued"`
	Expected       uint64 `json:"expected"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
	Clamped        bool   `json:"clamped"`
}

func (e *Engine) emit(op event.Operation, actor common.Address, state any, ids ...artifact.ID) {
	e.emitFor("", op, actor, state, ids...)
}

func (e *Engine) emitFor(mineable string, op event.Operation, actor common.Address, state any, ids ...artifact.ID) {
	affected := make([]uint64, len(ids))
	for i, id := range ids {
		affected[i] = uint64(id)
	}
	r := event.New(op, actor, state, affected...)
	r.Mineable = mineable
	e.events.Enqueue(r)
}

// emitChildren records the rig's children after a composition change. The rig comes first in the
// affected ids, followed by the components involved.
func (e *Engine) emitChildren(op event.Operation, actor common.Address, rigID artifact.ID, involved ...artifact.ID) {
	a, err := e.store.Get(rigID)
	var children []uint64
	if err == nil {
		if rig, ok := a.Rig(); ok {
			for _, c := range rig.Children {
				children = append(children, uint64(c))
			}
		}
	}
	e.emit(op, actor, childrenState{Children: children}, append([]artifact.ID{rigID}, involved...)...)
	e.log.Debug().
		Str("operation", string(op)).
		Uint64("rig", uint64(rigID)).
		Interface("children", children).
		Msg("composition changed")
}
