package quarry_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/quarry"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_RejectsDuplicateMineable(t *testing.T) {
	t.Parallel()

	_, err := quarry.NewEngine(quarry.WithMineable(defaultMineable()), quarry.WithMineable(defaultMineable()))
	require.ErrorIs(t, err, quarry.ErrMineableExists)

	cfg := defaultMineable()
	cfg.BaseReward = nil
	_, err = quarry.NewEngine(quarry.WithMineable(cfg))
	require.Error(t, err)
}

func TestComposition_EventsFollowCommittedOperations(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	first := h.mintComponent(t, alice, 1055010)  // accuracy += 10%
	second := h.mintComponent(t, alice, 1041002) // vHash += 2

	require.NoError(t, h.engine.Attach(rigID, first, alice))
	require.NoError(t, h.engine.Attach(rigID, second, alice))

	merged, err := h.engine.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), merged.Get(stats.Accuracy).Uint64())
	assert.Equal(t, uint64(2), merged.Get(stats.VirtualHash).Uint64())

	removed, err := h.engine.Detach(rigID, 0, alice)
	require.NoError(t, err)
	assert.Equal(t, first, removed)

	a, err := h.engine.Get(rigID)
	require.NoError(t, err)
	rig, ok := a.Rig()
	require.True(t, ok)
	assert.Equal(t, []artifact.ID{second}, rig.Children)

	assert.Equal(t, []event.Operation{
		event.OpMintRig,
		event.OpMintComponent,
		event.OpMintComponent,
		event.OpAttach,
		event.OpAttach,
		event.OpDetach,
	}, h.recorder.Operations())

	records := h.recorder.Records()
	detach := records[len(records)-1]
	assert.Equal(t, []uint64{uint64(rigID), uint64(first)}, detach.AffectedIDs)
	assert.Equal(t, alice, detach.Actor)
	assert.Equal(t, uint64(len(records)), h.engine.Sequence())
}

func TestComposition_FailuresLeaveNoTrace(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	bobs := h.mintComponent(t, bob, 1055010)
	strict := h.mintComponent(t, alice, 1057500) // requires accuracy > 500
	h.recorder.Reset()
	before := h.engine.Sequence()

	err := h.engine.Attach(rigID, bobs, alice)
	require.ErrorIs(t, err, artifact.ErrNotOwner)

	err = h.engine.Attach(rigID, strict, alice)
	require.ErrorIs(t, err, artifact.ErrModifierRequirementFailed)
	require.ErrorIs(t, err, modifier.ErrRequirementNotMet)

	err = h.engine.Attach(rigID, strict, bob)
	require.ErrorIs(t, err, artifact.ErrNotOwner)

	_, err = h.engine.Detach(rigID, 0, alice)
	require.ErrorIs(t, err, artifact.ErrIndexOutOfRange)

	err = h.engine.Transfer(rigID, bob, bob)
	require.ErrorIs(t, err, artifact.ErrNotOwner)

	_, err = h.engine.MintRig(alice, common.Address{}, "rig", rigStats(), "")
	require.ErrorIs(t, err, artifact.ErrInvalidRecipient)

	_, err = h.engine.MintComponent(alice, alice, "broken", 1, []uint64{1077005}, "")
	require.ErrorIs(t, err, modifier.ErrMalformedCommand)

	assert.Empty(t, h.recorder.Records())
	assert.Equal(t, before, h.engine.Sequence())
	assert.Empty(t, h.engine.Parents(bobs))
}

func TestReplaceAll_IsAllOrNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	a := h.mintComponent(t, alice, 1055010)
	b := h.mintComponent(t, alice, 1041002)
	c := h.mintComponent(t, alice, 1041003)
	require.NoError(t, h.engine.Attach(rigID, a, alice))

	// Three children do not fit two sockets.
	err := h.engine.ReplaceAll(rigID, []artifact.ID{b, c, a}, alice)
	require.ErrorIs(t, err, artifact.ErrCapacityExceeded)
	assert.Equal(t, []artifact.ID{rigID}, h.engine.Parents(a))
	assert.Empty(t, h.engine.Parents(b))

	require.NoError(t, h.engine.ReplaceAll(rigID, []artifact.ID{b, c}, alice))
	assert.Empty(t, h.engine.Parents(a))
	assert.Equal(t, []artifact.ID{rigID}, h.engine.Parents(c))

	merged, err := h.engine.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), merged.Get(stats.VirtualHash).Uint64())
	assert.Equal(t, uint64(100), merged.Get(stats.Accuracy).Uint64())
}

func TestCheckMerged_PreviewsWithoutCommitting(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	a := h.mintComponent(t, alice, 1055010)
	h.recorder.Reset()

	preview, err := h.engine.CheckMerged(rigID, []artifact.ID{a, a})
	require.NoError(t, err)
	assert.Equal(t, uint64(121), preview.Get(stats.Accuracy).Uint64())

	merged, err := h.engine.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), merged.Get(stats.Accuracy).Uint64())
	assert.Empty(t, h.recorder.Records())
}

func TestCanList(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	comp := h.mintComponent(t, alice, 1055010)
	require.NoError(t, h.engine.CanList(comp, alice))
	require.ErrorIs(t, h.engine.CanList(comp, bob), artifact.ErrNotOwner)

	require.NoError(t, h.engine.Attach(rigID, comp, alice))
	require.ErrorIs(t, h.engine.CanList(comp, alice), artifact.ErrAttached)
	require.NoError(t, h.engine.CanList(rigID, alice))

	_, err := h.engine.Detach(rigID, 0, alice)
	require.NoError(t, err)
	require.NoError(t, h.engine.CanList(comp, alice))
	require.ErrorIs(t, h.engine.CanList(12345, alice), artifact.ErrNotFound)
}

func TestTransfer_MovesHoldings(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rigID := h.mintRig(t, alice)
	comp := h.mintComponent(t, alice, 1055010)
	require.NoError(t, h.engine.Attach(rigID, comp, alice))

	require.NoError(t, h.engine.Transfer(rigID, bob, alice))
	assert.Equal(t, []artifact.ID{comp}, h.engine.Holdings(alice))
	assert.Equal(t, []artifact.ID{rigID}, h.engine.Holdings(bob))

	// The new owner keeps the composition but cannot detach a child it does not own.
	merged, err := h.engine.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), merged.Get(stats.Accuracy).Uint64())
	_, err = h.engine.Detach(rigID, 0, bob)
	require.ErrorIs(t, err, artifact.ErrNotOwner)
}
