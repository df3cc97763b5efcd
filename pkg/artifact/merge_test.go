package artifact_test

import (
	"testing"

	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	for _, mod := range []uint64{1049810, 1055020, 1061003, 1031002} {
		require.NoError(t, s.Attach(rigID, mintComponent(t, s, jay, mod), jay))
	}

	first, err := s.Merge(rigID)
	require.NoError(t, err)
	second, err := s.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, "80000000000", first.Get(stats.VirtualHash).Dec())
	assert.Equal(t, uint64(120), first.Get(stats.Accuracy).Uint64())
	assert.Equal(t, uint64(4), first.Get(stats.Level).Uint64())
	assert.Equal(t, uint64(12), first.Get(stats.SocketCapacity).Uint64())

	// Base stats are untouched by merging.
	a, err := s.Get(rigID)
	require.NoError(t, err)
	rig, _ := a.Rig()
	assert.Equal(t, defaultStats(), rig.Base)
}

func TestMerge_OrderSensitivity(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	needsFive := mintComponent(t, s, jay, 1067005) // require level > 5
	levelUp := mintComponent(t, s, jay, 1061010)   // level += 10

	merged, err := s.CheckMerged(rigID, []artifact.ID{levelUp, needsFive})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), merged.Get(stats.Level).Uint64())

	_, err = s.CheckMerged(rigID, []artifact.ID{needsFive, levelUp})
	require.ErrorIs(t, err, artifact.ErrModifierRequirementFailed)
	var reqErr *artifact.RequirementError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 0, reqErr.Position)
	assert.Equal(t, needsFive, reqErr.ChildID)
	assert.Equal(t, 0, reqErr.Index)
	assert.Equal(t, modifier.MustDecode(1067005), reqErr.Command)
	assert.Equal(t, "1", reqErr.Have)
	require.ErrorIs(t, err, modifier.ErrRequirementNotMet)
}

func TestMerge_OrderSensitivityWithoutRequirements(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	plusTen := mintComponent(t, s, jay, 1051010) // accuracy += 10
	double := mintComponent(t, s, jay, 1053002)  // accuracy *= 2

	ab, err := s.CheckMerged(rigID, []artifact.ID{plusTen, double})
	require.NoError(t, err)
	ba, err := s.CheckMerged(rigID, []artifact.ID{double, plusTen})
	require.NoError(t, err)

	assert.Equal(t, uint64(220), ab.Get(stats.Accuracy).Uint64())
	assert.Equal(t, uint64(210), ba.Get(stats.Accuracy).Uint64())
}

func TestMerge_ArithmeticFailureAbortsWholeMerge(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	fine := mintComponent(t, s, jay, 1051010)
	drain := mintComponent(t, s, jay, 1062002) // level -= 2
	divZero := mintComponent(t, s, jay, 1054000)

	_, err := s.CheckMerged(rigID, []artifact.ID{fine, drain})
	require.ErrorIs(t, err, modifier.ErrUnderflow)
	_, err = s.CheckMerged(rigID, []artifact.ID{fine, divZero})
	require.ErrorIs(t, err, modifier.ErrDivideByZero)
}

func TestCheckMerged_DoesNotMutate(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	attached := mintComponent(t, s, jay, 1055005)
	candidate := mintComponent(t, s, maryse, 1049810)
	require.NoError(t, s.Attach(rigID, attached, jay))

	preview, err := s.CheckMerged(rigID, []artifact.ID{attached, candidate})
	require.NoError(t, err)
	assert.Equal(t, "80000000000", preview.Get(stats.VirtualHash).Dec())

	assert.Equal(t, []artifact.ID{attached}, children(t, s, rigID))
	assert.False(t, s.IsAttached(candidate))
	merged, err := s.Merge(rigID)
	require.NoError(t, err)
	assert.True(t, merged.Get(stats.VirtualHash).IsZero())

	_, err = s.CheckMerged(rigID, []artifact.ID{rigID})
	require.ErrorIs(t, err, artifact.ErrNotComponent)
	_, err = s.CheckMerged(attached, nil)
	require.ErrorIs(t, err, artifact.ErrNotRig)
}

func TestMerge_TransferIndependence(t *testing.T) {
	t.Parallel()

	s := artifact.NewStore()
	rigID := mintRig(t, s, jay, defaultStats())
	gpu := mintComponent(t, s, jay, 1049810)
	require.NoError(t, s.Attach(rigID, gpu, jay))
	before, err := s.Merge(rigID)
	require.NoError(t, err)

	require.NoError(t, s.Transfer(rigID, maryse, jay))

	owner, err := s.OwnerOf(gpu)
	require.NoError(t, err)
	assert.Equal(t, jay, owner, "transferring a rig leaves its children with their owner")
	assert.Equal(t, []artifact.ID{gpu}, children(t, s, rigID))

	after, err := s.Merge(rigID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
