package modifier_test

import (
	"testing"

	"github.com/mithril-labs/quarry/pkg/modifier"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/mithril-labs/quarry/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		packed uint64
		want   modifier.Command
	}{
		{
			name:   "add 5 percent to accuracy",
			packed: 1055005,
			want:   modifier.Command{Slot: stats.Accuracy, Op: modifier.OpAddPercent, Operand: 5},
		},
		{
			name:   "subtract 5 percent from accuracy",
			packed: 1056005,
			want:   modifier.Command{Slot: stats.Accuracy, Op: modifier.OpSubtractPercent, Operand: 5},
		},
		{
			name:   "set vHash to 8e10",
			packed: 1049810,
			want:   modifier.Command{Slot: stats.VirtualHash, Op: modifier.OpSetScientific, Operand: 810},
		},
		{
			name:   "require level above 5",
			packed: 1067005,
			want:   modifier.Command{Slot: stats.Level, Op: modifier.OpRequireGreater, Operand: 5},
		},
		{
			name:   "add to experience",
			packed: 1001999,
			want:   modifier.Command{Slot: stats.Experience, Op: modifier.OpAdd, Operand: 999},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := modifier.Decode(tt.packed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			packed, err := got.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.packed, packed)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		packed uint64
	}{
		{name: "zero", packed: 0},
		{name: "below sentinel", packed: 999_999},
		{name: "above range", packed: 2_000_000},
		{name: "reserved slot 7", packed: 1077005},
		{name: "reserved slot 99", packed: 1991001},
		{name: "opcode zero", packed: 1050005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := modifier.Decode(tt.packed)
			require.ErrorIs(t, err, modifier.ErrMalformedCommand)
		})
	}
}

// TestDecode_ExhaustiveRoundTrip walks the whole packed range: every value either decodes and
// encodes back to itself, or is rejected as malformed.
func TestDecode_ExhaustiveRoundTrip(t *testing.T) {
	t.Parallel()

	legal := 0
	for packed := uint64(1_000_000); packed <= 1_999_999; packed++ {
		cmd, err := modifier.Decode(packed)
		if err != nil {
			require.ErrorIs(t, err, modifier.ErrMalformedCommand)
			continue
		}
		legal++
		encoded, err := cmd.Encode()
		require.NoError(t, err)
		require.Equal(t, packed, encoded)
	}
	// 7 slots * 9 opcodes * 1000 operands.
	assert.Equal(t, 7*9*1000, legal)
}

func TestEncode_RandomCommands(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	for range 10_000 {
		cmd := modifier.Command{
			Slot:    stats.Slot(prng.IntN(stats.NumSlots)),
			Op:      modifier.Opcode(prng.IntN(9) + 1),
			Operand: uint16(prng.IntN(1000)), //nolint:gosec // < 1000
		}
		packed, err := cmd.Encode()
		require.NoError(t, err)

		decoded, err := modifier.Decode(packed)
		require.NoError(t, err)
		require.Equal(t, cmd, decoded)
	}
}

func TestEncode_RejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := modifier.Command{Slot: 7, Op: modifier.OpAdd}.Encode()
	require.ErrorIs(t, err, modifier.ErrMalformedCommand)

	_, err = modifier.Command{Slot: stats.Level, Op: 0}.Encode()
	require.ErrorIs(t, err, modifier.ErrMalformedCommand)

	_, err = modifier.Command{Slot: stats.Level, Op: modifier.OpAdd, Operand: 1000}.Encode()
	require.ErrorIs(t, err, modifier.ErrMalformedCommand)
}

func TestCommand_Value(t *testing.T) {
	t.Parallel()

	v, err := modifier.MustDecode(1049810).Value()
	require.NoError(t, err)
	assert.Equal(t, "80000000000", v.Dec())

	v, err = modifier.MustDecode(1049700).Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v.Uint64())

	v, err = modifier.MustDecode(1049099).Value()
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	// 9e99 does not fit in 256 bits.
	_, err = modifier.MustDecode(1049999).Value()
	require.ErrorIs(t, err, modifier.ErrOverflow)

	v, err = modifier.MustDecode(1055005).Value()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v.Uint64())
}

func TestDecodeAll(t *testing.T) {
	t.Parallel()

	cmds, err := modifier.DecodeAll([]uint64{1055005, 1049810})
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	packed, err := modifier.EncodeAll(cmds)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1055005, 1049810}, packed)

	_, err = modifier.DecodeAll([]uint64{1055005, 42})
	require.ErrorIs(t, err, modifier.ErrMalformedCommand)
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "accuracy += 5%", modifier.MustDecode(1055005).String())
	assert.Equal(t, "vHash = 8e10", modifier.MustDecode(1049810).String())
	assert.Equal(t, "require level > 5", modifier.MustDecode(1067005).String())
	assert.True(t, modifier.MustDecode(1068005).IsRequirement())
	assert.False(t, modifier.MustDecode(1061005).IsRequirement())
}
