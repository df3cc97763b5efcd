package stats_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_New(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		values  []uint64
		wantErr bool
	}{
		{name: "exact length", values: []uint64{1000, 1, 0, 10, 0, 100, 1}},
		{name: "too short", values: []uint64{1, 2, 3}, wantErr: true},
		{name: "too long", values: []uint64{1, 2, 3, 4, 5, 6, 7, 8}, wantErr: true},
		{name: "empty", values: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := stats.New(tt.values...)
			if tt.wantErr {
				require.ErrorIs(t, err, stats.ErrInvalidLength)
				return
			}
			require.NoError(t, err)
			for i, want := range tt.values {
				assert.Equal(t, want, v.Get(stats.Slot(i)).Uint64())
			}
		})
	}
}

func TestVector_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	v := stats.MustNew(1000, 1, 0, 10, 0, 100, 1)
	got := v.Get(stats.Accuracy)
	got.SetUint64(7)

	assert.Equal(t, uint64(100), v.Get(stats.Accuracy).Uint64())
}

func TestVector_ValueSemantics(t *testing.T) {
	t.Parallel()

	a := stats.MustNew(1000, 1, 0, 10, 0, 100, 1)
	b := a
	b.Set(stats.Level, uint256.NewInt(9))

	assert.Equal(t, uint64(1), a.Get(stats.Level).Uint64())
	assert.NotEqual(t, a, b)
}

func TestVector_JSON(t *testing.T) {
	t.Parallel()

	v := stats.MustNew(1000, 1, 0, 10, 0, 100, 1)
	huge, err := uint256.FromDecimal("80000000000000000000000")
	require.NoError(t, err)
	v.Set(stats.VirtualHash, huge)

	bz, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `["1000","1","0","10","80000000000000000000000","100","1"]`, string(bz))

	var decoded stats.Vector
	require.NoError(t, json.Unmarshal(bz, &decoded))
	assert.Equal(t, v, decoded)

	err = json.Unmarshal([]byte(`["1","2"]`), &decoded)
	require.Error(t, err)
}

func TestSlot_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "vHash", stats.VirtualHash.String())
	assert.Equal(t, "level", stats.Level.String())
	assert.Equal(t, "reserved", stats.Slot(7).String())
	assert.False(t, stats.Slot(7).Valid())
}
