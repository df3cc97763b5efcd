package ledger_test

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestMemoryCredit(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()
	require.NoError(t, l.Credit(alice, uint256.NewInt(100)))
	require.NoError(t, l.Credit(alice, uint256.NewInt(20)))
	require.NoError(t, l.Credit(bob, uint256.NewInt(5)))
	require.NoError(t, l.Credit(bob, nil))

	assert.Equal(t, uint64(120), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(5), l.BalanceOf(bob).Uint64())
	assert.True(t, l.BalanceOf(common.Address{0x01}).IsZero())
	assert.Equal(t, uint64(125), l.TotalSupply().Uint64())

	// Returned balances are copies.
	l.BalanceOf(alice).SetUint64(0)
	assert.Equal(t, uint64(120), l.BalanceOf(alice).Uint64())

	err := l.Credit(common.Address{}, uint256.NewInt(1))
	require.ErrorIs(t, err, ledger.ErrInvalidRecipient)
}

func TestMemorySupplyCap(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory(ledger.WithSupplyCap(uint256.NewInt(100)))
	require.NoError(t, l.Credit(alice, uint256.NewInt(60)))

	require.ErrorIs(t, l.CheckCredit(bob, uint256.NewInt(41)), ledger.ErrSupplyExceeded)
	require.NoError(t, l.CheckCredit(bob, uint256.NewInt(40)))
	require.ErrorIs(t, l.CheckCredit(common.Address{}, uint256.NewInt(1)), ledger.ErrInvalidRecipient)

	err := l.Credit(bob, uint256.NewInt(41))
	require.ErrorIs(t, err, ledger.ErrSupplyExceeded)
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.Equal(t, uint64(60), l.TotalSupply().Uint64())

	require.NoError(t, l.Credit(bob, uint256.NewInt(40)))
	assert.Equal(t, uint64(100), l.TotalSupply().Uint64())
}

func TestMemorySupplyOverflow(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()
	require.NoError(t, l.Credit(alice, new(uint256.Int).SetAllOne()))
	err := l.Credit(bob, uint256.NewInt(1))
	require.ErrorIs(t, err, ledger.ErrSupplyExceeded)
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestMemoryExportImport(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()
	require.NoError(t, l.Credit(bob, uint256.NewInt(7)))
	require.NoError(t, l.Credit(alice, uint256.NewInt(3)))

	exported := l.Export()
	require.Len(t, exported, 2)
	assert.Equal(t, alice, exported[0].Account)
	assert.Equal(t, bob, exported[1].Account)

	restored := ledger.NewMemory(ledger.WithSupplyCap(uint256.NewInt(10)))
	require.NoError(t, restored.Import(exported))
	assert.Equal(t, uint64(10), restored.TotalSupply().Uint64())
	assert.Equal(t, uint64(7), restored.BalanceOf(bob).Uint64())

	tight := ledger.NewMemory(ledger.WithSupplyCap(uint256.NewInt(9)))
	require.ErrorIs(t, tight.Import(exported), ledger.ErrSupplyExceeded)
	assert.True(t, tight.TotalSupply().IsZero())

	dup := append(exported, ledger.Balance{Account: alice, Amount: uint256.NewInt(1)})
	require.Error(t, ledger.NewMemory().Import(dup))
}

func TestMemoryConcurrentCredit(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemory()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, l.Credit(alice, uint256.NewInt(1)))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1600), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(1600), l.TotalSupply().Uint64())
}
