package quarry_test

import (
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/mithril-labs/quarry/pkg/event"
	"github.com/mithril-labs/quarry/pkg/quarry"
	"github.com/mithril-labs/quarry/pkg/stats"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"
)

const mineableName = "gold"

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	relay = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// tokens returns n whole tokens of 10^18 base units.
func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine   *quarry.Engine
	clock    *fakeClock
	recorder *event.Recorder
}

func defaultMineable() quarry.MineableConfig {
	return quarry.MineableConfig{
		Name: mineableName,
		Difficulty: difficulty.Config{
			InitialDifficulty:        1,
			WindowLength:             time.Minute,
			AdjustmentIntervalTarget: 10,
		},
		BaseReward: tokens(100),
		Verifier:   difficulty.PermissiveVerifier{},
	}
}

func newHarness(t *testing.T, opts ...quarry.Option) *harness {
	t.Helper()
	return newHarnessWith(t, defaultMineable(), opts...)
}

func newHarnessWith(t *testing.T, cfg quarry.MineableConfig, opts ...quarry.Option) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{now: genesis}, recorder: &event.Recorder{}}
	base := []quarry.Option{
		quarry.WithClock(h.clock.Now),
		quarry.WithEventSinks(h.recorder),
		quarry.WithMineable(cfg),
	}
	engine, err := quarry.NewEngine(append(base, opts...)...)
	require.NoError(t, err)
	h.engine = engine
	return h
}

// rigStats has two sockets, accuracy 100 and level 1.
func rigStats() stats.Vector {
	return stats.MustNew(0, 0, 0, 2, 0, 100, 1)
}

func (h *harness) mintRig(t *testing.T, owner common.Address) artifact.ID {
	t.Helper()
	id, err := h.engine.MintRig(owner, owner, "rig", rigStats(), "ipfs://rig")
	require.NoError(t, err)
	return id
}

func (h *harness) mintComponent(t *testing.T, owner common.Address, modifiers ...uint64) artifact.ID {
	t.Helper()
	id, err := h.engine.MintComponent(owner, owner, "component", 100, modifiers, "ipfs://component")
	require.NoError(t, err)
	return id
}

// booster mints a rig for owner with the given components attached and installs it.
func (h *harness) booster(t *testing.T, owner common.Address, components ...[]uint64) artifact.ID {
	t.Helper()
	rigID := h.mintRig(t, owner)
	for _, mods := range components {
		require.NoError(t, h.engine.Attach(rigID, h.mintComponent(t, owner, mods...), owner))
	}
	require.NoError(t, h.engine.InstallBooster(mineableName, rigID, owner))
	return rigID
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// rejectingVerifier fails every proof.
type rejectingVerifier struct{}

func (rejectingVerifier) Verify(common.Hash, common.Address, difficulty.Proof, *uint256.Int) error {
	return eris.Wrap(difficulty.ErrInvalidProof, "rejected")
}
