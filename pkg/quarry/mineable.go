package quarry

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/artifact"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/rotisserie/eris"
)

// MineableConfig registers one mining entity.
type MineableConfig struct {
	Name       string
	Difficulty difficulty.Config
	BaseReward *uint256.Int        // Reward per issuance at accuracy 100
	Verifier   difficulty.Verifier // Defaults to difficulty.KeccakVerifier
	Nonces     delegate.NonceSet   // Defaults to an in-memory set
	Challenge  common.Hash         // Genesis challenge; defaults to keccak256(name)
}

func (cfg *MineableConfig) validate() error {
	if cfg.Name == "" {
		return eris.New("mineable name cannot be empty")
	}
	if cfg.BaseReward == nil {
		return eris.Errorf("mineable %s: base reward is required", cfg.Name)
	}
	return nil
}

// mineable is one mining entity: its own difficulty loop, nonce set, reward and installed boosters.
type mineable struct {
	name       string
	state      difficulty.State
	authority  *delegate.Authority
	nonces     delegate.NonceSet
	verifier   difficulty.Verifier
	baseReward uint256.Int
	boosters   map[common.Address]artifact.ID
	challenge  common.Hash
	issued     uint64 // Accepted issuances since genesis
}

func newMineable(cfg MineableConfig, now time.Time) (*mineable, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Verifier == nil {
		cfg.Verifier = difficulty.KeccakVerifier{}
	}
	if cfg.Nonces == nil {
		cfg.Nonces = delegate.NewMemoryNonceSet()
	}
	if cfg.Challenge == (common.Hash{}) {
		cfg.Challenge = crypto.Keccak256Hash([]byte(cfg.Name))
	}

	m := &mineable{
		name:      cfg.Name,
		state:     difficulty.NewState(cfg.Difficulty, now),
		authority: delegate.NewAuthority(cfg.Nonces),
		nonces:    cfg.Nonces,
		verifier:  cfg.Verifier,
		boosters:  make(map[common.Address]artifact.ID),
		challenge: cfg.Challenge,
	}
	m.baseReward.Set(cfg.BaseReward)
	return m, nil
}
