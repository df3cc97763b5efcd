package quarry

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"
	"github.com/mithril-labs/quarry/pkg/delegate"
	"github.com/mithril-labs/quarry/pkg/difficulty"
	"github.com/rotisserie/eris"
)

// Config holds the mineable defaults loaded from the environment. Every name in Mineables gets
// the same difficulty and reward settings.
type Config struct {
	// Names of the mining entities to register.
	Mineables []string `env:"QUARRY_MINEABLES" envDefault:"quarry" envSeparator:","`

	// Difficulty at genesis. Zero is treated as 1.
	InitialDifficulty uint64 `env:"QUARRY_INITIAL_DIFFICULTY" envDefault:"1"`

	// Length of one difficulty window.
	WindowLength time.Duration `env:"QUARRY_WINDOW_LENGTH" envDefault:"10m"`

	// Expected issuances per window.
	AdjustmentIntervalTarget uint64 `env:"QUARRY_ADJUSTMENT_INTERVAL_TARGET" envDefault:"10"`

	// Bound on how much the target may move in one retarget.
	MaxAdjustmentFactor uint64 `env:"QUARRY_MAX_ADJUSTMENT_FACTOR" envDefault:"4"`

	// The easiest target is 2^MaxTargetBits.
	MaxTargetBits uint `env:"QUARRY_MAX_TARGET_BITS" envDefault:"234"`

	// Reward per issuance before the accuracy multiplier, in base units.
	BaseReward string `env:"QUARRY_BASE_REWARD" envDefault:"100000000000000000000"`

	// Proof verifier: "keccak" or "permissive".
	Verifier string `env:"QUARRY_VERIFIER" envDefault:"keccak"`

	// Optional total supply cap of the in-memory ledger, in base units.
	SupplyCap string `env:"QUARRY_SUPPLY_CAP"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse quarry config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate quarry config")
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.Mineables) == 0 {
		return eris.New("at least one mineable is required")
	}
	seen := make(map[string]struct{}, len(cfg.Mineables))
	for _, name := range cfg.Mineables {
		if strings.TrimSpace(name) == "" {
			return eris.New("mineable name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return eris.Errorf("duplicate mineable name %q", name)
		}
		seen[name] = struct{}{}
	}
	if cfg.MaxTargetBits == 0 || cfg.MaxTargetBits > 255 {
		return eris.Errorf("max target bits must be in [1, 255], got %d", cfg.MaxTargetBits)
	}
	if cfg.WindowLength <= 0 {
		return eris.New("window length must be positive")
	}
	if _, err := uint256.FromDecimal(cfg.BaseReward); err != nil {
		return eris.Wrapf(err, "invalid base reward %q", cfg.BaseReward)
	}
	if cfg.SupplyCap != "" {
		if _, err := uint256.FromDecimal(cfg.SupplyCap); err != nil {
			return eris.Wrapf(err, "invalid supply cap %q", cfg.SupplyCap)
		}
	}
	if _, err := parseVerifier(cfg.Verifier); err != nil {
		return err
	}
	return nil
}

// SupplyCapValue returns the parsed supply cap, or nil when uncapped.
func (cfg *Config) SupplyCapValue() *uint256.Int {
	if cfg.SupplyCap == "" {
		return nil
	}
	v, _ := uint256.FromDecimal(cfg.SupplyCap)
	return v
}

// MineableConfigs expands the configuration into one MineableConfig per name. newNonces supplies
// each mineable's consumed-nonce backend.
func (cfg *Config) MineableConfigs(newNonces func(name string) delegate.NonceSet) ([]MineableConfig, error) {
	reward, err := uint256.FromDecimal(cfg.BaseReward)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid base reward %q", cfg.BaseReward)
	}
	verifier, err := parseVerifier(cfg.Verifier)
	if err != nil {
		return nil, err
	}

	out := make([]MineableConfig, 0, len(cfg.Mineables))
	for _, name := range cfg.Mineables {
		out = append(out, MineableConfig{
			Name: name,
			Difficulty: difficulty.Config{
				InitialDifficulty:        cfg.InitialDifficulty,
				WindowLength:             cfg.WindowLength,
				AdjustmentIntervalTarget: cfg.AdjustmentIntervalTarget,
				MaxAdjustmentFactor:      cfg.MaxAdjustmentFactor,
				MaxTarget:                new(uint256.Int).Lsh(uint256.NewInt(1), cfg.MaxTargetBits),
			},
			BaseReward: reward,
			Verifier:   verifier,
			Nonces:     newNonces(name),
		})
	}
	return out, nil
}

func parseVerifier(s string) (difficulty.Verifier, error) {
	switch strings.ToLower(s) {
	case "keccak":
		return difficulty.KeccakVerifier{}, nil
	case "permissive":
		return difficulty.PermissiveVerifier{}, nil
	default:
		return nil, eris.Errorf("invalid verifier %q (must be 'keccak' or 'permissive')", s)
	}
}
