package delegate

import (
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

// NonceSet records consumed (signer, nonce) pairs. Apart from Release undoing a consumption whose
// operation was aborted, it only ever grows.
type NonceSet interface {
	// Contains reports whether the pair has been consumed.
	Contains(signer common.Address, nonce *uint256.Int) (bool, error)
	// Consume marks the pair as used, failing with ErrReplayedNonce if it already was.
	Consume(signer common.Address, nonce *uint256.Int) error
	// Release forgets a pair consumed by an operation that did not complete. Releasing an unknown
	// pair is a no-op.
	Release(signer common.Address, nonce *uint256.Int) error
}

// ConsumedNonce is one entry of an exported nonce set.
type ConsumedNonce struct {
	Signer common.Address
	Nonce  *uint256.Int
}

// MemoryNonceSet keeps consumed nonces in process memory.
type MemoryNonceSet struct {
	mu       sync.Mutex
	consumed map[common.Address]map[uint256.Int]struct{}
}

var _ NonceSet = (*MemoryNonceSet)(nil)

func NewMemoryNonceSet() *MemoryNonceSet {
	return &MemoryNonceSet{consumed: make(map[common.Address]map[uint256.Int]struct{})}
}

func (m *MemoryNonceSet) Contains(signer common.Address, nonce *uint256.Int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.consumed[signer][*nonce]
	return ok, nil
}

func (m *MemoryNonceSet) Consume(signer common.Address, nonce *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used, ok := m.consumed[signer]
	if !ok {
		used = make(map[uint256.Int]struct{})
		m.consumed[signer] = used
	}
	if _, seen := used[*nonce]; seen {
		return eris.Wrapf(ErrReplayedNonce, "signer %s has already used nonce %s", signer.Hex(), nonce.Dec())
	}
	used[*nonce] = struct{}{}
	return nil
}

func (m *MemoryNonceSet) Release(signer common.Address, nonce *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.consumed[signer], *nonce)
	return nil
}

// Export lists every consumed pair ordered by signer, then nonce.
func (m *MemoryNonceSet) Export() []ConsumedNonce {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ConsumedNonce
	for signer, used := range m.consumed {
		for nonce := range used {
			out = append(out, ConsumedNonce{Signer: signer, Nonce: new(uint256.Int).Set(&nonce)})
		}
	}
	slices.SortFunc(out, func(a, b ConsumedNonce) int {
		if c := strings.Compare(a.Signer.Hex(), b.Signer.Hex()); c != 0 {
			return c
		}
		return a.Nonce.Cmp(b.Nonce)
	})
	return out
}

// Import adds previously exported pairs. Pairs already present are ignored.
func (m *MemoryNonceSet) Import(entries []ConsumedNonce) {
	for _, e := range entries {
		_ = m.Consume(e.Signer, e.Nonce) //nolint:errcheck // duplicates are expected
	}
}
