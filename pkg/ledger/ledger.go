// Package ledger is the boundary to the fungible reward token. The engine only ever credits
// rewards and reads balances; transfers and approvals belong to the token itself.
package ledger

import (
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rotisserie/eris"
)

var (
	ErrSupplyExceeded   = eris.New("credit exceeds the supply cap")
	ErrInvalidRecipient = eris.New("invalid recipient")
)

// Ledger records reward balances.
type Ledger interface {
	// CheckCredit reports whether Credit would currently succeed, without applying it.
	CheckCredit(account common.Address, amount *uint256.Int) error
	// Credit mints amount to account. It either applies in full or not at all; a failure after a
	// successful CheckCredit makes the engine release the delegated nonce it had consumed.
	Credit(account common.Address, amount *uint256.Int) error
	BalanceOf(account common.Address) *uint256.Int
	TotalSupply() *uint256.Int
}

// Balance is one exported account balance.
type Balance struct {
	Account common.Address
	Amount  *uint256.Int
}

var _ Ledger = (*Memory)(nil)

// Memory is an in-process ledger with an optional supply cap.
type Memory struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	supply   uint256.Int
	limit    *uint256.Int
}

type MemoryOption func(*Memory)

// WithSupplyCap rejects credits that would push the total supply above limit.
func WithSupplyCap(limit *uint256.Int) MemoryOption {
	return func(m *Memory) {
		m.limit = new(uint256.Int).Set(limit)
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{balances: make(map[common.Address]*uint256.Int)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) CheckCredit(account common.Address, amount *uint256.Int) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.nextSupply(account, amount)
	return err
}

func (m *Memory) Credit(account common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	supply, err := m.nextSupply(account, amount)
	if err != nil || supply == nil {
		return err
	}

	balance, ok := m.balances[account]
	if !ok {
		balance = new(uint256.Int)
		m.balances[account] = balance
	}
	// Balance cannot overflow when the total supply did not.
	balance.Add(balance, amount)
	m.supply.Set(supply)
	return nil
}

// nextSupply returns the total supply after crediting amount, or nil when amount is zero.
// Callers hold the lock.
func (m *Memory) nextSupply(account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if account == (common.Address{}) {
		return nil, eris.Wrap(ErrInvalidRecipient, "cannot credit the zero address")
	}
	if amount == nil || amount.IsZero() {
		return nil, nil //nolint:nilnil // nothing to credit
	}

	supply, overflow := new(uint256.Int).AddOverflow(&m.supply, amount)
	if overflow {
		return nil, eris.Wrapf(ErrSupplyExceeded, "supply overflows crediting %s", amount.Dec())
	}
	if m.limit != nil && supply.Gt(m.limit) {
		return nil, eris.Wrapf(ErrSupplyExceeded, "supply %s + %s above cap %s",
			m.supply.Dec(), amount.Dec(), m.limit.Dec())
	}
	return supply, nil
}

func (m *Memory) BalanceOf(account common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if balance, ok := m.balances[account]; ok {
		return new(uint256.Int).Set(balance)
	}
	return new(uint256.Int)
}

func (m *Memory) TotalSupply() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(&m.supply)
}

// Export lists every non-zero balance ordered by account.
func (m *Memory) Export() []Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Balance, 0, len(m.balances))
	for account, amount := range m.balances {
		out = append(out, Balance{Account: account, Amount: new(uint256.Int).Set(amount)})
	}
	slices.SortFunc(out, func(a, b Balance) int { return a.Account.Cmp(b.Account) })
	return out
}

// Import replaces the ledger contents. The supply is recomputed from the balances and must stay
// under the cap.
func (m *Memory) Import(balances []Balance) error {
	next := make(map[common.Address]*uint256.Int, len(balances))
	var supply uint256.Int
	for _, b := range balances {
		if b.Amount == nil || b.Amount.IsZero() {
			continue
		}
		if _, dup := next[b.Account]; dup {
			return eris.Errorf("duplicate balance for %s", b.Account.Hex())
		}
		if _, overflow := supply.AddOverflow(&supply, b.Amount); overflow {
			return eris.Wrap(ErrSupplyExceeded, "imported balances overflow")
		}
		next[b.Account] = new(uint256.Int).Set(b.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit != nil && supply.Gt(m.limit) {
		return eris.Wrapf(ErrSupplyExceeded, "imported supply %s above cap %s", supply.Dec(), m.limit.Dec())
	}
	m.balances = next
	m.supply = supply
	return nil
}
