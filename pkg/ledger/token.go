package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientTokenBalance = errors.New("ERC20: transfer amount exceeds balance")

// Transfer mirrors the ERC20 Transfer event.
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// TokenLedger is a fungible token with ERC20 transfer semantics.
type TokenLedger struct {
	chain   *Chain
	address common.Address

	mu          sync.RWMutex
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
	transfers   []Transfer
}

func newTokenLedger(chain *Chain, address common.Address) *TokenLedger {
	return &TokenLedger{
		chain:       chain,
		address:     address,
		balances:    make(map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
	}
}

func (t *TokenLedger) Address() common.Address {
	return t.address
}

// BalanceOf returns a copy of the account balance; unknown accounts hold zero.
func (t *TokenLedger) BalanceOf(account common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceLocked(account)
}

func (t *TokenLedger) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// Transfers returns the transfer log in execution order.
func (t *TokenLedger) Transfers() []Transfer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Transfer, len(t.transfers))
	for i, tr := range t.transfers {
		out[i] = Transfer{From: tr.From, To: tr.To, Amount: new(big.Int).Set(tr.Amount)}
	}
	return out
}

// Mint credits amount to the account as its own transaction.
func (t *TokenLedger) Mint(to common.Address, amount *big.Int) error {
	return t.chain.Atomically(func() error {
		return t.mint(to, amount)
	})
}

// Transfer moves amount from one account to another as its own transaction.
func (t *TokenLedger) Transfer(from, to common.Address, amount *big.Int) error {
	return t.chain.Atomically(func() error {
		return t.transfer(from, to, amount)
	})
}

func (t *TokenLedger) balanceLocked(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (t *TokenLedger) mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount must be non-negative")
	}
	if to == (common.Address{}) {
		return fmt.Errorf("ERC20: mint to the zero address")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	t.totalSupply.Add(t.totalSupply, amount)
	t.transfers = append(t.transfers, Transfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *TokenLedger) transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must be non-negative")
	}
	if to == (common.Address{}) {
		return fmt.Errorf("ERC20: transfer to the zero address")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fromBalance := t.balanceLocked(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientTokenBalance, from.Hex(), fromBalance.String(), amount.String())
	}

	t.balances[from] = fromBalance.Sub(fromBalance, amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	t.transfers = append(t.transfers, Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
