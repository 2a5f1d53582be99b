package pnl

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

var (
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(common.Big1, 255), common.Big1)
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(common.Big1, 255))
)

// FitsInt256 reports whether v is representable as int256
func FitsInt256(v *big.Int) bool {
	return v.Cmp(maxInt256) <= 0 && v.Cmp(minInt256) >= 0
}

// Update is the result of a PnL delta
type Update struct {
	PnL    *big.Int
	Delta  *big.Int
	Reason domain.PnlReason
}

// Ledger tracks protocol PnL, LP principal and liquidity fronted to beneficiaries
// ahead of controller rebalances.
type Ledger struct {
	journal        *journal.Journal
	pnl            *big.Int
	principal      map[common.Address]*big.Int
	totalPrincipal *big.Int
	fronted        *big.Int
}

// New creates an empty ledger
func New(j *journal.Journal) *Ledger {
	return &Ledger{
		journal:        j,
		pnl:            new(big.Int),
		principal:      make(map[common.Address]*big.Int),
		totalPrincipal: new(big.Int),
		fronted:        new(big.Int),
	}
}

// PnL returns the current signed protocol PnL
func (l *Ledger) PnL() *big.Int {
	return new(big.Int).Set(l.pnl)
}

// Principal returns an LP's principal
func (l *Ledger) Principal(lp common.Address) *big.Int {
	if p, ok := l.principal[lp]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

// TotalPrincipal returns the sum of all LP principal
func (l *Ledger) TotalPrincipal() *big.Int {
	return new(big.Int).Set(l.totalPrincipal)
}

// Fronted returns the liquidity paid out and not yet rebalanced
func (l *Ledger) Fronted() *big.Int {
	return new(big.Int).Set(l.fronted)
}

// Apply adds a signed delta to the PnL
func (l *Ledger) Apply(delta *big.Int, reason domain.PnlReason) (Update, error) {
	if !FitsInt256(delta) {
		return Update{}, domain.ErrAmountTooLargeForInt
	}
	next := new(big.Int).Add(l.pnl, delta)
	if !FitsInt256(next) {
		return Update{}, domain.ErrAmountTooLargeForInt
	}
	journal.Set(l.journal, &l.pnl, next)
	return Update{PnL: new(big.Int).Set(next), Delta: new(big.Int).Set(delta), Reason: reason}, nil
}

// Deposit adds LP principal
func (l *Ledger) Deposit(lp common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	if !FitsInt256(amount) {
		return domain.ErrAmountTooLargeForInt
	}
	journal.SetMap(l.journal, l.principal, lp, new(big.Int).Add(l.Principal(lp), amount))
	journal.Set(l.journal, &l.totalPrincipal, new(big.Int).Add(l.totalPrincipal, amount))
	return nil
}

// Withdraw removes LP principal. Principal that is fronted stays locked.
func (l *Ledger) Withdraw(lp common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	current := l.Principal(lp)
	if current.Cmp(amount) < 0 {
		return domain.ErrWithdrawExceedsPrincipal
	}
	remaining := new(big.Int).Sub(l.totalPrincipal, amount)
	if remaining.Cmp(l.fronted) < 0 {
		return domain.ErrInsufficientLpPrincipal
	}
	journal.SetMap(l.journal, l.principal, lp, current.Sub(current, amount))
	journal.Set(l.journal, &l.totalPrincipal, remaining)
	return nil
}

// WithdrawProfit debits realised protocol profit
func (l *Ledger) WithdrawProfit(amount *big.Int) (Update, error) {
	if amount.Sign() <= 0 {
		return Update{}, domain.ErrZeroAmount
	}
	if l.pnl.Cmp(amount) < 0 {
		return Update{}, domain.ErrInsufficientProtocolProfit
	}
	return l.Apply(new(big.Int).Neg(amount), domain.PnlReasonProfitWithdraw)
}

// Front reserves liquidity for a payout: fronted + amount must stay within
// total principal plus positive PnL.
func (l *Ledger) Front(amount *big.Int) error {
	capacity := new(big.Int).Set(l.totalPrincipal)
	if l.pnl.Sign() > 0 {
		capacity.Add(capacity, l.pnl)
	}
	next := new(big.Int).Add(l.fronted, amount)
	if next.Cmp(capacity) > 0 {
		return domain.ErrInsufficientLpPrincipal
	}
	journal.Set(l.journal, &l.fronted, next)
	return nil
}

// Rebalance releases fronted liquidity returned by the controller and reports how much was released
func (l *Ledger) Rebalance(amount *big.Int) *big.Int {
	released := new(big.Int).Set(amount)
	if released.Cmp(l.fronted) > 0 {
		released.Set(l.fronted)
	}
	journal.Set(l.journal, &l.fronted, new(big.Int).Sub(l.fronted, released))
	return new(big.Int).Set(released)
}
