package pnl

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is a serializable copy of the ledger
type State struct {
	PnL       *big.Int                    `json:"pnl"`
	Principal map[common.Address]*big.Int `json:"principal"`
	Fronted   *big.Int                    `json:"fronted"`
}

// Export returns a deep copy of the ledger
func (l *Ledger) Export() State {
	s := State{
		PnL:       new(big.Int).Set(l.pnl),
		Principal: make(map[common.Address]*big.Int, len(l.principal)),
		Fronted:   new(big.Int).Set(l.fronted),
	}
	for lp, p := range l.principal {
		s.Principal[lp] = new(big.Int).Set(p)
	}
	return s
}

// Import replaces the ledger with s; total principal is recomputed. It bypasses the
// journal, so it must not run inside an operation.
func (l *Ledger) Import(s State) error {
	pnl := valueOrZero(s.PnL)
	if !FitsInt256(pnl) {
		return fmt.Errorf("pnl %s does not fit int256", pnl)
	}
	fronted := valueOrZero(s.Fronted)
	if fronted.Sign() < 0 {
		return fmt.Errorf("negative fronted liquidity %s", fronted)
	}

	principal := make(map[common.Address]*big.Int, len(s.Principal))
	total := new(big.Int)
	for lp, p := range s.Principal {
		if p == nil || p.Sign() < 0 {
			return fmt.Errorf("invalid principal of %s", lp.Hex())
		}
		principal[lp] = new(big.Int).Set(p)
		total.Add(total, p)
	}

	l.pnl = pnl
	l.principal = principal
	l.totalPrincipal = total
	l.fronted = fronted
	return nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
