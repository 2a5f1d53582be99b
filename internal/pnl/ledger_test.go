package pnl_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/pnl"
)

var lp = common.HexToAddress("0x00000000000000000000000000000000000001a1")

func TestLedger_Apply(t *testing.T) {
	l := pnl.New(nil)

	u, err := l.Apply(big.NewInt(10_001), domain.PnlReasonFillFee)
	require.NoError(t, err)
	assert.Equal(t, "10001", u.PnL.String())
	assert.Equal(t, domain.PnlReasonFillFee, u.Reason)

	u, err = l.Apply(big.NewInt(-20_000), domain.PnlReasonNuke)
	require.NoError(t, err)
	assert.Equal(t, "-9999", u.PnL.String())
	assert.Equal(t, "-20000", u.Delta.String())
}

func TestLedger_Apply_Overflow(t *testing.T) {
	l := pnl.New(nil)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))

	_, err := l.Apply(max, domain.PnlReasonFillFee)
	require.NoError(t, err)

	_, err = l.Apply(big.NewInt(1), domain.PnlReasonFillFee)
	assert.ErrorIs(t, err, domain.ErrAmountTooLargeForInt)
	assert.Equal(t, max.String(), l.PnL().String())

	_, err = l.Apply(new(big.Int).Lsh(big.NewInt(1), 256), domain.PnlReasonFillFee)
	assert.ErrorIs(t, err, domain.ErrAmountTooLargeForInt)
}

func TestLedger_Principal(t *testing.T) {
	l := pnl.New(nil)

	assert.ErrorIs(t, l.Deposit(lp, big.NewInt(0)), domain.ErrZeroAmount)
	require.NoError(t, l.Deposit(lp, big.NewInt(1_000)))
	assert.Equal(t, "1000", l.Principal(lp).String())

	assert.ErrorIs(t, l.Withdraw(lp, big.NewInt(1_001)), domain.ErrWithdrawExceedsPrincipal)

	require.NoError(t, l.Front(big.NewInt(800)))
	assert.ErrorIs(t, l.Withdraw(lp, big.NewInt(300)), domain.ErrInsufficientLpPrincipal)
	require.NoError(t, l.Withdraw(lp, big.NewInt(200)))
	assert.Equal(t, "800", l.TotalPrincipal().String())
}

func TestLedger_Front(t *testing.T) {
	l := pnl.New(nil)
	require.NoError(t, l.Deposit(lp, big.NewInt(100)))
	_, err := l.Apply(big.NewInt(50), domain.PnlReasonFillFee)
	require.NoError(t, err)

	require.NoError(t, l.Front(big.NewInt(150)))
	assert.ErrorIs(t, l.Front(big.NewInt(1)), domain.ErrInsufficientLpPrincipal)

	released := l.Rebalance(big.NewInt(1_000))
	assert.Equal(t, "150", released.String())
	assert.Equal(t, "0", l.Fronted().String())
}

func TestLedger_WithdrawProfit(t *testing.T) {
	l := pnl.New(nil)
	_, err := l.WithdrawProfit(big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientProtocolProfit)

	_, err = l.Apply(big.NewInt(10), domain.PnlReasonFillFee)
	require.NoError(t, err)
	u, err := l.WithdrawProfit(big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, "0", u.PnL.String())
	assert.Equal(t, domain.PnlReasonProfitWithdraw, u.Reason)
	assert.Equal(t, "profit_withdraw", u.Reason.String())
}

func TestLedger_Revert(t *testing.T) {
	j := journal.New()
	l := pnl.New(j)
	require.NoError(t, l.Deposit(lp, big.NewInt(100)))
	j.Reset()

	snap := j.Snapshot()
	_, err := l.Apply(big.NewInt(7), domain.PnlReasonFillFee)
	require.NoError(t, err)
	require.NoError(t, l.Front(big.NewInt(50)))
	require.NoError(t, l.Withdraw(lp, big.NewInt(10)))
	j.RevertToSnapshot(snap)

	assert.Equal(t, "0", l.PnL().String())
	assert.Equal(t, "0", l.Fronted().String())
	assert.Equal(t, "100", l.Principal(lp).String())
}
