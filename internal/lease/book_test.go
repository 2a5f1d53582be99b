package lease_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/lease"
)

var salt = common.HexToHash("0x5a17")

func TestBook_CreateAssignsNumbers(t *testing.T) {
	b := lease.New(nil)

	first := b.Create(&domain.Lease{ReceiverSalt: salt})
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(1), first.LeaseNumber)
	assert.Equal(t, domain.LeaseStatusCreated, first.Status)
	assert.Equal(t, "0", first.BackedRaw.String())

	other := b.Create(&domain.Lease{ReceiverSalt: common.HexToHash("0x01")})
	assert.Equal(t, uint64(2), other.ID)
	assert.Equal(t, uint64(1), other.LeaseNumber)

	b.SetStatus(first, domain.LeaseStatusClosed)
	second := b.Create(&domain.Lease{ReceiverSalt: salt})
	assert.Equal(t, uint64(3), second.ID)
	assert.Equal(t, uint64(2), second.LeaseNumber)

	latest, ok := b.Latest(salt)
	require.True(t, ok)
	assert.Same(t, second, latest)
	assert.Len(t, b.BySalt(salt), 2)
	assert.Equal(t, uint64(3), b.Count())
}

func TestBook_Active(t *testing.T) {
	b := lease.New(nil)
	l := b.Create(&domain.Lease{ReceiverSalt: salt})

	got, ok := b.Active(salt)
	require.True(t, ok)
	assert.Same(t, l, got)

	b.SetStatus(l, domain.LeaseStatusNuked)
	_, ok = b.Active(salt)
	assert.False(t, ok)

	_, ok = b.Active(common.HexToHash("0xdead"))
	assert.False(t, ok)
}

func TestBook_Accounting(t *testing.T) {
	b := lease.New(nil)
	l := b.Create(&domain.Lease{ReceiverSalt: salt})

	b.Recognize(l, big.NewInt(1_000))
	assert.True(t, lease.Balanced(l))
	b.Back(l, big.NewInt(600))
	assert.True(t, lease.Balanced(l))
	b.Settle(l, big.NewInt(600))
	assert.True(t, lease.Balanced(l))

	assert.Equal(t, "1000", l.RecognizedRaw.String())
	assert.Equal(t, "0", l.BackedRaw.String())
	assert.Equal(t, "400", l.UnbackedRaw.String())
	assert.Equal(t, "600", l.SettledRaw.String())
}

func TestBook_Revert(t *testing.T) {
	j := journal.New()
	b := lease.New(j)
	l := b.Create(&domain.Lease{ReceiverSalt: salt})
	j.Reset()

	snap := j.Snapshot()
	b.Recognize(l, big.NewInt(5))
	b.ConsumeNonce(l)
	assert.Equal(t, uint64(0), b.NextClaimSeq(l))
	b.Create(&domain.Lease{ReceiverSalt: salt})
	j.RevertToSnapshot(snap)

	assert.Equal(t, "0", l.RecognizedRaw.String())
	assert.Equal(t, uint64(0), l.Nonce)
	assert.Equal(t, uint64(0), l.ClaimCount)
	assert.Len(t, b.BySalt(salt), 1)
	assert.Equal(t, uint64(1), b.Count())
	_, ok := b.Get(2)
	assert.False(t, ok)
}
