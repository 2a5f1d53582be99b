package eventchain_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/eventchain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

func appendN(c *eventchain.Chain, n int) []domain.EventChainEntry {
	out := make([]domain.EventChainEntry, 0, n)
	for i := 0; i < n; i++ {
		sig := crypto.Keccak256Hash([]byte{byte(i)})
		out = append(out, c.Append(sig, []byte{byte(i), 0xaa}, uint64(100+i), uint64(1_700_000_000+i)))
	}
	return out
}

func TestGenesisTip(t *testing.T) {
	assert.Equal(t, crypto.Keccak256Hash([]byte("UntronV3.genesis")), eventchain.GenesisTip("UntronV3"))

	c := eventchain.New("UntronV3", nil)
	seq, tip := c.Head()
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, eventchain.GenesisTip("UntronV3"), tip)
}

func TestAppend_Continuity(t *testing.T) {
	c := eventchain.New("UntronV3", nil)
	entries := appendN(c, 5)

	assert.Equal(t, c.Genesis(), entries[0].PrevTip)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.True(t, eventchain.Verify(e))
		if i > 0 {
			assert.Equal(t, entries[i-1].NewTip, e.PrevTip)
		}
	}
	assert.Equal(t, uint64(5), c.CurrentSeq())
	assert.Equal(t, entries[4].NewTip, c.CurrentTip())
}

func TestComputeTip_Layout(t *testing.T) {
	prev := common.HexToHash("0x01")
	sig := common.HexToHash("0x02")
	payload := []byte{0x03, 0x04}

	want := crypto.Keccak256Hash(
		prev.Bytes(),
		common.BigToHash(common.Big1).Bytes(),
		common.LeftPadBytes([]byte{0x0a}, 32),
		common.LeftPadBytes([]byte{0x0b}, 32),
		sig.Bytes(),
		payload,
	)
	assert.Equal(t, want, eventchain.ComputeTip(prev, 1, 10, 11, sig, payload))
}

func TestRange(t *testing.T) {
	c := eventchain.New("UntronV3", nil)
	entries := appendN(c, 4)

	got, err := c.Range(2, 3)
	require.NoError(t, err)
	assert.Equal(t, entries[1:3], got)

	got, err = c.Range(3, 100)
	require.NoError(t, err)
	assert.Equal(t, entries[2:], got)

	got, err = c.Range(10, 20)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.Range(0, 2)
	assert.ErrorIs(t, err, eventchain.ErrInvalidRange)
	_, err = c.Range(3, 2)
	assert.ErrorIs(t, err, eventchain.ErrInvalidRange)
}

func TestAppend_RevertedWithJournal(t *testing.T) {
	j := journal.New()
	c := eventchain.New("UntronV3", j)
	appendN(c, 2)
	j.Reset()
	seq, tip := c.Head()

	snap := j.Snapshot()
	appendN(c, 3)
	assert.Equal(t, uint64(5), c.CurrentSeq())

	j.RevertToSnapshot(snap)
	gotSeq, gotTip := c.Head()
	assert.Equal(t, seq, gotSeq)
	assert.Equal(t, tip, gotTip)

	got, err := c.Range(1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// appending after a revert reuses the sequence number
	e := c.Append(common.Hash{}, nil, 1, 1)
	assert.Equal(t, uint64(3), e.Seq)
	assert.Equal(t, tip, e.PrevTip)
}

func TestRestore(t *testing.T) {
	src := eventchain.New("UntronV3", nil)
	entries := appendN(src, 5)

	dst := eventchain.New("UntronV3", nil)
	require.NoError(t, dst.Restore(entries))
	seq, tip := dst.Head()
	assert.Equal(t, uint64(5), seq)
	assert.Equal(t, entries[4].NewTip, tip)

	// a suffix of the chain restores the head without earlier entries
	tail := eventchain.New("UntronV3", nil)
	require.NoError(t, tail.Restore(entries[3:]))
	assert.Equal(t, uint64(5), tail.CurrentSeq())
	_, err := tail.Range(1, 5)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	got, err := tail.Range(4, 5)
	require.NoError(t, err)
	assert.Equal(t, entries[3:], got)

	next := tail.Append(common.Hash{}, nil, 1, 1)
	assert.Equal(t, uint64(6), next.Seq)
	assert.Equal(t, entries[4].NewTip, next.PrevTip)
}

func TestRestore_BrokenLink(t *testing.T) {
	src := eventchain.New("UntronV3", nil)
	entries := appendN(src, 3)

	other := eventchain.New("UntronController", nil)
	assert.ErrorIs(t, other.Restore(entries), eventchain.ErrBrokenLink)

	dst := eventchain.New("UntronV3", nil)
	assert.ErrorIs(t, dst.Restore([]domain.EventChainEntry{entries[0], entries[2]}), eventchain.ErrBrokenLink)

	tampered := append([]domain.EventChainEntry(nil), entries...)
	tampered[1].Payload = []byte("tampered")
	assert.ErrorIs(t, dst.Restore(tampered), eventchain.ErrBrokenLink)

	// failed restores leave the chain untouched
	assert.Equal(t, uint64(0), dst.CurrentSeq())
}
