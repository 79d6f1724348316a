package membank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBankReadBeyondDepthIsZero(t *testing.T) {
	b := NewBank(4)
	b.Write(0, []Word128{{Lo: 1}, {Lo: 2}, {Lo: 3}, {Lo: 4}})
	got := b.Read(2, 4) // reads addrs 2,3,4,5 — 4 and 5 are beyond depth
	require.Equal(t, []Word128{{Lo: 3}, {Lo: 4}, {}, {}}, got)
}

func TestBankWriteBeyondDepthDropped(t *testing.T) {
	b := NewBank(2)
	b.Write(0, []Word128{{Lo: 1}, {Lo: 2}, {Lo: 3}})
	require.Equal(t, []Word128{{Lo: 1}, {Lo: 2}}, b.Read(0, 2))
}

func TestArrayReadWriteOutOfRangePbank(t *testing.T) {
	a := NewArray(2, 4)
	require.Equal(t, make([]Word128, 4), a.Read(5, 0, 4))
	a.Write(5, 0, []Word128{{Lo: 9}}) // no-op, must not panic
	a.Write(0, 1, []Word128{{Lo: 7}})
	require.Equal(t, Word128{Lo: 7}, a.Read(0, 1, 1)[0])
}

func TestArrayDepthZeroWhenEmpty(t *testing.T) {
	a := NewArray(0, 8)
	require.Equal(t, 0, a.Depth())
}
