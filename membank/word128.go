package membank

import "github.com/holiman/uint256"

// Word128 is a 128-bit scratchpad word, the bank array's unit of storage.
// Arithmetic (used by the vector unit's multiply-accumulate) wraps modulo
// 2^128; it is built on top of uint256.Int — whose four uint64 limbs are
// addressable directly — rather than hand-rolled carry bookkeeping.
type Word128 struct {
	Lo, Hi uint64
}

var mask128 = func() uint256.Int {
	var m uint256.Int
	m.SetAllOne()
	m.Rsh(&m, 128)
	return m
}()

func (w Word128) asInt() uint256.Int {
	return uint256.Int{w.Lo, w.Hi, 0, 0}
}

func fromInt(z *uint256.Int) Word128 {
	z.And(z, &mask128)
	return Word128{Lo: z[0], Hi: z[1]}
}

// Add returns (w + o) mod 2^128.
func (w Word128) Add(o Word128) Word128 {
	a, b := w.asInt(), o.asInt()
	var z uint256.Int
	z.Add(&a, &b)
	return fromInt(&z)
}

// MulAcc returns (w + a*b) mod 2^128, the vector unit's MAC step; a and b
// are plain 64-bit operand words.
func (w Word128) MulAcc(a, b uint64) Word128 {
	x, y := uint256.NewInt(a), uint256.NewInt(b)
	var prod uint256.Int
	prod.Mul(x, y)
	acc := w.asInt()
	var z uint256.Int
	z.Add(&acc, &prod)
	return fromInt(&z)
}

// Bytes16 packs w little-endian into 16 bytes, matching the wire and bank
// storage layout.
func (w Word128) Bytes16() [16]byte {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(w.Lo >> (8 * i))
		b[8+i] = byte(w.Hi >> (8 * i))
	}
	return b
}

// Word128FromBytes16 unpacks a little-endian 16-byte word.
func Word128FromBytes16(b [16]byte) Word128 {
	var w Word128
	for i := 0; i < 8; i++ {
		w.Lo |= uint64(b[i]) << (8 * i)
		w.Hi |= uint64(b[8+i]) << (8 * i)
	}
	return w
}

// IsZero reports whether w is the zero word.
func (w Word128) IsZero() bool { return w.Lo == 0 && w.Hi == 0 }
