package bytebuf

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/oxsomi/oxc3core/oxerr"
)

// wordBoundsForBit returns the byte offset of the 64-bit little-endian word
// holding bit index bit, failing if that whole word doesn't fit in b.
func (b *Buffer) wordBoundsForBit(bit int) (byteStart int, err error) {
	byteStart = (bit / 64) * 8
	if byteStart < 0 || byteStart+8 > len(b.data) {
		return 0, oxerr.New(oxerr.OutOfBounds, "Buffer.bit", "bit index out of bounds")
	}
	return byteStart, nil
}

// GetBit reads the bit at index i (0 = least-significant bit of byte 0).
func (b *Buffer) GetBit(i int) (bool, error) {
	start, err := b.wordBoundsForBit(i)
	if err != nil {
		return false, err
	}
	word := binary.LittleEndian.Uint64(b.data[start : start+8])
	bs := bitset.From([]uint64{word})
	return bs.Test(uint(i % 64)), nil
}

func (b *Buffer) writeBit(i int, set bool) error {
	if b.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "Buffer.setBit", nil)
	}
	start, err := b.wordBoundsForBit(i)
	if err != nil {
		return err
	}
	word := binary.LittleEndian.Uint64(b.data[start : start+8])
	bs := bitset.From([]uint64{word})
	if set {
		bs.Set(uint(i % 64))
	} else {
		bs.Clear(uint(i % 64))
	}
	binary.LittleEndian.PutUint64(b.data[start:start+8], bs.Bytes()[0])
	return nil
}

// SetBit sets the bit at index i to 1.
func (b *Buffer) SetBit(i int) error { return b.writeBit(i, true) }

// ResetBit clears the bit at index i to 0.
func (b *Buffer) ResetBit(i int) error { return b.writeBit(i, false) }

// bitRange fills [start, start+length) with value, splatting whole 64-bit
// words for the fully-aligned middle portion via bitset and falling back to
// per-bit operations for the unaligned head and tail -- mirroring the
// aligned-middle/per-bit-ends strategy the format spec calls for.
func (b *Buffer) bitRange(start, length int, value bool) error {
	if b.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "Buffer.bitRange", nil)
	}
	if length == 0 {
		return nil
	}
	end := start + length

	alignedStart := (start + 63) &^ 63
	if alignedStart > end {
		alignedStart = end
	}
	alignedEnd := end &^ 63

	for i := start; i < alignedStart && i < end; i++ {
		if err := b.writeBit(i, value); err != nil {
			return err
		}
	}

	if alignedEnd > alignedStart {
		nWords := (alignedEnd - alignedStart) / 64
		bs := bitset.New(uint(nWords * 64))
		if value {
			bs = bs.Complement()
		}
		words := bs.Bytes()
		byteStart := (alignedStart / 64) * 8
		if byteStart+len(words)*8 > len(b.data) {
			return oxerr.New(oxerr.OutOfBounds, "Buffer.bitRange", "range exceeds buffer length")
		}
		for wi, w := range words {
			binary.LittleEndian.PutUint64(b.data[byteStart+wi*8:byteStart+wi*8+8], w)
		}
	}

	for i := alignedEnd; i < end; i++ {
		if err := b.writeBit(i, value); err != nil {
			return err
		}
	}

	return nil
}

// SetBitRange sets every bit in [start, start+length) to 1.
func (b *Buffer) SetBitRange(start, length int) error { return b.bitRange(start, length, true) }

// UnsetBitRange clears every bit in [start, start+length) to 0.
func (b *Buffer) UnsetBitRange(start, length int) error { return b.bitRange(start, length, false) }
