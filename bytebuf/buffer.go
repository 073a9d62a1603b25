// Package bytebuf implements the tri-state byte buffer described by the oiXX
// format engine: an owned allocation, a mutable borrow, or a const (read-only)
// borrow over the same contiguous backing bytes. Unlike the original C
// implementation, which folded ownership and const-ness into the top two bits
// of a length word, this is expressed as a genuine Go sum type discriminated by
// Kind -- the 2^48 length cap was an implementation detail of that encoding,
// not a requirement, so it is not reproduced here.
package bytebuf

import (
	"github.com/sirupsen/logrus"

	"github.com/oxsomi/oxc3core/oxerr"
)

// Kind discriminates how a Buffer relates to its backing array.
type Kind uint8

const (
	// Owned means the Buffer allocated its backing array and is responsible
	// for letting it go; offsetting an Owned buffer is forbidden because it
	// would orphan the head of the allocation.
	Owned Kind = iota
	// Mut is a mutable reference into memory owned elsewhere.
	Mut
	// Const is a read-only reference into memory owned elsewhere.
	Const
)

// Buffer is a contiguous run of bytes tagged with how it may be used.
type Buffer struct {
	data []byte
	kind Kind
}

// Nil reports whether b is the null buffer (no backing array at all).
func (b Buffer) Nil() bool { return b.data == nil }

// Kind returns the buffer's ownership/mutability tag.
func (b Buffer) Kind() Kind { return b.kind }

// IsConst reports whether writes through b are forbidden.
func (b Buffer) IsConst() bool { return b.kind == Const }

// IsOwned reports whether b owns its backing allocation.
func (b Buffer) IsOwned() bool { return b.kind == Owned }

// Len returns the buffer length in bytes.
func (b Buffer) Len() int { return len(b.data) }

// Bytes exposes the backing slice. Callers must not write through the result
// of a Const buffer; codec internals that need to enforce this call the
// mutating helpers below, which check IsConst themselves.
func (b Buffer) Bytes() []byte { return b.data }

// CreateEmpty allocates a zero-initialised Owned buffer of length n.
func CreateEmpty(n int) Buffer {
	return Buffer{data: make([]byte, n), kind: Owned}
}

// CreateUninitialized allocates an Owned buffer of length n. Go's allocator
// always zeroes memory, so in practice this is identical to CreateEmpty; the
// distinct entry point is kept because callers in the codecs document their
// intent (scratch buffers that are about to be fully overwritten) the same
// way the original createUninitializedBytes callers did.
func CreateUninitialized(n int) Buffer {
	return Buffer{data: make([]byte, n), kind: Owned}
}

// Ref wraps data as a mutable, non-owning reference.
func Ref(data []byte) Buffer {
	return Buffer{data: data, kind: Mut}
}

// RefConst wraps data as a read-only, non-owning reference.
func RefConst(data []byte) Buffer {
	return Buffer{data: data, kind: Const}
}

// Offset advances the buffer's head by n bytes, shrinking its length by n.
// Only valid on Mut/Const references -- advancing an Owned buffer would leak
// the discarded head of its allocation, since Go has no way to "give back"
// the front of a slice to the allocator.
func (b *Buffer) Offset(n int) error {
	if b.kind == Owned {
		return oxerr.New(oxerr.InvalidOperation, "Buffer.Offset", "cannot offset an owned buffer")
	}
	if n < 0 || n > len(b.data) {
		return oxerr.New(oxerr.OutOfBounds, "Buffer.Offset", "offset exceeds buffer length")
	}
	b.data = b.data[n:]
	return nil
}

// Append copies src into the start of b, then advances b's head past it --
// the "cursor" pattern: the caller captures the original head before calling
// if it needs the written region back.
func (b *Buffer) Append(src []byte) error {
	if b.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "Buffer.Append", nil)
	}
	if len(src) > len(b.data) {
		return oxerr.New(oxerr.OutOfBounds, "Buffer.Append", "source larger than remaining buffer")
	}
	copy(b.data, src)
	return b.Offset(len(src))
}

// Consume returns the next n bytes of b and advances its head past them.
func (b *Buffer) Consume(n int) ([]byte, error) {
	if n < 0 || n > len(b.data) {
		return nil, oxerr.New(oxerr.OutOfBounds, "Buffer.Consume", "requested length exceeds remaining buffer")
	}
	out := b.data[:n]
	if err := b.Offset(n); err != nil {
		return nil, err
	}
	return out, nil
}

// Copy performs a forward byte-wise copy of min(len(dst), len(src)) bytes.
// It fails if dst is const.
func Copy(dst, src Buffer) error {
	if dst.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "Copy", nil)
	}
	n := len(dst.data)
	if len(src.data) < n {
		n = len(src.data)
	}
	copy(dst.data, src.data[:n])
	return nil
}

// RevCopy performs the same copy as Copy but iterates back-to-front, which
// matters when dst and src alias an overlapping region and dst starts after
// src (a forward copy would clobber source bytes before they're read).
func RevCopy(dst, src Buffer) error {
	if dst.kind == Const {
		return oxerr.Wrap(oxerr.ConstData, "RevCopy", nil)
	}
	n := len(dst.data)
	if len(src.data) < n {
		n = len(src.data)
	}
	for i := n - 1; i >= 0; i-- {
		dst.data[i] = src.data[i]
	}
	return nil
}

// Eq reports whether a and b hold identical bytes (ignoring Kind).
func Eq(a, b Buffer) bool {
	if len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// CreateSubset returns a reference into buf[offset:offset+length]. Requesting
// a non-const subset of a Const buffer is rejected.
func CreateSubset(buf Buffer, offset, length int, isConst bool) (Buffer, error) {
	if offset < 0 || length < 0 || offset+length > len(buf.data) {
		return Buffer{}, oxerr.New(oxerr.OutOfBounds, "CreateSubset", "subset range out of bounds")
	}
	if buf.kind == Const && !isConst {
		return Buffer{}, oxerr.New(oxerr.InvalidOperation, "CreateSubset", "cannot take a mutable subset of a const buffer")
	}
	sub := buf.data[offset : offset+length]
	if isConst {
		return RefConst(sub), nil
	}
	return Ref(sub), nil
}

func bitwiseLen(a, b Buffer) int {
	n := len(a.data)
	if len(b.data) < n {
		n = len(b.data)
	}
	return n
}

// BitwiseOr ORs the first min(len(a), len(b)) bytes of a and b into a new
// Owned buffer of that length.
func BitwiseOr(a, b Buffer) Buffer {
	n := bitwiseLen(a, b)
	out := CreateUninitialized(n)
	for i := 0; i < n; i++ {
		out.data[i] = a.data[i] | b.data[i]
	}
	return out
}

// BitwiseAnd ANDs the first min(len(a), len(b)) bytes of a and b.
func BitwiseAnd(a, b Buffer) Buffer {
	n := bitwiseLen(a, b)
	out := CreateUninitialized(n)
	for i := 0; i < n; i++ {
		out.data[i] = a.data[i] & b.data[i]
	}
	return out
}

// BitwiseXor XORs the first min(len(a), len(b)) bytes of a and b.
func BitwiseXor(a, b Buffer) Buffer {
	n := bitwiseLen(a, b)
	out := CreateUninitialized(n)
	for i := 0; i < n; i++ {
		out.data[i] = a.data[i] ^ b.data[i]
	}
	return out
}

// BitwiseNot complements every byte of a.
func BitwiseNot(a Buffer) Buffer {
	out := CreateUninitialized(len(a.data))
	for i := range a.data {
		out.data[i] = ^a.data[i]
	}
	return out
}

// logger is the package-level logger, logrus's standard logger unless
// SetLogger replaces it. No function in this package writes to it.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package-level logger.
func SetLogger(l logrus.FieldLogger) { logger = l }
