// Package oisb implements the oiSB shader-buffer-layout container: a
// catalogue of structs and variables describing how a GPU buffer's bytes map
// onto named, typed fields, with std140-like or tightly-packed alignment
// rules and a combine() operation that merges two independently-reflected
// layouts (e.g. one from SPIR-V, one from DXIL) into one.
package oisb

import "github.com/oxsomi/oxc3core/oxerr"

// Vector is the component count of a scalar/vector type, encoded as count-1.
type Vector uint8

const (
	VectorX1 Vector = iota
	VectorX2
	VectorX3
	VectorX4
)

// Primitive is the scalar kind of a type's components.
type Primitive uint8

const (
	PrimitiveFloat Primitive = iota
	PrimitiveInt
	PrimitiveUInt
	primitiveInvalid
)

// Stride is the byte width of a single component, encoded as log2(bytes).
type Stride uint8

const (
	StrideX8 Stride = iota
	StrideX16
	StrideX32
	StrideX64
)

// Matrix is the row count of a matrix type (or 0 for a non-matrix), encoded
// as rows-1.
type Matrix uint8

const (
	MatrixNone Matrix = iota
	MatrixX2
	MatrixX3
	MatrixX4
)

// Type packs vector/primitive/stride/matrix into a single byte: bits 0-1
// vector, 2-3 primitive, 4-5 stride, 6-7 matrix.
type Type uint8

// MakeType builds a packed Type from its components.
func MakeType(vec Vector, prim Primitive, stride Stride, mat Matrix) Type {
	return Type(vec&3) | Type(prim&3)<<2 | Type(stride&3)<<4 | Type(mat&3)<<6
}

func (t Type) Vector() Vector     { return Vector(t & 3) }
func (t Type) Primitive() Primitive { return Primitive((t >> 2) & 3) }
func (t Type) Stride() Stride     { return Stride((t >> 4) & 3) }
func (t Type) Matrix() Matrix     { return Matrix((t >> 6) & 3) }

// Valid reports whether t is a type SBFile will accept: a defined
// primitive, and not an 8-bit-stride float (there's no F8 type).
func (t Type) Valid() bool {
	if t.Primitive() == primitiveInvalid {
		return false
	}
	if t.Primitive() == PrimitiveFloat && t.Stride() == StrideX8 {
		return false
	}
	return true
}

// Size returns the byte size of t: tightly packed (primitive size * width *
// height) when isPacked, or std140-like (each row padded to a 16-byte
// stride, last row unpadded) otherwise.
func (t Type) Size(isPacked bool) uint32 {
	primitiveSize := uint32(1) << uint(t.Stride())
	w := uint32(t.Vector()) + 1
	h := uint32(t.Matrix()) + 1

	if isPacked {
		return primitiveSize * w * h
	}

	realStride := w * primitiveSize
	rowStride := (realStride + 15) &^ 15
	return rowStride*(h-1) + realStride
}

// VarFlag marks how a variable is used in the originating shader reflection.
type VarFlag uint8

const (
	VarFlagNone VarFlag = 0
	// VarFlagUsedInVertex / VarFlagUsedInFragment record which stage(s)
	// referenced the variable, so Combine can OR them together when
	// merging independently-reflected SPIR-V and DXIL layouts.
	VarFlagUsedInVertex   VarFlag = 1 << 0
	VarFlagUsedInFragment VarFlag = 1 << 1
	VarFlagUsedInCompute  VarFlag = 1 << 2

	varFlagReservedMask VarFlag = 0xF8
)

func (f VarFlag) valid() bool { return f&varFlagReservedMask == 0 }

// Struct is one entry of a file's struct catalogue: its stride in bytes.
type Struct struct {
	Stride uint32
}

const noParent = 0xFFFF
const noStruct = 0xFFFF
const noArray = 0xFFFF

// Var is one variable: either a typed leaf (StructID == noStruct) or a
// nested struct member (StructID valid, Type == 0).
type Var struct {
	StructID   uint16
	ArrayIndex uint16
	Offset     uint32
	Type       Type
	Flags      VarFlag
	ParentID   uint16
}

// IsStruct reports whether the variable is a nested struct rather than a
// scalar/vector/matrix leaf.
func (v Var) IsStruct() bool { return v.StructID != noStruct }

var (
	errOutOfBounds = func(op, msg string) error { return oxerr.New(oxerr.OutOfBounds, op, msg) }
	errInvalidArg  = func(op, msg string) error { return oxerr.New(oxerr.InvalidParameter, op, msg) }
	errInvalidState = func(op, msg string) error { return oxerr.New(oxerr.InvalidState, op, msg) }
)
