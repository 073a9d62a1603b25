package oisb

import (
	uuid "github.com/satori/go.uuid"

	"github.com/oxsomi/oxc3core/bytebuf"
)

// SettingsFlags are the file-level flags stored alongside BufferSize.
type SettingsFlags uint8

const (
	IsTightlyPacked SettingsFlags = 1 << 0
	IsUTF8          SettingsFlags = 1 << 1
	// HasCatalogueID marks that CatalogueID is present on the wire; set by
	// SetCatalogueID, never by the caller directly.
	HasCatalogueID SettingsFlags = 1 << 2
)

// File is a buffer layout: a catalogue of structs and variables describing
// how BufferSize bytes of a GPU buffer map onto named fields.
type File struct {
	BufferSize uint32
	Flags      SettingsFlags

	Structs     []Struct
	StructNames []string

	Vars     []Var
	VarNames []string

	Arrays []([]uint32)

	Hash uint64

	// CatalogueID optionally identifies this layout across independently
	// generated reflections of the same shader (e.g. one per build), so a
	// pipeline cache can tell "same catalogue, different hash" (a variable
	// was added) apart from "unrelated catalogue" without comparing every
	// struct and variable.
	CatalogueID *uuid.UUID
}

// SetCatalogueID stamps id onto f and folds it into the running hash at the
// point of the call, so the resulting hash depends on where the call falls
// relative to AddStruct/AddVariable* calls.
func (f *File) SetCatalogueID(id uuid.UUID) {
	f.CatalogueID = &id
	f.Flags |= HasCatalogueID
	f.Hash = bytebuf.FNV1a64Seeded(f.Hash, id.Bytes())
}

// NewFile starts an empty layout of the given size, with hash initialized to
// the FNV-1a offset basis the way a fresh SBFile starts accumulating.
func NewFile(bufferSize uint32, flags SettingsFlags) *File {
	return &File{BufferSize: bufferSize, Flags: flags, Hash: bytebuf.FNV1a64Init()}
}

func (f *File) isTightlyPacked() bool { return f.Flags&IsTightlyPacked != 0 }

func markUTF8IfNeeded(flags *SettingsFlags, name string) {
	for _, r := range name {
		if r >= 0x80 {
			*flags |= IsUTF8
			return
		}
	}
}

// AddStruct registers a named struct type with the given stride, returning
// its id for use as a parent/member type elsewhere in the file.
func (f *File) AddStruct(name string, stride uint32) (uint16, error) {
	if stride == 0 {
		return 0, errInvalidArg("File.AddStruct", "stride is required")
	}
	if len(name) >= 1<<32-1 {
		return 0, errInvalidArg("File.AddStruct", "name must be less than 4GiB")
	}
	if len(f.Structs) >= 0xFFFE {
		return 0, errOutOfBounds("File.AddStruct", "structs limited to 65534")
	}

	f.Hash = bytebuf.FNV1a64Seeded(f.Hash, encodeU64(uint64(stride)|uint64(len(name))<<32))
	f.Hash = bytebuf.FNV1a64Seeded(f.Hash, []byte(name))

	f.Structs = append(f.Structs, Struct{Stride: stride})
	f.StructNames = append(f.StructNames, name)
	markUTF8IfNeeded(&f.Flags, name)

	return uint16(len(f.Structs) - 1), nil
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func encodeU32(v uint32) []byte {
	b := make([]byte, 4)
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func applyVarHash(hash uint64, v Var, name string) uint64 {
	structIDU64 := uint64(v.StructID) | uint64(v.ArrayIndex)<<16 | uint64(v.Offset)<<32
	hash = bytebuf.FNV1a64Seeded(hash, encodeU64(structIDU64))

	packed := uint32(v.Type) | uint32(v.Flags)<<8 | uint32(v.ParentID)<<16
	hash = bytebuf.FNV1a64Seeded(hash, encodeU64(uint64(packed)|uint64(len(name))<<32))
	hash = bytebuf.FNV1a64Seeded(hash, []byte(name))
	return hash
}

func applyArrayHash(hash uint64, array []uint32) uint64 {
	hash = bytebuf.FNV1a64Seeded(hash, encodeU64(uint64(len(array))))
	for _, v := range array {
		hash = bytebuf.FNV1a64Seeded(hash, encodeU32(v))
	}
	return hash
}

// checkArrays validates a proposed array-dimensions list and returns the
// total element multiplier it contributes to a variable's size.
func checkArrays(op string, arrays []uint32) (uint64, error) {
	if arrays != nil && len(arrays) == 0 {
		return 0, errInvalidState(op, "arrays should be nil if empty")
	}
	if len(arrays) > 32 {
		return 0, errOutOfBounds(op, "arrays limited to 32 dimensions")
	}
	total := uint64(1)
	for _, a := range arrays {
		if a == 0 {
			return 0, errInvalidArg(op, "array dimension is 0")
		}
		total *= uint64(a)
		if total > 0xFFFFFFFF {
			return 0, errOutOfBounds(op, "array size exceeds 2^32 bytes")
		}
	}
	return total, nil
}

// findOrAddArray returns the index of arrays within f.Arrays, appending a
// copy of it if it isn't already present (matching the reuseArray dedup the
// original performs before growing the array list).
func (f *File) findOrAddArray(arrays []uint32) uint16 {
	if arrays == nil {
		return noArray
	}
	for i, existing := range f.Arrays {
		if equalU32(existing, arrays) {
			return uint16(i)
		}
	}
	f.Hash = applyArrayHash(f.Hash, arrays)
	cp := append([]uint32(nil), arrays...)
	f.Arrays = append(f.Arrays, cp)
	return uint16(len(f.Arrays) - 1)
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *File) parentAllowsMember(op string, parentID uint16) error {
	if parentID == noParent {
		return nil
	}
	if int(parentID) >= len(f.Vars) {
		return errOutOfBounds(op, "parentId out of bounds")
	}
	if !f.Vars[parentID].IsStruct() {
		return errInvalidState(op, "parentId does not refer to a struct")
	}
	return nil
}

func (f *File) memberNameTaken(parentID uint16, name string) bool {
	for i, v := range f.Vars {
		if v.ParentID == parentID && f.VarNames[i] == name {
			return true
		}
	}
	return false
}

// AddVariableAsType adds a scalar/vector/matrix leaf variable at offset,
// nested under parentID (noParent == top level), validating alignment
// against the file's packing mode and array bounds against BufferSize.
func (f *File) AddVariableAsType(name string, offset uint32, parentID uint16, typ Type, flags VarFlag, arrays []uint32) error {
	const op = "File.AddVariableAsType"

	if !flags.valid() {
		return errInvalidArg(op, "flags is invalid")
	}
	if !typ.Valid() {
		return errInvalidArg(op, "type is invalid")
	}
	if len(f.Vars) >= 0xFFFE {
		return errOutOfBounds(op, "vars limited to 65534")
	}
	if arrays != nil && len(f.Arrays) >= 0xFFFE {
		return errOutOfBounds(op, "arrays limited to 65534")
	}

	isPacked := f.isTightlyPacked()
	size := typ.Size(isPacked)
	typeSize := uint32(1) << uint(typ.Stride())

	if !isPacked && ((offset+size-1)>>4) != (offset>>4) && (offset&15) != 0 {
		return errInvalidArg(op, "offset spans a 16-byte boundary while not tightly packed")
	}
	if isPacked && offset&(typeSize-1) != 0 {
		return errInvalidArg(op, "offset does not follow required type alignment")
	}

	arrayMul, err := checkArrays(op, arrays)
	if err != nil {
		return err
	}

	totalSize := uint64(size)
	if !isPacked {
		totalSize = uint64((size + 15) &^ 15)
	}
	totalSize *= arrayMul
	if totalSize > 0xFFFFFFFF {
		return errOutOfBounds(op, "array size exceeds 2^32 bytes")
	}
	if !isPacked && size&15 != 0 {
		totalSize -= 16 - uint64(size&15)
	}
	size = uint32(totalSize)

	if err := f.checkPlacement(op, offset, size, parentID); err != nil {
		return err
	}
	if f.memberNameTaken(parentID, name) {
		return errInvalidState(op, "parent already contains a member with this name")
	}

	arrayID := f.findOrAddArray(arrays)

	v := Var{StructID: noStruct, ArrayIndex: arrayID, Offset: offset, Type: typ, Flags: flags, ParentID: parentID}
	f.Hash = applyVarHash(f.Hash, v, name)

	f.Vars = append(f.Vars, v)
	f.VarNames = append(f.VarNames, name)
	markUTF8IfNeeded(&f.Flags, name)

	return nil
}

// AddVariableAsStruct adds a nested-struct variable: an instance of a
// previously-registered struct type embedded at offset.
func (f *File) AddVariableAsStruct(name string, offset uint32, parentID, structID uint16, flags VarFlag, arrays []uint32) error {
	const op = "File.AddVariableAsStruct"

	if !flags.valid() {
		return errInvalidArg(op, "flags is invalid")
	}
	if int(structID) >= len(f.Structs) {
		return errOutOfBounds(op, "structId out of bounds")
	}
	if len(f.Vars) >= 0xFFFE {
		return errOutOfBounds(op, "vars limited to 65534")
	}
	if arrays != nil && len(f.Arrays) >= 0xFFFE {
		return errOutOfBounds(op, "arrays limited to 65534")
	}

	isPacked := f.isTightlyPacked()
	if !isPacked && offset&15 != 0 {
		return errInvalidArg(op, "offset needs 16-byte alignment")
	}

	arrayMul, err := checkArrays(op, arrays)
	if err != nil {
		return err
	}

	size := uint64(f.Structs[structID].Stride) * arrayMul
	if size > 0xFFFFFFFF {
		return errOutOfBounds(op, "array size exceeds 2^32 bytes")
	}

	if err := f.checkPlacement(op, offset, uint32(size), parentID); err != nil {
		return err
	}
	if f.memberNameTaken(parentID, name) {
		return errInvalidState(op, "parent already contains a member with this name")
	}

	arrayID := f.findOrAddArray(arrays)

	v := Var{StructID: structID, ArrayIndex: arrayID, Offset: offset, Type: 0, Flags: flags, ParentID: parentID}
	f.Hash = applyVarHash(f.Hash, v, name)

	f.Vars = append(f.Vars, v)
	f.VarNames = append(f.VarNames, name)
	markUTF8IfNeeded(&f.Flags, name)

	return nil
}

func (f *File) checkPlacement(op string, offset, size uint32, parentID uint16) error {
	if parentID == noParent {
		if uint64(offset)+uint64(size) > uint64(f.BufferSize) {
			return errOutOfBounds(op, "offset + size is out of bounds")
		}
		return nil
	}
	return f.parentAllowsMember(op, parentID)
}
