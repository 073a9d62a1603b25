package oisb

import (
	"encoding/binary"
	"fmt"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/oxsomi/oxc3core/oidl"
	"github.com/oxsomi/oxc3core/oxerr"
)

// Magic is the little-endian "oiSB" file signature.
const Magic uint32 = 0x4253696F

// ToBytes serializes f: a fixed header, the struct/var/array tables, and an
// embedded oiDL holding struct and variable names (magic hidden, since the
// oiSB header already identifies the file).
func (f *File) ToBytes() ([]byte, error) {
	var out []byte
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = binary.LittleEndian.AppendUint32(out, f.BufferSize)
	out = append(out, byte(f.Flags))

	if f.Flags&HasCatalogueID != 0 {
		if f.CatalogueID == nil {
			return nil, oxerr.New(oxerr.InvalidState, "File.ToBytes", "HasCatalogueID set without a CatalogueID")
		}
		out = append(out, f.CatalogueID.Bytes()...)
	}

	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Structs)))
	for _, s := range f.Structs {
		out = binary.LittleEndian.AppendUint32(out, s.Stride)
	}

	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Vars)))
	for _, v := range f.Vars {
		out = binary.LittleEndian.AppendUint16(out, v.StructID)
		out = binary.LittleEndian.AppendUint16(out, v.ArrayIndex)
		out = binary.LittleEndian.AppendUint32(out, v.Offset)
		out = append(out, byte(v.Type))
		out = append(out, byte(v.Flags))
		out = binary.LittleEndian.AppendUint16(out, v.ParentID)
	}

	out = binary.LittleEndian.AppendUint16(out, uint16(len(f.Arrays)))
	for _, arr := range f.Arrays {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(arr)))
		for _, dim := range arr {
			out = binary.LittleEndian.AppendUint32(out, dim)
		}
	}

	names := &oidl.File{HideMagic: true}
	for _, n := range f.StructNames {
		names.AddString(n)
	}
	for _, n := range f.VarNames {
		names.AddString(n)
	}
	nameBytes, err := names.ToBytes(nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, "File.ToBytes", err)
	}
	out = append(out, nameBytes...)

	out = binary.LittleEndian.AppendUint64(out, f.Hash)

	return out, nil
}

// FromBytes parses an oiSB file previously produced by ToBytes.
func FromBytes(data []byte) (*File, error) {
	const op = "FromBytes"

	if len(data) < 4 || binary.LittleEndian.Uint32(data) != Magic {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "bad magic number")
	}
	r := data[4:]

	if len(r) < 4+1 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated header")
	}
	f := &File{}
	f.BufferSize = binary.LittleEndian.Uint32(r)
	r = r[4:]
	f.Flags = SettingsFlags(r[0])
	r = r[1:]

	if f.Flags&HasCatalogueID != 0 {
		if len(r) < 16 {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated catalogue id")
		}
		id, err := uuid.FromBytes(r[:16])
		if err != nil {
			return nil, oxerr.Wrap(oxerr.InvalidParameter, op, err)
		}
		f.CatalogueID = &id
		r = r[16:]
	}

	if len(r) < 2 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated struct count")
	}
	structCount := int(binary.LittleEndian.Uint16(r))
	r = r[2:]
	if len(r) < structCount*4 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated structs")
	}
	f.Structs = make([]Struct, structCount)
	for i := range f.Structs {
		f.Structs[i].Stride = binary.LittleEndian.Uint32(r)
		r = r[4:]
	}

	if len(r) < 2 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated var count")
	}
	varCount := int(binary.LittleEndian.Uint16(r))
	r = r[2:]
	const varSize = 2 + 2 + 4 + 1 + 1 + 2
	if len(r) < varCount*varSize {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated vars")
	}
	f.Vars = make([]Var, varCount)
	for i := range f.Vars {
		v := Var{}
		v.StructID = binary.LittleEndian.Uint16(r)
		v.ArrayIndex = binary.LittleEndian.Uint16(r[2:])
		v.Offset = binary.LittleEndian.Uint32(r[4:])
		v.Type = Type(r[8])
		v.Flags = VarFlag(r[9])
		v.ParentID = binary.LittleEndian.Uint16(r[10:])
		f.Vars[i] = v
		r = r[varSize:]
	}

	if len(r) < 2 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated array count")
	}
	arrayCount := int(binary.LittleEndian.Uint16(r))
	r = r[2:]
	f.Arrays = make([][]uint32, arrayCount)
	for i := range f.Arrays {
		if len(r) < 2 {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated array dims")
		}
		dims := int(binary.LittleEndian.Uint16(r))
		r = r[2:]
		if len(r) < dims*4 {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated array data")
		}
		arr := make([]uint32, dims)
		for j := range arr {
			arr[j] = binary.LittleEndian.Uint32(r)
			r = r[4:]
		}
		f.Arrays[i] = arr
	}

	names, err := oidl.FromBytes(r, true, nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, op, err)
	}
	if len(names.Entries) != structCount+varCount {
		return nil, oxerr.New(oxerr.InvalidState, op, "name table entry count mismatch")
	}
	for i := 0; i < structCount; i++ {
		f.StructNames = append(f.StructNames, names.EntryString(i))
	}
	for i := 0; i < varCount; i++ {
		f.VarNames = append(f.VarNames, names.EntryString(structCount+i))
	}

	nameBytes, err := names.ToBytes(nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, op, err)
	}
	r = r[len(nameBytes):]

	if len(r) < 8 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated hash")
	}
	f.Hash = binary.LittleEndian.Uint64(r)

	return f, nil
}

// String renders a human-readable dump of the layout, the Go equivalent of
// the diagnostic print the original emits when Combine rejects a mismatched
// pair of files.
func (f *File) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SBFile(bufferSize=%d, flags=%02x, hash=%016x)\n", f.BufferSize, f.Flags, f.Hash)
	if f.CatalogueID != nil {
		fmt.Fprintf(&b, "  catalogue=%s\n", f.CatalogueID.String())
	}
	for i, s := range f.Structs {
		fmt.Fprintf(&b, "  struct %s: stride=%d\n", f.StructNames[i], s.Stride)
	}
	for i, v := range f.Vars {
		name := f.VarNames[i]
		parent := "none"
		if v.ParentID != noParent {
			parent = fmt.Sprintf("%d", v.ParentID)
		}
		if v.IsStruct() {
			fmt.Fprintf(&b, "  var %s: struct=%s offset=%d parent=%s\n", name, f.StructNames[v.StructID], v.Offset, parent)
		} else {
			fmt.Fprintf(&b, "  var %s: type=%02x offset=%d parent=%s\n", name, v.Type, v.Offset, parent)
		}
	}
	return b.String()
}
