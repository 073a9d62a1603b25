package oisb

// Combine merges two independently-reflected layouts of the same logical
// buffer (e.g. one reflected from SPIR-V, one from DXIL) into one, OR-ing
// variable usage flags together and unflattening 1D arrays against their
// multi-dimensional counterpart where needed. a and b must describe the
// same buffer: same size, same non-UTF8 flags, same struct/var counts.
func Combine(a, b *File) (*File, error) {
	const op = "Combine"

	if a.BufferSize != b.BufferSize || (a.Flags&^IsUTF8) != (b.Flags&^IsUTF8) {
		return nil, errInvalidState(op, "bufferSize or flags mismatch")
	}
	if len(a.Vars) != len(b.Vars) || len(a.Structs) != len(b.Structs) {
		return nil, errInvalidState(op, "unrelated buffer layouts can't be merged")
	}

	combined := NewFile(a.BufferSize, a.Flags|b.Flags)
	combined.Structs = append([]Struct(nil), a.Structs...)
	combined.StructNames = append([]string(nil), a.StructNames...)
	combined.Vars = append([]Var(nil), a.Vars...)
	combined.VarNames = append([]string(nil), a.VarNames...)
	combined.Arrays = make([][]uint32, len(a.Arrays))
	for i, arr := range a.Arrays {
		combined.Arrays[i] = append([]uint32(nil), arr...)
	}

	for i := range b.Structs {
		found := false
		for j := range combined.Structs {
			if combined.Structs[j].Stride == b.Structs[i].Stride && combined.StructNames[j] == b.StructNames[i] {
				found = true
				break
			}
		}
		if !found {
			return nil, errInvalidState(op, "unrelated buffer layouts can't be combined")
		}
	}

	remapVars := make([]uint16, len(b.Vars))

	for i := range b.Vars {
		name := b.VarNames[i]
		v := b.Vars[i]

		parent := uint16(noParent)
		if v.ParentID != noParent {
			parent = remapVars[v.ParentID]
		}

		newID := uint16(noParent)
		for j := range a.Vars {
			if a.Vars[j].ParentID == parent && a.VarNames[j] == name {
				newID = uint16(j)
				break
			}
		}
		if newID == noParent {
			return nil, errInvalidState(op, "variable not found, mismatching buffer layout")
		}

		original := a.Vars[newID]
		if v.Offset != original.Offset || v.Type != original.Type {
			return nil, errInvalidState(op, "variable has mismatching type or offset")
		}
		if (v.ArrayIndex != noArray) != (original.ArrayIndex != noArray) {
			return nil, errInvalidState(op, "variable has same name, one with array, one without")
		}
		if v.IsStruct() != original.IsStruct() {
			return nil, errInvalidState(op, "variable has mismatching variable type")
		}
		if v.IsStruct() {
			if b.Structs[v.StructID].Stride != a.Structs[original.StructID].Stride ||
				b.StructNames[v.StructID] != a.StructNames[original.StructID] {
				return nil, errInvalidState(op, "variable has mismatching struct name or stride")
			}
		}

		remapVars[i] = newID
		combined.Vars[newID].Flags |= v.Flags

		if v.ArrayIndex != noArray {
			if err := reconcileArrays(combined, a.Arrays[original.ArrayIndex], b.Arrays[v.ArrayIndex], newID); err != nil {
				return nil, err
			}
		}
	}

	return combined, nil
}

// reconcileArrays applies the original's array-merge rule: if either side
// is a flat 1D array, require the flattened element counts to agree and
// (when b's is multi-dimensional) repoint the combined variable at b's
// unflattened shape; otherwise require both shapes to match exactly.
func reconcileArrays(combined *File, arrayA, arrayB []uint32, varID uint16) error {
	const op = "Combine"

	if len(arrayA) == 1 || len(arrayB) == 1 {
		dimsA := flatSize(arrayA)
		dimsB := flatSize(arrayB)
		if dimsA != dimsB {
			return errInvalidState(op, "variable has mismatching array flattened size")
		}
		if len(arrayB) != 1 {
			if len(combined.Arrays)+1 >= 0xFFFE {
				return errInvalidState(op, "combined arrays limited to 65533")
			}
			combined.Vars[varID].ArrayIndex = uint16(len(combined.Arrays))
			combined.Arrays = append(combined.Arrays, append([]uint32(nil), arrayB...))
		}
		return nil
	}

	if len(arrayA) != len(arrayB) {
		return errInvalidState(op, "variable has mismatching array dimensions")
	}
	for i := range arrayA {
		if arrayA[i] != arrayB[i] {
			return errInvalidState(op, "variable has mismatching array count")
		}
	}
	return nil
}

func flatSize(array []uint32) uint64 {
	if len(array) == 0 {
		return 0
	}
	total := uint64(array[0])
	for _, v := range array[1:] {
		total *= uint64(v)
	}
	return total
}
