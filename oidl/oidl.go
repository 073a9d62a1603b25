// Package oidl implements the oiDL container: an ordered list of either
// binary blobs or strings (ASCII or UTF-8), with a size-class-packed length
// table and optional SHA-256 integrity hash / AES-GCM encryption of the body.
// oiCA embeds an oiDL for its name table with the magic number hidden, and
// oiSB embeds one for struct/variable names the same way.
package oidl

import (
	"github.com/oxsomi/oxc3core/sizeclass"
)

// Magic is the little-endian "oiDL" file signature.
const Magic uint32 = 0x4C44696F

// DataType selects how entries are interpreted.
type DataType uint8

const (
	// Ascii entries are 7-bit-clean strings.
	Ascii DataType = iota
	// UTF8 entries may contain multi-byte UTF-8 sequences.
	UTF8
	// Data entries are opaque byte blobs.
	Data
)

// Flags are the oiDL header flag bits.
type Flags uint8

const (
	HideMagicNumber Flags = 1 << 0
	IsUTF8          Flags = 1 << 1
	IsTightlyPacked Flags = 1 << 2
	UseSHA256       Flags = 1 << 3
	IsEncrypted     Flags = 1 << 4

	// flagsReservedMask marks the bits a conforming writer never sets; a
	// reader rejects any file that has one of them on rather than silently
	// ignoring an encoding scheme it doesn't implement.
	flagsReservedMask Flags = 0xE0
)

// EncryptionType mirrors oiCA's encryption selector so an embedded oiDL can
// independently be AES-256-GCM protected.
type EncryptionType uint8

const (
	EncryptionNone EncryptionType = iota
	EncryptionAES256GCM
)

// File is the in-memory representation of an oiDL: an ordered sequence of
// entries plus the settings that determine how they're encoded.
type File struct {
	DataType       DataType
	UseSHA256      bool
	HideMagic      bool
	EncryptionType EncryptionType

	// Entries holds the raw bytes of every item, in order. For Ascii/UTF8
	// data type this is the UTF-8 encoding of each string.
	Entries [][]byte
}

// AddEntry appends a binary or string entry.
func (f *File) AddEntry(b []byte) {
	f.Entries = append(f.Entries, b)
}

// AddString appends a string entry, identical to AddEntry([]byte(s)).
func (f *File) AddString(s string) {
	f.Entries = append(f.Entries, []byte(s))
}

// EntryString returns entry i decoded as a string.
func (f *File) EntryString(i int) string {
	return string(f.Entries[i])
}

func allASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// chooseDataType mirrors the encoder's rule: Ascii if every entry is 7-bit
// clean and the file wasn't forced into string mode with non-ASCII content,
// UTF8 if the entries are meant as text but contain non-ASCII bytes, Data for
// raw blobs.
func (f *File) chooseDataType() DataType {
	if f.DataType == Data {
		return Data
	}
	for _, e := range f.Entries {
		if !allASCII(e) {
			return UTF8
		}
	}
	return Ascii
}

func maxEntryLen(entries [][]byte) uint64 {
	var m uint64
	for _, e := range entries {
		if uint64(len(e)) > m {
			m = uint64(len(e))
		}
	}
	return m
}

// countSizeClass picks the smallest size class that can hold an entry count,
// matching the independent entryCountType selection described in §4.D.
func countSizeClass(n int) sizeclass.Type {
	return sizeclass.Select(uint64(n))
}
