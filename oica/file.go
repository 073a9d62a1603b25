// Package oica implements the oiCA archive container: a directory tree
// (folders + files) serialized as a sorted directory table, a sorted file
// table referencing parent directories by index, and a concatenated file
// data blob, with an embedded oiDL name table and optional whole-archive
// AES-256-GCM encryption.
package oica

import (
	"github.com/google/uuid"

	"github.com/oxsomi/oxc3core/archive"
)

// Flags are the oiCA header flag bits.
type Flags uint8

const (
	UseSHA256             Flags = 1 << 0
	FilesHaveDate         Flags = 1 << 1
	FilesHaveExtendedDate Flags = 1 << 2
	// fileSizeTypeShift is where the 2-bit sizeclass.Type for file sizes
	// lives within the flags byte.
	fileSizeTypeShift = 3
	HasExtraHeaderID  Flags = 1 << 5
	flagsReservedMask Flags = 0xC0
)

// EncryptionType selects whether the archive body is AES-256-GCM protected.
type EncryptionType uint8

const (
	EncryptionNone EncryptionType = iota
	EncryptionAES256GCM
)

// Settings controls how a File is serialized.
type Settings struct {
	UseSHA256      bool
	IncludeDate    bool // compact MS-DOS date/time per file
	IncludeFullDate bool // 64-bit nanosecond timestamp per file, supersedes IncludeDate
	EncryptionType EncryptionType
	EncryptionKey  []byte // 32 bytes, required when EncryptionType != EncryptionNone

	// ExtraHeaderID, when non-nil, is stamped into the archive as a
	// provenance UUID (a feature the distilled spec dropped but the
	// original's extra-header passthrough makes room for).
	ExtraHeaderID *uuid.UUID
}

// NewExtraHeaderID generates a random provenance UUID suitable for
// Settings.ExtraHeaderID.
func NewExtraHeaderID() uuid.UUID {
	return uuid.New()
}

// File pairs an Archive with the Settings used to serialize it.
type File struct {
	Archive  *archive.Archive
	Settings Settings
}
