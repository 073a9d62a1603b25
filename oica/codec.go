package oica

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/oxsomi/oxc3core/aesgcm"
	"github.com/oxsomi/oxc3core/archive"
	"github.com/oxsomi/oxc3core/bytebuf"
	"github.com/oxsomi/oxc3core/oidl"
	"github.com/oxsomi/oxc3core/oxerr"
	"github.com/oxsomi/oxc3core/sizeclass"
)

// Magic is the little-endian "oiCA" file signature.
const Magic uint32 = 0x4143696F

// Version 0 is the only version this codec writes or accepts.
const Version uint8 = 0

// refSizeFlags packs whether directory parent references are 1 or 2 bytes and
// whether the file count/reference is 2 or 4 bytes into one header byte,
// so a reader can size every following field before it has counted
// anything itself.
type refSizeFlags uint8

const (
	dirRefIsU16  refSizeFlags = 1 << 0
	fileRefIsU32 refSizeFlags = 1 << 1
)

func dirRefSize(n int) int {
	if n <= 254 {
		return 1
	}
	return 2
}

func fileRefSize(n int) int {
	if n <= 65534 {
		return 2
	}
	return 4
}

func writeRef(dst []byte, size int, v uint32) {
	if size == 1 {
		dst[0] = byte(v)
		return
	}
	if size == 2 {
		binary.LittleEndian.PutUint16(dst, uint16(v))
		return
	}
	binary.LittleEndian.PutUint32(dst, v)
}

func readRef(src []byte, size int) uint32 {
	if size == 1 {
		return uint32(src[0])
	}
	if size == 2 {
		return uint32(binary.LittleEndian.Uint16(src))
	}
	return binary.LittleEndian.Uint32(src)
}

func noParentValue(dSize int) uint32 {
	if dSize == 1 {
		return 0xFF
	}
	return 0xFFFF
}

// ToBytes serializes f into an oiCA archive.
func (f *File) ToBytes() ([]byte, error) {
	dirs, files := f.Archive.SortedDirsAndFiles()

	if len(dirs) >= 0xFFFF {
		return nil, oxerr.New(oxerr.OutOfBounds, "File.ToBytes", "directories limited to 65534")
	}
	if uint64(len(files)) >= 0xFFFFFFFF {
		return nil, oxerr.New(oxerr.OutOfBounds, "File.ToBytes", "files limited to 2^32-2")
	}

	var biggest uint64
	for _, path := range files {
		e, _ := f.Archive.FindByPath(path)
		if uint64(len(e.Data)) > biggest {
			biggest = uint64(len(e.Data))
		}
	}
	sizeType := sizeclass.Select(biggest)

	dSize := dirRefSize(len(dirs))
	fSize := fileRefSize(len(files))

	var refFlags refSizeFlags
	if dSize == 2 {
		refFlags |= dirRefIsU16
	}
	if fSize == 4 {
		refFlags |= fileRefIsU32
	}

	names := &oidl.File{HideMagic: true}
	for _, d := range dirs {
		names.AddString(baseName(d))
	}
	for _, p := range files {
		names.AddString(baseName(p))
	}
	nameBytes, err := names.ToBytes(nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, "File.ToBytes", err)
	}

	var flags Flags
	if f.Settings.UseSHA256 {
		flags |= UseSHA256
	}
	if f.Settings.IncludeFullDate {
		flags |= FilesHaveDate | FilesHaveExtendedDate
	} else if f.Settings.IncludeDate {
		flags |= FilesHaveDate
	}
	flags |= Flags(sizeType) << fileSizeTypeShift
	if f.Settings.ExtraHeaderID != nil {
		flags |= HasExtraHeaderID
	}

	var header []byte
	header = binary.LittleEndian.AppendUint32(header, Magic)
	header = append(header, Version)
	header = append(header, byte(flags))
	header = append(header, byte(f.Settings.EncryptionType)&0xF)
	header = append(header, byte(refFlags))

	if fSize == 4 {
		header = binary.LittleEndian.AppendUint32(header, uint32(len(files)))
	} else {
		header = binary.LittleEndian.AppendUint16(header, uint16(len(files)))
	}
	if dSize == 2 {
		header = binary.LittleEndian.AppendUint16(header, uint16(len(dirs)))
	} else {
		header = append(header, byte(len(dirs)))
	}
	if f.Settings.ExtraHeaderID != nil {
		idBytes, _ := f.Settings.ExtraHeaderID.MarshalBinary()
		header = append(header, idBytes...)
	}

	dirIndex := make(map[string]int, len(dirs))
	for i, d := range dirs {
		dirIndex[d] = i
	}

	dirTable := make([]byte, len(dirs)*dSize)
	for i, d := range dirs {
		parent := noParentValue(dSize)
		if p, ok := parentDir(d); ok {
			idx, ok := dirIndex[p]
			if !ok {
				return nil, oxerr.New(oxerr.InvalidState, "File.ToBytes", "couldn't find parent directory of folder")
			}
			parent = uint32(idx)
		}
		writeRef(dirTable[i*dSize:], dSize, parent)
	}

	baseFileHeader := dSize
	if flags&FilesHaveDate != 0 {
		if flags&FilesHaveExtendedDate != 0 {
			baseFileHeader += 8
		} else {
			baseFileHeader += 4
		}
	}
	baseFileHeader += sizeType.ByteSize()

	fileTable := make([]byte, len(files)*baseFileHeader)
	var fileData []byte

	for i, p := range files {
		e, _ := f.Archive.FindByPath(p)
		off := i * baseFileHeader

		parent := noParentValue(dSize)
		if pd, ok := parentDir(p); ok {
			idx, ok := dirIndex[pd]
			if !ok {
				return nil, oxerr.New(oxerr.InvalidState, "File.ToBytes", "couldn't find parent directory of file")
			}
			parent = uint32(idx)
		}
		writeRef(fileTable[off:], dSize, parent)
		off += dSize

		if flags&FilesHaveDate != 0 {
			if flags&FilesHaveExtendedDate != 0 {
				binary.LittleEndian.PutUint64(fileTable[off:], uint64(e.Timestamp.UnixNano()))
				off += 8
			} else {
				tf, df, ok := storeDate(e.Timestamp)
				if !ok {
					return nil, oxerr.New(oxerr.InvalidState, "File.ToBytes", "couldn't store file date, use IncludeFullDate")
				}
				binary.LittleEndian.PutUint16(fileTable[off:], tf)
				binary.LittleEndian.PutUint16(fileTable[off+2:], df)
				off += 4
			}
		}

		sizeType.Write(fileTable[off:], uint64(len(e.Data)))
		fileData = append(fileData, e.Data...)
	}

	var body []byte
	body = append(body, nameBytes...)
	body = append(body, dirTable...)
	body = append(body, fileTable...)
	body = append(body, fileData...)

	if f.Settings.UseSHA256 {
		digest := bytebuf.SHA256(body)
		for _, w := range digest {
			header = binary.LittleEndian.AppendUint32(header, w)
		}
	}

	if f.Settings.EncryptionType == EncryptionAES256GCM {
		iv := make([]byte, aesgcm.IVSize)
		buf := bytebuf.Ref(body)
		usedIV, tag, err := aesgcm.Encrypt(buf, f.Settings.EncryptionKey, iv, header, aesgcm.GenerateIV)
		if err != nil {
			return nil, oxerr.Wrap(oxerr.InvalidState, "File.ToBytes", err)
		}
		header = append(header, usedIV...)
		header = append(header, tag...)
	}

	return append(header, body...), nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func parentDir(path string) (string, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], true
		}
	}
	return "", false
}

func resolvePath(parent uint32, dSize int, names, paths []string, idx int) string {
	if parent == noParentValue(dSize) {
		return names[idx]
	}
	return paths[parent] + "/" + names[idx]
}

// FromBytes parses an oiCA archive previously produced by ToBytes. key is
// required when the archive is AES-256-GCM encrypted.
func FromBytes(data []byte, key []byte) (*File, error) {
	const op = "FromBytes"

	if len(data) < 4 || binary.LittleEndian.Uint32(data) != Magic {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "bad magic number")
	}
	r := data[4:]
	if len(r) < 4 {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated header")
	}
	if r[0] != Version {
		return nil, oxerr.New(oxerr.UnsupportedOperation, op, "unsupported version")
	}
	flags := Flags(r[1])
	if flags&flagsReservedMask != 0 {
		return nil, oxerr.New(oxerr.UnsupportedOperation, op, "reserved flag bits set")
	}
	typeByte := r[2]
	if typeByte>>4 != 0 {
		return nil, oxerr.New(oxerr.UnsupportedOperation, op, "compression is not supported")
	}
	encType := EncryptionType(typeByte & 0xF)
	refFlags := refSizeFlags(r[3])
	r = r[4:]

	sizeType := sizeclass.Type((flags >> fileSizeTypeShift) & 0x3)

	dSize, fSize := 1, 2
	if refFlags&dirRefIsU16 != 0 {
		dSize = 2
	}
	if refFlags&fileRefIsU32 != 0 {
		fSize = 4
	}

	if len(r) < fSize {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated file count")
	}
	fileCount := readRef(r, fSize)
	r = r[fSize:]

	if len(r) < dSize {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated dir count")
	}
	dirCount := readRef(r, dSize)
	r = r[dSize:]

	var extraID *uuid.UUID
	if flags&HasExtraHeaderID != 0 {
		if len(r) < 16 {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated extra header id")
		}
		id, err := uuid.FromBytes(r[:16])
		if err != nil {
			return nil, oxerr.Wrap(oxerr.InvalidParameter, op, err)
		}
		extraID = &id
		r = r[16:]
	}

	// The hash (if present) is written into the cleartext header before
	// encryption is applied to the body, so it must be peeled off here
	// before the IV/tag -- which sit after it on the wire -- not after.
	var storedHash []uint32
	if flags&UseSHA256 != 0 {
		if len(r) < 32 {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated hash")
		}
		storedHash = make([]uint32, 8)
		for i := range storedHash {
			storedHash[i] = binary.LittleEndian.Uint32(r[i*4:])
		}
		r = r[32:]
	}

	if encType == EncryptionAES256GCM {
		if len(r) < aesgcm.IVSize+aesgcm.TagSize {
			return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated encryption header")
		}
		iv := r[:aesgcm.IVSize]
		tag := r[aesgcm.IVSize : aesgcm.IVSize+aesgcm.TagSize]
		headerLen := len(data) - len(r)

		body := append([]byte(nil), r[aesgcm.IVSize+aesgcm.TagSize:]...)
		buf := bytebuf.Ref(body)
		if err := aesgcm.Decrypt(buf, key, iv, tag, data[:headerLen]); err != nil {
			return nil, oxerr.Wrap(oxerr.AuthenticationFailed, op, err)
		}
		r = body
	}

	if storedHash != nil {
		want := bytebuf.SHA256(r)
		for i, w := range want {
			if storedHash[i] != w {
				return nil, oxerr.New(oxerr.InvalidState, op, "hash mismatch")
			}
		}
	}

	names, err := oidl.FromBytes(r, true, nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, op, err)
	}
	if uint32(len(names.Entries)) != dirCount+fileCount {
		return nil, oxerr.New(oxerr.InvalidState, op, "name table entry count mismatch")
	}
	nameBytes, err := names.ToBytes(nil, nil)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidState, op, err)
	}
	r = r[len(nameBytes):]

	if len(r) < int(dirCount)*dSize {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated directory table")
	}
	dirParents := make([]uint32, dirCount)
	for i := range dirParents {
		dirParents[i] = readRef(r[i*dSize:], dSize)
	}
	r = r[int(dirCount)*dSize:]

	dirNames := make([]string, dirCount)
	for i := range dirNames {
		dirNames[i] = names.EntryString(i)
	}
	dirPaths := make([]string, dirCount)
	for i := range dirPaths {
		dirPaths[i] = resolvePath(dirParents[i], dSize, dirNames, dirPaths, i)
	}

	baseFileHeader := dSize
	hasDate := flags&FilesHaveDate != 0
	hasExtended := flags&FilesHaveExtendedDate != 0
	if hasDate {
		if hasExtended {
			baseFileHeader += 8
		} else {
			baseFileHeader += 4
		}
	}
	baseFileHeader += sizeType.ByteSize()

	if len(r) < int(fileCount)*baseFileHeader {
		return nil, oxerr.New(oxerr.InvalidParameter, op, "truncated file table")
	}

	metas := make([]fileMeta, fileCount)
	for i := uint32(0); i < fileCount; i++ {
		off := int(i) * baseFileHeader
		m := fileMeta{}
		m.parent = readRef(r[off:], dSize)
		off += dSize
		if hasDate {
			if hasExtended {
				ns := binary.LittleEndian.Uint64(r[off:])
				m.ts = time.Unix(0, int64(ns)).UTC()
				off += 8
			} else {
				tf := binary.LittleEndian.Uint16(r[off:])
				df := binary.LittleEndian.Uint16(r[off+2:])
				m.ts = loadDate(tf, df)
				off += 4
			}
		}
		m.size = sizeType.Read(r[off:])
		metas[i] = m
	}
	r = r[int(fileCount)*baseFileHeader:]

	if uint64(len(r)) != sumSizes(metas) {
		return nil, oxerr.New(oxerr.InvalidState, op, "file data is not exactly consumed by the declared sizes")
	}

	fileNames := make([]string, fileCount)
	for i := range fileNames {
		fileNames[i] = names.EntryString(int(dirCount) + i)
	}

	a := &archive.Archive{}
	for i := uint32(0); i < dirCount; i++ {
		a.AddFolder(dirPaths[i])
	}

	off := 0
	for i := uint32(0); i < fileCount; i++ {
		path := resolveFilePath(metas[i].parent, dSize, fileNames[i], dirPaths)
		data := append([]byte(nil), r[off:off+int(metas[i].size)]...)
		a.AddFile(path, data, metas[i].ts)
		off += int(metas[i].size)
	}

	return &File{
		Archive: a,
		Settings: Settings{
			UseSHA256:       flags&UseSHA256 != 0,
			IncludeDate:     hasDate && !hasExtended,
			IncludeFullDate: hasExtended,
			EncryptionType:  encType,
			ExtraHeaderID:   extraID,
		},
	}, nil
}

func resolveFilePath(parent uint32, dSize int, name string, dirPaths []string) string {
	if parent == noParentValue(dSize) {
		return name
	}
	return dirPaths[parent] + "/" + name
}

type fileMeta struct {
	parent uint32
	ts     time.Time
	size   uint64
}

func sumSizes(metas []fileMeta) uint64 {
	var sum uint64
	for _, m := range metas {
		sum += m.size
	}
	return sum
}
