package oidl

import (
	"encoding/binary"

	"github.com/oxsomi/oxc3core/aesgcm"
	"github.com/oxsomi/oxc3core/bytebuf"
	"github.com/oxsomi/oxc3core/oxerr"
	"github.com/oxsomi/oxc3core/sizeclass"
)

// ToBytes serializes f into an oiDL file. key/iv are required when
// f.EncryptionType is not EncryptionNone; they're otherwise ignored.
func (f *File) ToBytes(key, iv []byte) ([]byte, error) {
	dataType := f.chooseDataType()

	entryCountType := countSizeClass(len(f.Entries))
	entryLenType := sizeclass.Select(maxEntryLen(f.Entries))

	var flags Flags
	if f.HideMagic {
		flags |= HideMagicNumber
	}
	switch dataType {
	case UTF8:
		flags |= IsUTF8
	case Ascii:
		flags |= IsTightlyPacked
	}
	if f.UseSHA256 {
		flags |= UseSHA256
	}
	if f.EncryptionType == EncryptionAES256GCM {
		flags |= IsEncrypted
	}

	var out []byte
	if !f.HideMagic {
		out = binary.LittleEndian.AppendUint32(out, Magic)
	}

	out = append(out, byte(flags))
	out = append(out, byte(entryCountType)|byte(entryLenType)<<2)

	countBuf := make([]byte, entryCountType.ByteSize())
	entryCountType.Write(countBuf, uint64(len(f.Entries)))
	out = append(out, countBuf...)

	// Length table: one entryLenType-sized field per entry.
	for _, e := range f.Entries {
		lenBuf := make([]byte, entryLenType.ByteSize())
		entryLenType.Write(lenBuf, uint64(len(e)))
		out = append(out, lenBuf...)
	}

	bodyStart := len(out)
	for _, e := range f.Entries {
		out = append(out, e...)
	}

	if f.UseSHA256 {
		digest := bytebuf.SHA256(out[bodyStart:])
		for _, word := range digest {
			out = binary.LittleEndian.AppendUint32(out, word)
		}
	}

	if f.EncryptionType == EncryptionAES256GCM {
		body := out[bodyStart:]
		buf := bytebuf.Ref(body)
		usedIV, tag, err := aesgcm.Encrypt(buf, key, iv, out[:bodyStart], 0)
		if err != nil {
			return nil, oxerr.Wrap(oxerr.InvalidState, "oidl.ToBytes", err)
		}
		sealed := append([]byte(nil), out[:bodyStart]...)
		sealed = append(sealed, body...)
		sealed = append(sealed, usedIV...)
		sealed = append(sealed, tag...)
		out = sealed
	}

	return out, nil
}

// FromBytes parses an oiDL file. hideMagic must be set by the caller when the
// embedding format (oiCA/oiSB) stripped the magic number itself. key
// decrypts the body when the encoded flags indicate AES-256-GCM protection;
// the IV is read from the encoded data, so the iv argument is not used.
func FromBytes(data []byte, hideMagic bool, key, iv []byte) (*File, error) {
	r := data

	if !hideMagic {
		if len(r) < 4 {
			return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated magic number")
		}
		if binary.LittleEndian.Uint32(r) != Magic {
			return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "bad magic number")
		}
		r = r[4:]
	}

	if len(r) < 2 {
		return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated header")
	}

	flags := Flags(r[0])
	sizeClasses := r[1]
	entryCountType := sizeclass.Type(sizeClasses & 0x3)
	entryLenType := sizeclass.Type((sizeClasses >> 2) & 0x3)
	r = r[2:]

	// The upper nibble of the size-class byte is reserved; a set bit there
	// would mean a compression scheme this decoder doesn't implement.
	if sizeClasses&0xF0 != 0 {
		return nil, oxerr.New(oxerr.UnsupportedOperation, "oidl.FromBytes", "reserved compression bits set")
	}

	if len(r) < entryCountType.ByteSize() {
		return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated entry count")
	}
	entryCount := entryCountType.Read(r)
	r = r[entryCountType.ByteSize():]

	lenTableSize := int(entryCount) * entryLenType.ByteSize()
	if len(r) < lenTableSize {
		return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated length table")
	}
	lengths := make([]uint64, entryCount)
	for i := range lengths {
		lengths[i] = entryLenType.Read(r[i*entryLenType.ByteSize():])
	}
	r = r[lenTableSize:]

	headerLen := len(data) - len(r)

	if flags&flagsReservedMask != 0 {
		return nil, oxerr.New(oxerr.UnsupportedOperation, "oidl.FromBytes", "reserved flag bits set")
	}

	body := r
	isEncrypted := flags&IsEncrypted != 0

	var hashSize int
	if flags&UseSHA256 != 0 {
		hashSize = 32
	}

	if isEncrypted {
		if len(body) < aesgcm.IVSize+aesgcm.TagSize {
			return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated encrypted body")
		}
		tag := body[len(body)-aesgcm.TagSize:]
		ivGot := body[len(body)-aesgcm.TagSize-aesgcm.IVSize : len(body)-aesgcm.TagSize]
		ciphertext := append([]byte(nil), body[:len(body)-aesgcm.TagSize-aesgcm.IVSize]...)

		buf := bytebuf.Ref(ciphertext)
		if err := aesgcm.Decrypt(buf, key, ivGot, tag, data[:headerLen]); err != nil {
			return nil, oxerr.Wrap(oxerr.AuthenticationFailed, "oidl.FromBytes", err)
		}
		body = ciphertext
	}

	var sum int
	for _, l := range lengths {
		sum += int(l)
	}
	if len(body) < sum+hashSize {
		return nil, oxerr.New(oxerr.InvalidParameter, "oidl.FromBytes", "truncated entry data")
	}

	if hashSize > 0 {
		want := bytebuf.SHA256(body[:sum])
		off := sum
		for _, w := range want {
			if binary.LittleEndian.Uint32(body[off:]) != w {
				return nil, oxerr.New(oxerr.InvalidState, "oidl.FromBytes", "hash mismatch")
			}
			off += 4
		}
	}

	f := &File{
		HideMagic: hideMagic,
		UseSHA256: flags&UseSHA256 != 0,
	}
	switch {
	case flags&IsUTF8 != 0:
		f.DataType = UTF8
	case flags&IsTightlyPacked != 0:
		f.DataType = Ascii
	default:
		f.DataType = Data
	}
	if isEncrypted {
		f.EncryptionType = EncryptionAES256GCM
	}

	off := 0
	for _, l := range lengths {
		entry := append([]byte(nil), body[off:off+int(l)]...)
		f.Entries = append(f.Entries, entry)
		off += int(l)
	}

	return f, nil
}
