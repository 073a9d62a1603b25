// Package aesgcm implements the in-place AES-GCM codec oiCA uses to protect
// an archive's file payload: 128- or 256-bit keys, a 96-bit IV, a 128-bit
// tag, and an optional associated-data slice that's authenticated but not
// encrypted. Built on stdlib crypto/aes + crypto/cipher, which already
// implements constant-time tag verification -- no ecosystem library in the
// example corpus provides AES-GCM (golang.org/x/crypto's subtree that ships
// one is not part of the teacher's dependency set), so this is the
// unavoidable stdlib exception, not a stylistic choice; see DESIGN.md.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/oxsomi/oxc3core/bytebuf"
	"github.com/oxsomi/oxc3core/oxerr"
)

const (
	// IVSize is the length in bytes of the GCM nonce used throughout oiCA.
	IVSize = 12
	// TagSize is the length in bytes of the GCM authentication tag.
	TagSize = 16
)

// Flags instruct the codec to generate outputs via CSPRNG before encrypting
// rather than use caller-supplied values.
type Flags uint8

const (
	GenerateIV Flags = 1 << iota
	GenerateKey
)

// KeySize selects between AES-128-GCM and AES-256-GCM.
type KeySize int

const (
	Key128 KeySize = 16
	Key256 KeySize = 32
)

// Encrypt encrypts plaintext in place (plaintext.Bytes() is overwritten with
// ciphertext of the same length) and returns the IV and tag used. key must be
// 16 or 32 bytes; when GenerateKey is set its contents are first overwritten
// with a generated key (and likewise iv with GenerateIV).
func Encrypt(plaintext bytebuf.Buffer, key, iv []byte, associatedData []byte, flags Flags) (usedIV, tag []byte, err error) {
	if plaintext.IsConst() {
		return nil, nil, oxerr.Wrap(oxerr.ConstData, "aesgcm.Encrypt", nil)
	}

	if flags&GenerateKey != 0 {
		kb := bytebuf.Ref(key)
		if err := kb.CSPRNG(); err != nil {
			return nil, nil, oxerr.Wrap(oxerr.PlatformError, "aesgcm.Encrypt", err)
		}
	}
	if len(key) != int(Key128) && len(key) != int(Key256) {
		return nil, nil, oxerr.New(oxerr.InvalidParameter, "aesgcm.Encrypt", "key must be 16 or 32 bytes")
	}

	if flags&GenerateIV != 0 {
		ib := bytebuf.Ref(iv)
		if err := ib.CSPRNG(); err != nil {
			return nil, nil, oxerr.Wrap(oxerr.PlatformError, "aesgcm.Encrypt", err)
		}
	}
	if len(iv) != IVSize {
		return nil, nil, oxerr.New(oxerr.InvalidParameter, "aesgcm.Encrypt", "iv must be 12 bytes")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	data := plaintext.Bytes()
	sealed := gcm.Seal(data[:0], iv, data, associatedData)
	// Seal returns ciphertext||tag appended to dst; since we sealed in place
	// over a buffer exactly len(data) long, the tag spills past it -- split
	// it back out rather than grow the caller's buffer.
	tag = append([]byte(nil), sealed[len(data):]...)
	copy(data, sealed[:len(data)])

	return iv, tag, nil
}

// Decrypt verifies tag against ciphertext+associatedData and, on success,
// overwrites ciphertext in place with the recovered plaintext. On a tag
// mismatch it returns ErrAuthenticationFailed without revealing any
// plaintext (crypto/cipher's GCM.Open only returns output after the tag
// check passes).
func Decrypt(ciphertext bytebuf.Buffer, key, iv, tag, associatedData []byte) error {
	if ciphertext.IsConst() {
		return oxerr.Wrap(oxerr.ConstData, "aesgcm.Decrypt", nil)
	}
	if len(key) != int(Key128) && len(key) != int(Key256) {
		return oxerr.New(oxerr.InvalidParameter, "aesgcm.Decrypt", "key must be 16 or 32 bytes")
	}
	if len(iv) != IVSize {
		return oxerr.New(oxerr.InvalidParameter, "aesgcm.Decrypt", "iv must be 12 bytes")
	}
	if len(tag) != TagSize {
		return oxerr.New(oxerr.InvalidParameter, "aesgcm.Decrypt", "tag must be 16 bytes")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	data := ciphertext.Bytes()
	sealed := append(append([]byte(nil), data...), tag...)

	plain, err := gcm.Open(sealed[:0], iv, sealed, associatedData)
	if err != nil {
		return oxerr.Wrap(oxerr.AuthenticationFailed, "aesgcm.Decrypt", nil)
	}
	copy(data, plain)
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.InvalidParameter, "aesgcm.newGCM", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, oxerr.Wrap(oxerr.PlatformError, "aesgcm.newGCM", err)
	}
	return gcm, nil
}
