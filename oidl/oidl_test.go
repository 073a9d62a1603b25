package oidl

import (
	"testing"

	"github.com/go-test/deep"
)

func TestASCIIRoundTrip(t *testing.T) {
	f := &File{}
	f.AddString("hello")
	f.AddString("world")
	f.AddString("")

	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(out, false, nil, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	if len(got.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(got.Entries))
	}
	for i, want := range []string{"hello", "world", ""} {
		if got.EntryString(i) != want {
			t.Fatalf("entry %d: got %q, want %q", i, got.EntryString(i), want)
		}
	}
	if got.DataType != Ascii {
		t.Fatalf("got data type %v, want Ascii", got.DataType)
	}
}

func TestUTF8RoundTrip(t *testing.T) {
	f := &File{}
	f.AddString("héllo")
	f.AddString("wörld")

	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, false, nil, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.DataType != UTF8 {
		t.Fatalf("got data type %v, want UTF8", got.DataType)
	}
	if diff := deep.Equal(f.Entries, got.Entries); diff != nil {
		t.Fatalf("entries differ: %v", diff)
	}
}

func TestBinaryEntriesRoundTrip(t *testing.T) {
	f := &File{DataType: Data}
	f.AddEntry([]byte{0x00, 0xFF, 0x10})
	f.AddEntry(nil)
	f.AddEntry([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, false, nil, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if diff := deep.Equal(f.Entries, got.Entries); diff != nil {
		t.Fatalf("entries differ: %v", diff)
	}
}

func TestSHA256HashDetectsCorruption(t *testing.T) {
	f := &File{UseSHA256: true}
	f.AddString("abc")
	f.AddString("def")

	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	if _, err := FromBytes(out, false, nil, nil); err != nil {
		t.Fatalf("FromBytes on untouched data: %v", err)
	}

	corrupted := append([]byte(nil), out...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := FromBytes(corrupted, false, nil, nil); err == nil {
		t.Fatal("expected hash mismatch error on corrupted data")
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 0x42
	iv := make([]byte, 12)
	iv[0] = 0x7

	f := &File{EncryptionType: EncryptionAES256GCM}
	f.AddString("top secret")

	out, err := f.ToBytes(key, iv)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(out, false, key, iv)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.EntryString(0) != "top secret" {
		t.Fatalf("got %q, want %q", got.EntryString(0), "top secret")
	}

	wrongKey := make([]byte, 32)
	if _, err := FromBytes(out, false, wrongKey, iv); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	}
}

func TestHiddenMagicNumberRoundTrip(t *testing.T) {
	f := &File{HideMagic: true}
	f.AddString("embedded")

	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, true, nil, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.EntryString(0) != "embedded" {
		t.Fatalf("got %q, want %q", got.EntryString(0), "embedded")
	}
}

func TestRejectsReservedFlagBits(t *testing.T) {
	f := &File{}
	f.AddString("x")
	out, err := f.ToBytes(nil, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	// Flip a reserved flag bit (bit 7) to simulate an unsupported future
	// compression scheme.
	out[4] |= 0x80
	if _, err := FromBytes(out, false, nil, nil); err == nil {
		t.Fatal("expected error for reserved flag bit")
	}
}
