package oica

import (
	"bytes"
	"testing"
	"time"

	"github.com/oxsomi/oxc3core/archive"
)

func sampleArchive() *archive.Archive {
	a := &archive.Archive{}
	a.AddFolder("assets")
	a.AddFolder("assets/textures")
	a.AddFile("readme.txt", []byte("hello world"), time.Time{})
	a.AddFile("assets/textures/brick.png", bytes.Repeat([]byte{0xAB}, 64), time.Time{})
	a.AddFile("assets/model.obj", []byte("v 0 0 0"), time.Time{})
	return a
}

func TestRoundTripNoExtras(t *testing.T) {
	f := &File{Archive: sampleArchive()}

	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(out, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	if len(got.Archive.Entries) != len(f.Archive.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Archive.Entries), len(f.Archive.Entries))
	}

	for _, want := range f.Archive.Entries {
		e, ok := got.Archive.FindByPath(want.Path)
		if !ok {
			t.Fatalf("missing entry %q", want.Path)
		}
		if want.Type == archive.File && !bytes.Equal(e.Data, want.Data) {
			t.Fatalf("entry %q data mismatch", want.Path)
		}
	}
}

func TestRoundTripWithSHA256(t *testing.T) {
	f := &File{Archive: sampleArchive(), Settings: Settings{UseSHA256: true}}

	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if _, err := FromBytes(out, nil); err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	corrupted := append([]byte(nil), out...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := FromBytes(corrupted, nil); err == nil {
		t.Fatal("expected hash mismatch on corrupted archive")
	}
}

func TestRoundTripWithCompactDate(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)
	a := &archive.Archive{}
	a.AddFile("a.txt", []byte("a"), ts)

	f := &File{Archive: a, Settings: Settings{IncludeDate: true}}
	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	e, ok := got.Archive.FindByPath("a.txt")
	if !ok {
		t.Fatal("missing entry")
	}
	if e.Timestamp.Year() != 2024 || e.Timestamp.Month() != time.March || e.Timestamp.Day() != 5 {
		t.Fatalf("got timestamp %v, want 2024-03-05", e.Timestamp)
	}
}

func TestRoundTripWithFullDate(t *testing.T) {
	ts := time.Date(1970, time.January, 2, 3, 4, 5, 0, time.UTC)
	a := &archive.Archive{}
	a.AddFile("a.txt", []byte("a"), ts)

	f := &File{Archive: a, Settings: Settings{IncludeFullDate: true}}
	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	e, _ := got.Archive.FindByPath("a.txt")
	if !e.Timestamp.Equal(ts) {
		t.Fatalf("got %v, want %v", e.Timestamp, ts)
	}
}

func TestRoundTripEncrypted(t *testing.T) {
	key := make([]byte, 32)
	key[0] = 9

	f := &File{Archive: sampleArchive(), Settings: Settings{EncryptionType: EncryptionAES256GCM, EncryptionKey: key}}
	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(out, key)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if len(got.Archive.Entries) != len(f.Archive.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Archive.Entries), len(f.Archive.Entries))
	}

	wrongKey := make([]byte, 32)
	if _, err := FromBytes(out, wrongKey); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	}
}

func TestRoundTripWithSHA256AndEncryption(t *testing.T) {
	key := make([]byte, 32)
	key[3] = 7

	f := &File{Archive: sampleArchive(), Settings: Settings{UseSHA256: true, EncryptionType: EncryptionAES256GCM, EncryptionKey: key}}
	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	got, err := FromBytes(out, key)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if len(got.Archive.Entries) != len(f.Archive.Entries) {
		t.Fatalf("got %d entries, want %d", len(got.Archive.Entries), len(f.Archive.Entries))
	}
	for _, want := range f.Archive.Entries {
		e, ok := got.Archive.FindByPath(want.Path)
		if !ok {
			t.Fatalf("missing entry %q", want.Path)
		}
		if want.Type == archive.File && !bytes.Equal(e.Data, want.Data) {
			t.Fatalf("entry %q data mismatch", want.Path)
		}
	}
}

func TestRejectsCompressionBit(t *testing.T) {
	f := &File{Archive: sampleArchive()}
	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	out[4+2] |= 0x10 // type byte high nibble: compressionType
	if _, err := FromBytes(out, nil); err == nil {
		t.Fatal("expected error for compression bit")
	}
}

func TestExtraHeaderIDRoundTrip(t *testing.T) {
	id := NewExtraHeaderID()
	f := &File{Archive: sampleArchive(), Settings: Settings{ExtraHeaderID: &id}}

	out, err := f.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	got, err := FromBytes(out, nil)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if got.Settings.ExtraHeaderID == nil || *got.Settings.ExtraHeaderID != id {
		t.Fatalf("got extra header id %v, want %v", got.Settings.ExtraHeaderID, id)
	}
}
