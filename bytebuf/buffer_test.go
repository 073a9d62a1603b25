package bytebuf

import (
	"testing"

	"github.com/go-test/deep"
)

func TestCopyAndRevCopyAgree(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
	}{
		{"empty", []byte{}},
		{"short", []byte{1, 2, 3}},
		{"aligned", []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dstFwd := CreateEmpty(len(tc.src))
			dstRev := CreateEmpty(len(tc.src))
			src := RefConst(tc.src)

			if err := Copy(dstFwd, src); err != nil {
				t.Fatalf("Copy: %v", err)
			}
			if err := RevCopy(dstRev, src); err != nil {
				t.Fatalf("RevCopy: %v", err)
			}
			if !Eq(dstFwd, src) {
				if diff := deep.Equal(dstFwd.Bytes(), tc.src); diff != nil {
					t.Errorf("Copy result mismatch: %v", diff)
				}
			}
			if !Eq(dstRev, src) {
				if diff := deep.Equal(dstRev.Bytes(), tc.src); diff != nil {
					t.Errorf("RevCopy result mismatch: %v", diff)
				}
			}
		})
	}
}

func TestOffsetRejectsOwned(t *testing.T) {
	b := CreateEmpty(8)
	if err := b.Offset(1); err == nil {
		t.Fatal("expected error offsetting an owned buffer")
	}
}

func TestConstAppendRejected(t *testing.T) {
	b := RefConst([]byte{1, 2, 3})
	if err := b.Append([]byte{9}); err == nil {
		t.Fatal("expected error appending through a const reference")
	}
}

func TestAppendConsumeRoundTrip(t *testing.T) {
	backing := make([]byte, 16)
	w := Ref(backing)
	if err := w.Append([]byte("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append([]byte("world")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	r := Ref(backing)
	got, err := r.Consume(5)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
	got, err = r.Consume(5)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("got %q, want world", got)
	}
}

func TestBitRangeAlignedMiddle(t *testing.T) {
	buf := CreateEmpty(24)
	if err := buf.SetBitRange(4, 150); err != nil {
		t.Fatalf("SetBitRange: %v", err)
	}
	for i := 0; i < 192; i++ {
		want := i >= 4 && i < 154
		got, err := buf.GetBit(i)
		if err != nil {
			t.Fatalf("GetBit(%d): %v", i, err)
		}
		if got != want {
			t.Fatalf("bit %d = %v, want %v", i, got, want)
		}
	}
	if err := buf.UnsetBitRange(10, 50); err != nil {
		t.Fatalf("UnsetBitRange: %v", err)
	}
	for i := 10; i < 60; i++ {
		got, _ := buf.GetBit(i)
		if got {
			t.Fatalf("bit %d still set after UnsetBitRange", i)
		}
	}
}

func TestReadAsUTF8ASCII(t *testing.T) {
	cp, err := ReadAsUTF8([]byte("hi"), 0)
	if err != nil {
		t.Fatalf("ReadAsUTF8: %v", err)
	}
	if cp.Rune != 'h' || cp.Bytes != 1 {
		t.Fatalf("got %+v", cp)
	}
}

func TestReadAsUTF8RejectsTruncatedSequence(t *testing.T) {
	if _, err := ReadAsUTF8([]byte{0xC2}, 0); err == nil {
		t.Fatal("expected error for truncated 2-byte sequence")
	}
}

func TestUTF16SurrogatePairRoundTrip(t *testing.T) {
	r := rune(0x1F600)
	var buf []byte
	buf = WriteAsUTF16(buf, r)
	cp, err := ReadAsUTF16(buf, 0)
	if err != nil {
		t.Fatalf("ReadAsUTF16: %v", err)
	}
	if cp.Rune != r || cp.Chars != 2 {
		t.Fatalf("got %+v, want rune %x", cp, r)
	}
}

func TestHashesAreDeterministic(t *testing.T) {
	data := []byte("the quick brown fox")
	if CRC32C(data) != CRC32C(data) {
		t.Fatal("CRC32C not deterministic")
	}
	if FNV1a64(data) != FNV1a64(data) {
		t.Fatal("FNV1a64 not deterministic")
	}
	h1 := FNV1a64Seeded(FNV1a64Init(), data)
	h2 := FNV1a64Seeded(FNV1a64Init(), data)
	if h1 != h2 {
		t.Fatal("FNV1a64Seeded not deterministic")
	}
}
