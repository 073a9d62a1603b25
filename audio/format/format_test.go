package format

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestChannelsAndStride(t *testing.T) {
	cases := []struct {
		f        Format
		channels uint8
		stride   uint8
	}{
		{Mono16, 1, 2},
		{Stereo16, 2, 2},
		{Mono32F, 1, 4},
		{Stereo64F, 2, 8},
		{Mono24, 1, 3},
	}
	for _, c := range cases {
		if got := c.f.Channels(); got != c.channels {
			t.Errorf("%v: channels = %d, want %d", c.f, got, c.channels)
		}
		if got := c.f.StrideBytes(); got != c.stride {
			t.Errorf("%v: stride = %d, want %d", c.f, got, c.stride)
		}
	}
}

func TestFallbackDownconvertsFloatAnd24Bit(t *testing.T) {
	cases := map[Format]Format{
		Mono32F:  Mono16,
		Stereo32F: Stereo16,
		Mono24:   Mono16,
		Mono16:   Mono16,
	}
	for in, want := range cases {
		if got := in.Fallback(); got != want {
			t.Errorf("%v.Fallback() = %v, want %v", in, got, want)
		}
	}
}

func TestConvertToI16FromU24TakesUpperTwoBytes(t *testing.T) {
	// 0x00, 0x12, 0x34 little-endian 24-bit -> upper two bytes 0x3412.
	data := []byte{0x00, 0x12, 0x34}
	out := ConvertToI16(Mono24, data)
	if len(out) != 2 {
		t.Fatalf("got len %d, want 2", len(out))
	}
	if got := int16(binary.LittleEndian.Uint16(out)); got != 0x3412 {
		t.Fatalf("got %#x, want %#x", uint16(got), uint16(0x3412))
	}
}

func TestConvertToI16FromF32ClampsRange(t *testing.T) {
	cases := []struct {
		sample float32
		want   int16
	}{
		{0, 0},
		{1, math.MaxInt16},
		{-1, math.MinInt16},
		{2, math.MaxInt16},
		{-2, math.MinInt16},
	}
	for _, c := range cases {
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, math.Float32bits(c.sample))
		out := ConvertToI16(Mono32F, data)
		if got := int16(binary.LittleEndian.Uint16(out)); got != c.want {
			t.Errorf("sample %v: got %d, want %d", c.sample, got, c.want)
		}
	}
}

func TestConvertToI16FromF64ClampsRange(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(1.5))
	out := ConvertToI16(Mono64F, data)
	if got := int16(binary.LittleEndian.Uint16(out)); got != math.MaxInt16 {
		t.Fatalf("got %d, want %d", got, math.MaxInt16)
	}
}

func TestFlattenToMonoAveragesChannels(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(100)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(200)))
	neg := int16(-10)
	binary.LittleEndian.PutUint16(data[4:], uint16(neg))
	binary.LittleEndian.PutUint16(data[6:], uint16(int16(10)))

	out := FlattenToMono(data)
	if len(out) != 4 {
		t.Fatalf("got len %d, want 4", len(out))
	}
	if got := int16(binary.LittleEndian.Uint16(out[0:])); got != 150 {
		t.Fatalf("frame 0: got %d, want 150", got)
	}
	if got := int16(binary.LittleEndian.Uint16(out[2:])); got != 0 {
		t.Fatalf("frame 1: got %d, want 0", got)
	}
}
