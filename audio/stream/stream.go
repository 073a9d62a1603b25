// Package stream implements decoded-audio playback state: a format,
// duration, and byte rate describing the source material, a current
// playback offset, and a ring of three decode buffers a device cycles
// through to stay ahead of the hardware without allocating mid-stream.
package stream

import (
	"time"

	"github.com/oxsomi/oxc3core/audio/format"
	"github.com/oxsomi/oxc3core/oxerr"
)

// State is where a Stream sits in its playback lifecycle.
type State uint8

const (
	Created State = iota
	Playing
	Stopped
	Finished
)

// decodeBufferCount is the depth of the ring a device decodes ahead into;
// three keeps one buffer submitted to hardware, one ready to submit next,
// and one being filled by the decoder concurrently.
const decodeBufferCount = 3

// Info is the static description of a stream's source material.
type Info struct {
	Format         format.Format
	Duration       time.Duration
	BytesPerSecond uint64

	// DataLength is the exact byte length of the source payload. When left
	// zero it's derived from Duration and BytesPerSecond; callers that know
	// the real byte count (which may not divide evenly by the frame stride)
	// should set it explicitly so SeekTime's end-of-stream clamp is exact.
	DataLength uint64

	// IsLoop makes Fill wrap back to the start of the source material
	// instead of finishing once streamOffset reaches DataLength, bumping
	// Loops each time it wraps.
	IsLoop bool

	// FlattenSound downmixes a stereo source to mono after any format
	// conversion, for devices that only expose a mono output.
	FlattenSound bool
}

// DefaultBufferSize is the scratch length Device.Update decodes into each
// tick: large enough to stay ahead of real-time playback at any supported
// format, and a multiple of the widest frame size (2 channels * 8 bytes).
const DefaultBufferSize = 64 * 1024

// Source is the file-backed PCM provider a Stream decodes from, in its
// source format.Format. Reading the backing file is out of scope for this
// package; callers supply their own implementation (e.g. a buffered file
// stream opened from an archive entry).
type Source interface {
	ReadAt(buf []byte, offset uint64) (int, error)
}

// Sink is the external playback backend a Stream's decoded buffers are
// queued into. Driving the hardware queue is out of scope for this package;
// callers supply their own implementation (e.g. an OpenAL source).
type Sink interface {
	// BuffersProcessed returns how many previously queued buffers the
	// backend has finished consuming since the last call.
	BuffersProcessed() int
	QueueBuffer(data []byte)
}

// dataLength returns Info.DataLength, or a duration-derived estimate when
// the caller didn't set it explicitly.
func (s *Stream) dataLength() uint64 {
	if s.Info.DataLength != 0 {
		return s.Info.DataLength
	}
	return uint64(float64(s.Info.Duration) / float64(time.Second) * float64(s.Info.BytesPerSecond))
}

// Stream is one decodable audio source attached (optionally) to a device.
type Stream struct {
	Info Info

	// EffectiveFormat is the format Fill actually queues into the Sink. It
	// defaults to Info.Format; a device that can't natively play the source
	// format calls SetEffectiveFormat(Info.Format.Fallback()) once, and Fill
	// converts every decoded buffer before queueing it.
	EffectiveFormat format.Format

	Source Source
	Sink   Sink

	state        State
	timeOffset   time.Duration
	streamOffset uint64
	loops        uint64
	queued       int

	ring     [decodeBufferCount][]byte
	ringHead int
}

// New creates a fresh, unplayed Stream over the given source info.
func New(info Info) *Stream {
	return &Stream{Info: info, EffectiveFormat: info.Format}
}

// SetEffectiveFormat overrides the format Fill queues into the Sink; used by
// a device that determined it can't natively play Info.Format.
func (s *Stream) SetEffectiveFormat(f format.Format) { s.EffectiveFormat = f }

// Loops returns how many times this stream has wrapped back to the start of
// its source material. Only meaningful when Info.IsLoop is set.
func (s *Stream) Loops() uint64 { return s.loops }

// Queued returns how many decoded buffers are currently outstanding in the
// Sink's queue (submitted but not yet reported processed).
func (s *Stream) Queued() int { return s.queued }

// State returns the stream's current lifecycle state.
func (s *Stream) State() State { return s.state }

// DecodeBuffer returns the ring slot the decoder should fill next, resliced
// to exactly size bytes (reallocated only when its capacity is smaller), and
// advances the ring.
func (s *Stream) DecodeBuffer(size int) []byte {
	buf := s.ring[s.ringHead]
	if cap(buf) < size {
		buf = make([]byte, size)
	} else {
		buf = buf[:size]
	}
	s.ring[s.ringHead] = buf
	s.ringHead = (s.ringHead + 1) % decodeBufferCount
	return buf
}

// SeekTime moves the stream's read position to offset, recomputing the
// byte-aligned streamOffset from the source's byte rate and rounding UP to
// the next multiple of the format's frame stride. Offsets past the stream's
// duration are rejected; an offset landing at or past the end of the data
// (which can happen at exactly the duration when dataLength isn't itself a
// multiple of the stride) is clamped to the largest stride-aligned value
// strictly below dataLength rather than rejected.
func (s *Stream) SeekTime(offset time.Duration) error {
	if offset > s.Info.Duration {
		return oxerr.New(oxerr.InvalidParameter, "Stream.SeekTime", "offset out of bounds")
	}

	stride := uint64(s.Info.Format.Size())

	seconds := offset / time.Second
	remainder := offset % time.Second

	streamOffset := uint64(seconds) * s.Info.BytesPerSecond
	streamOffset += uint64(float64(remainder) * (float64(s.Info.BytesPerSecond) / float64(time.Second)))

	if stride > 0 {
		streamOffset = (streamOffset + stride - 1) / stride * stride
	}

	dataLen := s.dataLength()
	if dataLen > 0 && streamOffset >= dataLen {
		if stride > 0 {
			streamOffset = ((dataLen - 1) / stride) * stride
		} else {
			streamOffset = dataLen - 1
		}
	}

	s.timeOffset = offset
	s.streamOffset = streamOffset
	return nil
}

// TimeOffset returns the last position passed to SeekTime (or zero).
func (s *Stream) TimeOffset() time.Duration { return s.timeOffset }

// StreamOffset returns the byte offset into the source material SeekTime
// last computed.
func (s *Stream) StreamOffset() uint64 { return s.streamOffset }

// MarkPlaying transitions Created/Stopped into Playing; a no-op if already
// playing. Called only while the owning device holds its spinlock.
func (s *Stream) MarkPlaying() bool {
	if s.state == Playing {
		return false
	}
	s.state = Playing
	return true
}

// MarkStopped transitions out of Playing. Called only while the owning
// device holds its spinlock.
func (s *Stream) MarkStopped() bool {
	if s.state != Playing {
		return false
	}
	s.state = Stopped
	return true
}

// MarkFinished transitions the stream to Finished once its decode position
// has reached the end of the source material.
func (s *Stream) MarkFinished() { s.state = Finished }

// IsPlaying reports whether the device's update loop should keep decoding
// this stream.
func (s *Stream) IsPlaying() bool { return s.state == Playing }

// nextChunk reserves the next [offset, offset+n) window to decode, wrapping
// streamOffset back to zero and incrementing loops when the source is
// exhausted and Info.IsLoop is set. ok is false when there's nothing left to
// decode (non-looping stream at end of data).
func (s *Stream) nextChunk(maxLen int) (offset uint64, n int, ok bool) {
	dataLen := s.dataLength()

	if s.streamOffset >= dataLen {
		if !s.Info.IsLoop {
			return 0, 0, false
		}
		s.streamOffset = 0
		s.loops++
	}

	remaining := dataLen - s.streamOffset
	n = maxLen
	if uint64(n) > remaining {
		n = int(remaining)
	}
	if n == 0 {
		return 0, 0, false
	}

	offset = s.streamOffset
	s.streamOffset += uint64(n)
	return offset, n, true
}

// convert applies the runtime fallback path to a raw decoded buffer: formats
// other than EffectiveFormat are rewritten to I16 (24-bit keeps its upper
// two bytes, floats are scaled and clamped), then downmixed to mono if
// Info.FlattenSound is set and the source is stereo.
func (s *Stream) convert(raw []byte) []byte {
	src := s.Info.Format
	out := raw

	if s.EffectiveFormat != src {
		out = format.ConvertToI16(src, raw)
	}
	if s.Info.FlattenSound && src.Channels() == 2 {
		out = format.FlattenToMono(out)
	}

	return out
}

// Fill decodes as many ring buffers as the Sink has freed since the last
// tick (up to decodeBufferCount in flight at once), converting each to
// EffectiveFormat before queueing it. It's a no-op for a stream that isn't
// Playing or has no Source/Sink attached. Reaching the end of a non-looping
// stream's data with nothing left queued transitions it to Finished.
func (s *Stream) Fill(maxDecodeLen int) error {
	if !s.IsPlaying() || s.Source == nil || s.Sink == nil {
		return nil
	}

	processed := s.Sink.BuffersProcessed()
	if processed > s.queued {
		processed = s.queued
	}
	s.queued -= processed

	free := decodeBufferCount - s.queued
	if free < 0 {
		free = 0
	}

	for i := 0; i < free; i++ {
		offset, n, ok := s.nextChunk(maxDecodeLen)
		if !ok {
			break
		}

		raw := s.DecodeBuffer(n)
		if _, err := s.Source.ReadAt(raw, offset); err != nil {
			return oxerr.Wrap(oxerr.PlatformError, "Stream.Fill", err)
		}

		s.Sink.QueueBuffer(s.convert(raw))
		s.queued++
	}

	if !s.Info.IsLoop && s.queued == 0 && s.streamOffset >= s.dataLength() {
		s.MarkFinished()
	}

	return nil
}
