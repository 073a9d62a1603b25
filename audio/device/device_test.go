package device

import (
	"testing"
	"time"

	"github.com/oxsomi/oxc3core/audio/format"
	"github.com/oxsomi/oxc3core/audio/source"
	"github.com/oxsomi/oxc3core/audio/stream"
	"github.com/oxsomi/oxc3core/refcount"
)

// fakeSource and fakeSink stand in for the file-backed decoder and hardware
// queue, which are out of scope for the core scheduler.
type fakeSource struct{}

func (fakeSource) ReadAt(buf []byte, offset uint64) (int, error) { return len(buf), nil }

type fakeSink struct {
	queuedTotal   int
	processedNext int
}

func (f *fakeSink) QueueBuffer(data []byte) { f.queuedTotal++ }

func (f *fakeSink) BuffersProcessed() int {
	n := f.processedNext
	f.processedNext = 0
	return n
}

func newStreamRef() *refcount.RefPtr[stream.Stream] {
	s := stream.New(stream.Info{Format: format.Stereo16, Duration: time.Minute, BytesPerSecond: 44100 * 4})
	return refcount.Create(0, s, nil)
}

func newSourceRef() *refcount.RefPtr[source.Source] {
	return refcount.Create(0, source.New(), nil)
}

func TestPlayThenStopTracksStreamCount(t *testing.T) {
	d := New()
	r := newStreamRef()

	if err := d.Play(r); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if d.StreamCount() != 1 {
		t.Fatalf("got StreamCount %d, want 1", d.StreamCount())
	}
	if !r.Ptr().IsPlaying() {
		t.Fatal("expected stream to be marked playing")
	}

	// Playing an already-playing stream is a no-op.
	if err := d.Play(r); err != nil {
		t.Fatalf("Play (again): %v", err)
	}
	if d.StreamCount() != 1 {
		t.Fatalf("got StreamCount %d after re-Play, want 1", d.StreamCount())
	}

	if err := d.Stop(r); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d.StreamCount() != 0 {
		t.Fatalf("got StreamCount %d after Stop, want 0", d.StreamCount())
	}
	if r.Ptr().IsPlaying() {
		t.Fatal("expected stream to no longer be playing")
	}
}

func TestUpdateRetiresFinishedAndStoppedStreams(t *testing.T) {
	d := New()
	live := newStreamRef()
	finished := newStreamRef()
	stopped := newStreamRef()

	for _, r := range []*refcount.RefPtr[stream.Stream]{live, finished, stopped} {
		if err := d.Play(r); err != nil {
			t.Fatalf("Play: %v", err)
		}
	}

	finished.Ptr().MarkFinished()
	stopped.Ptr().MarkStopped()

	if err := d.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if d.StreamCount() != 1 {
		t.Fatalf("got StreamCount %d after Update, want 1", d.StreamCount())
	}
	if d.streams.At(0).Deref() != live {
		t.Fatal("expected the only remaining stream to be the still-playing one")
	}
}

func TestUpdateFillsLoopingStreamAndCountsLoops(t *testing.T) {
	d := New()
	s := stream.New(stream.Info{
		Format:         format.Mono16,
		BytesPerSecond: 16000,
		DataLength:     16000,
		IsLoop:         true,
	})
	sink := &fakeSink{}
	s.Source, s.Sink = fakeSource{}, sink

	r := refcount.Create(0, s, nil)
	if err := d.Play(r); err != nil {
		t.Fatalf("Play: %v", err)
	}

	for i := 0; i < 10; i++ {
		sink.processedNext = 3
		if err := d.Update(); err != nil {
			t.Fatalf("Update tick %d: %v", i, err)
		}
		if q := s.Queued(); q > 3 {
			t.Fatalf("tick %d: got %d buffers in flight, want at most 3", i, q)
		}
	}

	if s.Loops() == 0 {
		t.Fatal("expected the looping stream to have wrapped at least once over 10 ticks")
	}
	if d.StreamCount() != 1 {
		t.Fatalf("got StreamCount %d, want the looping stream to remain scheduled", d.StreamCount())
	}
}

func TestAttachDetachSourceAndDirtyDrain(t *testing.T) {
	d := New()
	s := newSourceRef()

	if err := d.AttachSource(s); err != nil {
		t.Fatalf("AttachSource: %v", err)
	}
	if d.SourceCount() != 1 {
		t.Fatalf("got SourceCount %d, want 1", d.SourceCount())
	}

	s.Ptr().SetGain(0.3)
	if s.Ptr().Dirty() == 0 {
		t.Fatal("expected SetGain to mark the source dirty")
	}

	if err := d.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Ptr().Dirty() != 0 {
		t.Fatal("expected Update to drain the source's dirty mask")
	}

	if err := d.DetachSource(s); err != nil {
		t.Fatalf("DetachSource: %v", err)
	}
	if d.SourceCount() != 0 {
		t.Fatalf("got SourceCount %d after Detach, want 0", d.SourceCount())
	}
}
