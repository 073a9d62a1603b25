// Package device implements the audio device scheduler: a spinlock-guarded
// set of currently-playing streams and attached sources, and a per-tick
// Update that decodes ahead, applies coalesced source parameter changes,
// and retires finished streams.
package device

import (
	"time"

	"github.com/oxsomi/oxc3core/audio/source"
	"github.com/oxsomi/oxc3core/audio/stream"
	"github.com/oxsomi/oxc3core/oxerr"
	"github.com/oxsomi/oxc3core/refcount"
	"github.com/oxsomi/oxc3core/refcount/spinlock"
)

// lockToken identifies this device's owner for spinlock acquisition; a
// device only ever locks from its own update/control goroutine pairing, so
// a single fixed token is enough to detect re-entrancy bugs.
const lockToken int64 = 1

// Device schedules playback for a set of streams and tracks attached
// sources. All list mutation happens under lock; Update holds it for the
// whole tick, including each stream's decode.
type Device struct {
	lock spinlock.Spinlock

	streams refcount.WeakList[stream.Stream]
	sources refcount.WeakList[source.Source]

	// Listener is the position used for stubbed distance attenuation --
	// this package doesn't synthesize audio, only schedules buffers, so
	// there is no DSP consuming it yet.
	Listener source.Vec3
}

// New returns an idle device with no attached streams or sources.
func New() *Device { return &Device{} }

func (d *Device) withLock(op string, fn func()) error {
	acq := d.lock.Lock(lockToken, time.Second)
	if acq == spinlock.TimedOut {
		return oxerr.New(oxerr.TimedOut, op, "couldn't acquire device lock in time")
	}
	if acq == spinlock.Fresh {
		defer d.lock.Unlock(lockToken)
	}
	fn()
	return nil
}

// Play starts (or no-ops if already playing) s on this device.
func (d *Device) Play(s *refcount.RefPtr[stream.Stream]) error {
	return d.withLock("Device.Play", func() {
		if d.streams.Contains(s) {
			return
		}
		s.Ptr().MarkPlaying()
		d.streams.Push(refcount.WrapWeak(s))
	})
}

// Stop halts s and removes it from this device's schedule.
func (d *Device) Stop(s *refcount.RefPtr[stream.Stream]) error {
	return d.withLock("Device.Stop", func() {
		for i := 0; i < d.streams.Len(); i++ {
			if d.streams.At(i).Deref() == s {
				d.streams.SwapRemove(i)
				break
			}
		}
		s.Ptr().MarkStopped()
	})
}

// AttachSource registers src with the device (e.g. so device-wide updates
// can apply its coalesced dirty state).
func (d *Device) AttachSource(src *refcount.RefPtr[source.Source]) error {
	return d.withLock("Device.AttachSource", func() {
		if !d.sources.Contains(src) {
			d.sources.Push(refcount.WrapWeak(src))
		}
	})
}

// DetachSource removes src from the device.
func (d *Device) DetachSource(src *refcount.RefPtr[source.Source]) error {
	return d.withLock("Device.DetachSource", func() {
		for i := 0; i < d.sources.Len(); i++ {
			if d.sources.At(i).Deref() == src {
				d.sources.SwapRemove(i)
				break
			}
		}
	})
}

// Update ticks the device once: each still-playing stream gets a chance to
// fill its ring from its Source and queue decoded buffers into its Sink
// (§4.G), streams that finished or were stopped (before or as a result of
// this tick's fill) are dropped -- iterating backwards so SwapRemove never
// skips a neighbour -- and every source's dirty mask is drained so a burst
// of parameter changes between ticks applies once.
func (d *Device) Update() error {
	return d.withLock("Device.Update", func() {
		for i := d.streams.Len() - 1; i >= 0; i-- {
			s := d.streams.At(i).Deref().Ptr()

			if s.State() == stream.Playing {
				if err := s.Fill(stream.DefaultBufferSize); err != nil {
					s.MarkStopped()
				}
			}

			if s.State() == stream.Finished || s.State() == stream.Stopped {
				d.streams.SwapRemove(i)
			}
		}

		for i := 0; i < d.sources.Len(); i++ {
			d.sources.At(i).Deref().Ptr().ConsumeDirty()
		}
	})
}

// StreamCount returns the number of streams currently scheduled.
func (d *Device) StreamCount() int {
	n := 0
	_ = d.withLock("Device.StreamCount", func() { n = d.streams.Len() })
	return n
}

// SourceCount returns the number of sources currently attached.
func (d *Device) SourceCount() int {
	n := 0
	_ = d.withLock("Device.SourceCount", func() { n = d.sources.Len() })
	return n
}
