package source

import "testing"

func TestSetGainMarksDirtyOnlyOnChange(t *testing.T) {
	s := New()
	s.ConsumeDirty()

	s.SetGain(s.Gain)
	if s.Dirty() != 0 {
		t.Fatal("setting the same gain should not mark dirty")
	}

	s.SetGain(0.5)
	if s.Dirty()&DirtyGain == 0 {
		t.Fatal("expected DirtyGain to be set")
	}
}

func TestConsumeDirtyCoalescesMultipleSetters(t *testing.T) {
	s := New()
	s.ConsumeDirty()

	s.SetGain(0.2)
	s.SetPitch(1.5)
	s.SetPosition(Vec3{1, 2, 3})

	got := s.ConsumeDirty()
	want := DirtyGain | DirtyPitch | DirtyPosition
	if got != want {
		t.Fatalf("got dirty mask %b, want %b", got, want)
	}
	if s.Dirty() != 0 {
		t.Fatal("ConsumeDirty should clear the mask")
	}
}
