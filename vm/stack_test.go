package vm

import "testing"

func TestStackByteRoundTrip(t *testing.T) {
	s := newStack()
	for _, b := range []byte{0x01, 0x02, 0x03} {
		assert(t, s.pushByte(b) == nil, "push %d failed", b)
	}
	for _, want := range []byte{0x03, 0x02, 0x01} {
		got, err := s.popByte()
		assert(t, err == nil, "pop failed: %v", err)
		assert(t, got == want, "got %d want %d", got, want)
	}
}

func TestStackShortRoundTrip(t *testing.T) {
	s := newStack()
	assert(t, s.pushShort(0x1234) == nil, "push short failed")
	first, _ := s.popByte()
	second, _ := s.popByte()
	assert(t, first == 0x34 && second == 0x12, "expected push-high-then-low (low byte on top), got first=%#x second=%#x", first, second)

	s2 := newStack()
	s2.pushShort(0xBEEF)
	got, err := s2.popShort()
	assert(t, err == nil, "pop short failed: %v", err)
	assert(t, got == 0xBEEF, "got %#x want 0xBEEF", got)
}

func TestStackKeepModeIsNonDestructive(t *testing.T) {
	s := newStack()
	s.pushByte(0x11)
	s.pushByte(0x22)
	s.pushByte(0x33)

	s.setKeepMode(true)
	first, _ := s.popByte()
	second, _ := s.popByte()
	assert(t, first == 0x33 && second == 0x22, "keep-mode pops should read progressively deeper bytes, got %#x %#x", first, second)
	assert(t, len(s.data) == 3, "keep mode must not remove bytes, len=%d", len(s.data))

	s.setKeepMode(false)
	assert(t, s.popOffset == 0, "leaving keep mode must reset pop_offset")
	top, _ := s.popByte()
	assert(t, top == 0x33, "destructive pop after leaving keep mode should see the real top, got %#x", top)
}

func TestStackUnderflow(t *testing.T) {
	s := newStack()
	_, err := s.popByte()
	assert(t, err != nil, "expected underflow on empty stack")
}

func TestStackOverflow(t *testing.T) {
	s := newStack()
	var err error
	for i := 0; i < stackCapacity; i++ {
		err = s.pushByte(byte(i))
		assert(t, err == nil, "unexpected overflow at depth %d", i)
	}
	err = s.pushByte(0xFF)
	assert(t, err != nil, "expected overflow past capacity %d", stackCapacity)
}
