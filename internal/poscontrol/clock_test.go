package poscontrol

import (
	"testing"
	"time"
)

func TestClockMonotonicMicroseconds(t *testing.T) {
	c := NewClock()
	first := c.Now()
	time.Sleep(2 * time.Millisecond)
	second := c.Now()

	if second <= first {
		t.Fatalf("expected clock to advance, got first=%d second=%d", first, second)
	}
	if second-first < 1000 {
		t.Fatalf("expected at least ~1ms (1000us) of elapsed time, got %dus", second-first)
	}
}
