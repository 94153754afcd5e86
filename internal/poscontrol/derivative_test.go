package poscontrol

import "testing"

func TestDerivativeFirstCallPrimesState(t *testing.T) {
	d := NewDerivative()
	if got := d.Update(5.0, 0.1); got != 0 {
		t.Fatalf("first call should return 0, got %v", got)
	}
}

func TestDerivativeTracksConstantRamp(t *testing.T) {
	d := NewDerivativeWithCutoff(1000) // high cutoff: filter barely lags raw derivative
	d.Update(0, 0.01)
	var last float32
	for i := 0; i < 200; i++ {
		last = d.Update(float32(i+1)*0.01, 0.01)
	}
	if last < 0.9 || last > 1.1 {
		t.Fatalf("expected filtered derivative to converge near 1.0 for a unit ramp, got %v", last)
	}
}

func TestDerivativeZeroDtHoldsLastOutput(t *testing.T) {
	d := NewDerivative()
	d.Update(1, 0.1)
	out := d.Update(2, 0.1)
	held := d.Update(5, 0)
	if held != out {
		t.Fatalf("dt<=0 should hold the previous filtered output, got %v want %v", held, out)
	}
}

func TestDerivativeResetReprimes(t *testing.T) {
	d := NewDerivative()
	d.Update(1, 0.1)
	d.Update(2, 0.1)
	d.Reset()
	if got := d.Update(10, 0.1); got != 0 {
		t.Fatalf("after Reset the next call should behave like a first call, got %v", got)
	}
}
