package poscontrol

// Derivative is a first-order low-pass filtered discrete derivative of a
// scalar signal (§4.2). The filter constant is a tunable, defaulted here
// the way BlockDerivative's shared block parameter was defaulted in the
// source; callers needing a different cutoff construct their own instance
// with NewDerivativeWithCutoff.
type Derivative struct {
	cutoffHz  float32
	lastInput float32
	lastOut   float32
	first     bool
}

// defaultCutoffHz matches PX4's BlockDerivative stock LP filter constant.
const defaultCutoffHz = 10.0

func NewDerivative() *Derivative {
	return NewDerivativeWithCutoff(defaultCutoffHz)
}

func NewDerivativeWithCutoff(cutoffHz float32) *Derivative {
	return &Derivative{cutoffHz: cutoffHz, first: true}
}

// Update computes a filtered derivative of x given the elapsed time dt
// since the previous call, in seconds. The invariant in §4.2 — "when no
// valid input is available the caller must still call update(0) so filter
// state stays coherent" — is the caller's responsibility; Update itself
// always advances the filter, valid input or not.
func (d *Derivative) Update(x float32, dt float32) float32 {
	if d.first {
		d.lastInput = x
		d.lastOut = 0
		d.first = false
		return 0
	}

	if dt <= 0 {
		return d.lastOut
	}

	rawDeriv := (x - d.lastInput) / dt
	d.lastInput = x

	// First-order low-pass on the raw derivative: alpha is the
	// standard RC low-pass blend for a cutoff of cutoffHz at this dt.
	rc := float32(1.0 / (2 * 3.14159265 * d.cutoffHz))
	alpha := dt / (rc + dt)
	d.lastOut = d.lastOut + alpha*(rawDeriv-d.lastOut)

	return d.lastOut
}

// Reset clears filter state so the next Update primes it again like a
// first call.
func (d *Derivative) Reset() {
	d.first = true
	d.lastInput = 0
	d.lastOut = 0
}
