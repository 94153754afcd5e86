package poscontrol

// Hysteresis debounces a boolean: a transition only takes effect after the
// input has held the opposite-of-current value continuously for the
// configured dwell (§4.1). The controller only ever configures the
// false->true direction (arming long enough for the rotors to reach idle),
// so that is the only dwell this type tracks; a false->true/true->false
// symmetric version was dropped as unused ceremony — spec.md §4.1 only
// describes one direction.
type Hysteresis struct {
	state         bool
	dwellToTrueUs uint64
	pendingSince  uint64
	pending       bool
	haveSeenFirst bool
}

// NewHysteresis constructs a Hysteresis starting at initial with the given
// false->true dwell time in microseconds.
func NewHysteresis(initial bool, dwellToTrueUs uint64) *Hysteresis {
	return &Hysteresis{state: initial, dwellToTrueUs: dwellToTrueUs}
}

// Update re-evaluates the debounced state given the latest input sample
// and the current clock reading, both in the units Clock.Now() produces.
func (h *Hysteresis) Update(input bool, now uint64) {
	if input == h.state {
		h.pending = false
		return
	}

	if !input {
		// Only the false->true direction is debounced; the opposite
		// transition (disarm) takes effect immediately so the
		// controller never lags behind a disarm command.
		h.state = false
		h.pending = false
		return
	}

	if !h.pending || !h.haveSeenFirst {
		h.pending = true
		h.pendingSince = now
		h.haveSeenFirst = true
		return
	}

	if now-h.pendingSince >= h.dwellToTrueUs {
		h.state = true
		h.pending = false
	}
}

// SetStateAndUpdate is the PX4-idiom convenience that both feeds a new
// sample and returns the resulting debounced state in one call, matching
// set_state_and_update's call sites in the original source.
func (h *Hysteresis) SetStateAndUpdate(input bool, now uint64) bool {
	h.Update(input, now)
	return h.state
}

// Reset forces the debounced state directly, bypassing dwell — used when
// disarming (§4.7: "When disarmed: ... reset armed hysteresis to false").
func (h *Hysteresis) Reset(state bool) {
	h.state = state
	h.pending = false
}

// GetState returns the current debounced value.
func (h *Hysteresis) GetState() bool {
	return h.state
}
