package poscontrol

import (
	"math"

	"mcposctrl/internal/domain"
)

// SmoothTakeoff is the state machine gating climb rate during the first
// ascent after arming from the ground (§4.5) — the only piece guaranteeing
// a bounded thrust/velocity ramp from idle to flight.
type SmoothTakeoff struct {
	inSmoothTakeoff  bool
	takeoffSpeedRamp float32
}

func NewSmoothTakeoff() *SmoothTakeoff {
	return &SmoothTakeoff{takeoffSpeedRamp: -1}
}

// InSmoothTakeoff reports whether the ramp is currently active.
func (s *SmoothTakeoff) InSmoothTakeoff() bool {
	return s.inSmoothTakeoff
}

// TakeoffSpeedRamp returns the current ramp value (negative magnitude,
// NED convention: negative is up).
func (s *SmoothTakeoff) TakeoffSpeedRamp() float32 {
	return s.takeoffSpeedRamp
}

// CheckForSmoothTakeoff is the entry check (§4.5 "Entry"): only considered
// when landed and not already in smooth takeoff.
func (s *SmoothTakeoff) CheckForSmoothTakeoff(landed bool, zSp, vzSp float32, constraints domain.Constraints, position domain.Vec3, takeoffSpeedParam float32) {
	if !landed || s.inSmoothTakeoff {
		return
	}

	minAltitude := float32(0.20)
	if domain.IsFinite32(constraints.MinDistanceToGround) {
		minAltitude = constraints.MinDistanceToGround + 0.05
	}

	enterByPosition := domain.IsFinite32(zSp) && zSp < position.Z-minAltitude
	enterByVelocity := domain.IsFinite32(vzSp) && vzSp < minFloat32(-takeoffSpeedParam, -0.6)

	if enterByPosition || enterByVelocity {
		s.inSmoothTakeoff = true
		s.takeoffSpeedRamp = -0.5
	} else {
		s.inSmoothTakeoff = false
	}
}

// UpdateSmoothTakeoff is the ramp step (§4.5 "Ramp"), called every tick
// while InSmoothTakeoff is (or might become) true.
func (s *SmoothTakeoff) UpdateSmoothTakeoff(zSp, vzSp float32, takeoffSpeedParam, takeoffRampTimeS, landAlt2 float32, positionZ float32, dt float32) {
	if !s.inSmoothTakeoff {
		return
	}

	desired := -vzSp
	if domain.IsFinite32(zSp) {
		desired = takeoffSpeedParam
	}

	s.takeoffSpeedRamp = minFloat32(s.takeoffSpeedRamp+desired*dt/takeoffRampTimeS, desired)

	if domain.IsFinite32(zSp) {
		// PX4 assigns this comparison directly: it is true while the
		// vehicle is still below (position.z - 0.2 still exceeds)
		// the target altitude, and flips false once within 0.2m of
		// the target — that false is what ends the ramp.
		s.inSmoothTakeoff = positionZ-0.2 > maxFloat32(zSp, -landAlt2)
	} else {
		s.inSmoothTakeoff = s.takeoffSpeedRamp < -vzSp
	}
}

// Active reports whether the arm-hysteresis and vertical-state
// preconditions for running smooth takeoff at all are satisfied (§4.5
// "Arming check"). The controller loop only calls CheckForSmoothTakeoff /
// UpdateSmoothTakeoff when this holds.
func Active(armHysteresisState bool, positionZ, velocityZ float32) bool {
	return armHysteresisState && domain.IsFinite32(positionZ) && domain.IsFinite32(velocityZ)
}

// ApplyOverride mutates sp/constraints per §4.5 "Override", applied to the
// outgoing setpoint before the PID core runs.
func (s *SmoothTakeoff) ApplyOverride(sp *domain.Setpoint, constraints *domain.Constraints) {
	if !s.inSmoothTakeoff {
		return
	}

	constraints.SpeedUp = s.takeoffSpeedRamp

	nan := float32(math.NaN())
	sp.Yaw = nan
	sp.YawSpeed = nan
	sp.X = nan
	sp.Y = nan
	sp.VX = 0
	sp.VY = 0
}

func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
