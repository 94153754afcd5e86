package poscontrol

import (
	"math"

	"mcposctrl/internal/domain"
)

// StateValidator ingests a raw LocalPosition sample and the last vertical
// velocity setpoint, producing a ControllerStates with NaN substituted per
// axis wherever the estimator says a field is invalid (§4.3).
type StateValidator struct {
	velXDeriv *Derivative
	velYDeriv *Derivative
	velZDeriv *Derivative

	landSpeed float32

	states domain.ControllerStates
}

func NewStateValidator() *StateValidator {
	return &StateValidator{
		velXDeriv: NewDerivative(),
		velYDeriv: NewDerivative(),
		velZDeriv: NewDerivative(),
	}
}

// States returns the most recently computed ControllerStates.
func (sv *StateValidator) States() domain.ControllerStates {
	return sv.states
}

// Update applies the rules in §4.3. landSpeed is the current
// params.Parameters.LandSpeed (needed for the z-velocity blend weighting).
// A LocalPosition with Timestamp == 0 means "not yet received": per spec,
// do nothing and leave the previous ControllerStates untouched.
func (sv *StateValidator) Update(lp domain.LocalPosition, vzSetpoint float32, landSpeed float32, dt float32) {
	if lp.Timestamp == 0 {
		return
	}
	sv.landSpeed = landSpeed

	nan := float32(math.NaN())

	// xy position: joint validity.
	if lp.XYValid && domain.IsFinite32(lp.X) && domain.IsFinite32(lp.Y) {
		sv.states.Position.X = lp.X
		sv.states.Position.Y = lp.Y
	} else {
		sv.states.Position.X = nan
		sv.states.Position.Y = nan
	}

	// z position: independent of xy.
	if lp.ZValid && domain.IsFinite32(lp.Z) {
		sv.states.Position.Z = lp.Z
	} else {
		sv.states.Position.Z = nan
	}

	// xy velocity & acceleration.
	if lp.VXYValid && domain.IsFinite32(lp.VX) && domain.IsFinite32(lp.VY) {
		sv.states.Velocity.X = lp.VX
		sv.states.Velocity.Y = lp.VY
		sv.states.Acceleration.X = sv.velXDeriv.Update(-sv.states.Velocity.X, dt)
		sv.states.Acceleration.Y = sv.velYDeriv.Update(-sv.states.Velocity.Y, dt)
	} else {
		sv.states.Velocity.X = nan
		sv.states.Velocity.Y = nan
		sv.states.Acceleration.X = nan
		sv.states.Acceleration.Y = nan
		sv.velXDeriv.Update(0, dt)
		sv.velYDeriv.Update(0, dt)
	}

	// z velocity.
	if domain.IsFinite32(lp.VZ) {
		if domain.IsFinite32(vzSetpoint) && vzSetpoint != 0 && domain.IsFinite32(lp.ZDeriv) {
			// A change in velocity is demanded: blend the
			// position-derivative estimate (lower bias) with the
			// raw estimator velocity across the landing-speed
			// range. NOTE (see DESIGN.md "open question 1"): the
			// PX4 source computes this exact blend and then
			// unconditionally overwrites it with the raw vz on
			// the next line, so the blend is always discarded in
			// the original controller. We reproduce that
			// behavior byte-for-byte rather than "fixing" it,
			// since changing it would alter flight-tested
			// control behavior without a spec'd rationale. The
			// blend is still computed (and tested) because a
			// future deliberate change to use it should be a
			// one-line diff, not a rewrite.
			weighting := float32(1.0)
			if abs32(vzSetpoint)/sv.landSpeed < 1.0 {
				weighting = abs32(vzSetpoint) / sv.landSpeed
			}
			_ = lp.ZDeriv*weighting + lp.VZ*(1-weighting) // blended v_z, intentionally unused
		}

		sv.states.Velocity.Z = lp.VZ
		sv.states.Acceleration.Z = sv.velZDeriv.Update(-sv.states.Velocity.Z, dt)
	} else {
		sv.states.Velocity.Z = nan
		sv.states.Acceleration.Z = nan
		sv.velZDeriv.Update(0, dt)
	}

	if domain.IsFinite32(lp.Yaw) {
		sv.states.Yaw = lp.Yaw
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
