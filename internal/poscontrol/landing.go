package poscontrol

import (
	"math"

	"mcposctrl/internal/domain"
)

// LandingShaper implements the landing / ground-contact thrust shaping and
// integrator reset policy of §4.6.
type LandingShaper struct{}

// IntegralResetter is the subset of the PID core's contract the shaper
// needs; kept narrow so tests can substitute a spy without building a full
// PositionControl.
type IntegralResetter interface {
	ResetIntegralXY()
	ResetIntegralZ()
}

// ApplyPostPID implements the two post-PID triggers: ground_contact zeroes
// lateral thrust and resets the XY integral; maybe_landed zeroes all
// thrust and resets both integrals.
func (LandingShaper) ApplyPostPID(thrustSp *domain.Vec3, land domain.LandDetection, pid IntegralResetter) {
	if land.GroundContact {
		thrustSp.X = 0
		thrustSp.Y = 0
		pid.ResetIntegralXY()
	}

	if land.MaybeLanded {
		thrustSp.X = 0
		thrustSp.Y = 0
		thrustSp.Z = 0
		pid.ResetIntegralXY()
		pid.ResetIntegralZ()
	}
}

// ApplyPreLandedIdle implements the pre-PID landed-idle override: when
// landed, not mid-smooth-takeoff, and the setpoint leaves vertical thrust
// undefined, force a zero-thrust idle setpoint with landing gear kept.
func (LandingShaper) ApplyPreLandedIdle(sp *domain.Setpoint, constraints *domain.Constraints, states domain.ControllerStates, landed, inSmoothTakeoff bool) {
	if !landed || inSmoothTakeoff || domain.IsFinite32(sp.Thrust.Z) {
		return
	}

	nan := float32(math.NaN())
	sp.Thrust = domain.Vec3{X: 0, Y: 0, Z: 0}
	sp.X, sp.Y, sp.Z = nan, nan, nan
	sp.VX, sp.VY, sp.VZ = nan, nan, nan
	sp.YawSpeed = nan
	sp.Yaw = states.Yaw
	constraints.LandingGear = domain.LandingGearKeep
}
