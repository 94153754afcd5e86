package poscontrol

import "mcposctrl/internal/domain"

// AltitudeFence clamps the vertical setpoint when the vehicle is at or
// would overshoot a home-relative altitude ceiling (§4.4).
type AltitudeFence struct{}

// Apply mutates sp in place. altMax < 0 disables the fence; home.ValidAlt
// == false or an invalid vertical state likewise no-op per §4.4.
func (AltitudeFence) Apply(sp *domain.Setpoint, states domain.ControllerStates, altMax float32, home domain.HomePosition, dt float32) {
	if altMax < 0 || !home.ValidAlt || !domain.IsFinite32(states.Velocity.Z) {
		return
	}

	altitudeAboveHome := -(states.Position.Z - home.Z)

	if altitudeAboveHome > altMax {
		sp.Z = -altMax + home.Z
		sp.VZ = 0
		return
	}

	if sp.VZ <= 0 {
		deltaP := altMax - altitudeAboveHome
		if abs32(sp.VZ)*dt > deltaP {
			sp.Z = -altMax + home.Z
			sp.VZ = 0
		}
	}
}
