package posctrlpid

import (
	"math"

	"mcposctrl/internal/domain"
)

// ThrustToAttitude is ControlMath's pure projection of a thrust vector and
// yaw onto an AttitudeSetpoint (§4.10/§6). The body Z axis is taken
// opposite the thrust direction (NED body frame: z points down through the
// airframe, thrust pulls along -z); yaw is applied about the resulting
// tilted frame. When thrust is (numerically) zero the result falls back to
// level with the commanded yaw, which is also the function the controller
// loop's idle path (§4.8 step 6) reuses for "level, current yaw, zero thrust."
func ThrustToAttitude(thrust domain.Vec3, yaw float32) domain.AttitudeSetpoint {
	if !domain.IsFinite32(yaw) {
		yaw = 0
	}

	mag := vecNorm(thrust)

	var bodyZ domain.Vec3
	if mag < 1e-4 {
		bodyZ = domain.Vec3{X: 0, Y: 0, Z: 1} // level: body Z along world down (NED +Z)
	} else {
		bodyZ = domain.Vec3{X: -thrust.X / mag, Y: -thrust.Y / mag, Z: -thrust.Z / mag}
	}

	roll, pitch := tiltFromBodyZ(bodyZ, yaw)

	q := eulerToQuat(roll, pitch, yaw)

	clampedMag := mag
	if clampedMag > 1 {
		clampedMag = 1
	}
	if clampedMag < 0 {
		clampedMag = 0
	}

	return domain.AttitudeSetpoint{
		RollBody:   roll,
		PitchBody:  pitch,
		YawBody:    yaw,
		QD:         q,
		Thrust:     clampedMag,
		ThrustBody: domain.Vec3{X: 0, Y: 0, Z: -clampedMag},
	}
}

func vecNorm(v domain.Vec3) float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// tiltFromBodyZ recovers roll/pitch such that rotating the world Z axis by
// (roll, pitch, yaw) in the standard aerospace ZYX Euler order yields
// bodyZ. This is the same decomposition PX4's ControlMath performs to turn
// a desired thrust direction into a roll/pitch command, simplified to the
// small-angle-free closed form, which has no singular case for an
// upward-pointing thrust vector; a thrust vector with a downward component
// yields roll/pitch beyond ±90°.
func tiltFromBodyZ(bodyZ domain.Vec3, yaw float32) (roll, pitch float32) {
	sinYaw := float32(math.Sin(float64(yaw)))
	cosYaw := float32(math.Cos(float64(yaw)))

	// Rotate bodyZ's xy components into the yaw frame to decouple roll
	// from pitch.
	xYaw := bodyZ.X*cosYaw + bodyZ.Y*sinYaw
	yYaw := -bodyZ.X*sinYaw + bodyZ.Y*cosYaw

	pitch = float32(math.Atan2(float64(xYaw), float64(bodyZ.Z)))
	roll = float32(math.Atan2(float64(-yYaw), float64(bodyZ.Z)))
	return roll, pitch
}

// eulerToQuat converts an aerospace ZYX Euler triple to a w,x,y,z
// quaternion.
func eulerToQuat(roll, pitch, yaw float32) [4]float32 {
	cr := math.Cos(float64(roll) * 0.5)
	sr := math.Sin(float64(roll) * 0.5)
	cp := math.Cos(float64(pitch) * 0.5)
	sp := math.Sin(float64(pitch) * 0.5)
	cy := math.Cos(float64(yaw) * 0.5)
	sy := math.Sin(float64(yaw) * 0.5)

	return [4]float32{
		float32(cr*cp*cy + sr*sp*sy),
		float32(sr*cp*cy - cr*sp*sy),
		float32(cr*sp*cy + sr*cp*sy),
		float32(cr*cp*sy - sr*sp*cy),
	}
}
