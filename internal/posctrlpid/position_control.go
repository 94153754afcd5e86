// Package posctrlpid implements the out-of-scope-but-specified pure-function
// collaborators of §6: the PositionControl PID core (position error -> P
// loop -> velocity setpoint -> PID loop -> thrust) and ControlMath's
// thrust-to-attitude projection. Structured as a two-degrees-of-freedom
// controller the same way the teacher's FeedforwardPIDController separates
// accumulation of P/I/D state per axis with anti-windup clamps
// (closed_loop/longitudinal_control/feedforward_pid_controller.go),
// generalized from one scalar (vehicle speed) to three independent axes.
package posctrlpid

import (
	"mcposctrl/internal/domain"
)

// Gains holds the per-axis PID tuning. NaN-free by construction; defaults
// mirror PX4's stock MPC_XY_*/MPC_Z_* parameters closely enough to produce
// plausible closed-loop behavior without being a tuning guide.
type Gains struct {
	PosP             domain.Vec3 // position-error -> velocity-setpoint proportional gain
	VelP             domain.Vec3
	VelI             domain.Vec3
	VelD             domain.Vec3
	VelIntegralLimit domain.Vec3
	ThrustMax        float32
}

func DefaultGains() Gains {
	return Gains{
		PosP:             domain.Vec3{X: 0.95, Y: 0.95, Z: 1.0},
		VelP:             domain.Vec3{X: 1.8, Y: 1.8, Z: 4.0},
		VelI:             domain.Vec3{X: 0.4, Y: 0.4, Z: 2.0},
		VelD:             domain.Vec3{X: 0.2, Y: 0.2, Z: 0.0},
		VelIntegralLimit: domain.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
		ThrustMax:        0.9,
	}
}

// axisState is the per-axis accumulated PID state.
type axisState struct {
	integral  float32
	prevError float32
}

// PositionControl is the PID core. A single instance belongs to the
// controller loop; its methods are not safe for concurrent use, matching
// the single-writer discipline of §5.
type PositionControl struct {
	gains Gains

	constraints domain.Constraints
	states      domain.ControllerStates
	setpoint    domain.Setpoint

	velAxis [3]axisState

	thrustSp domain.Vec3
	posSp    domain.Vec3
	velSp    domain.Vec3
	yawSp    float32
	yawSpeedSp float32
}

func New(gains Gains) *PositionControl {
	return &PositionControl{gains: gains}
}

func (p *PositionControl) UpdateConstraints(c domain.Constraints) { p.constraints = c }
func (p *PositionControl) UpdateState(s domain.ControllerStates)  { p.states = s }
func (p *PositionControl) UpdateSetpoint(sp domain.Setpoint)      { p.setpoint = sp }

// ResetIntegralXY / ResetIntegralZ satisfy §6's contract and
// poscontrol.IntegralResetter.
func (p *PositionControl) ResetIntegralXY() {
	p.velAxis[0].integral = 0
	p.velAxis[1].integral = 0
}

func (p *PositionControl) ResetIntegralZ() {
	p.velAxis[2].integral = 0
}

// GenerateThrustYawSetpoint runs the position-then-velocity PID cascade
// for dt seconds and leaves the result in ThrustSetpoint/PositionSetpoint/
// VelocitySetpoint/YawSetpoint/YawSpeedSetpoint. NaN setpoint fields mean
// "axis free": that axis's error/integral accumulation is skipped for the
// tick, per the sentinel convention in §3 — idempotent across repeated
// identical inputs, since nothing but dt advances state when an axis stays
// free the whole time.
func (p *PositionControl) GenerateThrustYawSetpoint(dt float32) {
	posTargets := [3]float32{p.setpoint.X, p.setpoint.Y, p.setpoint.Z}
	velTargets := [3]float32{p.setpoint.VX, p.setpoint.VY, p.setpoint.VZ}
	statePos := [3]float32{p.states.Position.X, p.states.Position.Y, p.states.Position.Z}
	stateVel := [3]float32{p.states.Velocity.X, p.states.Velocity.Y, p.states.Velocity.Z}
	posP := [3]float32{p.gains.PosP.X, p.gains.PosP.Y, p.gains.PosP.Z}
	velP := [3]float32{p.gains.VelP.X, p.gains.VelP.Y, p.gains.VelP.Z}
	velI := [3]float32{p.gains.VelI.X, p.gains.VelI.Y, p.gains.VelI.Z}
	velD := [3]float32{p.gains.VelD.X, p.gains.VelD.Y, p.gains.VelD.Z}
	intLimit := [3]float32{p.gains.VelIntegralLimit.X, p.gains.VelIntegralLimit.Y, p.gains.VelIntegralLimit.Z}
	directThrust := [3]float32{p.setpoint.Thrust.X, p.setpoint.Thrust.Y, p.setpoint.Thrust.Z}

	var thrust [3]float32
	var outPos [3]float32
	var outVel [3]float32

	for axis := 0; axis < 3; axis++ {
		outPos[axis] = posTargets[axis]

		// Position -> velocity-setpoint P loop, only when a position
		// target is given and the matching state is known.
		velTarget := velTargets[axis]
		if domain.IsFinite32(posTargets[axis]) && domain.IsFinite32(statePos[axis]) {
			posErr := posTargets[axis] - statePos[axis]
			velTarget = posP[axis] * posErr
			if domain.IsFinite32(velTargets[axis]) {
				// Both position and velocity given: velocity
				// setpoint is a feed-forward added to the
				// position loop's output, matching PX4's
				// velocity-feedforward-on-position-setpoint
				// convention.
				velTarget += velTargets[axis]
			}
		}
		outVel[axis] = velTarget

		if domain.IsFinite32(directThrust[axis]) {
			// Direct thrust override for this axis (manual/idle
			// paths hand the PID core a fixed thrust): pass it
			// through untouched and leave the integral alone.
			thrust[axis] = directThrust[axis]
			continue
		}

		if !domain.IsFinite32(velTarget) || !domain.IsFinite32(stateVel[axis]) {
			// Axis fully free: no constraint, no accumulation.
			thrust[axis] = 0
			continue
		}

		err := velTarget - stateVel[axis]
		st := &p.velAxis[axis]

		st.integral += err * dt
		if st.integral > intLimit[axis] {
			st.integral = intLimit[axis]
		} else if st.integral < -intLimit[axis] {
			st.integral = -intLimit[axis]
		}

		var d float32
		if dt > 0 {
			d = velD[axis] * (err - st.prevError) / dt
		}
		st.prevError = err

		thrust[axis] = velP[axis]*err + velI[axis]*st.integral + d
	}

	// z-axis thrust direction: climbing (negative vz error correction)
	// maps to negative (upward) thrust in NED; clamp magnitude to the
	// configured ceiling.
	for axis := 0; axis < 3; axis++ {
		if thrust[axis] > p.gains.ThrustMax {
			thrust[axis] = p.gains.ThrustMax
		} else if thrust[axis] < -p.gains.ThrustMax {
			thrust[axis] = -p.gains.ThrustMax
		}
	}

	p.thrustSp = domain.Vec3{X: thrust[0], Y: thrust[1], Z: thrust[2]}
	p.posSp = domain.Vec3{X: outPos[0], Y: outPos[1], Z: outPos[2]}
	p.velSp = domain.Vec3{X: outVel[0], Y: outVel[1], Z: outVel[2]}

	p.yawSp = p.setpoint.Yaw
	p.yawSpeedSp = p.setpoint.YawSpeed
}

func (p *PositionControl) ThrustSetpoint() domain.Vec3   { return p.thrustSp }
func (p *PositionControl) PositionSetpoint() domain.Vec3 { return p.posSp }
func (p *PositionControl) VelocitySetpoint() domain.Vec3 { return p.velSp }
func (p *PositionControl) YawSetpoint() float32          { return p.yawSp }
func (p *PositionControl) YawSpeedSetpoint() float32     { return p.yawSpeedSp }
