// Package domain holds the data types shared by the position-control loop,
// the flight-task black boxes, and the PID core. Every field follows the
// NaN-as-"don't care" sentinel convention described at the module root.
package domain

import "math"

// Vec3 is a NED vector: X north, Y east, Z down.
type Vec3 struct {
	X, Y, Z float32
}

// IsFinite reports whether all three components are finite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// IsFinite32 is the free-function form of the finite check, used wherever a
// lone float needs validating outside of a Vec3.
func IsFinite32(f float32) bool {
	return isFinite(f)
}

// ControllerStates is the validated estimator snapshot the PID core
// consumes. Any component may be NaN to mark it invalid; per the data
// model, position.x finite implies position.y finite (xy validity is
// joint), while z position/velocity are tracked independently.
type ControllerStates struct {
	Position     Vec3
	Velocity     Vec3
	Acceleration Vec3
	Yaw          float32
}

// Setpoint is produced by a flight task and mutated by the core on the way
// to the PID controller. NaN on any field means "don't care" for that axis.
type Setpoint struct {
	X, Y, Z    float32
	VX, VY, VZ float32
	Thrust     Vec3
	Yaw        float32
	YawSpeed   float32
}

// NaNSetpoint returns a setpoint with every field NaN, the base case used
// by the controller loop's task-update failsafe (§4.8 step 5a).
func NaNSetpoint() Setpoint {
	n := float32(math.NaN())
	return Setpoint{
		X: n, Y: n, Z: n,
		VX: n, VY: n, VZ: n,
		Thrust:   Vec3{n, n, n},
		Yaw:      n,
		YawSpeed: n,
	}
}

// LandingGear mirrors PX4's vehicle_constraints_s::GEAR_* / landing-gear
// enum. Zero value is None: "don't change the current gear command."
type LandingGear int

const (
	LandingGearNone LandingGear = iota
	LandingGearUp
	LandingGearDown
	LandingGearKeep
)

// Constraints accompanies a Setpoint out of a flight task.
type Constraints struct {
	SpeedUp             float32
	SpeedDown           float32
	MinDistanceToGround float32 // may be NaN
	LandingGear         LandingGear
	TiltMax             float32
}

// NavState is the subset of vehicle_status_s nav_state values the
// flight-task selector dispatches on, plus enough extra members to give
// VehicleStatus a realistic range for tests.
type NavState int

const (
	NavStateManual NavState = iota
	NavStateAltctl
	NavStatePosctl
	NavStateAutoMission
	NavStateAutoLoiter
	NavStateAutoRTL
	NavStateAutoFollowTarget
	NavStateOffboard
	NavStateStab
)

// VehicleStatus carries the navigation-mode input the selector dispatches
// on and the airframe kind. IsVTOL is not read by the controller loop,
// which publishes on a single attitude setpoint topic.
type VehicleStatus struct {
	NavState NavState
	IsVTOL   bool
}

// LandDetection mirrors vehicle_land_detected_s.
type LandDetection struct {
	Landed        bool
	MaybeLanded   bool
	GroundContact bool
	AltMax        float32 // negative disables the altitude fence
}

// ControlMode mirrors vehicle_control_mode_s's relevant flags.
type ControlMode struct {
	Armed               bool
	AutoEnabled         bool
	OffboardEnabled     bool
	PositionEnabled     bool
	VelocityEnabled     bool
	AccelerationEnabled bool
}

// HomePosition mirrors home_position_s's altitude-relevant fields.
type HomePosition struct {
	Z        float32
	ValidAlt bool
}

// LocalPosition is the raw estimator sample StateValidator ingests.
type LocalPosition struct {
	Timestamp  uint64
	X, Y, Z    float32
	XYValid    bool
	ZValid     bool
	VX, VY, VZ float32
	VXYValid   bool
	ZDeriv     float32
	Yaw        float32
}

// LocalPositionSetpoint is the published logging/telemetry topic filled
// from the PID core's getters at the end of each tick.
type LocalPositionSetpoint struct {
	Timestamp     uint64
	X, Y, Z       float32
	VX, VY, VZ    float32
	Yaw, YawSpeed float32
	Thrust        Vec3
}

// AttitudeSetpoint is the published setpoint for the inner attitude
// controller. Recovered from the original PX4 source: spec.md's data model
// treats it as an external collaborator's output type but the testable
// property "every field is finite" (§8) requires it to exist concretely.
type AttitudeSetpoint struct {
	Timestamp     uint64
	RollBody      float32
	PitchBody     float32
	YawBody       float32
	YawSpMoveRate float32
	QD            [4]float32 // w, x, y, z
	Thrust        float32
	ThrustBody    Vec3
	LandingGear   LandingGear
}

// FlightTaskIndex is the tagged variant the selector dispatches by,
// replacing PX4's FlightTaskIndex enum class.
type FlightTaskIndex int

const (
	FlightTaskNone FlightTaskIndex = iota
	FlightTaskOffboard
	FlightTaskAutoFollowMe
	FlightTaskAutoLine
	FlightTaskPosition
	FlightTaskPositionSmooth
	FlightTaskSport
	FlightTaskAltitude
	FlightTaskStabilized
)

func (i FlightTaskIndex) String() string {
	switch i {
	case FlightTaskNone:
		return "None"
	case FlightTaskOffboard:
		return "Offboard"
	case FlightTaskAutoFollowMe:
		return "AutoFollowMe"
	case FlightTaskAutoLine:
		return "AutoLine"
	case FlightTaskPosition:
		return "Position"
	case FlightTaskPositionSmooth:
		return "PositionSmooth"
	case FlightTaskSport:
		return "Sport"
	case FlightTaskAltitude:
		return "Altitude"
	case FlightTaskStabilized:
		return "Stabilized"
	default:
		return "Unknown"
	}
}

// ActivationError replaces PX4's integer error codes per §9.
type ActivationError int

const (
	ActivationOk ActivationError = iota
	ActivationNotImplemented
	ActivationFailed
	ActivationInvalidReference
	ActivationNoDataReceived
)

func (e ActivationError) String() string {
	switch e {
	case ActivationOk:
		return "ok"
	case ActivationNotImplemented:
		return "not implemented"
	case ActivationFailed:
		return "activation failed"
	case ActivationInvalidReference:
		return "invalid reference"
	case ActivationNoDataReceived:
		return "no data received"
	default:
		return "unknown error"
	}
}
