// Package flighttask implements the flight-task black box contract of §6
// and a small registry of concrete tasks sufficient to exercise the
// FlightTaskSelector cascade end to end (§4.7, §4.11 [EXPANSION]).
// Individual trajectory generation is explicitly out of scope (spec.md
// §1); these are scripted setpoint generators, grounded on the teacher's
// JSON scenario/segment evaluation in closed_loop/scenario.go.
package flighttask

import (
	"math"
	"time"

	"mcposctrl/internal/domain"
	"mcposctrl/internal/params"
)

// Task is the capability set every flight task satisfies (§6/§9: "a
// capability set {update, get_setpoint, get_constraints,
// handle_parameter_update} with a tagged variant for the concrete task
// kind").
type Task interface {
	Update(now time.Time, states domain.ControllerStates) bool
	PositionSetpoint() domain.Setpoint
	Constraints() domain.Constraints
	HandleParameterUpdate(p params.Parameters)
}

// holdPositionSetpoint is the default setpoint a scripted task produces
// outside any configured segment: hold the current position with no
// velocity/thrust command, matching "defaulting to a hold-position
// setpoint outside any segment" (§4.11).
func holdPositionSetpoint(states domain.ControllerStates) domain.Setpoint {
	sp := domain.NaNSetpoint()
	if domain.IsFinite32(states.Position.X) && domain.IsFinite32(states.Position.Y) {
		sp.X = states.Position.X
		sp.Y = states.Position.Y
	}
	if domain.IsFinite32(states.Position.Z) {
		sp.Z = states.Position.Z
	}
	sp.Yaw = states.Yaw
	return sp
}

func defaultConstraints() domain.Constraints {
	return domain.Constraints{
		SpeedUp:             3.0,
		SpeedDown:           1.0,
		MinDistanceToGround: float32(math.NaN()),
		LandingGear:         domain.LandingGearDown,
		TiltMax:             0.5,
	}
}
