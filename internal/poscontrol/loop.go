package poscontrol

import (
	"context"
	"time"

	"mcposctrl/internal/bus"
	"mcposctrl/internal/domain"
	"mcposctrl/internal/flighttask"
	"mcposctrl/internal/logging"
	"mcposctrl/internal/params"
	"mcposctrl/internal/posctrlpid"
)

// PositionController is the PID core contract the loop drives (§6); an
// interface here so tests can substitute a spy in place of
// posctrlpid.PositionControl.
type PositionController interface {
	UpdateConstraints(domain.Constraints)
	UpdateState(domain.ControllerStates)
	UpdateSetpoint(domain.Setpoint)
	GenerateThrustYawSetpoint(dt float32)
	ThrustSetpoint() domain.Vec3
	PositionSetpoint() domain.Vec3
	VelocitySetpoint() domain.Vec3
	YawSetpoint() float32
	YawSpeedSetpoint() float32
	IntegralResetter
}

// Topics bundles the bus handles the loop subscribes/publishes to, keeping
// Loop's constructor from taking eight positional *bus.Topic args.
type Topics struct {
	VehicleStatus    *bus.Topic[domain.VehicleStatus]
	LandDetected     *bus.Topic[domain.LandDetection]
	ControlMode      *bus.Topic[domain.ControlMode]
	ParameterUpdate  *bus.Topic[struct{}]
	LocalPosition    *bus.Topic[domain.LocalPosition]
	HomePosition     *bus.Topic[domain.HomePosition]
	LocalPositionSp  *bus.Topic[domain.LocalPositionSetpoint]
	AttitudeSetpoint *bus.Topic[domain.AttitudeSetpoint]
}

// Loop is ControllerLoop (§4.8): the periodic task tying every other
// component together. One instance owns the PID core, the task switcher,
// and every stateful sub-component; it is not safe for concurrent use
// (single-writer discipline, §5).
type Loop struct {
	topics Topics

	clock     *Clock
	validator *StateValidator
	fence     AltitudeFence
	takeoff   *SmoothTakeoff
	landing   LandingShaper
	selector  *FlightTaskSelector
	pid       PositionController
	switcher  *flighttask.Switcher
	paramsTbl *params.Table
	log       *logging.Logger

	statusVersion uint64
	landVersion   uint64
	modeVersion   uint64
	paramVersion  uint64
	homeVersion   uint64

	lastStatus domain.VehicleStatus
	lastLand   domain.LandDetection
	lastMode   domain.ControlMode
	lastHome   domain.HomePosition

	prevNowUs uint64
	haveTick  bool
}

// NewLoop wires a Loop from its components. pid and switcher are accepted
// as already-constructed so callers (notably cmd/mcposctrl) control their
// concrete gains/registry; everything else the loop owns outright.
func NewLoop(topics Topics, pid PositionController, switcher *flighttask.Switcher, paramsTbl *params.Table, log *logging.Logger) *Loop {
	return &Loop{
		topics:    topics,
		clock:     NewClock(),
		validator: NewStateValidator(),
		takeoff:   NewSmoothTakeoff(),
		selector:  NewFlightTaskSelector(log),
		pid:       pid,
		switcher:  switcher,
		paramsTbl: paramsTbl,
		log:       log,
	}
}

// Run executes the loop until ctx is canceled, matching §4.8's "wakes on
// local-position topic events with a 20ms timeout; continues loop on
// timeout ... and on signed EINTR-like errors" — in Go the only
// "interrupted" case is ctx cancellation, which we treat as the exit
// condition rather than a spurious wake.
func (l *Loop) Run(ctx context.Context) error {
	for {
		err := l.topics.LocalPosition.Wait(ctx, func() <-chan struct{} {
			c := make(chan struct{})
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(c)
			}()
			return c
		})
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.tick()
	}
}

// tick runs one pass of §4.8's per-tick steps 1-7.
func (l *Loop) tick() {
	now := time.Now()
	nowUs := l.clock.Now()

	// Step 1: poll subscriptions, edge-triggered copies.
	if v, ver, updated := l.topics.VehicleStatus.Check(l.statusVersion); updated {
		l.lastStatus, l.statusVersion = v, ver
	}
	if v, ver, updated := l.topics.LandDetected.Check(l.landVersion); updated {
		l.lastLand, l.landVersion = v, ver
	}
	if v, ver, updated := l.topics.ControlMode.Check(l.modeVersion); updated {
		l.lastMode, l.modeVersion = v, ver
	}
	if v, ver, updated := l.topics.HomePosition.Check(l.homeVersion); updated {
		l.lastHome, l.homeVersion = v, ver
	}
	localPosition, _ := l.topics.LocalPosition.Copy()

	// Step 2: refresh parameters on change notification.
	if _, ver, updated := l.topics.ParameterUpdate.Check(l.paramVersion); updated {
		l.paramVersion = ver
	}
	p := l.paramsTbl.Current()

	// Step 3: dt with a floor of 0.004s on the first tick.
	var dt float32
	if !l.haveTick {
		dt = 0.004
		l.haveTick = true
	} else {
		dt = float32(nowUs-l.prevNowUs) / 1e6
	}
	l.prevNowUs = nowUs

	// When offboard is the engaged control source but none of
	// position/velocity/acceleration control are enabled, the offboard
	// setpoint bypasses this module entirely (it is commanding attitude
	// or actuators directly) — nothing to select or publish (§8 invariant
	// 3, mirroring PX4's early return in this exact condition).
	if l.lastMode.OffboardEnabled && !l.lastMode.PositionEnabled && !l.lastMode.VelocityEnabled && !l.lastMode.AccelerationEnabled {
		l.switcher.SwitchTask(domain.FlightTaskNone, now)
		return
	}

	// Step 4: task selection. Select itself implements "if armed, run the
	// cascade; else switch task to None and reset arm hysteresis."
	l.selector.Select(l.switcher, l.lastStatus, l.lastMode, p.PosMode, now)

	var setpoint domain.Setpoint
	var constraints domain.Constraints

	// Step 5: run the active task, or idle if none.
	if l.switcher.IsAnyTaskActive() {
		if ok := l.switcher.Update(now, l.validator.States()); ok {
			setpoint = l.switcher.PositionSetpoint()
			constraints = l.switcher.Constraints()
		} else {
			setpoint = domain.NaNSetpoint()
			constraints = domain.Constraints{LandingGear: domain.LandingGearNone}
			if domain.IsFinite32(l.validator.States().Velocity.Z) {
				setpoint.VZ = p.LandSpeed
				setpoint.Thrust.X = 0
				setpoint.Thrust.Y = 0
			}
		}
	} else {
		setpoint = domain.NaNSetpoint()
		constraints = domain.Constraints{LandingGear: domain.LandingGearNone}
	}

	// Step 5c: StateValidator with setpoint.vz.
	l.validator.Update(localPosition, setpoint.VZ, p.LandSpeed, dt)
	states := l.validator.States()

	// Step 5d: arm hysteresis.
	l.selector.UpdateArmedHysteresis(l.lastMode.Armed, nowUs)
	armedDebounced := l.selector.ArmedHysteresisState()

	// Step 5e: smooth takeoff entry + ramp, gated on the arming check.
	if Active(armedDebounced, states.Position.Z, states.Velocity.Z) {
		l.takeoff.CheckForSmoothTakeoff(l.lastLand.Landed, setpoint.Z, setpoint.VZ, constraints, states.Position, p.TakeoffSpeed)
		l.takeoff.UpdateSmoothTakeoff(setpoint.Z, setpoint.VZ, p.TakeoffSpeed, p.TakeoffRampTimeS, p.LandAlt2, states.Position.Z, dt)
		l.takeoff.ApplyOverride(&setpoint, &constraints)
	}

	// Step 5f: pre-PID landed idle override.
	l.landing.ApplyPreLandedIdle(&setpoint, &constraints, states, l.lastLand.Landed, l.takeoff.InSmoothTakeoff())

	// Step 5g: altitude fence, gated on position.z being finite.
	if domain.IsFinite32(states.Position.Z) {
		l.fence.Apply(&setpoint, states, l.lastLand.AltMax, l.lastHome, dt)
	}

	// Step 5h: PID core.
	l.pid.UpdateConstraints(constraints)
	l.pid.UpdateState(states)
	l.pid.UpdateSetpoint(setpoint)
	l.pid.GenerateThrustYawSetpoint(dt)

	// Step 5i: post-PID landing-shaper triggers, unless in smooth takeoff
	// with vertical thrust still undefined.
	thrustSp := l.pid.ThrustSetpoint()
	if !(l.takeoff.InSmoothTakeoff() && !domain.IsFinite32(setpoint.Thrust.Z)) {
		l.landing.ApplyPostPID(&thrustSp, l.lastLand, l.pid)
	}

	var attitudeSp domain.AttitudeSetpoint

	if l.switcher.IsAnyTaskActive() {
		attitudeSp = posctrlpid.ThrustToAttitude(thrustSp, l.pid.YawSetpoint())
		attitudeSp.YawSpMoveRate = l.pid.YawSpeedSetpoint()
		if constraints.LandingGear == domain.LandingGearUp || constraints.LandingGear == domain.LandingGearDown {
			attitudeSp.LandingGear = constraints.LandingGear
		}

		// Step 5j: fill LocalPositionSetpoint from the PID getters; publish.
		localSp := domain.LocalPositionSetpoint{
			Timestamp: nowUs,
			X:         l.pid.PositionSetpoint().X,
			Y:         l.pid.PositionSetpoint().Y,
			Z:         l.pid.PositionSetpoint().Z,
			VX:        l.pid.VelocitySetpoint().X,
			VY:        l.pid.VelocitySetpoint().Y,
			VZ:        l.pid.VelocitySetpoint().Z,
			Yaw:       l.pid.YawSetpoint(),
			YawSpeed:  l.pid.YawSpeedSetpoint(),
			Thrust:    thrustSp,
		}
		l.topics.LocalPositionSp.Publish(localSp)
	} else {
		// Step 6: no task active — idle attitude, level with current yaw
		// and zero thrust, rather than whatever the PID produced on an
		// all-NaN setpoint.
		attitudeSp = posctrlpid.ThrustToAttitude(domain.Vec3{}, states.Yaw)
	}
	attitudeSp.Timestamp = nowUs

	// Step 7: publish the attitude setpoint iff arm-hysteresis is true (the
	// offboard bypass already returned earlier in this tick).
	if armedDebounced {
		l.topics.AttitudeSetpoint.Publish(attitudeSp)
	}
}
