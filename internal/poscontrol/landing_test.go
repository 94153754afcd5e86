package poscontrol

import (
	"math"
	"testing"

	"mcposctrl/internal/domain"
)

type integralResetSpy struct {
	resetXY bool
	resetZ  bool
}

func (s *integralResetSpy) ResetIntegralXY() { s.resetXY = true }
func (s *integralResetSpy) ResetIntegralZ()  { s.resetZ = true }

// TestLandingScenarioS3 is spec.md S3 verbatim: ground contact only.
func TestLandingScenarioS3(t *testing.T) {
	thrustSp := domain.Vec3{X: 0.3, Y: -0.1, Z: 0.6}
	spy := &integralResetSpy{}

	LandingShaper{}.ApplyPostPID(&thrustSp, domain.LandDetection{GroundContact: true}, spy)

	if thrustSp != (domain.Vec3{X: 0, Y: 0, Z: 0.6}) {
		t.Fatalf("expected (0,0,0.6), got %+v", thrustSp)
	}
	if !spy.resetXY {
		t.Fatal("expected XY integral reset on ground contact")
	}
	if spy.resetZ {
		t.Fatal("Z integral must remain untouched on ground contact alone")
	}
}

// TestLandingScenarioS4 is spec.md S4 verbatim: maybe landed.
func TestLandingScenarioS4(t *testing.T) {
	thrustSp := domain.Vec3{X: 0.3, Y: -0.1, Z: 0.6}
	spy := &integralResetSpy{}

	LandingShaper{}.ApplyPostPID(&thrustSp, domain.LandDetection{MaybeLanded: true}, spy)

	if thrustSp != (domain.Vec3{}) {
		t.Fatalf("expected (0,0,0), got %+v", thrustSp)
	}
	if !spy.resetXY || !spy.resetZ {
		t.Fatal("expected both integrals reset on maybe_landed")
	}
}

func TestLandingPostPIDNoOpWhenNotLanded(t *testing.T) {
	thrustSp := domain.Vec3{X: 0.3, Y: -0.1, Z: 0.6}
	spy := &integralResetSpy{}

	LandingShaper{}.ApplyPostPID(&thrustSp, domain.LandDetection{}, spy)

	if thrustSp != (domain.Vec3{X: 0.3, Y: -0.1, Z: 0.6}) {
		t.Fatalf("expected thrust untouched, got %+v", thrustSp)
	}
	if spy.resetXY || spy.resetZ {
		t.Fatal("expected no integral resets absent any landing flag")
	}
}

func TestLandingPreIdleOverridesUndefinedVerticalThrust(t *testing.T) {
	nan := float32(math.NaN())
	sp := &domain.Setpoint{X: 1, Y: 2, Z: 3, Thrust: domain.Vec3{Z: nan}}
	constraints := &domain.Constraints{LandingGear: domain.LandingGearDown}
	states := domain.ControllerStates{Yaw: 0.42}

	LandingShaper{}.ApplyPreLandedIdle(sp, constraints, states, true, false)

	if sp.Thrust != (domain.Vec3{X: 0, Y: 0, Z: 0}) {
		t.Fatalf("expected zero thrust idle, got %+v", sp.Thrust)
	}
	if domain.IsFinite32(sp.X) || domain.IsFinite32(sp.Y) || domain.IsFinite32(sp.Z) {
		t.Fatal("expected position setpoint cleared to NaN")
	}
	if domain.IsFinite32(sp.VX) || domain.IsFinite32(sp.VY) || domain.IsFinite32(sp.VZ) {
		t.Fatal("expected velocity setpoint cleared to NaN")
	}
	if sp.Yaw != 0.42 {
		t.Fatalf("expected yaw held at current yaw, got %v", sp.Yaw)
	}
	if constraints.LandingGear != domain.LandingGearKeep {
		t.Fatal("expected landing gear forced to keep")
	}
}

func TestLandingPreIdleNoOpWhenThrustZDefined(t *testing.T) {
	sp := &domain.Setpoint{Thrust: domain.Vec3{Z: 0.5}}
	constraints := &domain.Constraints{LandingGear: domain.LandingGearDown}
	states := domain.ControllerStates{}

	LandingShaper{}.ApplyPreLandedIdle(sp, constraints, states, true, false)

	if sp.Thrust.Z != 0.5 {
		t.Fatal("must not override a defined vertical thrust setpoint")
	}
	if constraints.LandingGear != domain.LandingGearDown {
		t.Fatal("must not touch landing gear when no override applies")
	}
}

func TestLandingPreIdleNoOpWhenNotLanded(t *testing.T) {
	nan := float32(math.NaN())
	sp := &domain.Setpoint{Thrust: domain.Vec3{Z: nan}}
	constraints := &domain.Constraints{LandingGear: domain.LandingGearDown}

	LandingShaper{}.ApplyPreLandedIdle(sp, constraints, domain.ControllerStates{}, false, false)

	if constraints.LandingGear != domain.LandingGearDown {
		t.Fatal("must not override when not landed")
	}
}

func TestLandingPreIdleNoOpDuringSmoothTakeoff(t *testing.T) {
	nan := float32(math.NaN())
	sp := &domain.Setpoint{Thrust: domain.Vec3{Z: nan}}
	constraints := &domain.Constraints{LandingGear: domain.LandingGearDown}

	LandingShaper{}.ApplyPreLandedIdle(sp, constraints, domain.ControllerStates{}, true, true)

	if constraints.LandingGear != domain.LandingGearDown {
		t.Fatal("must not override while mid-smooth-takeoff")
	}
}
