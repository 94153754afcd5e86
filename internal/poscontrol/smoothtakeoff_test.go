package poscontrol

import (
	"math"
	"testing"

	"mcposctrl/internal/domain"
)

// TestSmoothTakeoffScenarioS1 is spec.md S1 verbatim, first tick only.
func TestSmoothTakeoffScenarioS1(t *testing.T) {
	s := NewSmoothTakeoff()
	position := domain.Vec3{X: 0, Y: 0, Z: 0}
	constraints := domain.Constraints{MinDistanceToGround: float32(math.NaN())}

	s.CheckForSmoothTakeoff(true, -2.0, float32(math.NaN()), constraints, position, 1.5)
	if !s.InSmoothTakeoff() {
		t.Fatal("expected smooth takeoff to enter: z_sp=-2.0 < position.z(0) - 0.20")
	}
	if s.TakeoffSpeedRamp() != -0.5 {
		t.Fatalf("expected ramp to initialize at -0.5, got %v", s.TakeoffSpeedRamp())
	}

	s.UpdateSmoothTakeoff(-2.0, float32(math.NaN()), 1.5, 3.0, 5.0, 0, 0.02)
	got := s.TakeoffSpeedRamp()
	want := float32(-0.5 + 1.5*0.02/3.0)
	if diff := got - want; diff > 1e-5 || diff < -1e-5 {
		t.Fatalf("expected ramp=%v after one tick, got %v", want, got)
	}

	sp := domain.Setpoint{Z: -2.0, Yaw: 1.0, YawSpeed: 1.0, X: 5, Y: 5}
	s.ApplyOverride(&sp, &constraints)
	if constraints.SpeedUp != got {
		t.Fatalf("expected constraints.speed_up == ramp, got %v want %v", constraints.SpeedUp, got)
	}
	if domain.IsFinite32(sp.Yaw) || domain.IsFinite32(sp.YawSpeed) {
		t.Fatal("expected yaw/yaw_speed cleared to NaN during smooth takeoff")
	}
	if domain.IsFinite32(sp.X) || domain.IsFinite32(sp.Y) {
		t.Fatal("expected xy position setpoint cleared to NaN during smooth takeoff")
	}
	if sp.VX != 0 || sp.VY != 0 {
		t.Fatal("expected xy velocity setpoint forced to 0 during smooth takeoff")
	}
}

func TestSmoothTakeoffExitsNearTargetAltitude(t *testing.T) {
	s := NewSmoothTakeoff()
	position := domain.Vec3{}
	constraints := domain.Constraints{MinDistanceToGround: float32(math.NaN())}
	s.CheckForSmoothTakeoff(true, -2.0, float32(math.NaN()), constraints, position, 1.5)
	if !s.InSmoothTakeoff() {
		t.Fatal("expected entry")
	}

	// position.z - 0.2 > max(z_sp, -land_alt2) must flip false once we are
	// within 0.2m of -2.0.
	s.UpdateSmoothTakeoff(-2.0, float32(math.NaN()), 1.5, 3.0, 5.0, -1.85, 0.02)
	if s.InSmoothTakeoff() {
		t.Fatal("expected ramp to exit within 0.2m of the target altitude")
	}
}

func TestSmoothTakeoffRampNeverExceedsDesired(t *testing.T) {
	s := NewSmoothTakeoff()
	s.inSmoothTakeoff = true
	s.takeoffSpeedRamp = -0.5

	// With zSp finite, desired == takeoffSpeedParam (1.5). A large dt must
	// clamp the ramp at desired rather than overshoot it in one step.
	s.UpdateSmoothTakeoff(-2.0, float32(math.NaN()), 1.5, 3.0, 5.0, -0.5, 10.0)
	if s.takeoffSpeedRamp != 1.5 {
		t.Fatalf("ramp must clamp at desired (1.5) on a large step, got %v", s.takeoffSpeedRamp)
	}
}

func TestSmoothTakeoffRampNeverDecreasesTowardDesiredFromBelow(t *testing.T) {
	s := NewSmoothTakeoff()
	s.inSmoothTakeoff = true
	s.takeoffSpeedRamp = -0.5

	// zSp NaN: desired = -vzSp = 2.0 (a positive velocity target). The ramp
	// must monotonically increase toward it tick over tick, never jump past
	// it and never move away from it.
	prev := s.takeoffSpeedRamp
	for i := 0; i < 5; i++ {
		s.UpdateSmoothTakeoff(float32(math.NaN()), -2.0, 1.5, 3.0, 5.0, 0, 0.02)
		if s.takeoffSpeedRamp < prev {
			t.Fatalf("ramp decreased from %v to %v while climbing toward desired", prev, s.takeoffSpeedRamp)
		}
		if s.takeoffSpeedRamp > 2.0 {
			t.Fatalf("ramp overshot desired (2.0), got %v", s.takeoffSpeedRamp)
		}
		prev = s.takeoffSpeedRamp
	}
}

func TestSmoothTakeoffEntryRequiresLanded(t *testing.T) {
	s := NewSmoothTakeoff()
	constraints := domain.Constraints{MinDistanceToGround: float32(math.NaN())}
	s.CheckForSmoothTakeoff(false, -2.0, float32(math.NaN()), constraints, domain.Vec3{}, 1.5)
	if s.InSmoothTakeoff() {
		t.Fatal("must not enter smooth takeoff while airborne (landed=false)")
	}
}

func TestActiveRequiresArmedHysteresisAndFiniteVerticalState(t *testing.T) {
	if Active(false, 0, 0) {
		t.Fatal("Active must be false without armed hysteresis")
	}
	if Active(true, float32(math.NaN()), 0) {
		t.Fatal("Active must be false with NaN position.z")
	}
	if !Active(true, 0, 0) {
		t.Fatal("Active should be true with armed hysteresis and finite vertical state")
	}
}
