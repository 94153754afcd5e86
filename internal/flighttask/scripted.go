package flighttask

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"mcposctrl/internal/domain"
	"mcposctrl/internal/params"
)

// SegmentConfig is one scripted time window, JSON-loaded the same way the
// teacher's ScenarioSegment is (closed_loop/scenario.go): a half-open
// [t0, t1) window of elapsed task-active time, t1 < 0 meaning "until the
// script ends." Pointer fields distinguish "not set in this segment" (nil,
// meaning "don't care"/NaN, §3) from an explicit zero.
type SegmentConfig struct {
	T0 float64 `json:"t0"`
	T1 float64 `json:"t1"`

	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`

	VX *float64 `json:"vx,omitempty"`
	VY *float64 `json:"vy,omitempty"`
	VZ *float64 `json:"vz,omitempty"`

	Yaw      *float64 `json:"yaw,omitempty"`
	YawSpeed *float64 `json:"yaw_speed,omitempty"`

	SpeedUp             float64 `json:"speed_up,omitempty"`
	SpeedDown           float64 `json:"speed_down,omitempty"`
	TiltMax             float64 `json:"tilt_max,omitempty"`
	MinDistanceToGround *float64 `json:"min_distance_to_ground,omitempty"`
	LandingGear         string  `json:"landing_gear,omitempty"`
}

// ScriptConfig is a named, JSON-loadable sequence of segments driving a
// ScriptedTask (§4.11 [EXPANSION]).
type ScriptConfig struct {
	Name     string          `json:"name"`
	Segments []SegmentConfig `json:"segments"`
}

// LoadScript reads a ScriptConfig from path, mirroring
// closed_loop.LoadScenario's read-unmarshal-validate shape.
func LoadScript(path string) (ScriptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScriptConfig{}, fmt.Errorf("read script %s: %w", path, err)
	}
	var cfg ScriptConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ScriptConfig{}, fmt.Errorf("unmarshal script %s: %w", path, err)
	}
	if len(cfg.Segments) == 0 {
		return ScriptConfig{}, fmt.Errorf("script %s: no segments", path)
	}
	return cfg, nil
}

func ptrOrNaN(p *float64) float32 {
	if p == nil {
		return float32(math.NaN())
	}
	return float32(*p)
}

func landingGearFromString(s string) domain.LandingGear {
	switch s {
	case "up":
		return domain.LandingGearUp
	case "down":
		return domain.LandingGearDown
	case "keep":
		return domain.LandingGearKeep
	default:
		return domain.LandingGearDown
	}
}

func (seg SegmentConfig) toSetpoint() domain.Setpoint {
	sp := domain.NaNSetpoint()
	sp.X, sp.Y, sp.Z = ptrOrNaN(seg.X), ptrOrNaN(seg.Y), ptrOrNaN(seg.Z)
	sp.VX, sp.VY, sp.VZ = ptrOrNaN(seg.VX), ptrOrNaN(seg.VY), ptrOrNaN(seg.VZ)
	sp.Yaw = ptrOrNaN(seg.Yaw)
	sp.YawSpeed = ptrOrNaN(seg.YawSpeed)
	return sp
}

func (seg SegmentConfig) toConstraints() domain.Constraints {
	c := defaultConstraints()
	if seg.SpeedUp != 0 {
		c.SpeedUp = float32(seg.SpeedUp)
	}
	if seg.SpeedDown != 0 {
		c.SpeedDown = float32(seg.SpeedDown)
	}
	if seg.TiltMax != 0 {
		c.TiltMax = float32(seg.TiltMax)
	}
	if seg.MinDistanceToGround != nil {
		c.MinDistanceToGround = float32(*seg.MinDistanceToGround)
	}
	if seg.LandingGear != "" {
		c.LandingGear = landingGearFromString(seg.LandingGear)
	}
	return c
}

// ScriptedTask is a scripted setpoint generator: it evaluates its active
// segment against the time elapsed since the task was last (re)activated,
// the same way closed_loop.EvalActCmd evaluates a scenario against
// simulation time, and falls back to a hold-position setpoint outside any
// segment (§4.11).
type ScriptedTask struct {
	cfg         ScriptConfig
	activatedAt time.Time
	setpoint    domain.Setpoint
	constraints domain.Constraints

	// failUntilActivated, when set, makes Update always report failure — used for
	// the Offboard task's "no external setpoint received yet" mode.
	failUntilActivated bool
	everActivated      bool
}

// NewScriptedTask builds a scripted task from a loaded/authored config.
func NewScriptedTask(cfg ScriptConfig) *ScriptedTask {
	return &ScriptedTask{cfg: cfg}
}

// NewOffboardTask builds the Offboard task variant: it behaves like any
// other scripted task once it has received at least one external setpoint
// (modeled here as the task being built with a non-empty script); built
// with an empty script it reports failure on every Update, matching PX4's
// FlightTaskOffboard which fails activation without a prior setpoint
// message (§4.11, §4.7 table row "Offboard").
func NewOffboardTask(cfg ScriptConfig) *ScriptedTask {
	t := NewScriptedTask(cfg)
	t.failUntilActivated = len(cfg.Segments) == 0
	return t
}

// Activate resets the task's time origin; called by the switcher whenever
// this task becomes newly active (§4.7 "switching to a different task
// resets the target task's internal time origin").
func (t *ScriptedTask) Activate(now time.Time) {
	t.activatedAt = now
	t.everActivated = true
}

func (t *ScriptedTask) Update(now time.Time, states domain.ControllerStates) bool {
	if t.failUntilActivated && len(t.cfg.Segments) == 0 {
		return false
	}

	elapsed := now.Sub(t.activatedAt).Seconds()

	for _, seg := range t.cfg.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = elapsed + 1 // open-ended: always matches once reached
		}
		if elapsed >= seg.T0 && elapsed < t1 {
			t.setpoint = seg.toSetpoint()
			t.constraints = seg.toConstraints()
			return true
		}
	}

	t.setpoint = holdPositionSetpoint(states)
	t.constraints = defaultConstraints()
	return true
}

func (t *ScriptedTask) PositionSetpoint() domain.Setpoint { return t.setpoint }
func (t *ScriptedTask) Constraints() domain.Constraints   { return t.constraints }

func (t *ScriptedTask) HandleParameterUpdate(p params.Parameters) {
	// Scripted tasks have no parameter-driven behavior of their own; the
	// constraint defaults below the script already come from
	// defaultConstraints, not from the live parameter table.
	_ = p
}
