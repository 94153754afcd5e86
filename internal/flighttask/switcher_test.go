package flighttask

import (
	"fmt"
	"testing"
	"time"

	"mcposctrl/internal/domain"
	"mcposctrl/internal/params"
)

func TestSwitcherDefaultsToNoneActive(t *testing.T) {
	s := NewSwitcher()
	if s.ActiveIndex() != domain.FlightTaskNone {
		t.Fatalf("expected None active by default, got %v", s.ActiveIndex())
	}
	if s.IsAnyTaskActive() {
		t.Fatal("expected IsAnyTaskActive false by default")
	}
}

func TestSwitcherSwitchToNoneAlwaysSucceeds(t *testing.T) {
	s := NewSwitcher()
	err := s.SwitchTask(domain.FlightTaskNone, time.Now())
	if err != domain.ActivationOk {
		t.Fatalf("expected Ok, got %v", err)
	}
	if s.IsAnyTaskActive() {
		t.Fatal("expected no task active")
	}
}

func TestSwitcherSwitchingToRegisteredTaskActivates(t *testing.T) {
	s := NewSwitcher()
	err := s.SwitchTask(domain.FlightTaskPosition, time.Now())
	if err != domain.ActivationOk {
		t.Fatalf("expected Ok, got %v", err)
	}
	if s.ActiveIndex() != domain.FlightTaskPosition {
		t.Fatalf("expected Position active, got %v", s.ActiveIndex())
	}
}

func TestSwitcherSwitchToUnregisteredIndexFails(t *testing.T) {
	s := &Switcher{tasks: map[domain.FlightTaskIndex]Task{}, active: domain.FlightTaskNone}
	err := s.SwitchTask(domain.FlightTaskPosition, time.Now())
	if err != domain.ActivationFailed {
		t.Fatalf("expected ActivationFailed for an unregistered index, got %v", err)
	}
}

func TestSwitcherSwitchToAlreadyActiveIsANoOp(t *testing.T) {
	s := NewSwitcher()
	now := time.Now()
	s.SwitchTask(domain.FlightTaskPosition, now)

	// Update the task once so it holds a setpoint; a same-task re-switch
	// must leave it unchanged. The setpoint carries NaN fields, so compare
	// the printed form (NaN prints equal to NaN, unlike ==).
	s.Update(now.Add(time.Second), domain.ControllerStates{})
	before := s.PositionSetpoint()

	err := s.SwitchTask(domain.FlightTaskPosition, now.Add(2*time.Second))
	if err != domain.ActivationOk {
		t.Fatalf("expected Ok, got %v", err)
	}
	after := s.PositionSetpoint()
	if fmt.Sprintf("%+v", before) != fmt.Sprintf("%+v", after) {
		t.Fatalf("expected no change from a same-task re-switch, got before=%+v after=%+v", before, after)
	}
}

func TestSwitcherOffboardDefaultIsNoDataReceivedButMarksActive(t *testing.T) {
	s := NewSwitcher()
	err := s.SwitchTask(domain.FlightTaskOffboard, time.Now())
	if err != domain.ActivationNoDataReceived {
		t.Fatalf("expected ActivationNoDataReceived, got %v", err)
	}
	if s.ActiveIndex() != domain.FlightTaskOffboard {
		t.Fatal("expected Offboard marked active despite the no-data error")
	}
	if ok := s.Update(time.Now(), domain.ControllerStates{}); ok {
		t.Fatal("expected Update to keep failing until a real script is registered")
	}
}

func TestSwitcherOffboardSucceedsAfterRegisteringRealScript(t *testing.T) {
	s := NewSwitcher()
	s.Register(domain.FlightTaskOffboard, NewOffboardTask(ScriptConfig{Segments: []SegmentConfig{{T0: 0, T1: -1, X: f64(1)}}}))

	err := s.SwitchTask(domain.FlightTaskOffboard, time.Now())
	if err != domain.ActivationOk {
		t.Fatalf("expected Ok, got %v", err)
	}
}

func TestSwitcherHandleParameterUpdateBroadcastsToEveryTask(t *testing.T) {
	s := NewSwitcher()
	recorder := &recordingTask{}
	s.Register(domain.FlightTaskPosition, recorder)

	s.HandleParameterUpdate(params.Parameters{PosMode: 2})

	if !recorder.got {
		t.Fatal("expected HandleParameterUpdate to reach a non-active registered task")
	}
}

type recordingTask struct {
	got bool
}

func (r *recordingTask) Update(now time.Time, states domain.ControllerStates) bool { return true }
func (r *recordingTask) PositionSetpoint() domain.Setpoint                          { return domain.NaNSetpoint() }
func (r *recordingTask) Constraints() domain.Constraints                            { return defaultConstraints() }
func (r *recordingTask) HandleParameterUpdate(p params.Parameters)                  { r.got = true }
