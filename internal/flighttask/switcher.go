package flighttask

import (
	"time"

	"mcposctrl/internal/domain"
	"mcposctrl/internal/params"
)

// activatable is satisfied by tasks the switcher can reset the time origin
// of on activation. ScriptedTask implements it; a hand-written Task that
// doesn't need a time origin can skip it.
type activatable interface {
	Activate(now time.Time)
}

// Switcher is the TaskSwitcher of §6: it owns a fixed registry of tasks
// keyed by FlightTaskIndex and tracks which one is active, mirroring PX4's
// FlightTaskIndex-switched FlightTasks registry but built from the small
// scripted set in §4.11 instead of compiled-in C++ task classes.
type Switcher struct {
	tasks  map[domain.FlightTaskIndex]Task
	active domain.FlightTaskIndex
}

// NewSwitcher builds the default registry: one scripted task per index
// named in FlightTaskIndex, all with a trivial hold-position script, except
// Offboard which starts in its "no data received" failure mode. Callers may
// replace any entry with Register before first use to load real scripts.
func NewSwitcher() *Switcher {
	s := &Switcher{
		tasks:  make(map[domain.FlightTaskIndex]Task),
		active: domain.FlightTaskNone,
	}

	holdScript := ScriptConfig{Name: "hold", Segments: nil}
	for _, idx := range []domain.FlightTaskIndex{
		domain.FlightTaskAutoFollowMe,
		domain.FlightTaskAutoLine,
		domain.FlightTaskPosition,
		domain.FlightTaskPositionSmooth,
		domain.FlightTaskSport,
		domain.FlightTaskAltitude,
		domain.FlightTaskStabilized,
	} {
		s.tasks[idx] = NewScriptedTask(holdScript)
	}
	s.tasks[domain.FlightTaskOffboard] = NewOffboardTask(ScriptConfig{})

	return s
}

// Register replaces the task bound to idx, for wiring a loaded script (or a
// hand-written Task) in place of the default hold-position stub.
func (s *Switcher) Register(idx domain.FlightTaskIndex, t Task) {
	s.tasks[idx] = t
}

// ActiveIndex reports the currently active task, FlightTaskNone if none.
func (s *Switcher) ActiveIndex() domain.FlightTaskIndex {
	return s.active
}

// IsAnyTaskActive mirrors PX4's FlightTaskIndex::None check (§4.7).
func (s *Switcher) IsAnyTaskActive() bool {
	return s.active != domain.FlightTaskNone
}

// SwitchTask activates the task at idx, resetting its time origin if it is
// a newly (re)selected task. FlightTaskNone always succeeds and deactivates
// whatever was active (§4.7 "forced to None on disarm"). Switching to the
// already-active task is a no-op success: it does not re-reset the time
// origin, since "currently running" should not visibly restart a task.
func (s *Switcher) SwitchTask(idx domain.FlightTaskIndex, now time.Time) domain.ActivationError {
	if idx == domain.FlightTaskNone {
		s.active = domain.FlightTaskNone
		return domain.ActivationOk
	}

	if idx == s.active {
		return domain.ActivationOk
	}

	t, ok := s.tasks[idx]
	if !ok {
		return domain.ActivationFailed
	}

	if a, ok := t.(activatable); ok {
		a.Activate(now)
	}

	if offboard, ok := t.(*ScriptedTask); ok && offboard.failUntilActivated && len(offboard.cfg.Segments) == 0 {
		s.active = idx
		return domain.ActivationNoDataReceived
	}

	s.active = idx
	return domain.ActivationOk
}

// Update delegates to the active task; returns false (task_failure, §4.7)
// if there is no active task or the active task's own Update fails.
func (s *Switcher) Update(now time.Time, states domain.ControllerStates) bool {
	t, ok := s.tasks[s.active]
	if !ok {
		return false
	}
	return t.Update(now, states)
}

func (s *Switcher) PositionSetpoint() domain.Setpoint {
	if t, ok := s.tasks[s.active]; ok {
		return t.PositionSetpoint()
	}
	return domain.NaNSetpoint()
}

func (s *Switcher) Constraints() domain.Constraints {
	if t, ok := s.tasks[s.active]; ok {
		return t.Constraints()
	}
	return defaultConstraints()
}

// HandleParameterUpdate broadcasts to every registered task, not just the
// active one, so a task picks up fresh parameters immediately on switch-in.
func (s *Switcher) HandleParameterUpdate(p params.Parameters) {
	for _, t := range s.tasks {
		t.HandleParameterUpdate(p)
	}
}
