package poscontrol

import (
	"time"

	"mcposctrl/internal/domain"
	"mcposctrl/internal/logging"
)

// TaskSwitcher is the subset of flighttask.Switcher's contract the selector
// needs, kept narrow the same way LandingShaper narrows IntegralResetter so
// tests can substitute a spy registry.
type TaskSwitcher interface {
	SwitchTask(idx domain.FlightTaskIndex, now time.Time) domain.ActivationError
	IsAnyTaskActive() bool
}

// FlightTaskSelector runs the nav-state-driven cascade of §4.7: each stage
// is tried in order, a running task_failure flag both gates later stages
// ("or task_failure") and is cleared by the first stage that succeeds.
type FlightTaskSelector struct {
	armedHysteresis *Hysteresis
	log             *logging.Logger
}

func NewFlightTaskSelector(log *logging.Logger) *FlightTaskSelector {
	return &FlightTaskSelector{
		armedHysteresis: NewHysteresis(false, 2_500_000),
		log:             log,
	}
}

// ArmedHysteresisState exposes the debounced armed state SmoothTakeoff's
// arming check needs.
func (s *FlightTaskSelector) ArmedHysteresisState() bool {
	return s.armedHysteresis.GetState()
}

// UpdateArmedHysteresis advances the debounce; the controller loop calls
// this once per tick with the raw armed flag (§4.8 step 5d).
func (s *FlightTaskSelector) UpdateArmedHysteresis(armed bool, nowUs uint64) {
	s.armedHysteresis.Update(armed, nowUs)
}

// posModeTask maps pos_mode in {0,1,2} to the manual position task index,
// defaulting to Position for any other value (§4.7 step 3).
func posModeTask(posMode int) domain.FlightTaskIndex {
	switch posMode {
	case 1:
		return domain.FlightTaskPositionSmooth
	case 2:
		return domain.FlightTaskSport
	default:
		return domain.FlightTaskPosition
	}
}

// Select runs the cascade and returns the final activation error. On total
// failure it switches to FlightTaskNone and emits a rate-limited warning
// (§4.7 step 6); on disarm it forces None and resets the arm hysteresis,
// without touching the cascade.
func (s *FlightTaskSelector) Select(sw TaskSwitcher, status domain.VehicleStatus, mode domain.ControlMode, posMode int, now time.Time) domain.ActivationError {
	if !mode.Armed {
		sw.SwitchTask(domain.FlightTaskNone, now)
		s.armedHysteresis.Reset(false)
		return domain.ActivationOk
	}

	taskFailure := false

	// 1. Offboard.
	if status.NavState == domain.NavStateOffboard {
		if err := sw.SwitchTask(domain.FlightTaskOffboard, now); err != domain.ActivationOk {
			taskFailure = true
			if s.log != nil {
				s.log.WarnRateLimited(now, "offboard task activation failed: %v", err)
			}
		}
	}

	// 2. AutoFollowMe / AutoLine.
	if status.NavState == domain.NavStateAutoFollowTarget {
		if err := sw.SwitchTask(domain.FlightTaskAutoFollowMe, now); err != domain.ActivationOk {
			taskFailure = true
		}
	} else if mode.AutoEnabled {
		if err := sw.SwitchTask(domain.FlightTaskAutoLine, now); err != domain.ActivationOk {
			taskFailure = true
		}
	}

	// 3. Manual position task, indexed by pos_mode.
	if status.NavState == domain.NavStatePosctl || taskFailure {
		if err := sw.SwitchTask(posModeTask(posMode), now); err == domain.ActivationOk {
			taskFailure = false
		} else {
			taskFailure = true
		}
	}

	// 4. Altitude.
	if status.NavState == domain.NavStateAltctl || taskFailure {
		if err := sw.SwitchTask(domain.FlightTaskAltitude, now); err == domain.ActivationOk {
			taskFailure = false
		} else {
			taskFailure = true
		}
	}

	// 5. Stabilized.
	if status.NavState == domain.NavStateManual || status.NavState == domain.NavStateStab || taskFailure {
		if err := sw.SwitchTask(domain.FlightTaskStabilized, now); err == domain.ActivationOk {
			taskFailure = false
		} else {
			taskFailure = true
		}
	}

	// 6. Total failure.
	if taskFailure {
		sw.SwitchTask(domain.FlightTaskNone, now)
		if s.log != nil {
			s.log.WarnRateLimited(now, "no flight task could be activated for nav_state=%v", status.NavState)
		}
		return domain.ActivationFailed
	}

	return domain.ActivationOk
}
