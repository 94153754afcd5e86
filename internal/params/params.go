// Package params implements the Parameters table of §3: a named-field
// table refreshed from a config file, with change notification carried on
// a bus topic. Adapted from the teacher's JSON scenario config
// (closed_loop/scenario.go's LoadScenario) and from the pack's
// gopkg.in/yaml.v3 config idiom (san-kum-dynsim/internal/config), since
// the spec's parameter set is exactly that package's flat-named-fields
// shape, just refreshed at runtime instead of only at startup.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mcposctrl/internal/bus"
)

// Parameters is the immutable-per-tick table from §3. Fields are refreshed
// as a whole on every successful Reload.
type Parameters struct {
	TakeoffRampTimeS float32 `yaml:"takeoff_ramp_time_s"`
	VelMaxUp         float32 `yaml:"vel_max_up"`
	VelMaxDown       float32 `yaml:"vel_max_down"`
	LandSpeed        float32 `yaml:"land_speed"`
	TakeoffSpeed     float32 `yaml:"takeoff_speed"`
	LandAlt2         float32 `yaml:"land_alt2"`
	PosMode          int     `yaml:"pos_mode"`
}

// Default mirrors PX4's stock MPC_* defaults closely enough to be a sane
// starting point for a config file that omits a field.
func Default() Parameters {
	return Parameters{
		TakeoffRampTimeS: 3.0,
		VelMaxUp:         3.0,
		VelMaxDown:       1.0,
		LandSpeed:        0.7,
		TakeoffSpeed:     1.5,
		LandAlt2:         5.0,
		PosMode:          0,
	}
}

// clamp enforces "takeoff_speed ≤ vel_max_up, land_speed ≤ vel_max_down"
// from §3/§4.8 step 2.
func (p *Parameters) clamp() {
	if p.TakeoffSpeed > p.VelMaxUp {
		p.TakeoffSpeed = p.VelMaxUp
	}
	if p.LandSpeed > p.VelMaxDown {
		p.LandSpeed = p.VelMaxDown
	}
}

// Table owns the current Parameters and the file they were loaded from. A
// single controller instance owns a Table; nothing else mutates it (§5).
type Table struct {
	path    string
	current Parameters
	updates *bus.Topic[struct{}]
}

// NewTable loads path once (force-refresh at startup, per §3's lifecycle:
// "parameters refresh on notification edge or on forced rehash at
// startup") and returns a Table wired to publish edges on updates.
func NewTable(path string, updates *bus.Topic[struct{}]) (*Table, error) {
	t := &Table{path: path, current: Default(), updates: updates}
	if err := t.reload(); err != nil {
		return nil, fmt.Errorf("params: initial load: %w", err)
	}
	return t, nil
}

// Current returns the table's present value. Safe to call every tick; the
// returned Parameters is a value copy.
func (t *Table) Current() Parameters {
	return t.current
}

// Reload re-reads the backing file and, on success, publishes an edge on
// the parameter_update topic so the controller loop's step 2 picks it up
// at its next poll.
func (t *Table) Reload() error {
	if err := t.reload(); err != nil {
		return err
	}
	if t.updates != nil {
		t.updates.Publish(struct{}{})
	}
	return nil
}

func (t *Table) reload() error {
	if t.path == "" {
		t.current.clamp()
		return nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", t.path, err)
	}

	next := Default()
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("unmarshal %s: %w", t.path, err)
	}
	next.clamp()
	t.current = next
	return nil
}

// Save writes params to path, mirroring the pack's config.Save idiom; used
// by tests and by operators bootstrapping a new parameter file.
func Save(path string, p Parameters) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
