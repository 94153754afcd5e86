// Package can implements the passive CAN telemetry sink of SPEC_FULL.md
// §4.13: a DBC-style signal map loaded from CSV, a bit-packing encoder, and
// a SocketCAN forwarder that mirrors published setpoints onto a bus for an
// external log recorder. Adapted from the teacher's utils package
// (can_types.go/can_loader.go/can_bits.go/can_codec.go/can_transport.go),
// narrowed to encode-only since this sink never reads frames back off the
// wire, and renamed around the one frame this controller actually emits
// instead of a general-purpose DBC map.
package can

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// SignalDef is one packed field within a Frame: a bit range plus the
// linear physical-to-raw conversion (factor/offset), mirroring a DBC
// signal row.
type SignalDef struct {
	Name      string
	StartBit  int
	BitLength int
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Default   float64
	Unit      string
}

// Frame is a CAN frame's wire layout: an ID, a byte length, and the
// signals packed into it.
type Frame struct {
	ID      uint32
	Name    string
	DLC     int
	CycleMS int
	Signals []SignalDef
}

// Map is the loaded signal table, keyed by frame name for the forwarder's
// encode calls.
type Map struct {
	byName map[string]*Frame
}

// FrameByName looks up a frame by its CSV frame_name.
func (m *Map) FrameByName(name string) (*Frame, error) {
	fd, ok := m.byName[name]
	if !ok {
		names := make([]string, 0, len(m.byName))
		for k := range m.byName {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("can: unknown frame %q (have: %v)", name, names)
	}
	return fd, nil
}

// LoadMap reads a CSV signal map in the column layout the teacher's
// can_map.csv loader expects.
func LoadMap(csvPath string) (*Map, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("can: open %s: %w", csvPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("can: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	required := []string{
		"frame_id", "frame_name", "cycle_ms", "dlc",
		"signal_name", "start_bit", "bit_length",
		"signed", "factor", "offset", "min", "max", "default", "unit",
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("can: map csv missing column %q", col)
		}
	}

	m := &Map{byName: map[string]*Frame{}}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("can: read row: %w", err)
		}

		frameID, err := parseHexOrDecUint32(rec[idx["frame_id"]])
		if err != nil {
			return nil, fmt.Errorf("can: invalid frame_id %q: %w", rec[idx["frame_id"]], err)
		}
		frameName := strings.TrimSpace(rec[idx["frame_name"]])
		dlc := mustInt(rec[idx["dlc"]])
		if dlc <= 0 || dlc > 8 {
			return nil, fmt.Errorf("can: frame %s: invalid dlc %d", frameName, dlc)
		}

		sig := SignalDef{
			Name:      strings.TrimSpace(rec[idx["signal_name"]]),
			StartBit:  mustInt(rec[idx["start_bit"]]),
			BitLength: mustInt(rec[idx["bit_length"]]),
			Signed:    mustBool(rec[idx["signed"]]),
			Factor:    mustFloat(rec[idx["factor"]]),
			Offset:    mustFloat(rec[idx["offset"]]),
			Min:       mustFloat(rec[idx["min"]]),
			Max:       mustFloat(rec[idx["max"]]),
			Default:   mustFloat(rec[idx["default"]]),
			Unit:      strings.TrimSpace(rec[idx["unit"]]),
		}
		if sig.BitLength <= 0 || sig.BitLength > 64 {
			return nil, fmt.Errorf("can: frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
		}

		fd, ok := m.byName[frameName]
		if !ok {
			fd = &Frame{ID: frameID, Name: frameName, DLC: dlc, CycleMS: mustInt(rec[idx["cycle_ms"]])}
			m.byName[frameName] = fd
		}
		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.byName {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	if len(m.byName) == 0 {
		return nil, fmt.Errorf("can: map csv %s has no frames", csvPath)
	}

	return m, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func mustBool(s string) bool {
	ss := strings.TrimSpace(strings.ToLower(s))
	return ss == "true" || ss == "1" || ss == "yes"
}
