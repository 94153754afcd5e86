package can

import (
	"context"
	"fmt"
	"net"
	"time"

	einridecan "go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"mcposctrl/internal/bus"
	"mcposctrl/internal/domain"
	"mcposctrl/internal/logging"
)

// FrameName is the single summary frame this sink emits, mirroring the
// teacher's runner.go which also drives one named frame per configured
// cycle.
const FrameName = "mc_pos_ctrl_telemetry"

// Writer is the transmit half of a CAN connection; narrowed from the
// teacher's CANWriter interface since the forwarder never reads frames
// back (it is a passive observer, §5).
type Writer interface {
	WriteFrame(ctx context.Context, frame einridecan.Frame) error
	Close() error
}

// SocketCANWriter is the production Writer, adapted from the teacher's
// SocketCANWriter (utils/can_transport.go) down to transmit-only.
type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANWriter dials a SocketCAN interface by name (e.g. "can0",
// "vcan0") for transmission only.
func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("can: socketcan dial %s: %w", iface, err)
	}
	return &SocketCANWriter{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame einridecan.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Forwarder subscribes to the two output topics and periodically encodes
// and transmits a summary frame. It never mutates controller state and
// its failures are logged once rather than propagated, matching §4.13:
// "this sink is strictly a passive, best-effort observer."
type Forwarder struct {
	cmap   *Map
	writer Writer
	log    *logging.Logger

	localSpTopic  *bus.Topic[domain.LocalPositionSetpoint]
	attitudeTopic *bus.Topic[domain.AttitudeSetpoint]

	cycle time.Duration

	loggedEncodeError bool
	loggedWriteError  bool
}

// NewForwarder builds a Forwarder from a loaded signal map, a connected
// writer, and the two topics to mirror.
func NewForwarder(cmap *Map, writer Writer, log *logging.Logger, localSp *bus.Topic[domain.LocalPositionSetpoint], attitude *bus.Topic[domain.AttitudeSetpoint]) (*Forwarder, error) {
	fd, err := cmap.FrameByName(FrameName)
	if err != nil {
		return nil, err
	}
	return &Forwarder{
		cmap:          cmap,
		writer:        writer,
		log:           log,
		localSpTopic:  localSp,
		attitudeTopic: attitude,
		cycle:         time.Duration(fd.CycleMS) * time.Millisecond,
	}, nil
}

// Run transmits one frame per configured cycle until ctx is canceled,
// matching the teacher's runner.go ticker-driven TX loop, generalized from
// a scripted scenario source to a live bus snapshot.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Forwarder) tick(ctx context.Context) {
	localSp, haveLocal := f.localSpTopic.Copy()
	attitude, haveAttitude := f.attitudeTopic.Copy()
	if !haveLocal && !haveAttitude {
		return
	}

	values := map[string]float64{
		"pos_z":    float64(localSp.Z),
		"vel_z":    float64(localSp.VZ),
		"thrust_z": float64(localSp.Thrust.Z),
		"roll":     float64(attitude.RollBody),
		"pitch":    float64(attitude.PitchBody),
		"yaw":      float64(attitude.YawBody),
	}

	frame, err := f.cmap.EncodeEinrideFrame(FrameName, values)
	if err != nil {
		if !f.loggedEncodeError {
			f.log.Error("can telemetry: encode failed, suppressing further encode errors: %v", err)
			f.loggedEncodeError = true
		}
		return
	}

	if err := f.writer.WriteFrame(ctx, frame); err != nil {
		if !f.loggedWriteError {
			f.log.Error("can telemetry: transmit failed, suppressing further transmit errors: %v", err)
			f.loggedWriteError = true
		}
		return
	}

	f.loggedEncodeError = false
	f.loggedWriteError = false
}
