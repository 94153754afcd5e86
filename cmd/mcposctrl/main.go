// Command mcposctrl runs the multicopter position/velocity controller.
// Mirrors the teacher's closed_loop/main.go flag-driven bootstrap, rebuilt
// on cobra's start/stop/status subcommand shape for the CLI surface §6
// specifies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mcposctrl/internal/bus"
	"mcposctrl/internal/domain"
	"mcposctrl/internal/flighttask"
	"mcposctrl/internal/logging"
	"mcposctrl/internal/params"
	"mcposctrl/internal/poscontrol"
	"mcposctrl/internal/posctrlpid"
	"mcposctrl/internal/telemetry/can"
)

var (
	busName    string
	configPath string
	mapPath    string
	logPath    string
	runMarker  string
)

func main() {
	root := &cobra.Command{
		Use:   "mcposctrl",
		Short: "multicopter position/velocity control loop",
	}
	root.PersistentFlags().StringVar(&runMarker, "run-marker", defaultRunMarker(), "run-marker (PID file) path")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "run the controller in the foreground until stopped",
		RunE:  runStart,
	}
	startCmd.Flags().StringVarP(&busName, "bus", "b", "vcan0", "SocketCAN interface for the telemetry sink")
	startCmd.Flags().StringVar(&configPath, "config", "mcposctrl.yaml", "parameter table YAML path")
	startCmd.Flags().StringVar(&mapPath, "can-map", "internal/telemetry/can/telemetry_map.csv", "CAN signal map CSV path")
	startCmd.Flags().StringVar(&logPath, "log-file", "", "optional log file path, in addition to stdout")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "signal a running controller to shut down",
		RunE:  runStop,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "report whether a controller instance is running",
		RunE:  runStatus,
	}

	root.AddCommand(startCmd, stopCmd, statusCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultRunMarker() string {
	return filepath.Join(os.TempDir(), "mcposctrl.pid")
}

// runStart wires every component and blocks until ctx is canceled by a
// signal or by `stop`. Per §7, failures in the initial setup (bus/CAN-map/
// param-file load) are fatal and return a non-zero exit code; once running,
// the loop and the CAN forwarder's own failures are logged and swallowed.
func runStart(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(runMarker); err == nil {
		return fmt.Errorf("mcposctrl: run marker %s already present; is a controller already running?", runMarker)
	}

	log, err := logging.New(logging.INFO, logPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer log.Close()

	if err := os.WriteFile(runMarker, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write run marker: %w", err)
	}
	defer os.Remove(runMarker)

	b := bus.New()
	topics := poscontrol.Topics{
		VehicleStatus:    bus.TopicFor[domain.VehicleStatus](b, "vehicle_status"),
		LandDetected:     bus.TopicFor[domain.LandDetection](b, "vehicle_land_detected"),
		ControlMode:      bus.TopicFor[domain.ControlMode](b, "vehicle_control_mode"),
		ParameterUpdate:  bus.TopicFor[struct{}](b, "parameter_update"),
		LocalPosition:    bus.TopicFor[domain.LocalPosition](b, "vehicle_local_position"),
		HomePosition:     bus.TopicFor[domain.HomePosition](b, "home_position"),
		LocalPositionSp:  bus.TopicFor[domain.LocalPositionSetpoint](b, "vehicle_local_position_setpoint"),
		AttitudeSetpoint: bus.TopicFor[domain.AttitudeSetpoint](b, "vehicle_attitude_setpoint"),
	}

	paramUpdates := topics.ParameterUpdate
	paramTbl, err := params.NewTable(configPath, paramUpdates)
	if err != nil {
		return fmt.Errorf("load parameters: %w", err)
	}

	pid := posctrlpid.New(posctrlpid.DefaultGains())
	switcher := flighttask.NewSwitcher()
	loop := poscontrol.NewLoop(topics, pid, switcher, paramTbl, log)

	cmap, err := can.LoadMap(mapPath)
	if err != nil {
		return fmt.Errorf("load can map: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := can.NewSocketCANWriter(ctx, busName)
	if err != nil {
		log.Warn("can telemetry: disabled, could not open %s: %v", busName, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})

	if writer != nil {
		forwarder, err := can.NewForwarder(cmap, writer, log, topics.LocalPositionSp, topics.AttitudeSetpoint)
		if err != nil {
			log.Warn("can telemetry: disabled, %v", err)
		} else {
			g.Go(func() error {
				defer writer.Close()
				return forwarder.Run(gctx)
			})
		}
	}

	log.Info("mcposctrl started, bus=%s config=%s", busName, configPath)
	err = g.Wait()
	if ctx.Err() != nil {
		log.Info("mcposctrl stopped")
		return nil
	}
	return err
}

// runStop reads the run marker left by `start` and signals that process to
// shut down, the single-binary equivalent of PX4's `mc_pos_control stop`.
func runStop(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(runMarker)
	if err != nil {
		return fmt.Errorf("mcposctrl: no run marker at %s, nothing to stop", runMarker)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("mcposctrl: run marker %s is corrupt: %w", runMarker, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("mcposctrl: pid %d not found: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("mcposctrl: signal pid %d: %w", pid, err)
	}

	fmt.Printf("mcposctrl: sent stop signal to pid %d\n", pid)
	return nil
}

// runStatus reports whether a run marker is present and its process still
// alive, per the §6 [EXPANSION] status feature.
func runStatus(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(runMarker)
	if err != nil {
		fmt.Println("mcposctrl: not running")
		return nil
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("mcposctrl: run marker %s is corrupt: %w", runMarker, err)
	}

	proc, err := os.FindProcess(pid)
	if err == nil && proc.Signal(syscall.Signal(0)) == nil {
		fmt.Printf("mcposctrl: running, pid %d\n", pid)
		return nil
	}

	fmt.Printf("mcposctrl: stale run marker for pid %d (process not found); removing\n", pid)
	return os.Remove(runMarker)
}
