package ur_assist

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// HandConfig configures the optional Feetech servo hand.
type HandConfig struct {
	// Port is a serial device path, or "auto" to search for the servo.
	Port     string `json:"port"`
	Baudrate int    `json:"baudrate,omitempty"`
	ServoID  int    `json:"servo_id,omitempty"`

	// Positions in percent of the calibrated range.
	OpenPercent   *float64 `json:"open_percent,omitempty"`
	ClosedPercent *float64 `json:"closed_percent,omitempty"`

	// LoadThreshold stops a closing grip early once the servo pushes this hard.
	LoadThreshold int     `json:"load_threshold,omitempty"`
	TimeoutSec    float64 `json:"timeout_sec,omitempty"`

	CalibrationFile string `json:"calibration_file,omitempty"`
	// CalibrationDir is searched for a calibration when no file is given.
	CalibrationDir string `json:"calibration_dir,omitempty"`
}

// AutoPort asks the hand to search the serial ports for its servo.
const AutoPort = "auto"

const (
	defaultHandBaudrate  = 1000000
	defaultHandServoID   = 6
	defaultOpenPercent   = 100.0
	defaultClosedPercent = 0.0
	defaultGripLoad      = 500
	defaultGripTimeout   = 3 * time.Second
	gripPollInterval     = 10 * time.Millisecond
)

// Validate fills defaults and checks the hand settings.
func (cfg *HandConfig) Validate(path string) error {
	if cfg.Port == "" {
		return errors.Errorf("%s: must specify port for serial communication (or %q)", path, AutoPort)
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = defaultHandBaudrate
	}
	if cfg.ServoID == 0 {
		cfg.ServoID = defaultHandServoID
	}
	if cfg.ServoID < 1 || cfg.ServoID > 253 {
		return errors.Errorf("%s: servo_id must be between 1 and 253, got %d", path, cfg.ServoID)
	}
	if cfg.OpenPercent == nil {
		v := defaultOpenPercent
		cfg.OpenPercent = &v
	}
	if cfg.ClosedPercent == nil {
		v := defaultClosedPercent
		cfg.ClosedPercent = &v
	}
	for name, v := range map[string]float64{"open_percent": *cfg.OpenPercent, "closed_percent": *cfg.ClosedPercent} {
		if v < 0 || v > 100 {
			return errors.Errorf("%s: %s must be between 0 and 100, got %.1f", path, name, v)
		}
	}
	if *cfg.OpenPercent == *cfg.ClosedPercent {
		return errors.Errorf("%s: open_percent and closed_percent must differ", path)
	}
	if cfg.LoadThreshold == 0 {
		cfg.LoadThreshold = defaultGripLoad
	}
	if cfg.TimeoutSec < 0 {
		return errors.Errorf("%s: timeout_sec must not be negative", path)
	}
	return nil
}

func (cfg *HandConfig) timeout() time.Duration {
	if cfg.TimeoutSec == 0 {
		return defaultGripTimeout
	}
	return seconds(cfg.TimeoutSec)
}

// handServo is the part of *feetech.Servo the hand uses.
type handServo interface {
	Ping(ctx context.Context) (int, error)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	SetPosition(ctx context.Context, position int) error
	Position(ctx context.Context) (int, error)
	Load(ctx context.Context) (int, error)
}

// FeetechHand is a single-servo gripper on a Feetech STS bus.
type FeetechHand struct {
	servo  handServo
	bus    io.Closer
	cal    ServoCalibration
	cfg    HandConfig
	logger logging.Logger
}

// NewFeetechHand opens the bus, checks the servo answers and enables torque.
func NewFeetechHand(ctx context.Context, cfg HandConfig, logger logging.Logger) (*FeetechHand, error) {
	if err := cfg.Validate("hand"); err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == AutoPort {
		found, err := DiscoverHandPorts(ctx, cfg.Baudrate, cfg.ServoID, logger)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, errors.Errorf("no serial port answered for hand servo %d", cfg.ServoID)
		}
		if len(found) > 1 {
			logger.Warnf("hand servo %d answered on %d ports, using %s", cfg.ServoID, len(found), found[0])
		}
		port = found[0]
	}

	calFile := cfg.CalibrationFile
	if calFile == "" && cfg.CalibrationDir != "" {
		calFile = FindHandCalibration(cfg.CalibrationDir, port)
	}
	cal, err := LoadServoCalibration(calFile)
	if err != nil {
		return nil, err
	}
	cal.ID = cfg.ServoID
	if calFile == "" {
		logger.Debug("no hand calibration file, using default range")
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: cfg.Baudrate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open hand bus on %s", port)
	}
	servo := feetech.NewServo(bus, cfg.ServoID, &feetech.ModelSTS3215)

	hand, err := newHand(ctx, servo, bus, cal, cfg, logger)
	if err != nil {
		return nil, multierr.Combine(err, bus.Close())
	}
	logger.Infof("hand servo %d ready on %s (open %.0f%%, closed %.0f%%)",
		cfg.ServoID, port, *cfg.OpenPercent, *cfg.ClosedPercent)
	return hand, nil
}

func newHand(ctx context.Context, servo handServo, bus io.Closer, cal ServoCalibration, cfg HandConfig, logger logging.Logger) (*FeetechHand, error) {
	if _, err := servo.Ping(ctx); err != nil {
		return nil, errors.Wrapf(err, "hand servo %d did not answer", cfg.ServoID)
	}
	if err := servo.Enable(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to enable hand torque")
	}
	return &FeetechHand{servo: servo, bus: bus, cal: cal, cfg: cfg, logger: logger}, nil
}

// Grip opens or closes the hand and waits until it gets there. A close that
// meets resistance stops early and counts as holding something.
func (h *FeetechHand) Grip(ctx context.Context, closed bool) error {
	target := *h.cfg.OpenPercent
	if closed {
		target = *h.cfg.ClosedPercent
	}
	raw, err := h.cal.Denormalize(target)
	if err != nil {
		return err
	}
	if err := h.servo.SetPosition(ctx, raw); err != nil {
		return errors.Wrap(err, "failed to move hand")
	}

	tolerance := math.Abs(*h.cfg.OpenPercent-*h.cfg.ClosedPercent) * 0.02
	deadline := time.Now().Add(h.cfg.timeout())
	for {
		if closed {
			if load, err := h.servo.Load(ctx); err == nil && abs(load) > h.cfg.LoadThreshold {
				h.logger.Debugf("hand stopped on load %d", load)
				return nil
			}
		}
		pos, err := h.servo.Position(ctx)
		if err == nil {
			current, err := h.cal.Normalize(pos)
			if err != nil {
				return err
			}
			if math.Abs(current-target) <= tolerance {
				h.logger.Debugf("hand at %.1f%%", current)
				return nil
			}
		} else {
			h.logger.Warnf("failed to read hand position: %v", err)
		}

		if time.Now().After(deadline) {
			return errors.Errorf("hand did not reach %.1f%% within %v", target, h.cfg.timeout())
		}
		if !goutils.SelectContextOrWait(ctx, gripPollInterval) {
			return ctx.Err()
		}
	}
}

// Close releases torque and the serial port.
func (h *FeetechHand) Close() error {
	return multierr.Combine(
		h.servo.Disable(context.Background()),
		h.bus.Close(),
	)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
