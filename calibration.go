package ur_assist

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Normalization modes for a hand servo.
const (
	NormModeRaw       = 0 // raw servo steps, 0-4095 on an STS3215
	NormModeRange100  = 1 // 0 to 100 percent of the calibrated range
	NormModeRangeM100 = 2 // -100 to +100 around the range centre
)

const maxServoStep = 4095

// ServoCalibration maps a servo's raw step range onto the values grip steps use.
type ServoCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
	NormMode     int `json:"norm_mode,omitempty"`
}

// DefaultHandCalibration suits an uncalibrated gripper servo on ID 6.
var DefaultHandCalibration = ServoCalibration{
	ID:       6,
	RangeMin: 500,
	RangeMax: 3500,
	NormMode: NormModeRange100,
}

// Validate checks the calibration against the servo's limits.
func (c *ServoCalibration) Validate() error {
	if c.ID < 0 || c.ID > 253 {
		return errors.Errorf("invalid servo ID: %d", c.ID)
	}
	if c.RangeMin >= c.RangeMax {
		return errors.Errorf("invalid range: min (%d) must be less than max (%d)", c.RangeMin, c.RangeMax)
	}
	if c.RangeMin < 0 || c.RangeMax > maxServoStep {
		return errors.Errorf("range values must be between 0-%d, got min=%d max=%d", maxServoStep, c.RangeMin, c.RangeMax)
	}
	if c.NormMode < NormModeRaw || c.NormMode > NormModeRangeM100 {
		return errors.Errorf("invalid normalization mode: %d", c.NormMode)
	}
	return nil
}

func (c *ServoCalibration) center() float64 {
	return float64(c.RangeMin+c.RangeMax) / 2
}

// Normalize converts a raw servo position to the calibrated scale.
func (c *ServoCalibration) Normalize(raw int) (float64, error) {
	var v float64
	switch c.NormMode {
	case NormModeRaw:
		v = float64(raw)
	case NormModeRange100:
		if c.RangeMax == c.RangeMin {
			return 0, errors.New("invalid calibration: min and max are equal")
		}
		v = float64(raw-c.RangeMin) / float64(c.RangeMax-c.RangeMin) * 100
		v = math.Max(0, math.Min(100, v))
	case NormModeRangeM100:
		if c.RangeMax == c.RangeMin {
			return 0, errors.New("invalid calibration: min and max are equal")
		}
		v = (float64(raw) - c.center()) / (float64(c.RangeMax-c.RangeMin) / 2) * 100
		v = math.Max(-100, math.Min(100, v))
	default:
		return 0, errors.Errorf("unknown normalization mode: %d", c.NormMode)
	}
	return c.invert(v), nil
}

// Denormalize converts a calibrated value to a raw position clamped to the range.
func (c *ServoCalibration) Denormalize(v float64) (int, error) {
	v = c.invert(v)

	var raw int
	switch c.NormMode {
	case NormModeRaw:
		raw = int(math.Round(v))
	case NormModeRange100:
		if c.RangeMax == c.RangeMin {
			return 0, errors.New("invalid calibration: min and max are equal")
		}
		v = math.Max(0, math.Min(100, v))
		raw = int(math.Round(v/100*float64(c.RangeMax-c.RangeMin) + float64(c.RangeMin)))
	case NormModeRangeM100:
		if c.RangeMax == c.RangeMin {
			return 0, errors.New("invalid calibration: min and max are equal")
		}
		v = math.Max(-100, math.Min(100, v))
		raw = int(math.Round(c.center() + v/100*float64(c.RangeMax-c.RangeMin)/2))
	default:
		return 0, errors.Errorf("unknown normalization mode: %d", c.NormMode)
	}

	if raw < c.RangeMin {
		raw = c.RangeMin
	}
	if raw > c.RangeMax {
		raw = c.RangeMax
	}
	return raw, nil
}

// invert applies the drive mode. It is its own inverse.
func (c *ServoCalibration) invert(v float64) float64 {
	if c.DriveMode == 0 {
		return v
	}
	switch c.NormMode {
	case NormModeRaw:
		return 2*c.center() - v
	case NormModeRange100:
		return 100 - v
	case NormModeRangeM100:
		return -v
	}
	return v
}

// LoadServoCalibration reads a calibration file. An empty path gives the default.
func LoadServoCalibration(path string) (ServoCalibration, error) {
	if path == "" {
		return DefaultHandCalibration, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ServoCalibration{}, errors.Wrap(err, "failed to read calibration file")
	}
	cal := DefaultHandCalibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return ServoCalibration{}, errors.Wrap(err, "failed to parse calibration JSON")
	}
	if err := cal.Validate(); err != nil {
		return ServoCalibration{}, errors.Wrapf(err, "calibration %s", path)
	}
	return cal, nil
}

// SaveServoCalibration writes a calibration file.
func SaveServoCalibration(path string, cal ServoCalibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal calibration")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "failed to write calibration file")
}
