package ur_assist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

// SerialPort describes one serial device seen on the host.
type SerialPort struct {
	Name      string
	IsUSB     bool
	VID       string
	PID       string
	Serial    string
	Candidate bool
}

// ListSerialPorts enumerates serial devices and marks the ones a hand could be on.
func ListSerialPorts() ([]SerialPort, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}
	out := make([]SerialPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, SerialPort{
			Name:      p.Name,
			IsUSB:     p.IsUSB,
			VID:       p.VID,
			PID:       p.PID,
			Serial:    p.SerialNumber,
			Candidate: isCandidatePort(p.Name),
		})
	}
	return out, nil
}

// DiscoverHandPorts pings servoID on every candidate port and returns the
// ports where it answered.
func DiscoverHandPorts(ctx context.Context, baudrate, servoID int, logger logging.Logger) ([]string, error) {
	ports, err := ListSerialPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	candidates := filterCandidatePorts(names)
	logger.Debugf("found %d serial ports, %d candidates", len(names), len(candidates))

	var found []string
	for _, port := range candidates {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if pingServo(ctx, port, baudrate, servoID, logger) {
			logger.Infof("hand servo %d answered on %s", servoID, port)
			found = append(found, port)
		}
	}
	return found, nil
}

func pingServo(ctx context.Context, port string, baudrate, servoID int, logger logging.Logger) bool {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baudrate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		logger.Debugf("failed to open port %s: %v", port, err)
		return false
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Debugf("failed to close port %s: %v", port, err)
		}
	}()

	servo := feetech.NewServo(bus, servoID, &feetech.ModelSTS3215)
	_, err = servo.Ping(ctx)
	return err == nil
}

// filterCandidatePorts keeps ports whose names look like USB serial adapters.
func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

func isCandidatePort(port string) bool {
	// Linux
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	// macOS
	for _, prefix := range []string{"/dev/tty.usbmodem", "/dev/tty.usbserial", "/dev/cu.usbmodem", "/dev/cu.usbserial"} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	// Windows
	return strings.HasPrefix(port, "COM")
}

// extractPortSuffix gives a short name for a port:
// /dev/ttyUSB0 -> ttyUSB0, /dev/tty.usbmodem123 -> usbmodem123, COM3 -> COM3.
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// FindHandCalibration looks in dir for a calibration made for this port,
// then for a shared one. It returns "" when there is neither.
func FindHandCalibration(dir, port string) string {
	for _, name := range []string{
		extractPortSuffix(port) + "_hand_calibration.json",
		"hand_calibration.json",
	} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
