package ur_assist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// DefaultProgram is run when neither the config nor the command line names one.
const DefaultProgram = "assistive"

// Config is the run configuration, read from JSON.
type Config struct {
	Host              string  `json:"host,omitempty"`
	Port              int     `json:"port,omitempty"`
	ConnectTimeoutSec float64 `json:"connect_timeout_sec,omitempty"`
	// Offline skips the controller probe, so only the simulation runs.
	Offline bool `json:"offline,omitempty"`

	Scene     string `json:"scene"`
	Catalogue string `json:"catalogue,omitempty"`
	Program   string `json:"program,omitempty"`

	// SimSpeed overrides the catalogue's initial simulation speed in mm/s.
	SimSpeed float64 `json:"sim_speed,omitempty"`
	Realtime bool    `json:"realtime,omitempty"`
	// PaceScale multiplies every wait after a controller command. 0 means no waiting.
	PaceScale *float64 `json:"pace_scale,omitempty"`

	Hand *HandConfig `json:"hand,omitempty"`
}

// LoadConfig reads and validates a config file. Relative paths inside it are
// taken relative to the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	dir := filepath.Dir(path)
	cfg.Scene = resolvePath(dir, cfg.Scene)
	cfg.Catalogue = resolvePath(dir, cfg.Catalogue)
	if cfg.Hand != nil {
		cfg.Hand.CalibrationFile = resolvePath(dir, cfg.Hand.CalibrationFile)
		cfg.Hand.CalibrationDir = resolvePath(dir, cfg.Hand.CalibrationDir)
	}

	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate fills defaults and checks the config.
func (cfg *Config) Validate(path string) error {
	if cfg.Scene == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "scene")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.Errorf("%s: port must be between 1 and 65535, got %d", path, cfg.Port)
	}
	if cfg.ConnectTimeoutSec < 0 {
		return errors.Errorf("%s: connect_timeout_sec must not be negative", path)
	}
	if cfg.ConnectTimeoutSec == 0 {
		cfg.ConnectTimeoutSec = DefaultConnectTimeout.Seconds()
	}
	if cfg.Program == "" {
		cfg.Program = DefaultProgram
	}
	if cfg.SimSpeed < 0 {
		return errors.Errorf("%s: sim_speed must not be negative", path)
	}
	if cfg.PaceScale == nil {
		one := 1.0
		cfg.PaceScale = &one
	}
	if *cfg.PaceScale < 0 {
		return errors.Errorf("%s: pace_scale must not be negative", path)
	}
	if cfg.Hand != nil {
		if err := cfg.Hand.Validate(path + ".hand"); err != nil {
			return err
		}
	}
	return nil
}

// ConnectTimeout is the probe timeout.
func (cfg *Config) ConnectTimeout() time.Duration {
	return seconds(cfg.ConnectTimeoutSec)
}
