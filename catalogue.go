package ur_assist

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Simulated step operations.
const (
	OpMoveJ  = "move_j"
	OpMoveL  = "move_l"
	OpSpeed  = "speed"
	OpHold   = "hold"
	OpRepeat = "repeat"
	OpGrip   = "grip"
	OpStir   = "stir"
)

// Controller step operations.
const (
	OpSetTCP    = "set_tcp"
	OpRobotJ    = "movej"
	OpRobotL    = "movel"
	OpRobotGrip = "grip"
	OpRobotStir = "stir"
)

// Defaults fill in whatever a controller step leaves out.
type Defaults struct {
	Accel    float64   `yaml:"accel"`
	Speed    float64   `yaml:"speed"`
	Blend    float64   `yaml:"blend"`
	TimeJ    float64   `yaml:"time_j"`
	TimeL    float64   `yaml:"time_l"`
	TCP      []float64 `yaml:"tcp"`
	SimSpeed float64   `yaml:"sim_speed"`
}

var builtinDefaults = Defaults{
	Accel:    1.2,
	Speed:    0.75,
	Blend:    0,
	TimeJ:    6,
	TimeL:    4,
	TCP:      []float64{0, 0, 0.05, 0, 0, 0},
	SimSpeed: 20,
}

// SimStep is one operation on the simulated station.
type SimStep struct {
	Op      string      `yaml:"op"`
	Target  string      `yaml:"target,omitempty"`
	Speed   float64     `yaml:"speed,omitempty"`
	Seconds float64     `yaml:"seconds,omitempty"`
	Times   int         `yaml:"times,omitempty"`
	Steps   []SimStep   `yaml:"steps,omitempty"`
	Closed  *bool       `yaml:"closed,omitempty"`
	Stir    *StirParams `yaml:"stir,omitempty"`
}

// RobotStep is one URScript command sent to the controller, followed by a wait.
type RobotStep struct {
	Op       string      `yaml:"op"`
	Target   string      `yaml:"target,omitempty"`
	Joints   []float64   `yaml:"joints,omitempty"`
	Offset   []float64   `yaml:"offset,omitempty"`
	Accel    *float64    `yaml:"accel,omitempty"`
	Speed    *float64    `yaml:"speed,omitempty"`
	Duration *float64    `yaml:"duration,omitempty"`
	Blend    *float64    `yaml:"blend,omitempty"`
	Wait     *float64    `yaml:"wait,omitempty"`
	Closed   *bool       `yaml:"closed,omitempty"`
	Stir     *StirParams `yaml:"stir,omitempty"`
}

// Gesture is a named motion on the station, optionally mirrored to the controller.
type Gesture struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Targets     []string    `yaml:"targets,omitempty"`
	Sim         []SimStep   `yaml:"sim"`
	Robot       []RobotStep `yaml:"robot,omitempty"`
}

// Catalogue is the table of gestures and the programs that sequence them.
type Catalogue struct {
	Defaults Defaults            `yaml:"defaults"`
	Gestures []Gesture           `yaml:"gestures"`
	Programs map[string][]string `yaml:"programs"`

	index map[string]int
}

// LoadCatalogue reads a catalogue file, or the built-in one when path is empty.
func LoadCatalogue(path string) (*Catalogue, error) {
	data := defaultCatalogue
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "failed to read catalogue")
		}
	}
	cat, err := ParseCatalogue(data)
	if err != nil {
		if path == "" {
			path = "built-in catalogue"
		}
		return nil, errors.Wrapf(err, "invalid catalogue %s", path)
	}
	return cat, nil
}

// ParseCatalogue decodes and validates catalogue YAML. Unknown keys are errors.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var cat Catalogue
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse catalogue YAML")
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate fills defaults and checks every gesture and program. All problems
// are reported together.
func (c *Catalogue) Validate() error {
	c.fillDefaults()

	var errs error
	if len(c.Defaults.TCP) != 6 {
		errs = multierr.Append(errs, errors.Errorf("defaults.tcp needs 6 values, got %d", len(c.Defaults.TCP)))
	}

	c.index = make(map[string]int, len(c.Gestures))
	for i, g := range c.Gestures {
		if g.Name == "" {
			errs = multierr.Append(errs, errors.Errorf("gesture %d has no name", i))
			continue
		}
		if _, ok := c.index[g.Name]; ok {
			errs = multierr.Append(errs, errors.Errorf("duplicate gesture %q", g.Name))
			continue
		}
		c.index[g.Name] = i
		if err := g.validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "gesture %q", g.Name))
		}
	}

	if len(c.Programs) == 0 {
		errs = multierr.Append(errs, errors.New("no programs defined"))
	}
	for name, seq := range c.Programs {
		if len(seq) == 0 {
			errs = multierr.Append(errs, errors.Errorf("program %q is empty", name))
		}
		for _, g := range seq {
			if _, ok := c.index[g]; !ok {
				errs = multierr.Append(errs, errors.Errorf("program %q references unknown gesture %q", name, g))
			}
		}
	}
	return errs
}

func (c *Catalogue) fillDefaults() {
	d := &c.Defaults
	if d.Accel == 0 {
		d.Accel = builtinDefaults.Accel
	}
	if d.Speed == 0 {
		d.Speed = builtinDefaults.Speed
	}
	if d.TimeJ == 0 {
		d.TimeJ = builtinDefaults.TimeJ
	}
	if d.TimeL == 0 {
		d.TimeL = builtinDefaults.TimeL
	}
	if d.TCP == nil {
		d.TCP = append([]float64(nil), builtinDefaults.TCP...)
	}
	if d.SimSpeed == 0 {
		d.SimSpeed = builtinDefaults.SimSpeed
	}
}

func (g Gesture) validate() error {
	var errs error
	if len(g.Sim) == 0 && len(g.Robot) == 0 {
		errs = multierr.Append(errs, errors.New("no steps"))
	}
	for i, s := range g.Sim {
		if err := s.validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "sim step %d", i))
		}
	}
	for i, s := range g.Robot {
		if err := s.validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "robot step %d", i))
		}
	}
	return errs
}

func (s SimStep) validate() error {
	switch s.Op {
	case OpMoveJ, OpMoveL:
		if s.Target == "" {
			return errors.Errorf("%s needs a target", s.Op)
		}
	case OpSpeed:
		if s.Speed <= 0 {
			return errors.Errorf("speed must be positive, got %v", s.Speed)
		}
	case OpHold:
		if s.Seconds <= 0 {
			return errors.Errorf("hold needs positive seconds, got %v", s.Seconds)
		}
	case OpRepeat:
		if s.Times < 1 {
			return errors.Errorf("repeat needs times >= 1, got %d", s.Times)
		}
		if len(s.Steps) == 0 {
			return errors.New("repeat has no steps")
		}
		for i, inner := range s.Steps {
			if err := inner.validate(); err != nil {
				return errors.Wrapf(err, "repeat step %d", i)
			}
		}
	case OpGrip:
		if s.Closed == nil {
			return errors.New("grip needs closed: true|false")
		}
	case OpStir:
		if s.Target == "" {
			return errors.New("stir needs a centre target")
		}
		if s.Stir == nil {
			return errors.New("stir needs parameters")
		}
		return s.Stir.Validate()
	default:
		return errors.Errorf("unknown sim op %q", s.Op)
	}
	return nil
}

func (s RobotStep) validate() error {
	for name, v := range map[string]*float64{
		"accel": s.Accel, "speed": s.Speed, "duration": s.Duration, "blend": s.Blend, "wait": s.Wait,
	} {
		if v != nil && *v < 0 {
			return errors.Errorf("%s must not be negative, got %v", name, *v)
		}
	}

	switch s.Op {
	case OpSetTCP:
		if s.Offset != nil && len(s.Offset) != 6 {
			return errors.Errorf("set_tcp offset needs 6 values, got %d", len(s.Offset))
		}
	case OpRobotJ:
		switch {
		case s.Target != "" && s.Joints != nil:
			return errors.New("movej takes a target or joints, not both")
		case s.Target == "" && len(s.Joints) != 6:
			return errors.Errorf("movej needs a target or 6 joints, got %d joints", len(s.Joints))
		}
	case OpRobotL:
		if s.Target == "" {
			return errors.New("movel needs a target")
		}
	case OpRobotGrip:
		if s.Closed == nil {
			return errors.New("grip needs closed: true|false")
		}
	case OpRobotStir:
		if s.Target == "" {
			return errors.New("stir needs a centre target")
		}
		if s.Stir == nil {
			return errors.New("stir needs parameters")
		}
		return s.Stir.Validate()
	default:
		return errors.Errorf("unknown robot op %q", s.Op)
	}
	return nil
}

// Gesture returns the named gesture.
func (c *Catalogue) Gesture(name string) (Gesture, bool) {
	i, ok := c.index[name]
	if !ok {
		return Gesture{}, false
	}
	return c.Gestures[i], true
}

// Program returns the ordered gesture names of a program.
func (c *Catalogue) Program(name string) ([]string, error) {
	seq, ok := c.Programs[name]
	if !ok {
		return nil, errors.Errorf("unknown program %q", name)
	}
	return seq, nil
}

// ProgramNames returns the program names in sorted order.
func (c *Catalogue) ProgramNames() []string {
	names := make([]string, 0, len(c.Programs))
	for n := range c.Programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RequiredTargets lists every target a gesture touches, declared ones first,
// without duplicates. joints names the subset that needs a joint configuration.
func (g Gesture) RequiredTargets() (names []string, joints map[string]bool) {
	seen := map[string]bool{}
	joints = map[string]bool{}
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, n := range g.Targets {
		add(n)
	}
	var walk func([]SimStep)
	walk = func(steps []SimStep) {
		for _, s := range steps {
			add(s.Target)
			walk(s.Steps)
		}
	}
	walk(g.Sim)
	for _, s := range g.Robot {
		add(s.Target)
		if s.Op == OpRobotJ && s.Target != "" {
			joints[s.Target] = true
		}
	}
	return names, joints
}

// params resolves a controller step's motion parameters against the defaults.
func (s RobotStep) params(d Defaults, defaultDuration float64) MotionParams {
	pick := func(v *float64, def float64) float64 {
		if v != nil {
			return *v
		}
		return def
	}
	return MotionParams{
		Accel:    pick(s.Accel, d.Accel),
		Speed:    pick(s.Speed, d.Speed),
		Duration: pick(s.Duration, defaultDuration),
		Blend:    pick(s.Blend, d.Blend),
	}
}

// wait is how long to pace after the step's command; it defaults to the
// command's duration.
func (s RobotStep) wait(p MotionParams) float64 {
	if s.Wait != nil {
		return *s.Wait
	}
	return p.Duration
}
