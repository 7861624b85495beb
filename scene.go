package ur_assist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/components/arm/universalrobots"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"
	goutils "go.viam.com/utils"
)

// Target is a named pose, optionally with the joint configuration that reaches it.
type Target struct {
	Name   string
	Pose   spatialmath.Pose
	Joints []float64 // radians, nil for pose-only targets
	valid  bool
}

// NewPoseTarget makes a valid target from a computed pose.
func NewPoseTarget(name string, pose spatialmath.Pose) Target {
	return Target{Name: name, Pose: pose, valid: true}
}

// Valid reports whether the target was found in the scene.
func (t Target) Valid() bool {
	return t.valid && t.Pose != nil
}

// HasJoints reports whether the target carries a full joint configuration.
func (t Target) HasJoints() bool {
	return len(t.Joints) == 6
}

// Simulator is the simulated cell the choreographer drives.
type Simulator interface {
	// Item resolves a named target. Missing names give an invalid Target.
	Item(name string) Target
	MoveJ(ctx context.Context, target Target, blocking bool) error
	MoveL(ctx context.Context, target Target, blocking bool) error
	// SetSpeed sets the linear speed in mm/s for subsequent moves.
	SetSpeed(mmPerSec float64)
	SetGrip(closed bool)
}

// SceneFile is the on-disk description of a station.
type SceneFile struct {
	Robot string        `json:"robot"`
	Base  string        `json:"base,omitempty"`
	Tool  string        `json:"tool,omitempty"`
	Start []float64     `json:"start_joints_deg,omitempty"`
	Items []SceneTarget `json:"targets"`
}

// SceneTarget is either a pose or a joint configuration in degrees.
type SceneTarget struct {
	Name      string         `json:"name"`
	Pose      *commonpb.Pose `json:"pose,omitempty"`
	JointsDeg []float64      `json:"joints_deg,omitempty"`
}

// StationOptions control how the simulated station runs.
type StationOptions struct {
	// Realtime makes moves block for their estimated duration.
	Realtime bool
	// Speed is the initial linear speed in mm/s.
	Speed float64
}

// Station is an in-process simulated UR5e cell loaded from a scene file.
type Station struct {
	mu sync.Mutex

	robot   string
	base    string
	tool    string
	model   referenceframe.Model
	targets map[string]Target
	folded  map[string][]string

	pose     spatialmath.Pose
	joints   []float64
	speed    float64
	closed   bool
	realtime bool

	moveJ int
	moveL int

	logger logging.Logger
}

const defaultSimSpeed = 20.0

// LoadStation reads a scene file and builds the station around a UR5e model.
func LoadStation(path string, opts StationOptions, logger logging.Logger) (*Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scene file")
	}

	var scene SceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, errors.Wrapf(err, "failed to parse scene %s", path)
	}

	st, err := NewStation(scene, opts, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid scene %s", path)
	}
	logger.Infof("loaded scene %s: robot %q (base %q, tool %q) with %d targets",
		path, st.robot, st.base, st.tool, len(st.targets))
	return st, nil
}

// NewStation builds a station from an already decoded scene.
func NewStation(scene SceneFile, opts StationOptions, logger logging.Logger) (*Station, error) {
	if scene.Robot == "" {
		scene.Robot = "UR5e"
	}
	model, err := universalrobots.MakeModelFrame(scene.Robot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build UR5e model")
	}

	st := &Station{
		robot:    scene.Robot,
		base:     scene.Base,
		tool:     scene.Tool,
		model:    model,
		targets:  make(map[string]Target, len(scene.Items)),
		folded:   make(map[string][]string, len(scene.Items)),
		speed:    opts.Speed,
		realtime: opts.Realtime,
		logger:   logger,
	}
	if st.speed <= 0 {
		st.speed = defaultSimSpeed
	}

	for i, item := range scene.Items {
		if item.Name == "" {
			return nil, errors.Errorf("target %d has no name", i)
		}
		if _, ok := st.targets[item.Name]; ok {
			return nil, errors.Errorf("duplicate target %q", item.Name)
		}
		target, err := st.resolve(item)
		if err != nil {
			return nil, errors.Wrapf(err, "target %q", item.Name)
		}
		st.targets[item.Name] = target
		key := strings.ToLower(item.Name)
		st.folded[key] = append(st.folded[key], item.Name)
	}

	start := make([]float64, 6)
	if len(scene.Start) > 0 {
		if len(scene.Start) != 6 {
			return nil, errors.Errorf("start_joints_deg needs 6 values, got %d", len(scene.Start))
		}
		start = degreesToRadians(scene.Start)
	}
	if st.pose, err = st.forward(start); err != nil {
		return nil, err
	}
	st.joints = start
	return st, nil
}

func (s *Station) resolve(item SceneTarget) (Target, error) {
	switch {
	case item.Pose != nil && len(item.JointsDeg) > 0:
		return Target{}, errors.New("set either pose or joints_deg, not both")
	case item.Pose != nil:
		return Target{Name: item.Name, Pose: spatialmath.NewPoseFromProtobuf(item.Pose), valid: true}, nil
	case len(item.JointsDeg) == 6:
		joints := degreesToRadians(item.JointsDeg)
		pose, err := s.forward(joints)
		if err != nil {
			return Target{}, err
		}
		return Target{Name: item.Name, Pose: pose, Joints: joints, valid: true}, nil
	case len(item.JointsDeg) > 0:
		return Target{}, errors.Errorf("joints_deg needs 6 values, got %d", len(item.JointsDeg))
	default:
		return Target{}, errors.New("missing pose or joints_deg")
	}
}

func (s *Station) forward(joints []float64) (spatialmath.Pose, error) {
	pose, err := s.model.Transform(referenceframe.FloatsToInputs(joints))
	if err != nil {
		return nil, errors.Wrap(err, "forward kinematics")
	}
	return pose, nil
}

func degreesToRadians(deg []float64) []float64 {
	rad := make([]float64, len(deg))
	for i, d := range deg {
		rad[i] = rdkutils.DegToRad(d)
	}
	return rad
}

// Item looks a target up by exact name, then case-insensitively. A
// case-insensitive hit is logged since scenes disagree on spelling; more than
// one such hit resolves to an invalid target.
func (s *Station) Item(name string) Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.targets[name]; ok {
		return t
	}
	matches := s.folded[strings.ToLower(name)]
	switch len(matches) {
	case 0:
		return Target{Name: name}
	case 1:
		s.logger.Warnf("target %q not found, using %q", name, matches[0])
		return s.targets[matches[0]]
	default:
		s.logger.Warnf("target %q is ambiguous: %s", name, strings.Join(matches, ", "))
		return Target{Name: name}
	}
}

// Names returns the sorted target names.
func (s *Station) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.targets))
	for n := range s.targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MoveJ moves in joint space. Pose-only targets are reached as if by a
// linear move since the station has no inverse kinematics.
func (s *Station) MoveJ(ctx context.Context, target Target, blocking bool) error {
	return s.move(ctx, "MoveJ", target, blocking)
}

// MoveL moves the tool in a straight line to the target.
func (s *Station) MoveL(ctx context.Context, target Target, blocking bool) error {
	return s.move(ctx, "MoveL", target, blocking)
}

func (s *Station) move(ctx context.Context, kind string, target Target, blocking bool) error {
	if !target.Valid() {
		return errors.Errorf("%s: invalid target %q", kind, target.Name)
	}

	s.mu.Lock()
	dist := target.Pose.Point().Sub(s.pose.Point()).Norm()
	eta := time.Duration(dist / s.speed * float64(time.Second))
	s.pose = target.Pose
	if target.HasJoints() {
		s.joints = append([]float64(nil), target.Joints...)
	} else {
		s.joints = nil
	}
	if kind == "MoveJ" {
		s.moveJ++
	} else {
		s.moveL++
	}
	realtime := s.realtime
	s.mu.Unlock()

	s.logger.Debugf("%s %s: %.1f mm in %v", kind, target.Name, dist, eta.Round(time.Millisecond))
	if realtime && blocking && eta > 0 {
		if !goutils.SelectContextOrWait(ctx, eta) {
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// SetSpeed sets the linear speed used for move duration estimates.
func (s *Station) SetSpeed(mmPerSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mmPerSec <= 0 {
		s.logger.Warnf("ignoring non-positive speed %v", mmPerSec)
		return
	}
	s.speed = mmPerSec
}

// SetGrip opens or closes the simulated tool.
func (s *Station) SetGrip(closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = closed
}

// StationState is a snapshot of the station for reporting.
type StationState struct {
	Pose    spatialmath.Pose
	Joints  []float64
	Speed   float64
	Gripped bool
	MoveJ   int
	MoveL   int
}

func (st StationState) String() string {
	pt := st.Pose.Point()
	return fmt.Sprintf("at (%.1f, %.1f, %.1f) mm, speed %.0f mm/s, gripped %v, %d joint and %d linear moves",
		pt.X, pt.Y, pt.Z, st.Speed, st.Gripped, st.MoveJ, st.MoveL)
}

// State returns the current station state.
func (s *Station) State() StationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StationState{
		Pose:    s.pose,
		Joints:  append([]float64(nil), s.joints...),
		Speed:   s.speed,
		Gripped: s.closed,
		MoveJ:   s.moveJ,
		MoveL:   s.moveL,
	}
}
