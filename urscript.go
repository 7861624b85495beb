package ur_assist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is one of the URScript motion commands understood by the controller.
type Kind string

const (
	KindMoveJ  Kind = "movej"
	KindMoveL  Kind = "movel"
	KindSetTCP Kind = "set_tcp"
)

// MotionParams are the trailing scalar arguments of movej/movel.
type MotionParams struct {
	Accel    float64 // rad/s² for movej, m/s² for movel
	Speed    float64 // rad/s for movej, m/s for movel
	Duration float64 // seconds, 0 lets the controller pick
	Blend    float64 // metres
}

// Command is a single URScript line waiting to be sent to the controller.
type Command struct {
	Kind Kind

	// IsPose selects Pose (p[x,y,z,rx,ry,rz]) over Joints as the target.
	// set_tcp always uses Pose.
	IsPose bool
	Pose   [6]float64
	Joints [6]float64

	MotionParams
}

// MoveJ builds a joint-space move to six joint angles in radians.
func MoveJ(joints [6]float64, params MotionParams) Command {
	return Command{Kind: KindMoveJ, Joints: joints, MotionParams: params}
}

// MoveLPose builds a linear move to a controller-frame pose (m, rotation vector).
func MoveLPose(pose [6]float64, params MotionParams) Command {
	return Command{Kind: KindMoveL, IsPose: true, Pose: pose, MotionParams: params}
}

// MoveLJoints builds a linear move whose target is given in joint space.
func MoveLJoints(joints [6]float64, params MotionParams) Command {
	return Command{Kind: KindMoveL, Joints: joints, MotionParams: params}
}

// SetTCP builds the tool-center-point offset command.
func SetTCP(offset [6]float64) Command {
	return Command{Kind: KindSetTCP, IsPose: true, Pose: offset}
}

func formatVector(v [6]float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', 6, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (c Command) target() string {
	if c.IsPose {
		return "p" + formatVector(c.Pose)
	}
	return formatVector(c.Joints)
}

// String renders the command in the controller's text format, without the
// trailing newline.
func (c Command) String() string {
	switch c.Kind {
	case KindSetTCP:
		return fmt.Sprintf("set_tcp(%s)", c.target())
	case KindMoveJ, KindMoveL:
		return fmt.Sprintf("%s(%s,%.5f,%.5f,%s,%.4f)",
			c.Kind,
			c.target(),
			c.Accel,
			c.Speed,
			strconv.FormatFloat(c.Duration, 'f', -1, 64),
			c.Blend,
		)
	default:
		return fmt.Sprintf("# unknown command %q", string(c.Kind))
	}
}

var (
	setTCPLine = regexp.MustCompile(`^set_tcp\(p\[([^\]]*)\]\)$`)
	moveLine   = regexp.MustCompile(`^(movej|movel)\((p?)\[([^\]]*)\],([^,]+),([^,]+),([^,]+),([^,]+)\)$`)
)

func parseVector(s string) ([6]float64, error) {
	var v [6]float64
	fields := strings.Split(s, ",")
	if len(fields) != len(v) {
		return v, errors.Errorf("expected 6 components, got %d", len(fields))
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return v, errors.Wrapf(err, "component %d", i)
		}
		v[i] = x
	}
	return v, nil
}

// ParseCommand decodes a line produced by Command.String.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)

	if m := setTCPLine.FindStringSubmatch(line); m != nil {
		offset, err := parseVector(m[1])
		if err != nil {
			return Command{}, errors.Wrap(err, "set_tcp offset")
		}
		return SetTCP(offset), nil
	}

	m := moveLine.FindStringSubmatch(line)
	if m == nil {
		return Command{}, errors.Errorf("unrecognised URScript line %q", line)
	}

	cmd := Command{Kind: Kind(m[1]), IsPose: m[2] == "p"}
	if cmd.Kind == KindMoveJ && cmd.IsPose {
		return Command{}, errors.New("movej takes a joint vector, not a pose")
	}
	target, err := parseVector(m[3])
	if err != nil {
		return Command{}, errors.Wrapf(err, "%s target", cmd.Kind)
	}
	if cmd.IsPose {
		cmd.Pose = target
	} else {
		cmd.Joints = target
	}

	scalars := make([]float64, 4)
	for i, s := range m[4:8] {
		if scalars[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return Command{}, errors.Wrapf(err, "%s argument %d", cmd.Kind, i+1)
		}
	}
	cmd.MotionParams = MotionParams{
		Accel:    scalars[0],
		Speed:    scalars[1],
		Duration: scalars[2],
		Blend:    scalars[3],
	}
	return cmd, nil
}
