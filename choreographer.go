package ur_assist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// ErrTargetsMissing is returned for a gesture whose scene targets could not
// all be resolved. Nothing moves for such a gesture.
var ErrTargetsMissing = errors.New("gesture targets not found")

// Hand is the tool actuator driven by grip steps on the real robot.
type Hand interface {
	Grip(ctx context.Context, closed bool) error
	Close() error
}

// Outcome is how a gesture ended.
type Outcome int

const (
	Completed Outcome = iota
	Skipped
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// GestureResult records one gesture of a program run.
type GestureResult struct {
	Name     string
	Outcome  Outcome
	Reason   string
	Duration time.Duration
}

// Report summarises a program run.
type Report struct {
	Program string
	Results []GestureResult
}

func (r Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d completed, %d skipped, %d aborted",
		r.Program, r.count(Completed), r.count(Skipped), r.count(Aborted))
}

// Choreographer runs catalogue gestures on the simulator and, when a link is
// present, mirrors them to the controller.
type Choreographer struct {
	sim       Simulator
	link      *Link
	hand      Hand
	cat       *Catalogue
	paceScale float64
	logger    logging.Logger
}

// NewChoreographer wires the collaborators together. link and hand may be nil.
func NewChoreographer(sim Simulator, link *Link, hand Hand, cat *Catalogue, logger logging.Logger) *Choreographer {
	return &Choreographer{
		sim:       sim,
		link:      link,
		hand:      hand,
		cat:       cat,
		paceScale: 1,
		logger:    logger,
	}
}

// SetPaceScale scales every wait, simulated holds included. Zero runs
// without waiting.
func (c *Choreographer) SetPaceScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.paceScale = scale
	if c.link != nil {
		c.link.SetPaceScale(scale)
	}
}

// Connected reports whether controller steps will be sent.
func (c *Choreographer) Connected() bool {
	return c.link != nil
}

// RunProgram runs each gesture of the named program in order. Gestures with
// missing targets or a failed stir are recorded and the run goes on; any
// other error ends the run.
func (c *Choreographer) RunProgram(ctx context.Context, name string) (Report, error) {
	report := Report{Program: name}
	seq, err := c.cat.Program(name)
	if err != nil {
		return report, err
	}

	c.logger.Infof("running program %s (%s), controller connected: %v",
		name, strings.Join(seq, ", "), c.Connected())
	for _, g := range seq {
		start := time.Now()
		outcome, reason, err := c.run(ctx, g)
		if err != nil {
			return report, errors.Wrapf(err, "gesture %s", g)
		}
		report.Results = append(report.Results, GestureResult{
			Name:     g,
			Outcome:  outcome,
			Reason:   reason,
			Duration: time.Since(start),
		})
	}
	c.logger.Infof("program finished: %s", report)
	return report, nil
}

// RunGesture runs a single gesture. It returns ErrTargetsMissing when the
// gesture was skipped; an aborted stir is not an error.
func (c *Choreographer) RunGesture(ctx context.Context, name string) error {
	outcome, reason, err := c.run(ctx, name)
	if err != nil {
		return err
	}
	if outcome == Skipped {
		return errors.Wrap(ErrTargetsMissing, reason)
	}
	return nil
}

func (c *Choreographer) run(ctx context.Context, name string) (Outcome, string, error) {
	g, ok := c.cat.Gesture(name)
	if !ok {
		return Skipped, "", errors.Errorf("unknown gesture %q", name)
	}
	if err := ctx.Err(); err != nil {
		return Skipped, "", err
	}

	c.logger.Infof("%s", g.Name)
	targets, missing := c.resolve(g)
	if len(missing) > 0 {
		reason := fmt.Sprintf("%s targets are not found: %s", g.Name, strings.Join(missing, ", "))
		c.logger.Warn(reason)
		return Skipped, reason, nil
	}

	if err := c.runSim(ctx, g.Sim, targets); err != nil {
		return c.failed(g.Name, err)
	}
	c.logger.Infof("%s done (simulation)", g.Name)

	if c.link == nil || len(g.Robot) == 0 {
		return Completed, "", nil
	}
	if err := c.runRobot(ctx, g.Robot, targets); err != nil {
		return c.failed(g.Name, err)
	}
	c.logger.Infof("%s (URScript) sent", g.Name)
	return Completed, "", nil
}

// failed ends a gesture. Stir failures are reported and swallowed, everything
// else is passed up.
func (c *Choreographer) failed(gesture string, err error) (Outcome, string, error) {
	var stirErr *stirError
	if errors.As(err, &stirErr) {
		c.logger.Errorw("stir failed, ending gesture", "gesture", gesture, "error", stirErr.err)
		return Aborted, stirErr.Error(), nil
	}
	return Aborted, "", err
}

// resolve looks up every target the gesture needs. Targets that a movej step
// uses must also carry joints.
func (c *Choreographer) resolve(g Gesture) (map[string]Target, []string) {
	names, needJoints := g.RequiredTargets()
	targets := make(map[string]Target, len(names))
	var missing []string
	for _, n := range names {
		t := c.sim.Item(n)
		if !t.Valid() || (needJoints[n] && !t.HasJoints()) {
			missing = append(missing, n)
			continue
		}
		targets[n] = t
	}
	return targets, missing
}

func (c *Choreographer) runSim(ctx context.Context, steps []SimStep, targets map[string]Target) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch s.Op {
		case OpMoveJ:
			err = c.sim.MoveJ(ctx, targets[s.Target], true)
		case OpMoveL:
			err = c.sim.MoveL(ctx, targets[s.Target], true)
		case OpSpeed:
			c.sim.SetSpeed(s.Speed)
		case OpHold:
			err = c.wait(ctx, s.Seconds)
		case OpRepeat:
			for i := 0; i < s.Times && err == nil; i++ {
				err = c.runSim(ctx, s.Steps, targets)
			}
		case OpGrip:
			c.sim.SetGrip(*s.Closed)
		case OpStir:
			err = c.stirSim(ctx, targets[s.Target], *s.Stir)
		default:
			err = errors.Errorf("unknown sim op %q", s.Op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Choreographer) runRobot(ctx context.Context, steps []RobotStep, targets map[string]Target) error {
	for _, s := range steps {
		if s.Op == OpRobotGrip {
			if err := c.grip(ctx, *s.Closed, s.wait(MotionParams{})); err != nil {
				return err
			}
			continue
		}
		cmds, p, err := c.commands(s, targets)
		if err != nil {
			if s.Op == OpRobotStir {
				return asStirError(ctx, err)
			}
			return err
		}
		for _, cmd := range cmds {
			if err := c.send(ctx, cmd, s.wait(p)); err != nil {
				if s.Op == OpRobotStir {
					return asStirError(ctx, err)
				}
				return err
			}
		}
	}
	return nil
}

// commands builds the URScript lines for one controller step along with the
// motion parameters they share. Grip steps produce no lines.
func (c *Choreographer) commands(s RobotStep, targets map[string]Target) ([]Command, MotionParams, error) {
	d := c.cat.Defaults
	switch s.Op {
	case OpSetTCP:
		offset := d.TCP
		if s.Offset != nil {
			offset = s.Offset
		}
		var v [6]float64
		copy(v[:], offset)
		return []Command{SetTCP(v)}, MotionParams{}, nil
	case OpRobotJ:
		p := s.params(d, d.TimeJ)
		var joints [6]float64
		if s.Target != "" {
			copy(joints[:], targets[s.Target].Joints)
		} else {
			copy(joints[:], s.Joints)
		}
		return []Command{MoveJ(joints, p)}, p, nil
	case OpRobotL:
		p := s.params(d, d.TimeL)
		return []Command{MoveLPose(PoseToUR(targets[s.Target].Pose), p)}, p, nil
	case OpRobotGrip:
		return nil, MotionParams{}, nil
	case OpRobotStir:
		p := s.params(d, d.TimeL)
		seq, err := StirSequence(targets[s.Target].Pose, *s.Stir)
		if err != nil {
			return nil, p, err
		}
		cmds := make([]Command, len(seq))
		for i, pose := range seq {
			cmds[i] = MoveLPose(PoseToUR(pose), p)
		}
		return cmds, p, nil
	default:
		return nil, MotionParams{}, errors.Errorf("unknown robot op %q", s.Op)
	}
}

func (c *Choreographer) send(ctx context.Context, cmd Command, wait float64) error {
	if err := c.link.Send(ctx, cmd); err != nil {
		return err
	}
	return c.link.Pace(ctx, seconds(wait))
}

func (c *Choreographer) grip(ctx context.Context, closed bool, wait float64) error {
	if c.hand == nil {
		c.logger.Debugf("no hand configured, skipping grip %v", closed)
		return nil
	}
	if err := c.hand.Grip(ctx, closed); err != nil {
		return errors.Wrap(err, "hand grip")
	}
	return c.link.Pace(ctx, seconds(wait))
}

// stirError marks a failure inside a stir routine. It ends the gesture but
// not the program.
type stirError struct {
	err error
}

func (e *stirError) Error() string { return "stir: " + e.err.Error() }

func (e *stirError) Unwrap() error { return e.err }

// asStirError keeps cancellation fatal and turns anything else into a stir failure.
func asStirError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &stirError{err: err}
}

func (c *Choreographer) stirSim(ctx context.Context, center Target, p StirParams) error {
	seq, err := StirSequence(center.Pose, p)
	if err != nil {
		return asStirError(ctx, err)
	}
	for i, pose := range seq {
		t := NewPoseTarget(fmt.Sprintf("%s stir %d", center.Name, i), pose)
		if err := c.sim.MoveL(ctx, t, true); err != nil {
			return asStirError(ctx, errors.Wrapf(err, "point %d", i))
		}
	}
	c.logger.Debugf("stirred %d points around %s", len(seq), center.Name)
	return nil
}

func (c *Choreographer) wait(ctx context.Context, secs float64) error {
	d := time.Duration(float64(seconds(secs)) * c.paceScale)
	if d <= 0 {
		return ctx.Err()
	}
	if !goutils.SelectContextOrWait(ctx, d) {
		return ctx.Err()
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Preview renders the controller lines a gesture would send, resolving
// targets through sim. Nothing moves and nothing is sent.
func (c *Choreographer) Preview(name string) ([]string, error) {
	g, ok := c.cat.Gesture(name)
	if !ok {
		return nil, errors.Errorf("unknown gesture %q", name)
	}
	targets, missing := c.resolve(g)
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrTargetsMissing, "%s", strings.Join(missing, ", "))
	}

	var lines []string
	for _, s := range g.Robot {
		if s.Op == OpRobotGrip {
			lines = append(lines, fmt.Sprintf("# hand closed=%v", *s.Closed))
			continue
		}
		cmds, _, err := c.commands(s, targets)
		if err != nil {
			return nil, err
		}
		for _, cmd := range cmds {
			lines = append(lines, cmd.String())
		}
	}
	return lines, nil
}
