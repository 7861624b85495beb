package ur_assist

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// StirParams describe a circular stirring motion around a centre pose.
type StirParams struct {
	Radius   float64 `yaml:"radius"`   // mm
	Turns    int     `yaml:"turns"`    // full revolutions
	Steps    int     `yaml:"steps"`    // samples per revolution
	Approach float64 `yaml:"approach"` // mm above the centre to enter and leave from
}

// maxStirPoints bounds turns*steps.
const maxStirPoints = 1000000

// Validate checks that the circle is well formed.
func (p StirParams) Validate() error {
	if p.Turns <= 0 {
		return errors.Errorf("stir turns must be positive, got %d", p.Turns)
	}
	if p.Steps <= 0 {
		return errors.Errorf("stir steps must be positive, got %d", p.Steps)
	}
	if p.Turns > maxStirPoints/p.Steps {
		return errors.Errorf("stir of %d turns x %d steps exceeds %d points", p.Turns, p.Steps, maxStirPoints)
	}
	if p.Radius < 0 || math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) {
		return errors.Errorf("stir radius must be a finite non-negative number, got %v", p.Radius)
	}
	return nil
}

// StirOffset is the base-frame offset of sample i from the centre. It lies in
// the plane orthogonal to the robot's X axis.
func StirOffset(radius float64, i, steps int) r3.Vector {
	angle := 2 * math.Pi * float64(i) / float64(steps)
	return r3.Vector{X: 0, Y: radius * math.Sin(angle), Z: radius * math.Cos(angle)}
}

// StirPath returns turns*steps poses tracing a circle of the given radius
// around center, keeping center's orientation.
func StirPath(center spatialmath.Pose, radius float64, turns, steps int) ([]spatialmath.Pose, error) {
	if err := (StirParams{Radius: radius, Turns: turns, Steps: steps}).Validate(); err != nil {
		return nil, err
	}
	path := make([]spatialmath.Pose, 0, turns*steps)
	for i := 0; i < turns*steps; i++ {
		path = append(path, translated(center, StirOffset(radius, i, steps)))
	}
	return path, nil
}

// Approach returns center raised by dz millimetres along the base Z axis.
func Approach(center spatialmath.Pose, dz float64) spatialmath.Pose {
	return translated(center, r3.Vector{Z: dz})
}

// StirSequence is the full ordered motion: approach, circle, centre, approach.
func StirSequence(center spatialmath.Pose, p StirParams) ([]spatialmath.Pose, error) {
	path, err := StirPath(center, p.Radius, p.Turns, p.Steps)
	if err != nil {
		return nil, err
	}
	above := Approach(center, p.Approach)
	seq := make([]spatialmath.Pose, 0, len(path)+3)
	seq = append(seq, above)
	seq = append(seq, path...)
	return append(seq, center, above), nil
}
