package ur_assist

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// rotationEpsilon is the rotation vector norm below which a pose is treated as unrotated.
const rotationEpsilon = 1e-12

// PoseToUR converts a pose in millimetres into the controller's p[x,y,z,rx,ry,rz]
// order: metres and an axis-angle rotation vector in radians.
func PoseToUR(pose spatialmath.Pose) [6]float64 {
	pt := pose.Point()
	aa := pose.Orientation().AxisAngles().ToR3()
	return [6]float64{
		0.001 * pt.X,
		0.001 * pt.Y,
		0.001 * pt.Z,
		aa.X,
		aa.Y,
		aa.Z,
	}
}

// URToPose is the inverse of PoseToUR.
func URToPose(p [6]float64) spatialmath.Pose {
	pt := r3.Vector{X: 1000 * p[0], Y: 1000 * p[1], Z: 1000 * p[2]}
	aa := r3.Vector{X: p[3], Y: p[4], Z: p[5]}
	if aa.Norm() < rotationEpsilon {
		return spatialmath.NewPoseFromPoint(pt)
	}
	return spatialmath.NewPose(pt, spatialmath.R3ToR4(aa))
}

// translated returns pose moved by offset (mm) in the base frame with its
// orientation left alone.
func translated(pose spatialmath.Pose, offset r3.Vector) spatialmath.Pose {
	return spatialmath.Compose(spatialmath.NewPoseFromPoint(offset), pose)
}
