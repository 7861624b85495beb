package ur_assist

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "init joint move",
			cmd: MoveJ(
				[6]float64{-1.009423, -1.141297, -1.870417, 3.011723, -1.009423, 0.0},
				MotionParams{Accel: 1.2, Speed: 0.75, Duration: 4, Blend: 0},
			),
			want: "movej([-1.009423, -1.141297, -1.870417, 3.011723, -1.009423, 0.000000],1.20000,0.75000,4,0.0000)",
		},
		{
			name: "tool center point",
			cmd:  SetTCP([6]float64{0, 0, 0.05, 0, 0, 0}),
			want: "set_tcp(p[0.000000, 0.000000, 0.050000, 0.000000, 0.000000, 0.000000])",
		},
		{
			name: "linear move to pose with fractional duration",
			cmd: MoveLPose(
				[6]float64{0.1, -0.45, 0.3, 0, 3.1416, 0},
				MotionParams{Accel: 1.2, Speed: 0.375, Duration: 2.5, Blend: 0.001},
			),
			want: "movel(p[0.100000, -0.450000, 0.300000, 0.000000, 3.141600, 0.000000],1.20000,0.37500,2.5,0.0010)",
		},
		{
			name: "linear move in joint space",
			cmd:  MoveLJoints([6]float64{0, -1.5708, 0, -1.5708, 0, 0}, MotionParams{Accel: 1, Speed: 0.5}),
			want: "movel([0.000000, -1.570800, 0.000000, -1.570800, 0.000000, 0.000000],1.00000,0.50000,0,0.0000)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestParseCommandRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vec := func() [6]float64 {
		var v [6]float64
		for i := range v {
			v[i] = (rng.Float64() - 0.5) * 2 * math.Pi
		}
		return v
	}
	params := func() MotionParams {
		return MotionParams{
			Accel:    math.Round(rng.Float64()*300) / 100,
			Speed:    math.Round(rng.Float64()*200) / 100,
			Duration: float64(rng.Intn(12)) / 2,
			Blend:    math.Round(rng.Float64()*50) / 1000,
		}
	}

	for i := 0; i < 50; i++ {
		for _, cmd := range []Command{
			MoveJ(vec(), params()),
			MoveLPose(vec(), params()),
			MoveLJoints(vec(), params()),
			SetTCP(vec()),
		} {
			got, err := ParseCommand(cmd.String())
			require.NoError(t, err, cmd.String())

			assert.Equal(t, cmd.Kind, got.Kind)
			assert.Equal(t, cmd.IsPose, got.IsPose)
			assert.InDeltaSlice(t, cmd.Pose[:], got.Pose[:], 5e-7)
			assert.InDeltaSlice(t, cmd.Joints[:], got.Joints[:], 5e-7)
			assert.InDelta(t, cmd.Accel, got.Accel, 5e-6)
			assert.InDelta(t, cmd.Speed, got.Speed, 5e-6)
			assert.Equal(t, cmd.Duration, got.Duration)
			assert.InDelta(t, cmd.Blend, got.Blend, 5e-5)
		}
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"stopj(a=2.0)",
		"movej([1, 2, 3],1,1,1,0)",
		"movej(p[0, 0, 0, 0, 0, 0],1,1,1,0)",
		"movel(p[0, 0, 0, 0, 0, x],1,1,1,0)",
		"set_tcp([0, 0, 0, 0, 0, 0])",
	} {
		_, err := ParseCommand(line)
		assert.Error(t, err, line)
	}
}
