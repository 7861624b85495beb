package ur_assist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	cat, err := LoadCatalogue("")
	require.NoError(t, err)

	assert.Equal(t, []string{"assistive", "greeting", "pharmacy"}, cat.ProgramNames())
	for _, name := range []string{
		"init", "wave", "shake", "give5", "press_sanitizer", "adjust_light",
		"pick_drug", "move_drug", "drop_drug", "mix_solution",
	} {
		_, ok := cat.Gesture(name)
		assert.True(t, ok, name)
	}

	seq, err := cat.Program("assistive")
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "wave", "press_sanitizer", "adjust_light"}, seq)

	assert.Equal(t, 1.2, cat.Defaults.Accel)
	assert.Equal(t, 0.75, cat.Defaults.Speed)
	assert.Equal(t, 6.0, cat.Defaults.TimeJ)
	assert.Equal(t, 4.0, cat.Defaults.TimeL)
	assert.Equal(t, []float64{0, 0, 0.05, 0, 0, 0}, cat.Defaults.TCP)

	wave, _ := cat.Gesture("wave")
	assert.Empty(t, wave.Robot, "wave is simulated only")
	require.Len(t, wave.Sim, 3)
	assert.Equal(t, OpRepeat, wave.Sim[1].Op)
	assert.Equal(t, 3, wave.Sim[1].Times)

	_, err = cat.Program("nope")
	assert.Error(t, err)
}

func TestRequiredTargets(t *testing.T) {
	closed := true
	g := Gesture{
		Name:    "g",
		Targets: []string{"A", "B"},
		Sim: []SimStep{
			{Op: OpMoveJ, Target: "B"},
			{Op: OpRepeat, Times: 2, Steps: []SimStep{{Op: OpMoveL, Target: "C"}}},
			{Op: OpGrip, Closed: &closed},
		},
		Robot: []RobotStep{
			{Op: OpRobotJ, Target: "D"},
			{Op: OpRobotL, Target: "A"},
		},
	}
	names, joints := g.RequiredTargets()
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
	assert.Equal(t, map[string]bool{"D": true}, joints)
}

func TestParseCatalogueRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ``},
		{"unknown key", `
gestures: [{name: a, sim: [{op: hold, seconds: 1}], colour: red}]
programs: {p: [a]}`},
		{"unknown sim op", `
gestures: [{name: a, sim: [{op: jump}]}]
programs: {p: [a]}`},
		{"unknown robot op", `
gestures: [{name: a, robot: [{op: jump}]}]
programs: {p: [a]}`},
		{"duplicate gesture", `
gestures:
  - {name: a, sim: [{op: hold, seconds: 1}]}
  - {name: a, sim: [{op: hold, seconds: 1}]}
programs: {p: [a]}`},
		{"unknown gesture in program", `
gestures: [{name: a, sim: [{op: hold, seconds: 1}]}]
programs: {p: [a, b]}`},
		{"zero repeat", `
gestures: [{name: a, sim: [{op: repeat, times: 0, steps: [{op: move_l, target: X}]}]}]
programs: {p: [a]}`},
		{"move without target", `
gestures: [{name: a, sim: [{op: move_l}]}]
programs: {p: [a]}`},
		{"short joints", `
gestures: [{name: a, robot: [{op: movej, joints: [1, 2, 3]}]}]
programs: {p: [a]}`},
		{"target and joints", `
gestures: [{name: a, robot: [{op: movej, target: X, joints: [1, 2, 3, 4, 5, 6]}]}]
programs: {p: [a]}`},
		{"negative wait", `
gestures: [{name: a, robot: [{op: movel, target: X, wait: -1}]}]
programs: {p: [a]}`},
		{"grip without state", `
gestures: [{name: a, sim: [{op: grip}]}]
programs: {p: [a]}`},
		{"stir without steps", `
gestures: [{name: a, sim: [{op: stir, target: X, stir: {radius: 5, turns: 1, steps: 0}}]}]
programs: {p: [a]}`},
		{"stir too large", `
gestures: [{name: a, robot: [{op: stir, target: X, stir: {radius: 5, turns: 4294967296, steps: 4294967296}}]}]
programs: {p: [a]}`},
		{"bad tcp", `
defaults: {tcp: [0, 0]}
gestures: [{name: a, sim: [{op: hold, seconds: 1}]}]
programs: {p: [a]}`},
		{"no programs", `
gestures: [{name: a, sim: [{op: hold, seconds: 1}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogue([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogueFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gestures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults: {speed: 0.5}
gestures:
  - name: nod
    sim:
      - {op: move_l, target: Up}
      - {op: move_l, target: Down}
    robot:
      - {op: movel, target: Up, duration: 2}
programs:
  nodding: [nod, nod]
`), 0o644))

	cat, err := LoadCatalogue(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cat.Defaults.Speed)
	assert.Equal(t, 1.2, cat.Defaults.Accel, "unset defaults are filled")

	nod, ok := cat.Gesture("nod")
	require.True(t, ok)
	p := nod.Robot[0].params(cat.Defaults, cat.Defaults.TimeL)
	assert.Equal(t, MotionParams{Accel: 1.2, Speed: 0.5, Duration: 2, Blend: 0}, p)
	assert.Equal(t, 2.0, nod.Robot[0].wait(p))

	_, err = LoadCatalogue(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
