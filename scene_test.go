package ur_assist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

const sampleScene = "scenes/assistive_ur5e.json"

func writeScene(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadStationSample(t *testing.T) {
	st, err := LoadStation(sampleScene, StationOptions{}, logging.NewTestLogger(t))
	require.NoError(t, err)

	assert.Contains(t, st.Names(), "Init")
	assert.Contains(t, st.Names(), "Mix_center")

	home := st.Item("Init")
	require.True(t, home.Valid())
	require.True(t, home.HasJoints())
	assert.InDelta(t, -1.009423, home.Joints[0], 1e-4)

	sanitizer := st.Item("App_sanitizer")
	require.True(t, sanitizer.Valid())
	assert.False(t, sanitizer.HasJoints())
	assert.True(t, spatialmath.R3VectorAlmostEqual(r3.Vector{X: 400, Y: 200, Z: 320}, sanitizer.Pose.Point(), 1e-9))

	state := st.State()
	assert.Equal(t, defaultSimSpeed, state.Speed)
	assert.Zero(t, state.MoveJ+state.MoveL)
}

func TestLoadStationErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := LoadStation(filepath.Join(t.TempDir(), "missing.json"), StationOptions{}, logger)
	assert.Error(t, err)

	for name, body := range map[string]string{
		"not json":           `{`,
		"unnamed target":     `{"targets": [{"pose": {"x": 1, "o_z": 1}}]}`,
		"duplicate target":   `{"targets": [{"name": "a", "pose": {"x": 1, "o_z": 1}}, {"name": "a", "pose": {"x": 2, "o_z": 1}}]}`,
		"empty target":       `{"targets": [{"name": "a"}]}`,
		"short joints":       `{"targets": [{"name": "a", "joints_deg": [1, 2, 3]}]}`,
		"pose and joints":    `{"targets": [{"name": "a", "pose": {"x": 1, "o_z": 1}, "joints_deg": [0, 0, 0, 0, 0, 0]}]}`,
		"short start joints": `{"start_joints_deg": [0, 0], "targets": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStation(writeScene(t, body), StationOptions{}, logger)
			assert.Error(t, err)
		})
	}
}

func TestStationItemLookup(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	st, err := NewStation(SceneFile{Items: []SceneTarget{
		{Name: "App_light", Pose: &commonpb.Pose{X: 1, OZ: 1}},
		{Name: "Wave_left", Pose: &commonpb.Pose{X: 2, OZ: 1}},
		{Name: "wave_left", Pose: &commonpb.Pose{X: 3, OZ: 1}},
	}}, StationOptions{}, logger)
	require.NoError(t, err)

	t.Run("exact", func(t *testing.T) {
		got := st.Item("App_light")
		assert.True(t, got.Valid())
		assert.Equal(t, "App_light", got.Name)
	})

	t.Run("case-insensitive fallback warns", func(t *testing.T) {
		got := st.Item("app_light")
		assert.True(t, got.Valid())
		assert.Equal(t, "App_light", got.Name)
		assert.Equal(t, 1, logs.FilterMessageSnippet(`"app_light" not found, using "App_light"`).Len())
	})

	t.Run("exact wins over fold", func(t *testing.T) {
		got := st.Item("wave_left")
		assert.True(t, got.Valid())
		assert.InDelta(t, 3, got.Pose.Point().X, 1e-9)
	})

	t.Run("ambiguous fold is invalid", func(t *testing.T) {
		got := st.Item("WAVE_LEFT")
		assert.False(t, got.Valid())
		assert.Equal(t, 1, logs.FilterMessageSnippet("ambiguous").Len())
	})

	t.Run("missing", func(t *testing.T) {
		got := st.Item("Nowhere")
		assert.False(t, got.Valid())
		assert.Equal(t, "Nowhere", got.Name)
	})
}

func TestStationMoves(t *testing.T) {
	st, err := NewStation(SceneFile{Items: []SceneTarget{
		{Name: "a", Pose: &commonpb.Pose{X: 300, Z: 300, OZ: -1}},
		{Name: "b", JointsDeg: []float64{0, -90, 90, -90, -90, 0}},
	}}, StationOptions{Speed: 100}, logging.NewTestLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.MoveL(ctx, st.Item("a"), true))
	require.NoError(t, st.MoveJ(ctx, st.Item("b"), true))
	require.NoError(t, st.MoveL(ctx, st.Item("a"), false))
	assert.Error(t, st.MoveL(ctx, st.Item("missing"), true))

	st.SetSpeed(10)
	st.SetSpeed(-1)
	st.SetGrip(true)

	state := st.State()
	assert.Equal(t, 1, state.MoveJ)
	assert.Equal(t, 2, state.MoveL)
	assert.Equal(t, 10.0, state.Speed)
	assert.True(t, state.Gripped)
	assert.Nil(t, state.Joints, "pose-only target leaves joints unknown")
	assert.True(t, spatialmath.R3VectorAlmostEqual(r3.Vector{X: 300, Z: 300}, state.Pose.Point(), 1e-9))
}

func TestStationRealtime(t *testing.T) {
	st, err := NewStation(SceneFile{Items: []SceneTarget{
		{Name: "far", Pose: &commonpb.Pose{X: 100000, OZ: 1}},
	}}, StationOptions{Realtime: true, Speed: 1}, logging.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, st.MoveL(ctx, st.Item("far"), true), context.DeadlineExceeded)
}
