package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/keyframe"
)

func TestNewJSONStoreEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cinepath.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	assert.Empty(t, s.State().Keyframes)
	assert.Zero(t, s.Saves())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is created lazily")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinepath.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	seq := []keyframe.Keyframe{
		{Position: mgl64.Vec3{1, 2, 3}, Heading: 0.25, Pitch: -0.5},
		{Position: mgl64.Vec3{4, 5, 6}, Heading: 6.2, Pitch: -0.1, Roll: 0.01},
	}
	s.SyncKeyframes(seq)
	s.SyncSettings(engine.Settings{Speed: 0.0075, Clapperboard: true})
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, s.Saves(), "both changes go out in one write")

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	st := reopened.State()
	assert.Equal(t, seq, st.Keyframes)
	assert.Equal(t, engine.Settings{Speed: 0.0075, Clapperboard: true}, st.Settings)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}

func TestIgnoresOtherSyncEvents(t *testing.T) {
	s, err := NewJSONStore(filepath.Join(t.TempDir(), "cinepath.json"))
	require.NoError(t, err)

	s.SyncPlayback(true)
	s.SyncCountdown(3)
	s.SyncOrbit(true)
	require.NoError(t, s.Flush())
	assert.Zero(t, s.Saves())
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinepath.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keyframes": [{"position": "nope"}]}`), 0644))

	_, err := NewJSONStore(path)
	assert.ErrorIs(t, err, keyframe.ErrMalformedImport)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))
	_, err = NewJSONStore(path)
	assert.Error(t, err)
}

func TestReopenAfterSingleSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinepath.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)
	s.SyncKeyframes([]keyframe.Keyframe{{Position: mgl64.Vec3{7, 0, 0}}})
	require.NoError(t, s.Flush())

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	assert.Len(t, reopened.State().Keyframes, 1)
	assert.Equal(t, 7.0, reopened.State().Keyframes[0].Position.X())
}

func TestSyncLeavesDiskToWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinepath.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	// No writer running: sync calls only record the change
	for i := 0; i < 50; i++ {
		s.SyncKeyframes([]keyframe.Keyframe{{Position: mgl64.Vec3{float64(i), 0, 0}}})
		s.SyncSettings(engine.Settings{Speed: float64(i)})
	}
	assert.Zero(t, s.Saves())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, s.Saves())
	require.NoError(t, s.Flush())
	assert.Equal(t, 1, s.Saves(), "nothing new to write")

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	assert.Equal(t, 49.0, reopened.State().Keyframes[0].Position.X())
	assert.Equal(t, 49.0, reopened.State().Settings.Speed)
}

func TestRunWritesInBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinepath.json")
	s, err := NewJSONStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 1; i <= 20; i++ {
		s.SyncKeyframes([]keyframe.Keyframe{{Position: mgl64.Vec3{float64(i), 0, 0}}})
	}
	assert.Eventually(t, func() bool { return s.Saves() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, s.Saves(), 20)

	// Anything left over is written on shutdown
	s.SyncSettings(engine.Settings{Speed: 0.02})
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	st := reopened.State()
	require.Len(t, st.Keyframes, 1)
	assert.Equal(t, 20.0, st.Keyframes[0].Position.X())
	assert.Equal(t, 0.02, st.Settings.Speed)
}
