package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/orbit"
	"github.com/teslashibe/cinepath/pkg/playback"
)

type recordingSink struct {
	keyframes [][]keyframe.Keyframe
	playback  []bool
	orbit     []bool
	countdown []int
	settings  []Settings
	notices   []error
}

func (r *recordingSink) SyncKeyframes(seq []keyframe.Keyframe) { r.keyframes = append(r.keyframes, seq) }
func (r *recordingSink) SyncPlayback(active bool)              { r.playback = append(r.playback, active) }
func (r *recordingSink) SyncOrbit(active bool)                 { r.orbit = append(r.orbit, active) }
func (r *recordingSink) SyncCountdown(step int)                { r.countdown = append(r.countdown, step) }
func (r *recordingSink) SyncSettings(s Settings)               { r.settings = append(r.settings, s) }
func (r *recordingSink) Notice(err error)                      { r.notices = append(r.notices, err) }

type fixture struct {
	sched *frameloop.Manual
	cam   *camera.Simulated
	sink  *recordingSink
	eng   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := frameloop.NewManual(10 * time.Millisecond)
	cam := camera.NewSimulated(sched, 0, 0)
	cam.SetPose(camera.Pose{Position: mgl64.Vec3{0, 0, 100}, Pitch: -0.8})
	sink := &recordingSink{}
	return &fixture{
		sched: sched,
		cam:   cam,
		sink:  sink,
		eng:   New(cam, sched, sink, DefaultOptions()),
	}
}

// recordAt cuts the camera to x and records it.
func (f *fixture) recordAt(t *testing.T, x float64) {
	t.Helper()
	f.cam.SetPose(camera.Pose{Position: mgl64.Vec3{x, 0, 100}, Pitch: -0.8})
	require.NoError(t, f.eng.Dispatch(Record{}))
}

func TestRecordAppendsCurrentPose(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 1)
	f.recordAt(t, 2)

	kfs := f.eng.Keyframes()
	require.Len(t, kfs, 2)
	assert.Equal(t, mgl64.Vec3{2, 0, 100}, kfs[1].Position)
	require.Len(t, f.sink.keyframes, 2)
	assert.Len(t, f.sink.keyframes[1], 2)
}

func TestPlayNeedsTwoKeyframes(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 1)

	err := f.eng.Dispatch(Play{})
	assert.ErrorIs(t, err, playback.ErrInsufficientKeyframes)
	require.Len(t, f.sink.notices, 1)
	assert.ErrorIs(t, f.sink.notices[0], playback.ErrInsufficientKeyframes)
	assert.Empty(t, f.sink.playback)
	assert.Zero(t, f.sched.Pending())
}

func TestPlayRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 50)
	f.recordAt(t, 100)

	require.NoError(t, f.eng.Dispatch(Play{}))
	assert.Equal(t, []bool{true}, f.sink.playback)
	assert.Equal(t, "preparing", f.eng.Status().Playback)

	ok := f.sched.RunUntil(10000, func() bool { return f.eng.Status().Playback == "idle" })
	require.True(t, ok)
	assert.Equal(t, []bool{true, false}, f.sink.playback)
	assert.Equal(t, "completed", f.eng.Status().LastRun.State)
	assert.InDelta(t, 100, f.cam.Pose().Position.X(), 0.05)
}

func TestPlayWhilePlaying(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Play{}))
	assert.ErrorIs(t, f.eng.Dispatch(Play{}), playback.ErrAlreadyPlaying)
}

func TestClapperboardCountdown(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Play{Clapperboard: true}))
	assert.Equal(t, []int{3}, f.sink.countdown)
	assert.True(t, f.eng.Status().CountingDown)
	assert.Empty(t, f.sink.playback)
	assert.ErrorIs(t, f.eng.Dispatch(Play{Clapperboard: true}), playback.ErrAlreadyPlaying)

	f.sched.Advance(3 * time.Second)
	assert.Equal(t, []int{3, 2, 1, 0}, f.sink.countdown)
	assert.Empty(t, f.sink.playback)

	f.sched.Advance(DefaultFlash)
	assert.Equal(t, []bool{true}, f.sink.playback)
	assert.False(t, f.eng.Status().CountingDown)
	assert.True(t, f.eng.Settings().Clapperboard)
}

func TestStopCancelsCountdown(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Play{Clapperboard: true}))
	f.sched.Advance(1500 * time.Millisecond)
	require.NoError(t, f.eng.Dispatch(Stop{}))

	f.sched.Advance(5 * time.Second)
	assert.Equal(t, []int{3, 2}, f.sink.countdown)
	assert.Empty(t, f.sink.playback)
	assert.Zero(t, f.sched.Pending())
}

func TestClearAllDuringPlayback(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)
	require.NoError(t, f.eng.Dispatch(Play{}))
	require.True(t, f.sched.RunUntil(1000, func() bool { return f.eng.Status().Playback == "running" }))

	require.NoError(t, f.eng.Dispatch(ClearAll{}))
	// Cancellation is observed on the next tick, not synchronously.
	assert.Equal(t, "running", f.eng.Status().Playback)

	pose := f.cam.Pose()
	f.sched.Step()
	assert.Equal(t, "idle", f.eng.Status().Playback)
	assert.Equal(t, "stopped", f.eng.Status().LastRun.State)
	assert.Equal(t, pose, f.cam.Pose())
	assert.Equal(t, []bool{true, false}, f.sink.playback)
}

func TestSpinAndPlayAreExclusive(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Spin{}))
	assert.True(t, f.eng.Status().Orbiting)

	require.NoError(t, f.eng.Dispatch(Play{}))
	assert.False(t, f.eng.Status().Orbiting)
	assert.Equal(t, "preparing", f.eng.Status().Playback)

	require.NoError(t, f.eng.Dispatch(Spin{}))
	assert.True(t, f.eng.Status().Orbiting)
	assert.Equal(t, "idle", f.eng.Status().Playback)
	assert.False(t, f.cam.Flying())
	assert.Equal(t, []bool{true, false, true}, f.sink.orbit)
	assert.Equal(t, []bool{true, false}, f.sink.playback)

	require.NoError(t, f.eng.Dispatch(Spin{}))
	assert.False(t, f.eng.Status().Orbiting)
}

func TestSpinWithoutPivot(t *testing.T) {
	f := newFixture(t)
	// Looking at the sky: the ground ray misses.
	f.cam.SetPose(camera.Pose{Position: mgl64.Vec3{0, 0, 100}, Pitch: 0.3})

	err := f.eng.Dispatch(Spin{})
	assert.ErrorIs(t, err, orbit.ErrNoPivotTarget)
	assert.False(t, f.eng.Status().Orbiting)
	require.Len(t, f.sink.notices, 1)
	assert.True(t, IsUserError(f.sink.notices[0]))
}

func TestSpinMissLeavesPlaybackRunning(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Play{}))
	ok := f.sched.RunUntil(1000, func() bool { return f.eng.Status().Playback == "running" })
	require.True(t, ok, "playback never reached running")

	// Point the camera at the sky so the pick misses.
	f.cam.SetPose(camera.Pose{Position: mgl64.Vec3{0, 0, 100}, Pitch: 0.3})

	err := f.eng.Dispatch(Spin{})
	assert.ErrorIs(t, err, orbit.ErrNoPivotTarget)
	assert.Equal(t, "running", f.eng.Status().Playback)
	assert.False(t, f.eng.Status().Orbiting)
	assert.Equal(t, []bool{true}, f.sink.playback)
	assert.Empty(t, f.sink.orbit)
}

func TestSpinMissKeepsCountdown(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)
	f.cam.SetPose(camera.Pose{Position: mgl64.Vec3{0, 0, 100}, Pitch: 0.3})

	require.NoError(t, f.eng.Dispatch(Play{Clapperboard: true}))
	assert.ErrorIs(t, f.eng.Dispatch(Spin{}), orbit.ErrNoPivotTarget)
	assert.True(t, f.eng.Status().CountingDown)

	f.sched.Advance(4 * time.Second)
	assert.Equal(t, []int{3, 2, 1, 0}, f.sink.countdown)
	assert.True(t, f.eng.Status().Active)
}

func TestRevisitDuringSettleFlightStillPlays(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 10)

	require.NoError(t, f.eng.Dispatch(Play{}))
	// The revisit flight replaces the fly-to-start, whose callback is dropped.
	require.NoError(t, f.eng.Dispatch(Revisit{Index: 1}))

	wait := playback.DefaultSettleDuration + playback.SettleGrace + playback.DefaultSettleDelay
	f.sched.Advance(wait + 100*time.Millisecond)
	assert.Equal(t, "running", f.eng.Status().Playback)

	ok := f.sched.RunUntil(5000, func() bool { return !f.eng.Status().Active })
	require.True(t, ok, "playback never finished")
	assert.Equal(t, "completed", f.eng.Status().LastRun.State)
	assert.Equal(t, []bool{true, false}, f.sink.playback)

	// A new take is accepted.
	require.NoError(t, f.eng.Dispatch(Play{}))
}

func TestClearAllStopsOrbit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Dispatch(Spin{}))
	require.NoError(t, f.eng.Dispatch(ClearAll{}))
	assert.False(t, f.eng.Status().Orbiting)
	assert.Zero(t, f.sched.Pending())
}

func TestRevisitFliesToKeyframe(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 40)
	f.cam.SetPose(camera.Pose{Position: mgl64.Vec3{-5, -5, 300}})

	require.NoError(t, f.eng.Dispatch(Revisit{Index: 0}))
	f.sched.Advance(DefaultRevisitDuration + time.Second/10)
	assert.InDelta(t, 0, f.cam.Pose().Position.X(), 1e-9)
	assert.InDelta(t, 100, f.cam.Pose().Position.Z(), 1e-9)

	// Out of range is silently ignored.
	require.NoError(t, f.eng.Dispatch(Revisit{Index: 9}))
	require.NoError(t, f.eng.Dispatch(Revisit{Index: -1}))
	assert.False(t, f.cam.Flying())
	assert.Empty(t, f.sink.notices)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 0)
	f.recordAt(t, 1)
	f.recordAt(t, 2)

	require.NoError(t, f.eng.Dispatch(Delete{Index: 1}))
	require.NoError(t, f.eng.Dispatch(Delete{Index: 7}))
	kfs := f.eng.Keyframes()
	require.Len(t, kfs, 2)
	assert.Equal(t, 2.0, kfs[1].Position.X())
}

func TestImportJSON(t *testing.T) {
	f := newFixture(t)
	f.recordAt(t, 5)

	err := f.eng.ImportJSON([]byte(`[{"position":{"x":1}}]`))
	assert.ErrorIs(t, err, keyframe.ErrMalformedImport)
	assert.Len(t, f.eng.Keyframes(), 1)
	require.Len(t, f.sink.notices, 1)

	data := []byte(`[
		{"position":{"x":1,"y":2,"z":3},"heading":0.5,"pitch":-0.2,"roll":0},
		{"position":{"x":4,"y":5,"z":6},"heading":1.5,"pitch":-0.1,"roll":0}
	]`)
	require.NoError(t, f.eng.ImportJSON(data))
	kfs := f.eng.Keyframes()
	require.Len(t, kfs, 2)
	assert.Equal(t, mgl64.Vec3{4, 5, 6}, kfs[1].Position)
}

func TestSetSpeed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.eng.Dispatch(SetSpeed{Value: 0.01}))
	assert.Equal(t, 0.01, f.eng.Status().Speed)
	require.Len(t, f.sink.settings, 1)
	assert.Equal(t, 0.01, f.sink.settings[0].Speed)

	err := f.eng.Dispatch(SetSpeed{Value: -1})
	assert.ErrorIs(t, err, playback.ErrInvalidSpeed)
	assert.Equal(t, 0.01, f.eng.Status().Speed)
	assert.Len(t, f.sink.settings, 1)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	seq := []keyframe.Keyframe{{Position: mgl64.Vec3{1, 0, 0}}, {Position: mgl64.Vec3{2, 0, 0}}}

	f.eng.Restore(seq, Settings{Speed: 0.0042, Clapperboard: true})
	assert.Equal(t, seq, f.eng.Keyframes())
	assert.Equal(t, Settings{Speed: 0.0042, Clapperboard: true}, f.eng.Settings())
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi{a, Nop{}, b}

	m.SyncCountdown(2)
	m.Notice(errors.New("boom"))
	assert.Equal(t, []int{2}, a.countdown)
	assert.Equal(t, []int{2}, b.countdown)
	assert.Len(t, b.notices, 1)
}

func TestCommandNames(t *testing.T) {
	cmds := []Command{Record{}, Play{}, Stop{}, Spin{}, Revisit{}, Delete{}, ClearAll{}, Import{}, SetSpeed{}}
	seen := map[string]bool{}
	for _, c := range cmds {
		seen[c.Name()] = true
	}
	assert.Len(t, seen, 9)
}
