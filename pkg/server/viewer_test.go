package server

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

// manualLoop runs posted work on the next manual frame.
type manualLoop struct {
	*frameloop.Manual
}

func (m manualLoop) Post(fn func()) { m.RequestFrame(fn) }

func (m manualLoop) Call(_ context.Context, fn func()) error {
	fn()
	return nil
}

func pose(x float64) camera.Pose {
	return camera.Pose{Position: mgl64.Vec3{x, 0, 100}, Pitch: -0.5}
}

func TestBridgeFlyToWithoutViewerLands(t *testing.T) {
	m := frameloop.NewManual(10 * time.Millisecond)
	b := NewViewerBridge(manualLoop{m}, 800, 600)

	landed := false
	b.FlyTo(pose(5), 100*time.Millisecond, func() { landed = true })
	assert.True(t, b.Flying())

	m.StepN(5)
	assert.False(t, landed)

	m.StepN(10)
	assert.True(t, landed)
	assert.False(t, b.Flying())
	assert.Equal(t, pose(5), b.Pose())
}

func TestBridgeSetPoseAbandonsFlight(t *testing.T) {
	m := frameloop.NewManual(10 * time.Millisecond)
	b := NewViewerBridge(manualLoop{m}, 800, 600)

	landed := false
	b.FlyTo(pose(5), 50*time.Millisecond, func() { landed = true })
	b.SetPose(pose(1))

	m.StepN(20)
	assert.False(t, landed)
	assert.Equal(t, pose(1), b.Pose())
}

func TestBridgeLandedMessage(t *testing.T) {
	m := frameloop.NewManual(10 * time.Millisecond)
	b := NewViewerBridge(manualLoop{m}, 800, 600)

	landed := 0
	b.FlyTo(pose(5), time.Hour, func() { landed++ })

	b.mu.Lock()
	id := b.flight.id
	b.mu.Unlock()

	// Stale ids are ignored
	msg, _ := protocol.NewLandedMessage("other")
	b.handleMessage(msg)
	m.Step()
	assert.Equal(t, 0, landed)

	msg, _ = protocol.NewLandedMessage(id)
	b.handleMessage(msg)
	b.handleMessage(msg)
	m.StepN(2)
	assert.Equal(t, 1, landed)
}

func TestBridgeCenterPicks(t *testing.T) {
	m := frameloop.NewManual(10 * time.Millisecond)
	b := NewViewerBridge(manualLoop{m}, 800, 600)

	cx, cy := b.ViewportCenter()
	_, ok := b.PickGroundPoint(cx, cy)
	assert.False(t, ok, "no view reported yet")

	ground := protocol.Point{X: 3, Y: 4, Z: 0}
	msg, _ := protocol.NewViewMessage(protocol.ViewData{
		Pose:         pose(2),
		Width:        1000,
		Height:       500,
		CenterGround: &ground,
	})
	b.handleMessage(msg)

	assert.Equal(t, pose(2), b.Pose())
	cx, cy = b.ViewportCenter()
	assert.Equal(t, 500.0, cx)
	assert.Equal(t, 250.0, cy)

	got, ok := b.PickGroundPoint(cx, cy)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{3, 4, 0}, got)

	_, ok = b.PickGroundPoint(0, 0)
	assert.False(t, ok, "only the center is known")

	_, ok = b.PickPosition(cx, cy)
	assert.False(t, ok, "no depth pick reported")
}

func TestBridgeRotateAboutTracksPose(t *testing.T) {
	m := frameloop.NewManual(10 * time.Millisecond)
	b := NewViewerBridge(manualLoop{m}, 800, 600)

	b.SetPose(pose(10))
	b.RotateAbout(mgl64.Vec3{}, 0.1)

	want := camera.Orbit(pose(10), mgl64.Vec3{}, 0.1)
	assert.Equal(t, want, b.Pose())
}

func TestBridgeViewerConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := frameloop.NewLoop(120)
	go loop.Run(ctx)

	b := NewViewerBridge(loop, 800, 600)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/viewer", websocket.New(b.Serve))

	go app.Listen(":18792")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gws.DefaultDialer.Dial("ws://localhost:18792/ws/viewer", nil)
	require.NoError(t, err)
	defer ws.Close()

	// The viewer is first brought to the current pose
	msg := readMessage(t, ws)
	require.Equal(t, protocol.TypeSetPose, msg.Type)
	assert.True(t, b.Connected())

	landed := make(chan struct{})
	err = loop.Call(ctx, func() {
		b.FlyTo(pose(7), 10*time.Second, func() { close(landed) })
	})
	require.NoError(t, err)

	msg = readMessage(t, ws)
	require.Equal(t, protocol.TypeFlyTo, msg.Type)
	fly, err := msg.GetFlyToData()
	require.NoError(t, err)
	assert.Equal(t, 10.0, fly.Duration)
	assert.Equal(t, pose(7), fly.Pose)

	reply, _ := protocol.NewLandedMessage(fly.ID)
	data, _ := reply.Bytes()
	require.NoError(t, ws.WriteMessage(gws.TextMessage, data))

	select {
	case <-landed:
	case <-time.After(2 * time.Second):
		t.Fatal("flight never landed")
	}
	assert.Equal(t, pose(7), b.Pose())

	sent, received, _ := b.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Equal(t, uint64(1), received)
}

func TestBridgeDisconnectLandsFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := frameloop.NewLoop(120)
	go loop.Run(ctx)

	b := NewViewerBridge(loop, 800, 600)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/viewer", websocket.New(b.Serve))

	go app.Listen(":18793")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gws.DefaultDialer.Dial("ws://localhost:18793/ws/viewer", nil)
	require.NoError(t, err)
	readMessage(t, ws)

	landed := make(chan struct{})
	loop.Call(ctx, func() {
		b.FlyTo(pose(3), time.Minute, func() { close(landed) })
	})

	ws.Close()

	select {
	case <-landed:
	case <-time.After(2 * time.Second):
		t.Fatal("flight should land when the viewer goes away")
	}
	assert.False(t, b.Connected())
}
