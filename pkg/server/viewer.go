package server

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/teslashibe/cinepath/internal/log"
	"github.com/teslashibe/cinepath/pkg/camera"
	"github.com/teslashibe/cinepath/pkg/frameloop"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

// FlightGrace is how long past its duration a flight may take before the
// bridge stops waiting for the viewer to confirm it.
const FlightGrace = 5 * time.Second

// flight is one outstanding FlyTo.
type flight struct {
	id         string
	pose       camera.Pose
	onComplete func()
	deadline   frameloop.Handle
}

// viewerConn is the attached viewer's outbound queue.
type viewerConn struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

// ViewerBridge is a camera.Sink backed by a viewer connected on /ws/viewer.
// Camera commands are queued to the viewer; the viewer streams back its pose
// and what lies under the viewport center.
//
// Without a viewer attached the bridge still behaves: poses are tracked
// locally and flights land after their duration.
type ViewerBridge struct {
	mu   sync.Mutex
	loop Loop
	log  *slog.Logger

	conn   *viewerConn
	pose   camera.Pose
	width  int
	height int
	depth  *mgl64.Vec3
	ground *mgl64.Vec3
	flight *flight

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
}

var _ camera.Sink = (*ViewerBridge)(nil)

// NewViewerBridge creates a bridge. width and height are the assumed
// viewport until the viewer reports its own.
func NewViewerBridge(loop Loop, width, height int) *ViewerBridge {
	return &ViewerBridge{
		loop:   loop,
		log:    log.Component("viewer"),
		width:  width,
		height: height,
	}
}

// Connected reports whether a viewer is attached.
func (b *ViewerBridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Pose returns the last known pose.
func (b *ViewerBridge) Pose() camera.Pose {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose
}

// SetPose cuts the viewer to p and abandons any flight in progress.
func (b *ViewerBridge) SetPose(p camera.Pose) {
	b.mu.Lock()
	b.cancelFlightLocked()
	b.pose = p
	b.mu.Unlock()

	b.send(protocol.NewSetPoseMessage(p))
}

// FlyTo asks the viewer to tween to p. onComplete runs on the frame loop once
// the viewer reports landing, or after d plus FlightGrace at the latest.
func (b *ViewerBridge) FlyTo(p camera.Pose, d time.Duration, onComplete func()) {
	f := &flight{
		id:         uuid.New().String(),
		pose:       p,
		onComplete: onComplete,
	}

	b.mu.Lock()
	b.cancelFlightLocked()
	wait := d
	if b.conn != nil {
		wait += FlightGrace
	}
	b.flight = f
	b.mu.Unlock()

	// Registered outside mu: a zero wait may run on the very next frame.
	h := b.loop.After(wait, func() { b.land(f.id) })
	b.mu.Lock()
	if b.flight == f {
		f.deadline = h
	} else {
		h.Cancel()
	}
	b.mu.Unlock()

	b.send(protocol.NewFlyToMessage(f.id, p, d.Seconds()))
}

// land completes the flight with id if it is still current. Runs on the
// frame loop.
func (b *ViewerBridge) land(id string) {
	b.mu.Lock()
	f := b.flight
	if f == nil || f.id != id {
		b.mu.Unlock()
		return
	}
	b.flight = nil
	b.pose = f.pose
	if f.deadline != nil {
		f.deadline.Cancel()
	}
	b.mu.Unlock()

	if f.onComplete != nil {
		f.onComplete()
	}
}

func (b *ViewerBridge) cancelFlightLocked() {
	if b.flight == nil {
		return
	}
	if b.flight.deadline != nil {
		b.flight.deadline.Cancel()
	}
	b.flight = nil
}

// Flying reports whether a flight is outstanding.
func (b *ViewerBridge) Flying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flight != nil
}

// RotateAbout tracks the orbit locally and forwards the increment.
func (b *ViewerBridge) RotateAbout(pivot mgl64.Vec3, radians float64) {
	b.mu.Lock()
	b.pose = camera.Orbit(b.pose, pivot, radians)
	b.mu.Unlock()

	b.send(protocol.NewRotateMessage(protocol.PointFrom(pivot), radians))
}

// ViewportCenter returns the middle of the last reported viewport.
func (b *ViewerBridge) ViewportCenter() (x, y float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.width) / 2, float64(b.height) / 2
}

// PickPosition answers from the viewer's last depth pick. Only the viewport
// center is known.
func (b *ViewerBridge) PickPosition(x, y float64) (mgl64.Vec3, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.centerPickLocked(b.depth, x, y)
}

// PickGroundPoint answers from the viewer's last ground pick. Only the
// viewport center is known.
func (b *ViewerBridge) PickGroundPoint(x, y float64) (mgl64.Vec3, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.centerPickLocked(b.ground, x, y)
}

func (b *ViewerBridge) centerPickLocked(p *mgl64.Vec3, x, y float64) (mgl64.Vec3, bool) {
	cx, cy := float64(b.width)/2, float64(b.height)/2
	if p == nil || math.Abs(x-cx) > 1 || math.Abs(y-cy) > 1 {
		return mgl64.Vec3{}, false
	}
	return *p, true
}

// send queues a message for the viewer. Never blocks: a full queue drops.
func (b *ViewerBridge) send(msg *protocol.Message, err error) {
	if err != nil {
		b.log.Error("failed to build viewer message", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		b.log.Error("failed to encode viewer message", "error", err)
		return
	}

	b.mu.Lock()
	vc := b.conn
	b.mu.Unlock()
	if vc == nil {
		return
	}

	select {
	case vc.out <- data:
		b.sent.Add(1)
	default:
		b.dropped.Add(1)
		b.log.Warn("viewer queue full, dropping message", "type", msg.Type)
	}
}

// Serve runs a viewer connection until it closes. A new viewer replaces the
// previous one.
func (b *ViewerBridge) Serve(c *websocket.Conn) {
	vc := &viewerConn{
		id:   uuid.New().String(),
		conn: c,
		out:  make(chan []byte, 256),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	old := b.conn
	b.conn = vc
	pose := b.pose
	b.mu.Unlock()

	if old != nil {
		close(old.done)
		b.log.Info("viewer replaced", "old", old.id, "new", vc.id)
	}
	b.log.Info("viewer connected", "id", vc.id)

	go b.writePump(vc)
	// Bring the new viewer to where the engine thinks the camera is.
	b.send(protocol.NewSetPoseMessage(pose))

	b.readPump(vc)

	b.mu.Lock()
	current := b.conn == vc
	if current {
		b.conn = nil
		close(vc.done)
	}
	f := b.flight
	b.mu.Unlock()

	b.log.Info("viewer disconnected", "id", vc.id)

	// Nobody is left to confirm the flight; land it now.
	if current && f != nil {
		b.loop.Post(func() { b.land(f.id) })
	}
}

func (b *ViewerBridge) readPump(vc *viewerConn) {
	for {
		_, data, err := vc.conn.ReadMessage()
		if err != nil {
			return
		}
		b.received.Add(1)

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			b.log.Debug("viewer sent invalid message", "error", err)
			continue
		}
		b.handleMessage(msg)
	}
}

func (b *ViewerBridge) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeView:
		view, err := msg.GetViewData()
		if err != nil {
			b.log.Debug("bad view message", "error", err)
			return
		}
		b.mu.Lock()
		b.pose = view.Pose
		if view.Width > 0 && view.Height > 0 {
			b.width, b.height = view.Width, view.Height
		}
		b.depth = vecPtr(view.CenterDepth)
		b.ground = vecPtr(view.CenterGround)
		b.mu.Unlock()

	case protocol.TypeLanded:
		landed, err := msg.GetLandedData()
		if err != nil {
			b.log.Debug("bad landed message", "error", err)
			return
		}
		b.loop.Post(func() { b.land(landed.ID) })

	case protocol.TypePing:
		b.send(protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli()))
	}
}

func (b *ViewerBridge) writePump(vc *viewerConn) {
	defer vc.conn.Close()
	for {
		select {
		case data := <-vc.out:
			vc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := vc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-vc.done:
			return
		}
	}
}

// Stats returns message counters for /metrics.
func (b *ViewerBridge) Stats() (sent, received, dropped uint64) {
	return b.sent.Load(), b.received.Load(), b.dropped.Load()
}

func vecPtr(p *protocol.Point) *mgl64.Vec3 {
	if p == nil {
		return nil
	}
	v := p.Vec3()
	return &v
}
