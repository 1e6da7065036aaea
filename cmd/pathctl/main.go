// pathctl: command-line control surface for pathd
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/cinepath/internal/config"
	"github.com/teslashibe/cinepath/internal/httpc"
	"github.com/teslashibe/cinepath/pkg/engine"
	"github.com/teslashibe/cinepath/pkg/keyframe"
	"github.com/teslashibe/cinepath/pkg/protocol"
)

var addr = flag.String("addr", config.DaemonURL(), "pathd base URL")

const replyTimeout = 5 * time.Second

const usage = `usage: pathctl [-addr URL] <command> [args]

commands:
  status             show engine status
  record             record the current camera pose
  play [-clap]       play the path, optionally after a clapperboard
  stop               stop playback or countdown
  spin               toggle the orbit
  revisit N          fly to keyframe N
  delete N           delete keyframe N
  clear              delete every keyframe
  speed RAW          set speed from the 1..100 slider
  import FILE        replace keyframes from FILE
  export [FILE]      write keyframes to FILE or stdout
  watch              print sync events until interrupted
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, strings.TrimRight(*addr, "/"), args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pathctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, base, name string, args []string) error {
	switch name {
	case "status":
		var st map[string]any
		if err := httpc.GetJSON(ctx, base+"/api/status", &st); err != nil {
			return err
		}
		for _, k := range []string{"keyframes", "playback", "progress", "globalProgress", "speed", "orbiting", "countingDown", "clapperboard", "viewerConnected"} {
			fmt.Printf("%-16s %v\n", k, st[k])
		}
		return nil

	case "record":
		return command(ctx, base, protocol.CommandData{Command: engine.NameRecord})

	case "play":
		fs := flag.NewFlagSet("play", flag.ContinueOnError)
		clap := fs.Bool("clap", false, "count down with a clapperboard first")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return command(ctx, base, protocol.CommandData{Command: engine.NamePlay, Clapperboard: *clap})

	case "stop":
		return command(ctx, base, protocol.CommandData{Command: engine.NameStop})

	case "spin":
		return command(ctx, base, protocol.CommandData{Command: engine.NameSpin})

	case "revisit", "delete":
		idx, err := intArg(args)
		if err != nil {
			return err
		}
		cmd := engine.NameRevisit
		if name == "delete" {
			cmd = engine.NameDelete
		}
		return command(ctx, base, protocol.CommandData{Command: cmd, Index: &idx})

	case "clear":
		return command(ctx, base, protocol.CommandData{Command: engine.NameClearAll})

	case "speed":
		raw, err := intArg(args)
		if err != nil {
			return err
		}
		if raw < protocol.SliderMin || raw > protocol.SliderMax {
			return fmt.Errorf("speed must be %d..%d", protocol.SliderMin, protocol.SliderMax)
		}
		return command(ctx, base, protocol.CommandData{Command: engine.NameSetSpeed, Slider: &raw})

	case "import":
		if len(args) != 1 {
			return fmt.Errorf("import needs a file")
		}
		seq, err := keyframe.ReadFile(args[0])
		if err != nil {
			return err
		}
		data, err := keyframe.Encode(seq)
		if err != nil {
			return err
		}
		var out struct {
			Imported int `json:"imported"`
		}
		if err := httpc.PostJSON(ctx, base+"/api/keyframes", data, &out); err != nil {
			return err
		}
		fmt.Printf("imported %d keyframes\n", out.Imported)
		return nil

	case "export":
		data, err := httpc.GetBytes(ctx, base+"/api/keyframes")
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		seq, err := keyframe.Decode(data)
		if err != nil {
			return err
		}
		if err := keyframe.WriteFile(args[0], seq); err != nil {
			return err
		}
		fmt.Printf("exported %d keyframes to %s\n", len(seq), args[0])
		return nil

	case "watch":
		return watch(ctx, base)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", name)
	}
}

// command sends one command over /ws/control and waits for its ack or
// notice.
func command(ctx context.Context, base string, cmd protocol.CommandData) error {
	ws, err := dial(ctx, base, "/ws/control")
	if err != nil {
		return err
	}
	defer ws.Close()

	msg, err := protocol.NewCommandMessage(cmd)
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(replyTimeout))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("no reply: %w", err)
		}
		reply, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		switch reply.Type {
		case protocol.TypeAck:
			ack, err := reply.GetAckData()
			if err != nil {
				return err
			}
			fmt.Println("ok", ack.Command)
			return nil
		case protocol.TypeNotice:
			n, err := reply.GetNoticeData()
			if err != nil {
				return err
			}
			return fmt.Errorf("%s: %s", n.Code, n.Message)
		}
	}
}

func dial(ctx context.Context, base, path string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(base, "http") + path
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return ws, nil
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one number")
	}
	return strconv.Atoi(args[0])
}

// watch prints sync events from /ws/sync.
func watch(ctx context.Context, base string) error {
	ws, err := dial(ctx, base, "/ws/sync")
	if err != nil {
		return err
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		fmt.Println(describe(msg))
	}
}

func describe(msg *protocol.Message) string {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05.000")
	switch msg.Type {
	case protocol.TypeKeyframes:
		seq, err := msg.GetKeyframes()
		if err != nil {
			return fmt.Sprintf("%s keyframes (invalid: %v)", ts, err)
		}
		return fmt.Sprintf("%s keyframes %d", ts, len(seq))
	case protocol.TypePlayback, protocol.TypeOrbit:
		f, _ := msg.GetFlagData()
		return fmt.Sprintf("%s %s active=%v", ts, msg.Type, f != nil && f.Active)
	case protocol.TypeCountdown:
		c, _ := msg.GetCountdownData()
		if c != nil && c.Step == 0 {
			return ts + " countdown FLASH"
		}
		if c != nil {
			return fmt.Sprintf("%s countdown %d", ts, c.Step)
		}
	case protocol.TypeSettings:
		s, _ := msg.GetSettingsData()
		if s != nil {
			return fmt.Sprintf("%s settings speed=%g slider=%d clapperboard=%v", ts, s.Speed, s.Slider, s.Clapperboard)
		}
	case protocol.TypeNotice:
		n, _ := msg.GetNoticeData()
		if n != nil {
			return fmt.Sprintf("%s notice %s: %s", ts, n.Code, n.Message)
		}
	}
	return fmt.Sprintf("%s %s %s", ts, msg.Type, msg.Data)
}
