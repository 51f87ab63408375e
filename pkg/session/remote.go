package session

import (
	"encoding/binary"
	"math"

	"github.com/openretro/retroshell/pkg/gamepad"
	"github.com/openretro/retroshell/pkg/logger"
	"github.com/openretro/retroshell/pkg/network/httpx"
	"github.com/openretro/retroshell/pkg/network/websocket"
)

// Remote pad frame types. Every binary message starts with a
// [PORT:1][TYPE:1] header followed by a type-specific payload.
const (
	typePadState byte = iota
	typeKeyboard
	typeMouseMove
	typeMouseButtons
	typeWidget
)

// widget event payload: [ID:2][ACTION:1][X:4][Y:4], float32 BE coords
const widgetEventLen = 11

// remote exposes the session input surface over a websocket, so an
// out-of-process pad (or a test rig) can drive the emulator.
type remote struct {
	server *httpx.Server
	sess   *Session
	log    *logger.Logger
}

func newRemote(sess *Session, address string, log *logger.Logger) (*remote, error) {
	r := &remote{sess: sess, log: log.Extend(log.With().Str("m", "remote"))}
	server, err := httpx.NewServer(address, func(*httpx.Server) httpx.Handler {
		mux := httpx.NewServeMux("")
		mux.HandleFunc("/pad", r.handlePad)
		mux.HandleW("/echo", func(w httpx.ResponseWriter) { _, _ = w.Write([]byte("ok")) })
		return mux
	}, httpx.WithLogger(r.log), httpx.WithPortRoll(true))
	if err != nil {
		return nil, err
	}
	r.server = server
	return r, nil
}

func (r *remote) addr() string { return r.server.Addr }
func (r *remote) run()         { r.server.Run() }
func (r *remote) stop() error  { return r.server.Stop() }

func (r *remote) handlePad(w httpx.ResponseWriter, req *httpx.Request) {
	conn := websocket.NewServer(w, req, r.log)
	if conn == nil {
		r.log.Error().Msg("pad connection upgrade failed")
		return
	}
	r.log.Info().Msg("remote pad connected")
	conn.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		r.onMessage(message)
	}
}

func (r *remote) onMessage(m []byte) {
	if len(m) < 2 {
		r.log.Debug().Msgf("dropped a short frame (%v bytes)", len(m))
		return
	}
	port, typ, p := int(m[0]), m[1], m[2:]

	switch typ {
	case typePadState:
		r.sess.Input(port, p)
	case typeKeyboard:
		r.sess.KeyboardInput(p)
	case typeMouseMove:
		r.sess.MouseMove(p)
	case typeMouseButtons:
		if len(p) == 1 {
			r.sess.MouseButtons(p[0])
		}
	case typeWidget:
		if ev, ok := decodeWidgetEvent(port, p); ok {
			r.sess.HandleEvent(ev)
		} else {
			r.log.Debug().Msgf("dropped a malformed widget frame (%v bytes)", len(p))
		}
	default:
		r.log.Debug().Msgf("dropped a frame of unknown type %v", typ)
	}
}

func decodeWidgetEvent(port int, p []byte) (gamepad.Event, bool) {
	if len(p) != widgetEventLen || p[2] > byte(gamepad.Move) {
		return gamepad.Event{}, false
	}
	return gamepad.Event{
		Port:   port,
		ID:     gamepad.ButtonID(binary.BigEndian.Uint16(p)),
		Action: gamepad.Action(p[2]),
		X:      float64(math.Float32frombits(binary.BigEndian.Uint32(p[3:]))),
		Y:      float64(math.Float32frombits(binary.BigEndian.Uint32(p[7:]))),
	}, true
}
