// Package gamepad translates events of an external radial pad widget
// into the emulator input wire format.
package gamepad

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/openretro/retroshell/pkg/logger"
)

type (
	Action   byte
	ButtonID uint16
)

const (
	Press Action = iota
	Release
	Move
)

// RetroPad button ids (libretro joypad layout).
const (
	B ButtonID = iota
	Y
	Select
	Start
	Up
	Down
	Left
	Right
	A
	X
	L
	R
	L2
	R2
	L3
	R3
)

// Widget ids outside the retropad range. Presses on these don't touch
// the input mask and call the session hooks instead.
const (
	IDSaveState ButtonID = iota + 100
	IDLoadState
	IDMenu
	IDDial
	IDStickRight
)

const (
	maxPort         = 4
	defaultDeadzone = 0.20

	dpadMask = 1<<Up | 1<<Down | 1<<Left | 1<<Right
)

// Event is one action of the radial widget.
// Direction dials emit Move with unit-circle X/Y.
type Event struct {
	Port   int
	ID     ButtonID
	Action Action
	X, Y   float64
}

// Sink consumes flushed pad state in the emulator wire format,
//
//	[BTN:2][LX:2][LY:2][RX:2][RY:2][L2:2][R2:2]
type Sink interface {
	Input(port int, data []byte)
}

// Hooks are side effects bound to the special widget ids.
type Hooks struct {
	OnSaveState func() error
	OnLoadState func() error
	OnMenu      func()
}

type portState struct {
	buttons        uint16
	lx, ly, rx, ry int16
}

// Pad keeps per-port pad state and flushes every change to a sink.
type Pad struct {
	sink     Sink
	hooks    Hooks
	keymap   map[uint]ButtonID
	deadzone float64
	// dial moves drive the left stick instead of the dpad
	stickMode bool
	log       *logger.Logger

	mu    sync.Mutex
	ports [maxPort]portState
}

type Option func(*Pad)

func WithHooks(h Hooks) Option              { return func(p *Pad) { p.hooks = h } }
func WithDeadzone(dz float64) Option        { return func(p *Pad) { p.deadzone = dz } }
func WithStickMode() Option                 { return func(p *Pad) { p.stickMode = true } }
func WithKeymap(m map[uint]ButtonID) Option { return func(p *Pad) { p.keymap = m } }

func NewPad(sink Sink, log *logger.Logger, opts ...Option) *Pad {
	pad := &Pad{
		sink:     sink,
		deadzone: defaultDeadzone,
		log:      log.Extend(log.With().Str("m", "pad")),
	}
	for _, opt := range opts {
		opt(pad)
	}
	return pad
}

// HandleEvent applies one widget event to the pad state and flushes it.
// Events for ports outside the range are dropped.
func (p *Pad) HandleEvent(e Event) {
	if e.Port < 0 || e.Port >= maxPort {
		p.log.Debug().Msgf("dropped event for port %v", e.Port)
		return
	}

	switch {
	case e.ID == IDDial || e.ID == IDStickRight:
		// direction ids only carry moves
		if e.Action != Move {
			return
		}
	case e.ID >= IDSaveState:
		p.special(e)
		return
	}

	p.mu.Lock()
	st := &p.ports[e.Port]
	switch e.Action {
	case Press:
		st.buttons |= 1 << e.ID
	case Release:
		st.buttons &^= 1 << e.ID
	case Move:
		p.move(st, e)
	}
	data := st.wire()
	p.mu.Unlock()

	p.sink.Input(e.Port, data)
}

// HandleKey maps a keyboard key onto a pad button through the
// configured keymap, so the special ids work from keyboard too.
func (p *Pad) HandleKey(port int, key uint, pressed bool) {
	id, ok := p.keymap[key]
	if !ok {
		return
	}
	act := Release
	if pressed {
		act = Press
	}
	p.HandleEvent(Event{Port: port, ID: id, Action: act})
}

func (p *Pad) special(e Event) {
	if e.Action != Press {
		return
	}
	switch e.ID {
	case IDSaveState:
		if p.hooks.OnSaveState != nil {
			if err := p.hooks.OnSaveState(); err != nil {
				p.log.Error().Err(err).Msg("pad save failed")
			}
		}
	case IDLoadState:
		if p.hooks.OnLoadState != nil {
			if err := p.hooks.OnLoadState(); err != nil {
				p.log.Error().Err(err).Msg("pad load failed")
			}
		}
	case IDMenu:
		if p.hooks.OnMenu != nil {
			p.hooks.OnMenu()
		}
	default:
		p.log.Debug().Msgf("unknown widget id %v", e.ID)
	}
}

func (p *Pad) move(st *portState, e Event) {
	if e.ID == IDStickRight {
		st.rx, st.ry = scale(e.X), scale(e.Y)
		return
	}
	if p.stickMode {
		st.lx, st.ly = scale(e.X), scale(e.Y)
		return
	}

	st.buttons &^= dpadMask
	if math.Hypot(e.X, e.Y) < p.deadzone {
		return
	}
	st.buttons |= dialBits(e.X, e.Y)
}

// dialBits maps a unit-circle direction onto dpad bits with eight
// 45-degree sectors, diagonals set two bits.
func dialBits(x, y float64) uint16 {
	sector := int(math.Round(math.Atan2(y, x) / (math.Pi / 4)))
	switch (sector + 8) % 8 {
	case 0:
		return 1 << Right
	case 1:
		return 1<<Right | 1<<Up
	case 2:
		return 1 << Up
	case 3:
		return 1<<Up | 1<<Left
	case 4:
		return 1 << Left
	case 5:
		return 1<<Left | 1<<Down
	case 6:
		return 1 << Down
	default:
		return 1<<Down | 1<<Right
	}
}

func scale(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}

func (st *portState) wire() []byte {
	data := make([]byte, 14)
	binary.LittleEndian.PutUint16(data, st.buttons)
	binary.LittleEndian.PutUint16(data[2:], uint16(st.lx))
	binary.LittleEndian.PutUint16(data[4:], uint16(st.ly))
	binary.LittleEndian.PutUint16(data[6:], uint16(st.rx))
	binary.LittleEndian.PutUint16(data[8:], uint16(st.ry))
	return data
}
