package libretro

import (
	"encoding/binary"
	"sync/atomic"
)

const (
	maxPort     = 4
	numAxes     = 4
	numTriggers = 2
)

// RetroPad button bit positions (libretro joypad ids).
const (
	RetroPadB = iota
	RetroPadY
	RetroPadSelect
	RetroPadStart
	RetroPadUp
	RetroPadDown
	RetroPadLeft
	RetroPadRight
	RetroPadA
	RetroPadX
	RetroPadL
	RetroPadR
	RetroPadL2
	RetroPadR2
	RetroPadL3
	RetroPadR3
)

// InputState stores controller state for all ports.
//   - uint16 button bitmask
//   - int16 analog axes x4 (left stick, right stick)
//   - int16 analog triggers x2 (L2, R2)
type InputState [maxPort]struct {
	keys     uint32 // lower 16 bits used
	axes     int64  // packed: [LX:16][LY:16][RX:16][RY:16]
	triggers int32  // packed: [L2:16][R2:16]
}

// SetInput sets input state for a player.
//
//	[BTN:2][LX:2][LY:2][RX:2][RY:2][L2:2][R2:2]
func (s *InputState) SetInput(port int, data []byte) {
	if port < 0 || port >= maxPort || len(data) < 2 {
		return
	}

	atomic.StoreUint32(&s[port].keys, uint32(binary.LittleEndian.Uint16(data)))

	var packedAxes int64
	for i := 0; i < numAxes && i*2+3 < len(data); i++ {
		axis := int64(int16(binary.LittleEndian.Uint16(data[i*2+2:])))
		packedAxes |= (axis & 0xFFFF) << (i * 16)
	}
	atomic.StoreInt64(&s[port].axes, packedAxes)

	if len(data) >= 14 {
		l2 := int32(int16(binary.LittleEndian.Uint16(data[10:])))
		r2 := int32(int16(binary.LittleEndian.Uint16(data[12:])))
		atomic.StoreInt32(&s[port].triggers, (l2&0xFFFF)|((r2&0xFFFF)<<16))
	}
}

func (s *InputState) Buttons(port int) uint32 {
	return atomic.LoadUint32(&s[port].keys)
}

func (s *InputState) Axes(port int) (axes [numAxes]int16) {
	packed := atomic.LoadInt64(&s[port].axes)
	for i := 0; i < numAxes; i++ {
		axes[i] = int16(packed >> (i * 16))
	}
	return
}

func (s *InputState) Triggers(port int) (t [numTriggers]int16) {
	packed := atomic.LoadInt32(&s[port].triggers)
	t[0] = int16(packed)
	t[1] = int16(packed >> 16)
	return
}

// KeyboardState tracks keys of the keyboard.
type KeyboardState struct {
	keys [6]atomic.Uint64 // 342 keys packed into 6 uint64s (384 bits)
	mod  atomic.Uint32
}

const keyLast = 342 // RETROK_LAST

// SetKey sets keyboard state.
//
//	[KEY:4][P:1][MOD:2]
//
//	KEY - key code, P - pressed (0/1), MOD - modifier bitmask
func (ks *KeyboardState) SetKey(data []byte) (pressed bool, key uint, mod uint16) {
	if len(data) != 7 {
		return
	}
	key = uint(binary.BigEndian.Uint32(data))
	if key >= keyLast {
		return false, 0, 0
	}
	mod = binary.BigEndian.Uint16(data[5:])
	pressed = data[4] == 1

	idx, bit := key/64, uint64(1)<<(key%64)
	for {
		old := ks.keys[idx].Load()
		set := old | bit
		if !pressed {
			set = old &^ bit
		}
		if ks.keys[idx].CompareAndSwap(old, set) {
			break
		}
	}
	ks.mod.Store(uint32(mod))

	return
}

func (ks *KeyboardState) Pressed(key uint) bool {
	if key >= keyLast {
		return false
	}
	return (ks.keys[key/64].Load()>>(key%64))&1 == 1
}

func (ks *KeyboardState) Mod() uint16 { return uint16(ks.mod.Load()) }

// MouseState tracks mouse delta and buttons.
type MouseState struct {
	dx, dy  atomic.Int32
	buttons atomic.Int32
}

type MouseBtnState int32

const (
	MouseLeft MouseBtnState = 1 << iota
	MouseRight
	MouseMiddle
)

// ShiftPos adds relative mouse movement.
//
//	[dx:2][dy:2]
func (ms *MouseState) ShiftPos(data []byte) {
	if len(data) != 4 {
		return
	}
	ms.dx.Add(int32(int16(binary.BigEndian.Uint16(data[:2]))))
	ms.dy.Add(int32(int16(binary.BigEndian.Uint16(data[2:]))))
}

func (ms *MouseState) SetButtons(b byte) { ms.buttons.Store(int32(b)) }

func (ms *MouseState) Buttons() (l, r, m bool) {
	b := MouseBtnState(ms.buttons.Load())
	return b&MouseLeft != 0, b&MouseRight != 0, b&MouseMiddle != 0
}

// PopDelta consumes the accumulated mouse movement.
func (ms *MouseState) PopDelta() (dx, dy int16) {
	return int16(ms.dx.Swap(0)), int16(ms.dy.Swap(0))
}
