package libretro

import (
	"encoding/binary"
	"math/rand"
	"sync"
	"testing"
)

func TestInputStateSetInput(t *testing.T) {
	tests := []struct {
		name     string
		port     int
		data     []byte
		keys     uint32
		axes     [4]int16
		triggers [2]int16
	}{
		{
			name: "buttons only",
			port: 0,
			data: []byte{0xFF, 0x01},
			keys: 0x01FF,
		},
		{
			name: "buttons and axes",
			port: 1,
			data: []byte{0x03, 0x00, 0x10, 0x27, 0xF0, 0xD8, 0x00, 0x80, 0xFF, 0x7F},
			keys: 0x0003,
			axes: [4]int16{10000, -10000, -32768, 32767},
		},
		{
			name: "partial axes",
			port: 2,
			data: []byte{0x01, 0x00, 0x64, 0x00},
			keys: 0x0001,
			axes: [4]int16{100, 0, 0, 0},
		},
		{
			name: "max port",
			port: 3,
			data: []byte{0xFF, 0xFF},
			keys: 0xFFFF,
		},
		{
			name: "full input with triggers",
			port: 0,
			data: []byte{
				0x03, 0x00, // buttons
				0x10, 0x27, // LX: 10000
				0xF0, 0xD8, // LY: -10000
				0x00, 0x80, // RX: -32768
				0xFF, 0x7F, // RY: 32767
				0xFF, 0x3F, // L2: 16383
				0xFF, 0x7F, // R2: 32767
			},
			keys:     0x0003,
			axes:     [4]int16{10000, -10000, -32768, 32767},
			triggers: [2]int16{16383, 32767},
		},
		{
			name: "out of range port is dropped",
			port: 42,
			data: []byte{0xFF, 0xFF},
		},
		{
			name: "short data is dropped",
			port: 0,
			data: []byte{0xFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var state InputState
			state.SetInput(tt.port, tt.data)

			port := tt.port
			if port < 0 || port >= maxPort {
				return
			}
			if got := state.Buttons(port); got != tt.keys {
				t.Errorf("Buttons() = %#x, want %#x", got, tt.keys)
			}
			if got := state.Axes(port); got != tt.axes {
				t.Errorf("Axes() = %v, want %v", got, tt.axes)
			}
			if got := state.Triggers(port); got != tt.triggers {
				t.Errorf("Triggers() = %v, want %v", got, tt.triggers)
			}
		})
	}
}

func TestInputStateConcurrent(t *testing.T) {
	var state InputState
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data := make([]byte, 14)
			binary.LittleEndian.PutUint16(data, uint16(rand.Uint32()))
			state.SetInput(rand.Intn(maxPort), data)
			_ = state.Buttons(rand.Intn(maxPort))
			_ = state.Axes(rand.Intn(maxPort))
		}()
	}
	wg.Wait()
}

func TestKeyboardState(t *testing.T) {
	var ks KeyboardState

	press := func(key uint32, down byte, mod uint16) []byte {
		data := make([]byte, 7)
		binary.BigEndian.PutUint32(data, key)
		data[4] = down
		binary.BigEndian.PutUint16(data[5:], mod)
		return data
	}

	pressed, key, mod := ks.SetKey(press(32, 1, 0x03))
	if !pressed || key != 32 || mod != 0x03 {
		t.Errorf("SetKey() = (%v, %v, %v)", pressed, key, mod)
	}
	if !ks.Pressed(32) {
		t.Error("key 32 should be pressed")
	}

	pressed, _, _ = ks.SetKey(press(32, 0, 0))
	if pressed || ks.Pressed(32) {
		t.Error("key 32 should be released")
	}

	// keys sharing one bitset word don't clobber each other
	_, _, _ = ks.SetKey(press(65, 1, 0))
	_, _, _ = ks.SetKey(press(66, 1, 0))
	_, _, _ = ks.SetKey(press(65, 0, 0))
	if ks.Pressed(65) || !ks.Pressed(66) {
		t.Errorf("bitset word state = (%v, %v)", ks.Pressed(65), ks.Pressed(66))
	}

	// out of range keys are dropped
	if p, _, _ := ks.SetKey(press(keyLast+1, 1, 0)); p {
		t.Error("out of range key should be dropped")
	}

	// malformed events are dropped
	if p, _, _ := ks.SetKey([]byte{1, 2, 3}); p {
		t.Error("malformed event should be dropped")
	}
}

func TestMouseState(t *testing.T) {
	var ms MouseState

	move := func(dx, dy int16) []byte {
		data := make([]byte, 4)
		binary.BigEndian.PutUint16(data, uint16(dx))
		binary.BigEndian.PutUint16(data[2:], uint16(dy))
		return data
	}

	ms.ShiftPos(move(10, -5))
	ms.ShiftPos(move(1, 1))
	if dx, dy := ms.PopDelta(); dx != 11 || dy != -4 {
		t.Errorf("PopDelta() = (%v, %v), want (11, -4)", dx, dy)
	}
	if dx, dy := ms.PopDelta(); dx != 0 || dy != 0 {
		t.Errorf("PopDelta() should consume deltas, got (%v, %v)", dx, dy)
	}

	ms.SetButtons(byte(MouseLeft | MouseMiddle))
	l, r, m := ms.Buttons()
	if !l || r || !m {
		t.Errorf("Buttons() = (%v, %v, %v)", l, r, m)
	}
}
