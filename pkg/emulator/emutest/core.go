// Package emutest provides an in-memory core for tests.
package emutest

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/openretro/retroshell/pkg/emulator"
	"github.com/openretro/retroshell/pkg/os"
)

const (
	W = 4
	H = 4
)

// Core is a tiny fake core: the framebuffer is a counter rendered into
// bytes, the serialized state is that counter, and SRAM is a settable blob.
type Core struct {
	mu sync.Mutex

	rom     string
	frames  uint64
	buttons [4]uint32
	sram    []byte

	FailLoad bool
}

func New() *Core { return &Core{} }

func (c *Core) LoadGame(path string) error {
	if c.FailLoad {
		return fmt.Errorf("emutest: refusing to load %v", path)
	}
	if !os.Exists(path) {
		return fmt.Errorf("emutest: no ROM at %v", path)
	}
	c.mu.Lock()
	c.rom = path
	c.frames = 0
	c.mu.Unlock()
	return nil
}

func (c *Core) UnloadGame() {
	c.mu.Lock()
	c.rom = ""
	c.mu.Unlock()
}

func (c *Core) RunFrame() {
	c.mu.Lock()
	c.frames++
	c.mu.Unlock()
}

func (c *Core) Framebuffer() emulator.Frame {
	data := make([]byte, W*H*4)
	binary.LittleEndian.PutUint64(data, c.Frames())
	return emulator.Frame{Data: data, Stride: W * 4, W: W, H: H}
}

func (c *Core) AudioSamples() []int16 { return make([]int16, 2*samplesPerFrame) }
func (c *Core) FPS() float64          { return 60 }
func (c *Core) AudioSampleRate() int  { return 44100 }
func (c *Core) Close()                {}

const samplesPerFrame = 735

func (c *Core) SetInput(port int, buttons uint32) {
	if port < 0 || port >= len(c.buttons) {
		return
	}
	c.mu.Lock()
	c.buttons[port] = buttons
	c.mu.Unlock()
}

func (c *Core) Serialize() ([]byte, error) {
	state := make([]byte, 8)
	binary.LittleEndian.PutUint64(state, c.Frames())
	return state, nil
}

func (c *Core) Deserialize(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("emutest: truncated state (%d bytes)", len(data))
	}
	c.mu.Lock()
	c.frames = binary.LittleEndian.Uint64(data)
	c.mu.Unlock()
	return nil
}

func (c *Core) SRAM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sram == nil {
		return nil
	}
	cp := make([]byte, len(c.sram))
	copy(cp, c.sram)
	return cp
}

func (c *Core) SetSRAM(data []byte) {
	c.mu.Lock()
	c.sram = append([]byte(nil), data...)
	c.mu.Unlock()
}

func (c *Core) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *Core) Buttons(port int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttons[port]
}
