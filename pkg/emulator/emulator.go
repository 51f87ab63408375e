// Package emulator defines the contract between the shell and an
// externally-supplied emulator core. The shell never implements emulation,
// it only drives a Core and persists the byte blobs the core produces.
package emulator

// Frame is a single video frame borrowed from the core.
// The data is valid only until the next RunFrame call.
type Frame struct {
	Data   []byte
	Stride int
	W, H   int
}

// Core is the minimal surface every core adapter must implement.
type Core interface {
	// LoadGame loads a ROM from the path.
	LoadGame(path string) error

	// UnloadGame unloads the current ROM keeping the core usable.
	UnloadGame()

	// RunFrame executes one frame of emulation.
	RunFrame()

	// Framebuffer returns the current frame.
	Framebuffer() Frame

	// AudioSamples returns stereo 16-bit PCM samples for the frame.
	// Valid only until the next RunFrame call.
	AudioSamples() []int16

	// FPS returns the video refresh rate of the loaded content.
	FPS() float64

	// AudioSampleRate returns the audio sampling rate in Hz.
	AudioSampleRate() int

	// SetInput sets the pressed button bitmask for the given player port.
	SetInput(port int, buttons uint32)

	// Close releases any resources held by the core.
	Close()
}

// SaveStater enables save states and state restore on boot.
type SaveStater interface {
	// Serialize captures the complete core state as a byte blob.
	Serialize() ([]byte, error)

	// Deserialize restores core state from previously serialized data.
	Deserialize(data []byte) error
}

// BatterySaver enables SRAM persistence for battery-backed saves.
type BatterySaver interface {
	// SRAM returns a copy of the current save RAM, nil when the ROM has none.
	SRAM() []byte

	// SetSRAM loads save RAM contents into the core.
	SetSRAM(data []byte)
}

// AnalogInputter accepts analog stick and trigger values.
type AnalogInputter interface {
	SetAnalog(port int, axes [4]int16, triggers [2]int16)
}

// KeyboardInputter accepts raw keyboard state changes.
type KeyboardInputter interface {
	SetKey(key uint, pressed bool, mod uint16)
}

// PointerInputter accepts relative mouse input.
type PointerInputter interface {
	MouseMove(dx, dy int16)
	MouseButtons(l, r, m bool)
}

// OptionSetter accepts core option changes identified by key.
type OptionSetter interface {
	SetOption(key string, value string)
}
