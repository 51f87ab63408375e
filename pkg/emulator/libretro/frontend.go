package libretro

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/emulator"
	"github.com/openretro/retroshell/pkg/logger"
	"github.com/openretro/retroshell/pkg/os"
)

// Emulator is the frontend surface the session drives.
type Emulator interface {
	// LoadCore instantiates a registered external core.
	LoadCore(name string) error
	// LoadGame loads a ROM into the core.
	LoadGame(path string) error
	// Start runs the frame loop until Close.
	Start()
	// Pause stops frame ticking without tearing the core down.
	Pause()
	Resume()
	// Close will be called when the game is done.
	Close()

	// Input passes packed retropad state to the emulator.
	Input(player int, data []byte)
	// KeyboardInput passes a packed keyboard event to the emulator.
	KeyboardInput(data []byte)
	// MouseMove passes packed relative mouse movement.
	MouseMove(data []byte)
	// MouseButtons passes a mouse button bitmask.
	MouseButtons(b byte)

	SetAudioCb(func(*Audio))
	SetVideoCb(func(*Video))

	FPS() int
	AudioSampleRate() int

	SaveGameState() error
	RestoreGameState() error
	// HasSave returns true if the current session was saved before.
	HasSave() bool
	// HashPath returns the path the emulator will save state to.
	HashPath() string
	SRAMPath() string
	// SaveStateName returns the file name of the main save blob.
	SaveStateName() string
	// SetSessionId sets distinct name for the game session (in order to save/load it later).
	SetSessionId(name string)

	// WaitFirstFrame blocks until the first frame has been rendered.
	WaitFirstFrame(ctx context.Context) error
}

type Audio struct {
	Data     []int16
	Duration int32
}

type Video struct {
	Frame    emulator.Frame
	Duration int32
}

type Frontend struct {
	conf    config.Emulator
	core    emulator.Core
	done    chan struct{}
	input   InputState
	kbd     KeyboardState
	mouse   MouseState
	log     *logger.Logger
	onAudio func(*Audio)
	onVideo func(*Video)
	paused  bool
	scale   float64
	storage Storage

	firstFrame chan struct{}
	frameOnce  sync.Once

	mu sync.Mutex

	SaveOnClose bool
}

var (
	noAudio = func(*Audio) {}
	noVideo = func(*Video) {}

	audioPool = sync.Pool{New: func() any { return new(Audio) }}
	videoPool = sync.Pool{New: func() any { return new(Video) }}
)

const fallbackFPS = 60

// NewFrontend makes a frontend for external emulator cores.
func NewFrontend(conf config.Emulator, log *logger.Logger) (*Frontend, error) {
	path, err := filepath.Abs(conf.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to use emulator path: %v, %w", conf.LocalPath, err)
	}
	if err := os.CheckCreateDir(path); err != nil {
		return nil, fmt.Errorf("failed to create local path: %v, %w", conf.LocalPath, err)
	}

	log = log.Extend(log.With().Str("m", "Libretro"))
	log.Info().Msgf("Emulator private path is %v", path)

	log.Info().Msgf("Save storage path: %v", conf.Storage)
	if err := os.CheckCreateDir(conf.Storage); err != nil {
		return nil, fmt.Errorf("failed to create save storage path: %v, %w", conf.Storage, err)
	}

	var store Storage = &StateStorage{Path: conf.Storage}
	if conf.Libretro.SaveCompression {
		store = &ZipStorage{Storage: store}
	}

	f := &Frontend{
		conf:       conf,
		done:       make(chan struct{}),
		firstFrame: make(chan struct{}),
		log:        log,
		onAudio:    noAudio,
		onVideo:    noVideo,
		storage:    store,
	}
	return f, nil
}

// LoadCore instantiates the named core from the emulator registry
// and applies its configured options.
func (f *Frontend) LoadCore(name string) error {
	core, err := emulator.Make(name, f.log)
	if err != nil {
		return err
	}

	conf := f.conf.GetCoreConfig(name)
	scale := 1.0
	if conf.Scale > 1 {
		scale = conf.Scale
		f.log.Debug().Msgf("Scale: x%v", scale)
	}

	f.mu.Lock()
	f.core = core
	f.scale = scale
	f.mu.Unlock()

	if opts, ok := core.(emulator.OptionSetter); ok {
		for k, v := range conf.Options {
			opts.SetOption(k, v)
		}
	}
	return nil
}

func (f *Frontend) LoadGame(path string) error {
	f.mu.Lock()
	core := f.core
	f.mu.Unlock()
	if core == nil {
		return errors.New("no core loaded")
	}
	return core.LoadGame(path)
}

func (f *Frontend) Start() {
	f.log.Debug().Msgf("Frontend start")

	f.mu.Lock()
	core := f.core
	f.mu.Unlock()
	if core == nil {
		f.log.Error().Msg("start without a core")
		return
	}

	if f.HasSave() {
		if err := f.RestoreGameState(); err != nil {
			f.log.Error().Err(err).Msg("couldn't load a save file")
		}
	}

	fps := core.FPS()
	if fps <= 0 {
		fps = fallbackFPS
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

	if f.conf.AutosaveSec > 0 {
		go f.autosave(f.conf.AutosaveSec)
	}

	lastFrame := time.Now().UnixNano()
	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixNano()
			f.Tick(int32(now - lastFrame))
			lastFrame = now
		case <-f.done:
			return
		}
	}
}

// Tick runs one emulation frame.
func (f *Frontend) Tick(delta int32) {
	f.mu.Lock()
	core := f.core
	if core == nil || f.paused {
		f.mu.Unlock()
		return
	}
	f.syncInput(core)
	core.RunFrame()
	frame := core.Framebuffer()
	samples := core.AudioSamples()
	f.mu.Unlock()

	fr := videoPool.Get().(*Video)
	fr.Frame, fr.Duration = frame, delta
	f.onVideo(fr)
	videoPool.Put(fr)

	if len(samples) > 0 {
		au := audioPool.Get().(*Audio)
		au.Data, au.Duration = samples, delta
		f.onAudio(au)
		audioPool.Put(au)
	}
	f.frameOnce.Do(func() { close(f.firstFrame) })
}

// syncInput pushes the cached input state into the core, f.mu held.
func (f *Frontend) syncInput(core emulator.Core) {
	analog, hasAnalog := core.(emulator.AnalogInputter)
	for port := 0; port < maxPort; port++ {
		core.SetInput(port, f.input.Buttons(port))
		if hasAnalog {
			analog.SetAnalog(port, f.input.Axes(port), f.input.Triggers(port))
		}
	}
	if pointer, ok := core.(emulator.PointerInputter); ok {
		if dx, dy := f.mouse.PopDelta(); dx != 0 || dy != 0 {
			pointer.MouseMove(dx, dy)
		}
		pointer.MouseButtons(f.mouse.Buttons())
	}
}

func (f *Frontend) Input(player int, data []byte) { f.input.SetInput(player, data) }

func (f *Frontend) KeyboardInput(data []byte) {
	pressed, key, mod := f.kbd.SetKey(data)
	f.mu.Lock()
	defer f.mu.Unlock()
	if kb, ok := f.core.(emulator.KeyboardInputter); ok {
		kb.SetKey(key, pressed, mod)
	}
}

func (f *Frontend) MouseMove(data []byte) { f.mouse.ShiftPos(data) }
func (f *Frontend) MouseButtons(b byte)   { f.mouse.SetButtons(b) }

func (f *Frontend) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
	f.log.Debug().Msg("frontend paused")
}

func (f *Frontend) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	f.log.Debug().Msg("frontend resumed")
}

func (f *Frontend) FPS() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.core == nil {
		return fallbackFPS
	}
	if fps := f.core.FPS(); fps > 0 {
		return int(fps)
	}
	return fallbackFPS
}

func (f *Frontend) AudioSampleRate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.core == nil {
		return 0
	}
	return f.core.AudioSampleRate()
}

func (f *Frontend) HashPath() string          { return f.storage.GetSavePath() }
func (f *Frontend) SRAMPath() string          { return f.storage.GetSRAMPath() }
func (f *Frontend) SaveStateName() string     { return filepath.Base(f.HashPath()) }
func (f *Frontend) HasSave() bool             { return os.Exists(f.HashPath()) }
func (f *Frontend) SetSessionId(name string)  { f.storage.SetMainSaveName(name) }
func (f *Frontend) SaveGameState() error      { return f.Save() }
func (f *Frontend) RestoreGameState() error   { return f.Load() }
func (f *Frontend) SetAudioCb(cb func(*Audio)) { f.onAudio = cb }
func (f *Frontend) SetVideoCb(cb func(*Video)) { f.onVideo = cb }
func (f *Frontend) Scale() float64            { return f.scale }

// WaitFirstFrame blocks until the first video frame has been emitted.
func (f *Frontend) WaitFirstFrame(ctx context.Context) error {
	select {
	case <-f.firstFrame:
		return nil
	case <-f.done:
		return errors.New("frontend closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Frontend) Close() {
	f.log.Debug().Msgf("frontend close called")

	// Save game on quit if it was saved before (shared or click-saved).
	if f.SaveOnClose && f.HasSave() {
		f.log.Debug().Msg("Save on quit")
		if err := f.Save(); err != nil {
			f.log.Error().Err(err).Msg("save on quit failed")
		}
	}

	close(f.done)

	f.mu.Lock()
	if f.core != nil {
		f.core.UnloadGame()
		f.core.Close()
		f.core = nil
	}
	f.onAudio = noAudio
	f.onVideo = noVideo
	f.mu.Unlock()
}

// Save writes the current state to the filesystem.
func (f *Frontend) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	saver, ok := f.core.(emulator.SaveStater)
	if !ok {
		f.log.Warn().Msg("core doesn't support save states")
		return nil
	}
	ss, err := saver.Serialize()
	if err != nil {
		return err
	}
	if err := f.storage.Save(f.HashPath(), ss); err != nil {
		return err
	}

	if battery, ok := f.core.(emulator.BatterySaver); ok {
		if sram := battery.SRAM(); sram != nil {
			if err := f.storage.Save(f.SRAMPath(), sram); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load restores the state from the filesystem.
func (f *Frontend) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if saver, ok := f.core.(emulator.SaveStater); ok {
		ss, err := f.storage.Load(f.HashPath())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if ss != nil {
			if err := saver.Deserialize(ss); err != nil {
				return err
			}
		}
	}

	if battery, ok := f.core.(emulator.BatterySaver); ok {
		sram, err := f.storage.Load(f.SRAMPath())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if sram != nil {
			battery.SetSRAM(sram)
		}
	}
	return nil
}

func (f *Frontend) autosave(periodSec int) {
	f.log.Info().Msgf("Autosave every [%vs]", periodSec)
	ticker := time.NewTicker(time.Duration(periodSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.Save(); err != nil {
				f.log.Error().Msgf("Autosave failed: %v", err)
			} else {
				f.log.Debug().Msgf("Autosave done")
			}
		case <-f.done:
			return
		}
	}
}
