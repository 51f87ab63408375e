// Package session hosts one emulator run and drives it through the
// mobile-style lifecycle: Created, Started, Resumed, Paused, Stopped,
// Destroyed.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/openretro/retroshell/pkg/assets"
	"github.com/openretro/retroshell/pkg/cloud"
	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/emulator/libretro"
	"github.com/openretro/retroshell/pkg/gamepad"
	"github.com/openretro/retroshell/pkg/games"
	"github.com/openretro/retroshell/pkg/logger"
	"github.com/openretro/retroshell/pkg/os"
)

type State int

const (
	stateNew State = iota
	Created
	Started
	Resumed
	Paused
	Stopped
	Destroyed
)

func (s State) String() string {
	switch s {
	case stateNew:
		return "new"
	case Created:
		return "created"
	case Started:
		return "started"
	case Resumed:
		return "resumed"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

var ErrBadTransition = errors.New("illegal lifecycle transition")

// transitions lists the legal next states.
var transitions = map[State][]State{
	stateNew: {Created},
	Created:  {Started, Destroyed},
	Started:  {Resumed, Destroyed},
	Resumed:  {Paused},
	Paused:   {Resumed, Stopped},
	Stopped:  {Destroyed},
}

// Session is the lifecycle container around one frontend run.
type Session struct {
	id        string
	conf      config.ShellConfig
	emu       libretro.Emulator
	frontend  *libretro.Frontend
	pad       *gamepad.Pad
	lib       games.GameLibrary
	installer *assets.Installer
	lock      *os.Flock
	cloud     cloud.Storage
	remote    *remote
	log       *logger.Logger
	m         *metrics

	videoCb func(*libretro.Video)

	mu    sync.Mutex
	state State
}

// New prepares a session: takes the private storage lock, stages the
// bundled assets, and builds the frontend chain. The session owns the
// private storage dir until Destroy; a second shell on the same dir
// fails fast here.
func New(conf config.ShellConfig, log *logger.Logger) (*Session, error) {
	id := uuid.Must(uuid.NewV4()).String()
	log = log.Extend(log.With().Str("m", "session").Str("sid", id[:8]))

	lock, err := os.NewFileLock(filepath.Join(conf.Emulator.LocalPath, ".lock"))
	if err != nil {
		return nil, fmt.Errorf("couldn't make the session lock: %w", err)
	}
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("couldn't take the session lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("private storage %v is held by another shell", conf.Emulator.LocalPath)
	}

	installer, err := assets.NewInstaller(conf.Assets, conf.Emulator.LocalPath, conf.Emulator.GetSupportedExtensions(), log)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := installer.Install(context.Background()); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("asset staging failed: %w", err)
	}

	frontend, err := libretro.NewFrontend(conf.Emulator, log)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	frontend.SaveOnClose = conf.Session.SaveOnClose

	cloudStore, err := cloud.Store(conf.Storage, log)
	if err != nil {
		log.Error().Err(err).Msg("cloud storage is unavailable")
		cloudStore = nil
	}

	var lib games.GameLibrary
	if conf.Library.BasePath != "" {
		lib = games.NewLib(conf.Library, conf.Emulator, log)
		lib.Scan()
	}

	s := &Session{
		id:        id,
		conf:      conf,
		emu:       frontend,
		frontend:  frontend,
		lib:       lib,
		installer: installer,
		lock:      lock,
		cloud:     cloudStore,
		log:       log,
		m:         newMetrics(id),
	}
	s.pad = gamepad.NewPad(s, log, gamepad.WithHooks(gamepad.Hooks{
		OnSaveState: s.saveState,
		OnLoadState: s.loadState,
	}))
	frontend.SetVideoCb(func(v *libretro.Video) {
		s.m.frames.Inc()
		if s.videoCb != nil {
			s.videoCb(v)
		}
	})
	return s, nil
}

func (s *Session) Id() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, next := range transitions[s.state] {
		if next == to {
			s.log.Debug().Msgf("lifecycle %v -> %v", s.state, to)
			s.state = to
			s.m.state.Set(float64(to))
			return nil
		}
	}
	return fmt.Errorf("%w: %v -> %v", ErrBadTransition, s.state, to)
}

// Create loads the configured core and resolves the ROM into it.
func (s *Session) Create() error {
	if err := s.transition(Created); err != nil {
		return err
	}

	if err := s.emu.LoadCore(s.conf.Emulator.Core); err != nil {
		return fmt.Errorf("couldn't load core %v: %w", s.conf.Emulator.Core, err)
	}

	rom, err := s.resolveRom()
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(rom), filepath.Ext(rom))
	s.emu.SetSessionId(name)

	if s.cloud != nil {
		decorated, err := libretro.WithCloud(s.emu, s.id, s.cloud)
		if err != nil {
			s.log.Error().Err(err).Msg("cloud save mirror is disabled")
		} else {
			s.log.Info().Msg("cloud save mirror is enabled")
			s.emu = decorated
		}
	}

	if err := s.emu.LoadGame(rom); err != nil {
		return fmt.Errorf("couldn't load rom %v: %w", rom, err)
	}
	s.log.Info().Msgf("created with %v (%v)", name, s.conf.Emulator.Core)
	return nil
}

// resolveRom finds the game file: an explicit path first, then a
// library name lookup, then the staged rom bundle.
func (s *Session) resolveRom() (string, error) {
	rom := s.conf.Emulator.Rom
	if rom != "" && os.Exists(rom) {
		return rom, nil
	}
	if rom != "" && s.lib != nil {
		if game := s.lib.FindGameByName(rom); game.Path != "" {
			return game.FullPath(""), nil
		}
	}
	if path := s.installer.RomPath(); path != "" && os.Exists(path) {
		return path, nil
	}
	return "", fmt.Errorf("couldn't resolve rom %q", rom)
}

// Start spins the frame loop paused; the first Resume unpauses it.
// An existing save is restored before the first frame.
func (s *Session) Start() error {
	if err := s.transition(Started); err != nil {
		return err
	}
	if s.conf.Remote.Enabled {
		r, err := newRemote(s, s.conf.Remote.Address, s.log)
		if err != nil {
			return fmt.Errorf("couldn't start the remote pad: %w", err)
		}
		s.remote = r
		s.remote.run()
	}
	s.emu.Pause()
	go s.emu.Start()
	return nil
}

func (s *Session) Resume() error {
	if err := s.transition(Resumed); err != nil {
		return err
	}
	s.emu.Resume()
	return nil
}

// Pause stops ticking and flushes SRAM and the state blob.
func (s *Session) Pause() error {
	if err := s.transition(Paused); err != nil {
		return err
	}
	s.emu.Pause()
	if s.conf.Session.SaveOnPause {
		if err := s.saveState(); err != nil {
			s.log.Error().Err(err).Msg("pause flush failed")
		}
	}
	return nil
}

// Stop writes the final state blob.
func (s *Session) Stop() error {
	if err := s.transition(Stopped); err != nil {
		return err
	}
	if err := s.saveState(); err != nil {
		s.log.Error().Err(err).Msg("stop flush failed")
	}
	return nil
}

// Destroy tears the session down and releases the private storage.
func (s *Session) Destroy() error {
	if err := s.transition(Destroyed); err != nil {
		return err
	}
	if s.remote != nil {
		if err := s.remote.stop(); err != nil {
			s.log.Error().Err(err).Msg("remote pad stop failed")
		}
	}
	s.emu.Close()
	if s.lib != nil {
		s.lib.Close()
	}
	if err := s.lock.Unlock(); err != nil {
		s.log.Error().Err(err).Msg("session unlock failed")
	}
	s.log.Info().Msg("destroyed")
	return nil
}

func (s *Session) saveState() error {
	if err := s.emu.SaveGameState(); err != nil {
		return err
	}
	s.m.saves.Inc()
	return nil
}

func (s *Session) loadState() error {
	if err := s.emu.RestoreGameState(); err != nil {
		return err
	}
	s.m.loads.Inc()
	return nil
}

// HandleEvent forwards one radial pad event.
func (s *Session) HandleEvent(e gamepad.Event) {
	s.m.events.Inc()
	s.pad.HandleEvent(e)
}

// Input is a raw retropad state passthrough, also the pad sink.
func (s *Session) Input(port int, data []byte) { s.emu.Input(port, data) }

// KeyboardInput feeds the emulator keyboard state and the pad keymap.
func (s *Session) KeyboardInput(data []byte) {
	s.emu.KeyboardInput(data)
	if len(data) == 7 {
		s.pad.HandleKey(0, uint(binary.BigEndian.Uint32(data)), data[4] == 1)
	}
}

func (s *Session) MouseMove(data []byte) { s.emu.MouseMove(data) }
func (s *Session) MouseButtons(b byte)   { s.emu.MouseButtons(b) }

// WaitFirstFrame blocks until the core renders its first frame.
func (s *Session) WaitFirstFrame(ctx context.Context) error { return s.emu.WaitFirstFrame(ctx) }

func (s *Session) SetVideoCb(cb func(*libretro.Video)) { s.videoCb = cb }
func (s *Session) SetAudioCb(cb func(*libretro.Audio)) { s.frontend.SetAudioCb(cb) }
