package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/emulator"
	"github.com/openretro/retroshell/pkg/emulator/emutest"
	"github.com/openretro/retroshell/pkg/logger"
)

var coreSeq atomic.Int32

// testSession builds a session over a uniquely named in-memory core.
func testSession(t *testing.T, mutate func(*config.ShellConfig)) (*Session, *emutest.Core) {
	t.Helper()

	dir := t.TempDir()
	rom := filepath.Join(dir, "game.bin")
	if err := os.WriteFile(rom, []byte{0xCA, 0xFE}, 0644); err != nil {
		t.Fatal(err)
	}

	core := emutest.New()
	name := fmt.Sprintf("emutest-%03d", coreSeq.Add(1))
	emulator.Register(name, func(*logger.Logger) (emulator.Core, error) { return core, nil })

	conf := config.ShellConfig{}
	conf.Emulator.Core = name
	conf.Emulator.Rom = rom
	conf.Emulator.Storage = filepath.Join(dir, "storage")
	conf.Emulator.LocalPath = filepath.Join(dir, "local")
	conf.Session.SaveOnPause = true
	if mutate != nil {
		mutate(&conf)
	}

	l := logger.Default()
	s, err := New(conf, l.Extend(l.Level(logger.ErrorLevel).With()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, core
}

func TestLifecycle(t *testing.T) {
	s, core := testSession(t, nil)

	run := func(name string, fn func() error, want State) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatalf("%v: %v", name, err)
		}
		if got := s.State(); got != want {
			t.Fatalf("%v: state = %v, want %v", name, got, want)
		}
	}

	run("create", s.Create, Created)
	run("start", s.Start, Started)
	run("resume", s.Resume, Resumed)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.WaitFirstFrame(ctx); err != nil {
		t.Fatalf("WaitFirstFrame() error = %v", err)
	}

	run("pause", s.Pause, Paused)
	run("resume again", s.Resume, Resumed)
	run("pause again", s.Pause, Paused)
	run("stop", s.Stop, Stopped)
	run("destroy", s.Destroy, Destroyed)

	if core.Frames() == 0 {
		t.Error("core never ticked")
	}
	if !s.frontend.HasSave() {
		t.Error("lifecycle flush left no save")
	}
}

func TestBadTransitions(t *testing.T) {
	s, _ := testSession(t, nil)

	for _, fn := range []func() error{s.Start, s.Resume, s.Pause, s.Stop, s.Destroy} {
		if err := fn(); !errors.Is(err, ErrBadTransition) {
			t.Errorf("expected ErrBadTransition, got %v", err)
		}
	}

	if err := s.Create(); err != nil {
		t.Fatal(err)
	}
	if err := s.Pause(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("pause from created should fail, got %v", err)
	}

	// error paths may tear down a created session right away
	if err := s.Destroy(); err != nil {
		t.Errorf("destroy from created should work, got %v", err)
	}
	if err := s.Create(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("destroyed is terminal, got %v", err)
	}
}

func TestSecondShellFailsFast(t *testing.T) {
	s, _ := testSession(t, nil)

	l := logger.Default()
	if _, err := New(s.conf, l.Extend(l.Level(logger.ErrorLevel).With())); err == nil {
		t.Error("a second session on the same private storage should fail")
	}
}

func TestPauseFlushWritesSave(t *testing.T) {
	s, _ := testSession(t, nil)

	if err := s.Create(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.WaitFirstFrame(ctx); err != nil {
		t.Fatalf("WaitFirstFrame() error = %v", err)
	}

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if !s.frontend.HasSave() {
		t.Error("pause flush left no save")
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Destroy(); err != nil {
		t.Fatal(err)
	}
}

func TestResolveRomViaLibrary(t *testing.T) {
	libDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(libDir, "Lib Game.bin"), []byte{1}, 0644); err != nil {
		t.Fatal(err)
	}

	s, _ := testSession(t, func(conf *config.ShellConfig) {
		conf.Emulator.Rom = "Lib Game"
		conf.Emulator.Libretro.Cores.List = map[string]config.CoreConfig{
			conf.Emulator.Core: {Roms: []string{"bin"}},
		}
		conf.Library.BasePath = libDir
	})

	if err := s.Create(); err != nil {
		t.Fatalf("Create() with a library name error = %v", err)
	}
}

func TestResolveRomMissing(t *testing.T) {
	s, _ := testSession(t, func(conf *config.ShellConfig) {
		conf.Emulator.Rom = filepath.Join(t.TempDir(), "nope.bin")
	})

	if err := s.Create(); err == nil {
		t.Error("Create() with an unresolvable rom should fail")
	}
}
