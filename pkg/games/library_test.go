package games

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/logger"
)

func testEmulatorConf(storage string) config.Emulator {
	conf := config.Emulator{Storage: storage}
	conf.Libretro.Cores.List = map[string]config.CoreConfig{
		"nes": {Roms: []string{"nes"}},
		"gba": {Roms: []string{"gba"}},
	}
	return conf
}

func TestLibraryScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Mega Game.nes", "another.gba", "notes.txt", "sub/deep.nes"} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte{0}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := logger.Default()
	lib := NewLib(config.Library{BasePath: dir}, testEmulatorConf(t.TempDir()), l)
	lib.Scan()

	games := lib.GetAll()
	if len(games) != 3 {
		t.Fatalf("Scan() found %v games, want 3: %v", len(games), games)
	}

	game := lib.FindGameByName("Mega Game")
	if game.Name != "Mega Game" || game.System != "nes" {
		t.Errorf("FindGameByName() = %+v", game)
	}
	if game.FullPath("") != filepath.Join(dir, "Mega Game.nes") {
		t.Errorf("FullPath() = %v", game.FullPath(""))
	}
}

func TestLibraryIgnored(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keep.nes", "skipme.nes"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0}, 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := logger.Default()
	lib := NewLib(config.Library{BasePath: dir, Ignored: []string{"skipme"}}, testEmulatorConf(t.TempDir()), l)
	lib.Scan()

	if got := lib.FindGameByName("skipme"); got.Name != "" {
		t.Errorf("ignored game was scanned: %+v", got)
	}
	if got := lib.FindGameByName("keep"); got.Name != "keep" {
		t.Errorf("expected game is missing: %+v", got)
	}
}

func TestLibraryWatch(t *testing.T) {
	dir := t.TempDir()

	l := logger.Default()
	lib := NewLib(config.Library{BasePath: dir, WatchMode: true}, testEmulatorConf(t.TempDir()), l)
	defer lib.Close()
	lib.Scan()

	if err := os.WriteFile(filepath.Join(dir, "late.nes"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if lib.FindGameByName("late").Name == "late" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("watch mode didn't pick up the new file")
}

func TestLibrarySessions(t *testing.T) {
	storage := t.TempDir()
	if err := os.WriteFile(filepath.Join(storage, "abc.dat"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	l := logger.Default()
	lib := NewLib(config.Library{BasePath: t.TempDir()}, testEmulatorConf(storage), l)
	lib.Scan()

	if got := lib.Sessions(); len(got) != 1 || got[0] != "abc.dat" {
		t.Errorf("Sessions() = %v", got)
	}
}
