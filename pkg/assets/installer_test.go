package assets

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/logger"
)

func testInstaller(t *testing.T, conf config.Assets, dest string) *Installer {
	t.Helper()
	conf.ExtLock = filepath.Join(t.TempDir(), "assets.lock")
	l := logger.Default()
	in, err := NewInstaller(conf, dest, []string{"nes"}, l.Extend(l.Level(logger.ErrorLevel).With()))
	if err != nil {
		t.Fatalf("NewInstaller() error = %v", err)
	}
	return in
}

func TestInstallLocalBundles(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "private")

	rom := filepath.Join(src, "game.nes")
	if err := os.WriteFile(rom, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	sram := filepath.Join(src, "seed.srm")
	if err := os.WriteFile(sram, []byte{9, 9}, 0644); err != nil {
		t.Fatal(err)
	}

	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: rom},
		{Kind: KindSRAM, Source: sram},
		{Kind: KindState, Source: filepath.Join(src, "missing.dat")}, // skipped
	}}, dest)

	if err := in.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	for _, name := range []string{"game.nes", "seed.srm"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("%v wasn't staged: %v", name, err)
		}
	}
	if got := in.RomPath(); got != filepath.Join(dest, "game.nes") {
		t.Errorf("RomPath() = %v", got)
	}
}

func TestInstallZippedRom(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "private")

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	f, _ := w.Create("packed.nes")
	_, _ = f.Write([]byte{4, 5, 6})
	_ = w.Close()
	archive := filepath.Join(src, "game.zip")
	if err := os.WriteFile(archive, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: archive},
	}}, dest)

	if err := in.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "packed.nes"))
	if err != nil {
		t.Fatalf("inner rom wasn't staged: %v", err)
	}
	if !bytes.Equal(data, []byte{4, 5, 6}) {
		t.Errorf("staged rom content = %v", data)
	}
}

func TestInstallZippedSeedPack(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "private")

	rom := filepath.Join(src, "game.nes")
	if err := os.WriteFile(rom, []byte{1}, 0644); err != nil {
		t.Fatal(err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, name := range []string{"game.srm", "game.dat"} {
		f, _ := w.Create(name)
		_, _ = f.Write([]byte{7})
	}
	_ = w.Close()
	pack := filepath.Join(src, "seeds.zip")
	if err := os.WriteFile(pack, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: rom},
		{Kind: KindSRAM, Source: pack},
	}}, dest)

	if err := in.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	for _, name := range []string{"game.srm", "game.dat"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("%v wasn't unpacked: %v", name, err)
		}
	}
}

func TestInstallIdempotent(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "private")

	rom := filepath.Join(src, "game.nes")
	if err := os.WriteFile(rom, []byte{1}, 0644); err != nil {
		t.Fatal(err)
	}

	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: rom},
	}}, dest)

	if err := in.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	// a re-run with a changed source must keep the staged copy
	if err := os.WriteFile(rom, []byte{2}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := in.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dest, "game.nes"))
	if !bytes.Equal(data, []byte{1}) {
		t.Errorf("staged rom was overwritten: %v", data)
	}
}

func TestInstallMissingRomFails(t *testing.T) {
	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: filepath.Join(t.TempDir(), "nope.nes")},
	}}, filepath.Join(t.TempDir(), "private"))

	if err := in.Install(context.Background()); err == nil {
		t.Error("Install() with a missing rom should fail")
	}
}

func TestInstallRemoteBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xAA, 0xBB, 0xCC})
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "private")
	in := testInstaller(t, config.Assets{Bundles: []config.Bundle{
		{Kind: KindRom, Source: srv.URL + "/remote.nes"},
	}}, dest)

	if err := in.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "remote.nes")); err != nil {
		t.Errorf("remote rom wasn't staged: %v", err)
	}
}
