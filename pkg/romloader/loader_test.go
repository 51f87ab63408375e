package romloader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, data := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenRaw(t *testing.T) {
	dir := t.TempDir()
	rom := filepath.Join(dir, "game.nes")
	if err := os.WriteFile(rom, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	l := New([]string{"nes"})
	data, name, err := l.Open(rom)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if name != "game.nes" || len(data) != 3 {
		t.Errorf("Open() = (%v bytes, %v)", len(data), name)
	}
}

func TestOpenZip(t *testing.T) {
	tests := []struct {
		name     string
		entries  map[string][]byte
		wantName string
		wantErr  error
	}{
		{
			name:     "rom inside",
			entries:  map[string][]byte{"readme.txt": []byte("hi"), "game.gba": {4, 5, 6}},
			wantName: "game.gba",
		},
		{
			name:    "no supported rom",
			entries: map[string][]byte{"readme.txt": []byte("hi")},
			wantErr: ErrNoRomFile,
		},
	}

	l := New([]string{"gba"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "archive.zip")
			writeZip(t, path, tt.entries)

			_, name, err := l.Open(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if name != tt.wantName {
				t.Errorf("Open() name = %v, want %v", name, tt.wantName)
			}
		})
	}
}

func TestOpenGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.smc.gz")

	buf := new(bytes.Buffer)
	gz := gzip.NewWriter(buf)
	gz.Name = "game.smc"
	if _, err := gz.Write([]byte{7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	l := New([]string{"smc"})
	data, name, err := l.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if name != "game.smc" || !bytes.Equal(data, []byte{7, 8, 9}) {
		t.Errorf("Open() = (%v, %v)", data, name)
	}
}

func TestOpenUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")
	if err := os.WriteFile(path, []byte{0, 0, 0, 0}, 0644); err != nil {
		t.Fatal(err)
	}

	l := New([]string{"nes"})
	if _, _, err := l.Open(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Open() error = %v, want %v", err, ErrUnsupportedFormat)
	}
}
