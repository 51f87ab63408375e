// Package romloader handles loading ROM files from various sources,
// including compressed archives (ZIP, 7z, gzip, RAR).
package romloader

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// Magic bytes for format detection.
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// Maximum ROM size (64MB safety limit).
const maxROMSize = 64 * 1024 * 1024

var (
	// ErrNoRomFile is returned when no supported ROM is found in an archive.
	ErrNoRomFile = errors.New("no supported ROM file found in archive")
	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when extracted content exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Loader extracts ROMs with the given set of supported extensions
// (no leading dots, e.g. "nes", "gba").
type Loader struct {
	supported map[string]struct{}
}

func New(extensions []string) Loader {
	supported := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		supported[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return Loader{supported: supported}
}

// Open loads a ROM from a file path. It automatically detects and extracts
// from archives. Returns the ROM data, the inner file name of the ROM, and
// any error encountered.
func (l Loader) Open(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	switch l.detectFormat(header, path) {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, "", fmt.Errorf("failed to seek file: %w", err)
		}
		data, err := limitedRead(f)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read ROM: %w", err)
		}
		return data, filepath.Base(path), nil
	case formatZIP:
		return l.extractFromZIP(path)
	case format7z:
		return l.extractFrom7z(path)
	case formatGzip:
		return l.extractFromGzip(path)
	case formatRAR:
		return l.extractFromRAR(path)
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// detectFormat determines the file format based on magic bytes and extension.
func (l Loader) detectFormat(header []byte, path string) formatType {
	if len(header) >= 4 {
		if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEnd) {
			return formatZIP
		}
		if bytes.HasPrefix(header, magicRAR) {
			return formatRAR
		}
	}
	if len(header) >= 6 && bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if len(header) >= 2 && bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz":
		return formatGzip
	case ".rar":
		return formatRAR
	}

	if l.isRomFile(path) {
		return formatRaw
	}
	return formatUnknown
}

// isRomFile checks if a filename has a supported extension (case-insensitive).
func (l Loader) isRomFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := l.supported[ext]
	return ok
}

// limitedRead reads from r up to maxROMSize bytes, returning an error if exceeded.
func limitedRead(r io.Reader) ([]byte, error) {
	lr := io.LimitReader(r, maxROMSize+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// extractFromZIP extracts the first supported ROM from a ZIP archive.
func (l Loader) extractFromZIP(path string) ([]byte, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !l.isRomFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open zip entry: %w", err)
		}
		data, err := limitedRead(rc)
		_ = rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoRomFile
}

// extractFrom7z extracts the first supported ROM from a 7z archive.
func (l Loader) extractFrom7z(path string) ([]byte, string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !l.isRomFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open 7z entry: %w", err)
		}
		data, err := limitedRead(rc)
		_ = rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return data, filepath.Base(f.Name), nil
	}
	return nil, "", ErrNoRomFile
}

// extractFromGzip unpacks a single gzip-compressed ROM.
func (l Loader) extractFromGzip(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gz.Close()

	name := gz.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".gz")
	}
	if !l.isRomFile(name) {
		return nil, "", ErrNoRomFile
	}
	data, err := limitedRead(gz)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, filepath.Base(name), nil
}

// extractFromRAR extracts the first supported ROM from a RAR archive.
func (l Loader) extractFromRAR(path string) ([]byte, string, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read rar entry: %w", err)
		}
		if header.IsDir || !l.isRomFile(header.Name) {
			continue
		}
		data, err := limitedRead(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		return data, filepath.Base(header.Name), nil
	}
	return nil, "", ErrNoRomFile
}
