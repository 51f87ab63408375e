// Package assets stages bundled ROM/save/state files into the private
// storage directory before the emulator session boots.
package assets

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cavaliercoder/grab"

	"github.com/openretro/retroshell/pkg/compression/zip"
	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/logger"
	"github.com/openretro/retroshell/pkg/os"
	"github.com/openretro/retroshell/pkg/romloader"
)

// Bundle kinds.
const (
	KindRom   = "rom"
	KindSRAM  = "sram"
	KindState = "state"
)

type Installer struct {
	client *grab.Client
	conf   config.Assets
	dest   string
	fmu    *os.Flock
	loader romloader.Loader
	log    *logger.Logger
	unzip  zip.Extractor
}

// NewInstaller makes an asset installer putting bundles into the dest
// directory. The supported param lists ROM extensions for archive lookup.
func NewInstaller(conf config.Assets, dest string, supported []string, log *logger.Logger) (*Installer, error) {
	// serializes downloads between shell processes on one machine
	fmu, err := os.NewFileLock(conf.ExtLock)
	if err != nil {
		return nil, fmt.Errorf("couldn't make asset fetch lock: %w", err)
	}
	return &Installer{
		client: grab.NewClient(),
		conf:   conf,
		dest:   dest,
		fmu:    fmu,
		loader: romloader.New(supported),
		log:    log.Extend(log.With().Str("m", "assets")),
		unzip:  zip.New(log),
	}, nil
}

// Install stages every configured bundle. A missing ROM bundle is fatal,
// missing save/state seeds are skipped with a warning. Staging is
// idempotent unless a bundle sets Overwrite.
func (in *Installer) Install(ctx context.Context) error {
	if err := os.CheckCreateDir(in.dest); err != nil {
		return fmt.Errorf("failed to create asset destination: %w", err)
	}

	for _, b := range in.conf.Bundles {
		if err := in.install(ctx, b); err != nil {
			if b.Kind == KindRom {
				return fmt.Errorf("rom asset %v: %w", b.Source, err)
			}
			in.log.Warn().Err(err).Msgf("skipping %v seed %v", b.Kind, b.Source)
		}
	}
	return nil
}

// RomPath returns the staged path of the first ROM bundle, or "".
func (in *Installer) RomPath() string {
	for _, b := range in.conf.Bundles {
		if b.Kind == KindRom {
			return filepath.Join(in.dest, in.targetName(b))
		}
	}
	return ""
}

func (in *Installer) install(ctx context.Context, b config.Bundle) error {
	target := in.targetName(b)
	if target == "" {
		return fmt.Errorf("bundle with no target name")
	}
	dest := filepath.Join(in.dest, target)

	if os.Exists(dest) && !b.Overwrite {
		in.log.Debug().Msgf("%v already staged at %v", b.Kind, dest)
		return nil
	}

	src := b.Source
	if isRemote(src) {
		staged, err := in.fetch(ctx, src)
		if err != nil {
			return err
		}
		src = staged
	}
	if !os.Exists(src) {
		return fmt.Errorf("source %v: %w", src, os.ErrNotExist)
	}

	// ROMs may come packed, so they pass through the archive loader
	if b.Kind == KindRom {
		data, name, err := in.loader.Open(src)
		if err != nil {
			return err
		}
		if b.Target == "" {
			dest = filepath.Join(in.dest, name)
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return err
		}
		in.log.Info().Msgf("staged rom %v -> %v", b.Source, dest)
		return nil
	}

	// zipped seed packs are unpacked as-is
	if strings.HasSuffix(src, zip.Ext) {
		files, err := in.unzip.Extract(src, in.dest)
		if err != nil {
			return err
		}
		in.log.Info().Msgf("staged %v pack %v (%v files)", b.Kind, b.Source, len(files))
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return err
	}
	in.log.Info().Msgf("staged %v %v -> %v", b.Kind, b.Source, dest)
	return nil
}

// fetch downloads a remote bundle into a staging dir under the fetch lock.
func (in *Installer) fetch(ctx context.Context, address string) (string, error) {
	if err := in.fmu.Lock(); err != nil {
		in.log.Error().Err(err).Msg("asset fetch lock fail")
	}
	defer func() {
		if err := in.fmu.Unlock(); err != nil {
			in.log.Error().Err(err).Msg("asset fetch unlock fail")
		}
	}()

	staging := filepath.Join(in.dest, ".stage")
	if err := os.CheckCreateDir(staging); err != nil {
		return "", err
	}

	req, err := grab.NewRequest(staging, address)
	if err != nil {
		return "", fmt.Errorf("couldn't make request URL: %v, %w", address, err)
	}
	req = req.WithContext(ctx)

	resp := in.client.Do(req)
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	if resp.Size() == 0 {
		return "", fmt.Errorf("downloaded empty file from %v", address)
	}
	in.log.Info().Msgf("Downloaded [%v] %s", resp.HTTPResponse.Status, resp.Filename)
	return resp.Filename, nil
}

func (in *Installer) targetName(b config.Bundle) string {
	if b.Target != "" {
		return b.Target
	}
	base := filepath.Base(strings.TrimSuffix(b.Source, "/"))
	if isRemote(b.Source) {
		if u, err := url.Parse(b.Source); err == nil {
			base = filepath.Base(u.Path)
		}
	}
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
