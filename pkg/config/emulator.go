package config

import (
	"path/filepath"
	"strings"
)

type Emulator struct {
	// registered name of the external core to drive
	Core string
	// an explicit ROM path, otherwise resolved through the library
	Rom string
	// save state storage directory
	Storage string
	// private storage root for staged assets
	LocalPath   string
	Threads     int
	AutosaveSec int
	Libretro    LibretroConfig
}

type LibretroConfig struct {
	Cores struct {
		List map[string]CoreConfig
	}
	LogLevel        int
	SaveCompression bool
}

type CoreConfig struct {
	Folder  string
	Options map[string]string
	Roms    []string
	Scale   float64
}

// GetCoreConfig returns the config for a registered core name.
func (e Emulator) GetCoreConfig(core string) CoreConfig {
	return e.Libretro.Cores.List[core]
}

// GetEmulator tries to find a suitable core for the ROM file.
func (e Emulator) GetEmulator(rom string, path string) string {
	found := ""
	for core, conf := range e.Libretro.Cores.List {
		for _, romExt := range conf.Roms {
			if rom == romExt {
				found = core
				if p := strings.SplitN(filepath.ToSlash(path), "/", 2); len(p) > 1 {
					folder := p[0]
					if (folder != "" && folder == conf.Folder) || folder == core {
						return core
					}
				}
			}
		}
	}
	return found
}

func (e Emulator) GetSupportedExtensions() []string {
	var extensions []string
	for _, conf := range e.Libretro.Cores.List {
		extensions = append(extensions, conf.Roms...)
	}
	return extensions
}

func (e Emulator) SessionStoragePath() string { return e.Storage }
