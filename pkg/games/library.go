package games

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/logger"
)

// libConf is an optimized internal library configuration
type libConf struct {
	path        string
	supported   map[string]struct{}
	ignored     []string
	verbose     bool
	watchMode   bool
	sessionPath string
}

type library struct {
	config libConf
	// indicates repo source existence
	hasSource bool
	// scan time
	lastScanDuration time.Duration
	// library entries
	// game name -> game meta
	// games with duplicate names are merged
	games map[string]GameMetadata
	log   *logger.Logger

	// ids of saved games to find closed sessions
	sessions []string

	emuConf WithEmulatorInfo

	// to restrict parallel execution or throttling
	// for file watch mode
	mu                sync.Mutex
	isScanning        bool
	isScanningDelayed bool

	quit chan struct{}
	stop sync.Once
}

type GameLibrary interface {
	GetAll() []GameMetadata
	FindGameByName(name string) GameMetadata
	Sessions() []string
	Scan()
	Close()
}

type WithEmulatorInfo interface {
	GetSupportedExtensions() []string
	GetEmulator(rom string, path string) string
	SessionStoragePath() string
}

type GameMetadata struct {
	Base   string
	Name   string // the display name of the game
	Path   string // the game path relative to the library base path
	System string
	Type   string // the game file extension (e.g. nes, n64)
}

func (g GameMetadata) FullPath(base string) string {
	if base == "" {
		return filepath.Join(g.Base, g.Path)
	}
	return filepath.Join(base, g.Path)
}

func NewLib(conf config.Library, emu WithEmulatorInfo, log *logger.Logger) GameLibrary {
	hasSource := true
	dir, err := filepath.Abs(conf.BasePath)
	if err != nil {
		hasSource = false
		log.Error().Err(err).Str("dir", conf.BasePath).Msg("Lib has invalid source")
	}

	if len(conf.Supported) == 0 {
		conf.Supported = emu.GetSupportedExtensions()
	}

	library := &library{
		config: libConf{
			path:        dir,
			supported:   toMap(conf.Supported),
			ignored:     conf.Ignored,
			verbose:     conf.Verbose,
			watchMode:   conf.WatchMode,
			sessionPath: emu.SessionStoragePath(),
		},
		games:     map[string]GameMetadata{},
		hasSource: hasSource,
		log:       log,
		emuConf:   emu,
		quit:      make(chan struct{}),
	}

	if conf.WatchMode && hasSource {
		go library.watch()
	}

	return library
}

func (lib *library) Sessions() []string { return lib.sessions }

func (lib *library) GetAll() []GameMetadata {
	var res []GameMetadata
	for _, value := range lib.games {
		res = append(res, value)
	}
	return res
}

// FindGameByName returns some game info with its full filepath
func (lib *library) FindGameByName(name string) GameMetadata {
	var game GameMetadata
	if val, ok := lib.games[name]; ok {
		val.Base = lib.config.path
		return val
	}
	return game
}

func (lib *library) Scan() {
	if !lib.hasSource {
		lib.log.Info().Msg("Lib scan... skipped (no source)")
		return
	}

	// scan throttling
	lib.mu.Lock()
	if lib.isScanning {
		defer lib.mu.Unlock()
		lib.isScanningDelayed = true
		lib.log.Debug().Msg("Lib scan... delayed")
		return
	}
	lib.isScanning = true
	lib.mu.Unlock()

	lib.log.Debug().Msg("Lib scan... started")

	start := time.Now()
	var games []GameMetadata
	dir := lib.config.path
	err := filepath.WalkDir(dir, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if info == nil || info.IsDir() || !lib.isExtAllowed(path) {
			return nil
		}

		meta := metadata(path, dir)
		meta.System = lib.emuConf.GetEmulator(meta.Type, meta.Path)

		ignored := false
		for _, k := range lib.config.ignored {
			if meta.Name == k {
				ignored = true
				break
			}

			if len(k) > 0 && k[0] == '.' && strings.Contains(meta.Name, k) {
				ignored = true
				break
			}
		}

		if !ignored {
			games = append(games, meta)
		}

		return nil
	})

	if err != nil {
		lib.log.Error().Err(err).Str("dir", dir).Msgf("Lib scan... failed")
		return
	}

	if len(games) > 0 {
		lib.set(games)
	}

	var sessions []string
	if lib.config.sessionPath != "" {
		_ = filepath.WalkDir(lib.config.sessionPath, func(path string, info fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if info != nil && !info.IsDir() {
				sessions = append(sessions, info.Name())
			}
			return nil
		})
	}
	lib.sessions = sessions

	lib.lastScanDuration = time.Since(start)
	if lib.config.verbose {
		lib.dumpLibrary()
	}

	// run scan again if delayed
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.isScanning = false
	if lib.isScanningDelayed {
		lib.isScanningDelayed = false
		go lib.Scan()
	}

	lib.log.Info().Msg("Lib scan... completed")
}

// watch adds the ability to rescan the entire library
// during filesystem changes in a watched directory.
func (lib *library) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		lib.log.Error().Err(err).Msg("Lib watcher has failed")
		return
	}

	go func(repo *library) {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Create || event.Op == fsnotify.Remove {
					repo.Scan()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}(lib)

	if err = watcher.Add(lib.config.path); err != nil {
		lib.log.Error().Err(err).Msg("Lib watch error")
	}
	<-lib.quit
	_ = watcher.Close()
	lib.log.Info().Msg("Lib watch has ended")
}

// Close stops the filesystem watcher if it runs.
func (lib *library) Close() {
	lib.stop.Do(func() { close(lib.quit) })
}

func (lib *library) set(games []GameMetadata) {
	res := make(map[string]GameMetadata)
	for _, value := range games {
		res[value.Name] = value
	}
	lib.games = res
}

func (lib *library) isExtAllowed(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := lib.config.supported[ext]
	return ok
}

func (lib *library) dumpLibrary() {
	lib.log.Debug().Msgf("Lib of %v games, scanned in %v", len(lib.games), lib.lastScanDuration)
	for _, game := range lib.games {
		lib.log.Debug().Msgf(">>> %v (%v) [%v]", game.Name, game.System, game.Path)
	}
}

// metadata returns game info from a path
func metadata(path string, basePath string) GameMetadata {
	name := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	relPath, _ := filepath.Rel(basePath, path)

	return GameMetadata{
		Name: strings.TrimSuffix(name, filepath.Ext(name)),
		Type: ext,
		Path: relPath,
	}
}

func toMap(list []string) map[string]struct{} {
	res := make(map[string]struct{}, len(list))
	for _, v := range list {
		res[strings.ToLower(v)] = struct{}{}
	}
	return res
}
