package config

import (
	"fmt"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/openretro/retroshell/pkg/os"
)

type ShellConfig struct {
	Assets   Assets
	Emulator Emulator
	Library  Library
	Remote   Remote
	Session  Session
	Shell    Shell
	Storage  Storage
	Version  Version
}

type Version int

type Shell struct {
	Debug      bool
	Monitoring Monitoring
	Tag        string
}

// Session mirrors the lifecycle knobs of the container.
type Session struct {
	// write SRAM and a state blob on every pause
	SaveOnPause bool
	// write a state blob when the session is closed
	SaveOnClose bool
	// how long to wait for the first rendered frame, 0 disables the wait
	FirstFrameSec int
}

// Remote is the remote pad endpoint, loopback unless overridden.
type Remote struct {
	Enabled bool
	Address string
}

// Storage is an optional cloud backup for the main save blob.
type Storage struct {
	Provider          string
	S3Endpoint        string
	S3BucketName      string
	S3AccessKeyId     string
	S3SecretAccessKey string
}

type Library struct {
	// some directory which is going to be
	// the root folder for the library
	BasePath string
	// a list of supported file extensions
	Supported []string
	// a list of ignored words in the files
	Ignored []string
	// print some additional info
	Verbose bool
	// enable directory changes watch
	WatchMode bool
}

func (l Library) GetSupportedExtensions() []string { return l.Supported }

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metric_enabled"`
	ProfilingEnabled bool `fig:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// Assets describes bundled files staged into private storage before boot.
type Assets struct {
	// serializes bundle fetches between shell processes
	ExtLock string
	Bundles []Bundle
}

type Bundle struct {
	// rom | sram | state
	Kind string
	// a local path or an http(s) address
	Source string
	// a file name inside the private storage, source base name when empty
	Target string
	// replace the staged copy even when it exists
	Overwrite bool
}

// allows custom config path
var shellConfigPath string

func NewShellConfig() (conf ShellConfig) {
	err := LoadConfig(&conf, shellConfigPath)
	if err != nil {
		panic(err)
	}
	conf.expandSpecialTags()
	return
}

// ParseFlags updates config values from passed runtime flags.
// Define own flags with default value set to the current config param.
// Don't forget to call flag.Parse().
func (c *ShellConfig) ParseFlags() {
	flag.StringVar(&c.Emulator.Core, "core", c.Emulator.Core, "Emulator core name")
	flag.StringVar(&c.Emulator.Rom, "rom", c.Emulator.Rom, "ROM path or library game name")
	flag.StringVar(&c.Emulator.Storage, "storage", c.Emulator.Storage, "Save state storage directory")
	flag.IntVar(&c.Shell.Monitoring.Port, "monitoring.port", c.Shell.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&c.Remote.Address, "remote", c.Remote.Address, "Remote pad server address")
	flag.StringVar(&shellConfigPath, "conf", shellConfigPath, "Set custom configuration file path")
	flag.Parse()
}

// expandSpecialTags replaces all the special tags in the config.
func (c *ShellConfig) expandSpecialTags() {
	tag := "{user}"
	for _, dir := range []*string{&c.Emulator.Storage, &c.Emulator.LocalPath, &c.Library.BasePath, &c.Assets.ExtLock} {
		if *dir == "" || !strings.Contains(*dir, tag) {
			continue
		}
		userHomeDir, err := os.GetUserHome()
		if err != nil {
			panic(fmt.Sprintf("couldn't read user home directory, %v", err))
		}
		*dir = strings.Replace(*dir, tag, userHomeDir, -1)
		*dir = filepath.FromSlash(*dir)
	}
}
