package httpx

import (
	"time"

	"github.com/openretro/retroshell/pkg/logger"
)

type (
	Options struct {
		PortRoll     bool
		IdleTimeout  time.Duration
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		Logger       *logger.Logger
	}
	Option func(*Options)
)

func defaultOptions() *Options {
	return &Options{
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  500 * time.Second,
		WriteTimeout: 500 * time.Second,
	}
}

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}

func WithPortRoll(roll bool) Option        { return func(opts *Options) { opts.PortRoll = roll } }
func WithLogger(log *logger.Logger) Option { return func(opts *Options) { opts.Logger = log } }
