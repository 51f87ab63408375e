package main

import (
	"context"
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/emulator"
	"github.com/openretro/retroshell/pkg/emulator/emutest"
	"github.com/openretro/retroshell/pkg/logger"
	"github.com/openretro/retroshell/pkg/monitoring"
	"github.com/openretro/retroshell/pkg/os"
	"github.com/openretro/retroshell/pkg/session"
)

var Version = "?"

func main() {
	conf := config.NewShellConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Shell.Debug, "rs", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	// the embedder normally registers real cores; the stub keeps the
	// shell bootable without one
	if conf.Emulator.Core == "stub" {
		emulator.Register("stub", func(*logger.Logger) (emulator.Core, error) { return emutest.New(), nil })
	}

	var mon *monitoring.Monitoring
	if conf.Shell.Monitoring.IsEnabled() {
		m, err := monitoring.New(conf.Shell.Monitoring, conf.Shell.Tag, log)
		if err != nil {
			log.Error().Err(err).Msg("couldn't init monitoring")
		} else {
			mon = m
			mon.Run()
		}
	}

	s, err := session.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("session init failed")
	}
	if err := s.Create(); err != nil {
		log.Fatal().Err(err).Msg("session create failed")
	}
	if err := s.Start(); err != nil {
		log.Fatal().Err(err).Msg("session start failed")
	}
	if err := s.Resume(); err != nil {
		log.Fatal().Err(err).Msg("session resume failed")
	}

	if sec := conf.Session.FirstFrameSec; sec > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(sec)*time.Second)
		if err := s.WaitFirstFrame(ctx); err != nil {
			log.Error().Err(err).Msg("the core didn't render in time")
		}
		cancel()
	}
	log.Info().Msgf("session %v is running", s.Id())

	<-os.ExpectTermination()

	for _, fn := range []func() error{s.Pause, s.Stop, s.Destroy} {
		if err := fn(); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}
	if mon != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := mon.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("monitoring shutdown error")
		}
		cancel()
	}
}
