package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/camctl/internal/bus"
	"github.com/danmuck/camctl/internal/camera"
	"github.com/danmuck/camctl/internal/config"
	"github.com/danmuck/camctl/internal/drivers"
	"github.com/danmuck/camctl/internal/logging"
	"github.com/danmuck/camctl/internal/observability"
	"github.com/danmuck/camctl/internal/server"
)

func main() {
	configPath := flag.String("config", "camctl.toml", "rig config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "camctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logging.ConfigureRuntime()

	cfg, err := config.LoadRigConfig(configPath)
	if err != nil {
		return err
	}
	observability.InitLogger(cfg.Name)

	reg := drivers.NewRegistry()
	if err := reg.Register("sim", drivers.SimulatedFactory); err != nil {
		return err
	}

	msgReg := bus.NewRegistry()
	if err := camera.RegisterMessages(msgReg); err != nil {
		return err
	}
	b := bus.New(msgReg)
	defer b.Close()

	names := make([]string, 0, len(cfg.Cameras))
	controllers := make([]*camera.Controller, 0, len(cfg.Cameras))
	defer func() {
		for _, ctrl := range controllers {
			if err := ctrl.CleanUp(); err != nil {
				log.Warn().Str("camera", ctrl.Name()).Err(err).Msg("camera clean up failed")
			}
		}
	}()

	for _, cam := range cfg.Cameras {
		driver, err := reg.Build(cam.Driver, drivers.Config{
			Name:     cam.Name,
			Master:   cam.Master,
			TimeBase: cam.TimeBase,
			FPS:      cam.FPS,
			Width:    cam.Width,
			Height:   cam.Height,
		})
		if err != nil {
			return fmt.Errorf("camera %s: %w", cam.Name, err)
		}
		ctrl := camera.NewController(cam.Name, driver, b)
		if err := b.Attach(ctrl); err != nil {
			return err
		}
		controllers = append(controllers, ctrl)
		names = append(names, cam.Name)
		log.Info().
			Str("camera", cam.Name).
			Str("driver", cam.Driver).
			Bool("master", cam.Master).
			Msg("camera attached")
	}

	// Boot broadcast; each controller announces its initial parameters.
	d, err := b.Post(bus.NewMessage(cfg.Name, camera.TypeConfigure, nil))
	if err != nil {
		return err
	}
	if err := d.Wait(); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Name:        cfg.Name,
		Addr:        cfg.Addr,
		CorsOrigins: cfg.CorsOrigins,
		Cameras:     names,
	}, b)
	log.Info().
		Str("rig", cfg.Name).
		Str("addr", cfg.Addr).
		Int("cameras", len(names)).
		Msg("rig serving")
	return srv.Serve()
}
