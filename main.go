package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"visors/internal/config"
	"visors/internal/logging"
	"visors/internal/metrics"
	"visors/internal/ui"
	"visors/processing/detector"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML config file")
	flag.Parse()

	cfg, cfgErr := config.LoadConfigFile(*configPath)

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Log.Level)
	logCfg.Dir = cfg.Log.Dir
	logCfg.Attrs = []slog.Attr{slog.String("app", "visors")}
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if cfgErr != nil {
		logger.Warn("using default config", "path", *configPath, "error", cfgErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("visors")
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	ui.ApplyDisplayBackend(cfg.Display.Backend, logger)

	app := ui.CreateApp(cfg, ui.DetectOptions{
		ConfigPath: *configPath,
		Slot:       &detector.Slot{},
		Loader:     detector.NewLoader(cfg.DetectorSettings(), logger),
		Metrics:    m,
		Logger:     logger,
	})

	app.Run()
}
