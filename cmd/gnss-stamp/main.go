package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"gnss-stamp/internal/config"
	"gnss-stamp/internal/web"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to YAML config. Defaults are used when empty.")
	mode := pflag.StringP("mode", "m", "", "Override mode: single or realtime.")
	input := pflag.StringP("input", "i", "", "Override input.file (NMEA capture).")
	outDir := pflag.StringP("output-dir", "d", "", "Override output.dir.")
	debug := pflag.Bool("debug", false, "Enable debug logging.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - encode NMEA RMC/GGA pairs into STAMP packets.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("config load failed", "path", *configPath, "err", err)
		}
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *input != "" {
		cfg.Input.File = *input
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	logs := web.NewLogBuffer(500)
	logger, err := newLogger(io.MultiWriter(os.Stderr, logs), cfg.Log.Level)
	if err != nil {
		log.Fatal("logger setup failed", "err", err)
	}
	log.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, logs)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	logger.Info("gnss-stamp starting", "mode", cfg.Mode, "device_id", cfg.Session.DeviceID, "link_id", *cfg.Session.LinkID)

	if err := rt.run(ctx); err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
	rt.printStats(os.Stdout)
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "gnss-stamp",
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	}), nil
}
