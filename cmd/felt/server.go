package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/feltnet/felt/internal/server"
)

// ServerCmd runs the server with the configured tables.
type ServerCmd struct {
	Config   string `short:"c" default:"felt.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Bind address (overrides config)"`
	Port     int    `short:"p" help:"Bind port (overrides config)"`
	LogLevel string `short:"l" help:"Log level: debug, info, warn, error (overrides config)"`
	Seed     *int64 `help:"Deterministic RNG seed (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("using random seed", "seed", seed)
	} else {
		logger.Info("using configured seed", "seed", seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, logger, quartz.NewReal(), seed)
	return srv.Run(ctx)
}

// ConfigCmd prints the commented default HCL configuration to stdout.
type ConfigCmd struct{}

func (ConfigCmd) Run() error {
	_, err := os.Stdout.WriteString(server.ExampleConfig)
	return err
}
