package main

import (
	"context"
	"sync"

	"github.com/zircote/subcog/internal/config"
	"github.com/zircote/subcog/internal/logging"
	"github.com/zircote/subcog/internal/services"
	"github.com/zircote/subcog/internal/telemetry"
)

var (
	svcOnce       sync.Once
	svcErr        error
	svcInst       *services.Services
	svcCfg        *config.Config
	telemetryInst *telemetry.Telemetry
)

// svc lazily builds the process-wide Services container from the resolved
// --config flag, sharing one instance across a single CLI invocation's
// subcommand (cobra runs exactly one RunE per process). Errors from Load or
// New are cached and surfaced to every caller, matching cmd/ctxd's
// initCheckpointService pattern of one bootstrap helper per process.
func svc() *services.Services {
	svcOnce.Do(func() {
		cfg, err := config.Load(configPath)
		if err != nil {
			svcErr = err
			return
		}
		svcCfg = cfg

		telemetryInst, err = telemetry.New(context.Background(), toTelemetryConfig(cfg.Observability))
		if err != nil {
			svcErr = err
			return
		}

		logger, err := buildLogger(cfg)
		if err != nil {
			svcErr = err
			return
		}

		svcInst, svcErr = services.New(cfg, logger.Underlying())
	})
	return svcInst
}

func bootstrapErr() error {
	svc()
	return svcErr
}

// toTelemetryConfig maps the loaded config.ObservabilityConfig onto
// telemetry.Config, keeping telemetry's own sampling/metrics/shutdown
// defaults (spec.md's Observability line item names tracing spans,
// counters/histograms, and request-id propagation; the CLI only exposes
// the on/off, endpoint, and service-identity knobs config.toml documents).
func toTelemetryConfig(c config.ObservabilityConfig) *telemetry.Config {
	cfg := telemetry.NewDefaultConfig()
	cfg.Enabled = c.EnableTelemetry
	if c.ServiceName != "" {
		cfg.ServiceName = c.ServiceName
	}
	cfg.ServiceVersion = version
	if c.OTLPEndpoint != "" {
		cfg.Endpoint = c.OTLPEndpoint
	}
	cfg.Insecure = c.OTLPInsecure
	return cfg
}

// shutdownTelemetry flushes and closes the telemetry providers constructed
// by svc(), if any were built this process.
func shutdownTelemetry() {
	if telemetryInst != nil {
		_ = telemetryInst.Shutdown(context.Background())
	}
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	if lvl, err := logging.LevelFromString(cfg.Logging.Level); err == nil {
		logCfg.Level = lvl
	}
	return logging.NewLogger(logCfg, nil)
}
