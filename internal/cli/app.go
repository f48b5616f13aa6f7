package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harun/turnkit/internal/config"
	"github.com/harun/turnkit/internal/logger"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is the loaded config and process logger shared by commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	logger zerolog.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	lc := cfg.Logging.Logger()
	lc.Out = cmd.ErrOrStderr()
	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Tracing.Enabled {
		err := tracing.Setup(tracing.Config{
			ServiceName: "turnkit",
			SampleRatio: cfg.Tracing.SampleRatio,
			Exporter:    tracing.NewLogExporter(log.Logger),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up tracing")
		}
	}

	return &app{cfg: cfg, log: log, logger: log.Logger}, nil
}

func (r *app) Close() {
	if r.cfg.Tracing.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}
	_ = r.log.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
