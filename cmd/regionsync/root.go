package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/region-sentinel/internal/bootstrap"
	"github.com/couchcryptid/region-sentinel/internal/config"
	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/spf13/cobra"
)

var errSyncFailed = errors.New("sync failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "regionsync",
		Short: "sync offline points of interest for a region",
		Long: `
regionsync fetches police, hospital, fire station, hotel, government and
traffic signal locations around a center point and stores them for offline
use. Storage and source settings come from the same environment variables
as the sentinel service.
`,
		SilenceUsage: true,
	}
	root.AddCommand(newSyncCmd(), newStatusCmd(), newBBoxCmd())
	return root
}

type centerFlags struct {
	lat, lng, radius float64
}

func (f *centerFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "center latitude in degrees")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "center longitude in degrees")
	cmd.Flags().Float64Var(&f.radius, "radius", 0, "radius in miles")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	_ = cmd.MarkFlagRequired("radius")
}

func (f *centerFlags) validate() error {
	if f.lat < -90 || f.lat > 90 || f.lng < -180 || f.lng > 180 {
		return fmt.Errorf("center %v,%v out of range", f.lat, f.lng)
	}
	if f.radius <= 0 {
		return errors.New("--radius must be positive")
	}
	return nil
}

func (f *centerFlags) center() geo.Coordinate {
	return geo.Coordinate{Lat: f.lat, Lng: f.lng}
}

// env bundles what every store-backed subcommand needs.
type env struct {
	logger     *slog.Logger
	components *bootstrap.Components
}

// loadEnv reads the environment configuration, applies override, and wires
// the engine. Logs go to logOut so stdout stays machine-readable.
func loadEnv(ctx context.Context, logOut io.Writer, override func(*config.Config)) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
	}
	logger := observability.NewLoggerTo(logOut, cfg.LogLevel, "text")
	components, err := bootstrap.Build(ctx, cfg, nil, logger, observability.NewUnregisteredMetrics())
	if err != nil {
		return nil, err
	}
	return &env{logger: logger, components: components}, nil
}

func (e *env) close() { e.components.Close(e.logger) }
