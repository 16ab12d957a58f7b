package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/region-sentinel/internal/config"
	"github.com/couchcryptid/region-sentinel/internal/regionsync"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var (
		regionID string
		prune    bool
		center   centerFlags
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "fetch and store every tracked feature around a center point",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := center.validate(); err != nil {
				return err
			}
			e, err := loadEnv(cmd.Context(), cmd.ErrOrStderr(), func(cfg *config.Config) {
				if prune {
					cfg.PruneStale = true
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			engine := e.components.Engine
			onProgress := progressReporter(cmd.ErrOrStderr())
			if !engine.SyncRegion(cmd.Context(), regionID, center.center(), center.radius, onProgress) {
				return errSyncFailed
			}
			v, err := engine.GetRegionStatus(cmd.Context(), regionID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&regionID, "region", "", "region id")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete stored features missing from this pass")
	_ = cmd.MarkFlagRequired("region")
	center.register(cmd)
	return cmd
}

// progressReporter draws a bar on a terminal and falls back to plain lines
// when the output is redirected.
func progressReporter(w io.Writer) regionsync.ProgressFunc {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		bar := progressbar.NewOptions(regionsync.PercentDone,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Starting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		return func(pct int, status string) {
			bar.Describe(status)
			_ = bar.Set(pct)
		}
	}
	return func(pct int, status string) {
		fmt.Fprintf(w, "[%3d%%] %s\n", pct, status)
	}
}
