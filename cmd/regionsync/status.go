package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/region-sentinel/internal/geo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var regionID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "print the stored version record of a region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd.Context(), cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.components.Engine.GetRegionStatus(cmd.Context(), regionID)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("region %q has never been synced", regionID)
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&regionID, "region", "", "region id")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newBBoxCmd() *cobra.Command {
	var center centerFlags
	cmd := &cobra.Command{
		Use:   "bbox",
		Short: "print the south,west,north,east box covering a radius",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := center.validate(); err != nil {
				return err
			}
			box := geo.ComputeBoundingBox(center.center(), center.radius)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), geo.FormatForQuery(box))
			return err
		},
	}
	center.register(cmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
