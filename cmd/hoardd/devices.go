package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"hoardd/internal/blockdev"
	"hoardd/internal/classify"
	"hoardd/internal/media"
	"hoardd/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Run one inventory pass and show the roles hoardd would assign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()
			ctx := context.Background()

			devs := blockdev.NewLsblk(logger).List(ctx)
			roles := classify.Classify(devs, model.RoleAssignment{}, classify.Thresholds{
				FloppyCeiling:  int64(cfg.Roles.FloppyCeiling),
				DestinationMin: int64(cfg.Roles.DestinationMin),
			})

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH\tSIZE\tRM\tTRAN\tSERIAL\tROLE")
			for _, d := range devs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					d.Name, d.Path, humanize.Bytes(uint64(d.Size)), d.Removable, d.Transport, d.Serial, roleOf(d, roles))
			}
			tw.Flush()

			m := media.NewProber(logger).Detect(ctx, roles.Source)
			if m.ID != "" {
				fmt.Printf("\nsource media: %s (%s)\n", m.State, m.ID)
			} else {
				fmt.Printf("\nsource media: %s\n", m.State)
			}
			return nil
		},
	}
}

func roleOf(d model.BlockDevice, roles model.RoleAssignment) string {
	switch {
	case roles.Source != nil && roles.Source.Name == d.Name:
		return "source"
	case roles.Destination != nil && roles.Destination.Name == d.Name:
		return "destination"
	}
	return "-"
}
