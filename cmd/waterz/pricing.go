package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"waterz/internal/localtime"
	"waterz/internal/pricing"
)

func durationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <package-identifier>",
		Short: "Show sailing and anchorage hours of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := pricing.ParseDuration(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sailing:   %g h\n", d.Sailing)
			fmt.Fprintf(out, "anchorage: %g h\n", d.Anchorage)
			fmt.Fprintf(out, "total:     %g h\n", d.Total)
			return nil
		},
	}
}

func peakCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "peak <h:mm AM|PM>",
		Short: "Classify a start time as peak or non-peak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := pricing.ParseWindow(start, end)
			if err != nil {
				return err
			}
			isPeak, err := pricing.NewClassifier(window).IsPeak(args[0])
			if err != nil {
				return err
			}
			label := "non-peak"
			if isPeak {
				label = "peak"
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "non-peak-start", "08:00", "start of the non-peak window (HH:MM)")
	cmd.Flags().StringVar(&end, "non-peak-end", "17:00", "end of the non-peak window (HH:MM)")
	return cmd
}

func formatTimeCmd() *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "format-time <RFC3339 instant>",
		Short: "Render an instant as the yacht location's local date and time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instant, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid instant %q: %w", args[0], err)
			}
			f := localtime.Format(instant, location)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", f.Date, f.Time, f.Zone)
			return nil
		},
	}
	cmd.Flags().StringVar(&location, "location", "Goa", "yacht location (Dubai uses GST, everything else IST)")
	return cmd
}
