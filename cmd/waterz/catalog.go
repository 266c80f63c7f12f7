package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"waterz/internal/backend"
	"waterz/internal/export"
	"waterz/internal/localtime"
	"waterz/internal/slots"
)

func quoteCmd(opts *cliOptions) *cobra.Command {
	var clock string

	cmd := &cobra.Command{
		Use:   "quote <yacht-id>",
		Short: "Price every package of a yacht for a start time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			q, err := e.catalog.Quote(cmd.Context(), e.auth, args[0], clock)
			if err != nil {
				return err
			}

			rate := "non-peak"
			if q.IsPeak {
				rate = "peak"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s at %s (%s)\n", q.Location, q.Clock, rate)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tLABEL\tPRICE")
			for _, p := range q.Packages {
				fmt.Fprintf(w, "%s\t%s\t%.2f\n", p.Identifier, p.Label, p.Price)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&clock, "time", "", "start time as H:MM AM/PM (default: now at the yacht)")
	return cmd
}

func slotsCmd(opts *cliOptions) *cobra.Command {
	var (
		date     string
		duration float64
	)

	cmd := &cobra.Command{
		Use:   "slots <yacht-id>",
		Short: "List available start windows for a yacht on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
			}
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}

			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			yacht, err := e.catalog.GetYacht(cmd.Context(), e.auth, args[0])
			if err != nil {
				return err
			}
			windows, err := e.client.BookingSlots(cmd.Context(), e.auth, backend.SlotRequest{
				YachtID:       yacht.ID,
				Date:          slots.FormatRequestDate(day),
				TotalDuration: duration,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(windows) == 0 {
				fmt.Fprintln(out, "No slots available")
				return nil
			}
			for i, s := range windows {
				fmt.Fprintf(out, "%d. %s - %s %s\n", i,
					localtime.FormatTime(s.StartTime, yacht.Location),
					localtime.FormatTime(s.EndTime, yacht.Location),
					localtime.ZoneLabel(yacht.Location))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "booking date as YYYY-MM-DD")
	cmd.Flags().Float64Var(&duration, "duration", 0, "total package duration in hours")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}

func ridesCmd(opts *cliOptions) *cobra.Command {
	ridesCmd := &cobra.Command{
		Use:   "rides",
		Short: "Customer ride history",
	}

	var dir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write current and previous rides to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if e.auth.IsAnonymous() {
				return fmt.Errorf("rides export needs a customer token (--token or WATERZ_TOKEN)")
			}

			current, err := e.catalog.CurrentRides(cmd.Context(), e.auth)
			if err != nil {
				return err
			}
			previous, err := e.catalog.PreviousRides(cmd.Context(), e.auth)
			if err != nil {
				return err
			}

			path, err := export.SaveRides(dir, current, previous, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d current and %d previous rides to %s\n", len(current), len(previous), path)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&dir, "dir", "exports", "output directory")

	ridesCmd.AddCommand(exportCmd)
	return ridesCmd
}
