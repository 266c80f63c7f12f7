package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"waterz/internal/database"
	"waterz/internal/localtime"
	"waterz/internal/logging"
	"waterz/internal/models"
	"waterz/internal/service"
	"waterz/internal/worker"
)

func checkoutCmd(opts *cliOptions) *cobra.Command {
	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Inspect and repair the checkout ledger",
	}
	checkoutCmd.AddCommand(listSessionsCmd(opts), reconcileCmd(opts))
	return checkoutCmd
}

func openCheckout(opts *cliOptions, cmd *cobra.Command) (*env, *database.DB, *service.CheckoutService, error) {
	e, err := opts.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.NewDB(e.cfg.Database.Path, logging.Component(e.logger, "ledger"))
	if err != nil {
		return nil, nil, nil, err
	}
	svc := service.NewCheckoutService(db, e.client, nil, e.cfg.Payment, e.cfg.Coupons, logging.Component(e.logger, "checkout"))
	return e, db, svc, nil
}

func listSessionsCmd(opts *cliOptions) *cobra.Command {
	var (
		state string
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkout sessions in a state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, svc, err := openCheckout(opts, cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions, err := svc.Pending(cmd.Context(), state, time.Now().Add(-since))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintf(out, "No %s sessions in the last %s\n", state, since)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tBOOKING\tORDER\tSTART\tTOTAL")
			for _, s := range sessions {
				f := localtime.Format(s.StartTime, s.Location)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s %s\t%.2f\n",
					s.ID, s.BookingID, s.OrderID, f.Date, f.Time, f.Zone, s.FinalTotal())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&state, "state", models.CheckoutVerificationPending, "checkout state")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look back window")
	return cmd
}

func reconcileCmd(opts *cliOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail sessions stuck in payment verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, db, svc, err := openCheckout(opts, cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if timeout <= 0 {
				timeout = e.cfg.Reconciler.PendingTimeout
			}
			r := worker.NewReconciler(svc, e.cfg.Reconciler.Interval, timeout, logging.Component(e.logger, "reconciler"))
			n, err := r.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d session(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "older-than", 0, "verification age to give up on (default: reconciler.pending_timeout)")
	return cmd
}
