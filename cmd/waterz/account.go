package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func whoamiCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the customer profile behind --token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			user, err := e.account.Profile(cmd.Context(), e.auth)
			if err != nil {
				return err
			}

			verified := "unverified"
			if user.IsVerified {
				verified = "verified"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s> %s\n", user.Name, user.Email, user.Phone)
			fmt.Fprintf(out, "role: %s, %s\n", user.Role, verified)
			return nil
		},
	}
}
