package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmeadows001/turn-qa-sub000/internal/app"
	"github.com/dmeadows001/turn-qa-sub000/internal/config"
)

func newPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete stale OTP challenges and expired rate-limit rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			svc, err := newServices(application, newRepos(application))
			if err != nil {
				return err
			}
			res, err := svc.purge.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d challenges, %d rate-limit rows\n", res.Challenges, res.RateLimits)
			return nil
		},
	}
}
