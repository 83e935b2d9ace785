package cmd

import (
	"context"
	"errors"
	"fmt"

	"eventhub/internal/services"

	"github.com/spf13/cobra"
)

// certificatesCommand adds `certificates generate <eventId>` for running a batch from
// the server host without going through the admin API.
func certificatesCommand(get func() *container) *cobra.Command {
	root := &cobra.Command{
		Use:   "certificates",
		Short: "Manage event certificates",
	}

	root.AddCommand(&cobra.Command{
		Use:          "generate <eventId>",
		Short:        "Generate certificates for every verified participant of an event",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			if c == nil {
				return errors.New("app is not bootstrapped")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			res, err := c.certificates.GenerateAll(ctx, services.Actor{IsAdmin: true}, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "eligible: %d, succeeded: %d, failed: %d\n", res.Eligible, res.Succeeded, res.Failed)
			for _, f := range res.Failures {
				fmt.Fprintf(out, "  %s: %s\n", f.ParticipantID, f.Error)
			}
			return nil
		},
	})

	return root
}
