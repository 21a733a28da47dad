package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/eventpilot/internal/seed"
)

func (a *App) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load users and events from a YAML file",
		Long: `Load users and events from a YAML file.

Users whose email address already exists are left alone. Events name their
organizer and participants by email address; set meeting: true to book the
event on every participant's calendar too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(nil)
			if err != nil {
				return err
			}

			res, err := seed.Apply(context.Background(), svc, f)
			if err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
			fmt.Fprintf(a.out, "Created %d users (%d already existed) and %d events.\n",
				res.UsersCreated, res.UsersExisting, res.Events)
			return nil
		},
	}
}
