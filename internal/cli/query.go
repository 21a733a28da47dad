package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/eventpilot/internal/calendar"
)

func (a *App) conflictsCmd() *cobra.Command {
	var userID, date string

	cmd := &cobra.Command{
		Use:     "conflicts",
		Short:   "List a user's overlapping events on a date",
		Example: `  eventpilot conflicts --user 6f1c... --date 2026-02-10`,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := a.service(nil)
			if err != nil {
				return err
			}

			events, err := svc.ConflictingEvents(context.Background(), userID, date)
			if err != nil {
				return fmt.Errorf("finding conflicts: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(a.out, "No conflicts.")
				return nil
			}

			colorHeader.Fprintf(a.out, "=== %s: %d conflicting events ===\n", date, len(events))
			for _, e := range events {
				colorConflict.Fprintf(a.out, "  ✗ %s-%s ", e.StartTime.UTC().Format(clock), e.EndTime.UTC().Format(clock))
				fmt.Fprintf(a.out, "%s ", e.Title)
				colorMuted.Fprintf(a.out, "(%s)\n", e.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("date")

	return cmd
}

func (a *App) freeSlotsCmd() *cobra.Command {
	var users, date, duration string

	cmd := &cobra.Command{
		Use:   "free-slots",
		Short: "Find windows when every listed user is free",
		Example: `  eventpilot free-slots --users id1,id2 --date 2026-02-10 --duration 2h
  eventpilot free-slots --users id1 --date 2026-02-10 --duration 1`,
		RunE: func(_ *cobra.Command, _ []string) error {
			minDuration, err := calendar.ParseDuration(duration)
			if err != nil {
				return err
			}
			svc, err := a.service(nil)
			if err != nil {
				return err
			}

			slots, err := svc.FreeSlots(context.Background(), strings.Split(users, ","), date, minDuration)
			if err != nil {
				return fmt.Errorf("finding free slots: %w", err)
			}
			if len(slots) == 0 {
				fmt.Fprintf(a.out, "No free window of %s on %s.\n", minDuration, date)
				return nil
			}

			colorHeader.Fprintf(a.out, "=== %s: free for at least %s ===\n", date, minDuration)
			for _, s := range slots {
				colorFree.Fprintf(a.out, "  ○ %s-%s ", s.Start.Format(clock), s.End.Format(clock))
				colorMuted.Fprintf(a.out, "(%s)\n", s.Duration())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&users, "users", "", "Comma-separated user IDs")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&duration, "duration", "1h", "Minimum slot length (Go duration or whole hours)")
	cmd.MarkFlagRequired("users")
	cmd.MarkFlagRequired("date")

	return cmd
}

func (a *App) exportCmd() *cobra.Command {
	var userID, date string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's day as iCalendar to stdout",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := a.service(nil)
			if err != nil {
				return err
			}
			if err := svc.ExportDay(context.Background(), a.out, userID, date); err != nil {
				return fmt.Errorf("exporting calendar: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("date")

	return cmd
}
