package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
		Long:  "Apply schema migrations, check connectivity and prune expired reset codes.",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBPingCmd())
	cmd.AddCommand(newDBPruneCmd())

	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store applies pending migrations.
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", a.store.Dialect())
			return nil
		},
	}
}

func newDBPingCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the database is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmdCtx(), timeout)
			defer cancel()

			start := time.Now()
			if err := a.store.Ping(ctx); err != nil {
				return fmt.Errorf("ping %s: %w", a.store.Dialect(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s responded in %s\n", a.store.Dialect(), time.Since(start).Round(time.Millisecond))

			if a.limiter != nil {
				if err := a.limiter.Ping(ctx); err != nil {
					return fmt.Errorf("ping redis: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK: redis reachable")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up after this long")

	return cmd
}

func newDBPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired reset codes and reset grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			otps, grants, err := a.auth.PruneExpired(cmdCtx())
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired codes and %d expired reset grants\n", otps, grants)
			return nil
		},
	}
}
