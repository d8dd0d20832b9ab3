package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossedpaths/crossedpaths/server/internal/model"
	"github.com/crossedpaths/crossedpaths/server/internal/place"
	"github.com/crossedpaths/crossedpaths/server/internal/store/postgres"
)

// newLabelCmd prints the redacted label and place key of an address without touching any backend.
func newLabelCmd() *cobra.Command {
	var addr model.Address
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Format an address into its display label and place key",
		RunE: func(cmd *cobra.Command, args []string) error {
			label, ok := place.Label(&addr)
			if !ok {
				return fmt.Errorf("address has no usable name, street or city")
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", label, place.Key(label, &addr, nil))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr.Name, "name", "", "Venue name")
	f.StringVar(&addr.StreetNumber, "number", "", "Street number")
	f.StringVar(&addr.Street, "street", "", "Street")
	f.StringVar(&addr.City, "city", "", "City")
	f.StringVar(&addr.Region, "region", "", "Region")
	f.StringVar(&addr.PostalCode, "postal-code", "", "Postal code")
	f.StringVar(&addr.Country, "country", "", "Country")
	return cmd
}

// newMigrateCmd deploys the tables and routines on a Postgres database.
func newMigrateCmd() *cobra.Command {
	var dsn string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the crossed-paths tables and routines on Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = envOr("CROSSED_PATHS_POSTGRES_DSN", "")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or CROSSED_PATHS_POSTGRES_DSN required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			db, err := postgres.Open(dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return err
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (defaults to CROSSED_PATHS_POSTGRES_DSN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Migration timeout")
	return cmd
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
