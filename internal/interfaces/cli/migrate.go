package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// migrator is the subset of postgres.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationStatus, error)
	Close() error
}

// connMigrator also closes the pool it was opened on.
type connMigrator struct {
	*postgres.Migrator
	conn *postgres.Connection
}

func (c connMigrator) Close() error {
	err := c.Migrator.Close()
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// openMigrator is replaced in tests.
var openMigrator = func(ctx context.Context, cliCtx *CLIContext) (migrator, error) {
	pg := cliCtx.Config.Database.Postgres
	conn, err := postgres.NewConnection(ctx, postgres.PoolConfig{
		DSN:          pg.DSN(),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}, cliCtx.Logger)
	if err != nil {
		return nil, err
	}
	m, err := postgres.NewMigrator(conn, pg.MigrationPath, cliCtx.Logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return connMigrator{Migrator: m, conn: conn}, nil
}

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database schema migrations",
	}

	steps := 1
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return errors.New(errors.ErrCodeValidation, "--steps must be at least 1")
			}
			return withMigrator(cmd, func(m migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m migrator) error { return printStatus(cmd, m) })
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	m, err := openMigrator(ctx, cliCtx)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	cliCtx, _ := GetCLIContext(cmd)
	if cliCtx != nil && cliCtx.OutputFormat == "json" {
		return printJSON(cmd, st)
	}
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", st.Version, dirty)
	return nil
}
