package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCmd creates the migrate command.
// The env parameter provides injectable dependencies for testing.
func MigrateCmd(env *Env) *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply every pending database migration.

Safe to run repeatedly: an up-to-date database is left unchanged.`,
		Example: `  narrate migrate
  DATABASE_URL=postgres://localhost/narrate narrate migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(env, flags)
		},
	}
	flags.bind(cmd)

	return cmd
}

func runMigrate(env *Env, flags commonFlags) error {
	cfg, err := loadConfig(env, flags.configPath)
	if err != nil {
		return err
	}
	version, err := env.Migrator.Migrate(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	fmt.Fprintf(env.Stderr, "Database schema at version %d\n", version)
	return nil
}
