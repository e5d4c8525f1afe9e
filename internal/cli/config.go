package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alnah/go-narrate/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage configuration settings.

Configuration is stored in $XDG_CONFIG_HOME/go-narrate/config.yaml
(~/.config/go-narrate/config.yaml by default). Every key is optional.

Environment overrides:
  NARRATE_LISTEN_ADDR, DATABASE_URL, NATS_URL, NARRATE_BUCKET, NARRATE_PUBLIC_URL

Secrets are read from the environment only:
  OPENAI_API_KEY, ELEVENLABS_API_KEY, INWORLD_API_KEY`,
		Example: `  narrate config init
  narrate config show`,
	}

	cmd.AddCommand(configInitCmd(env))
	cmd.AddCommand(configShowCmd(env))

	return cmd
}

func configInitCmd(env *Env) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(env, path)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Config file to create (default: $XDG_CONFIG_HOME/go-narrate/config.yaml)")
	return cmd
}

func configShowCmd(env *Env) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration: defaults, file and environment merged.

Secrets are reported as set or unset, never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(env, path)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "Config file (default: $XDG_CONFIG_HOME/go-narrate/config.yaml)")
	return cmd
}

func runConfigInit(env *Env, path string) error {
	if path == "" {
		p, err := config.DefaultPath(env.Getenv)
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.Init(path); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Wrote %s\n", path)
	return nil
}

func runConfigShow(env *Env, path string) error {
	cfg, err := loadConfig(env, path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(env.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return enc.Close()
}
