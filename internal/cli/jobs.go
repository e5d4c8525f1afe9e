package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

type jobsOptions struct {
	common commonFlags
	id     int64
	url    string
}

// JobsCmd creates the jobs command.
// The env parameter provides injectable dependencies for testing.
func JobsCmd(env *Env) *cobra.Command {
	var opts jobsOptions

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show generation job status",
		Long: `Show generation job status.

With --id, prints that job. With --url, prints every job for the URL that is
still running. Jobs left running past the configured timeout are marked failed
first.`,
		Example: `  narrate jobs --id 17
  narrate jobs --url https://blog.example/post`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd.Context(), env, opts)
		},
	}

	opts.common.bind(cmd)
	cmd.Flags().Int64Var(&opts.id, "id", 0, "Job id")
	cmd.Flags().StringVar(&opts.url, "url", "", "Source URL")
	cmd.MarkFlagsMutuallyExclusive("id", "url")
	cmd.MarkFlagsOneRequired("id", "url")

	return cmd
}

func runJobs(ctx context.Context, env *Env, opts jobsOptions) error {
	a, err := openApp(ctx, env, opts.common, false)
	if err != nil {
		return err
	}
	defer a.close()

	if a.backend.Sweeper != nil {
		a.backend.Sweeper.MaybeSweep(ctx)
	}

	if opts.id != 0 {
		job, err := a.backend.Jobs.Get(ctx, opts.id)
		if err != nil {
			return err
		}
		return printJSON(env.Stdout, job)
	}

	jobs, err := a.backend.Jobs.ListActive(ctx, strings.TrimSpace(opts.url))
	if err != nil {
		return err
	}
	return printJSON(env.Stdout, map[string]any{"jobs": jobs})
}
