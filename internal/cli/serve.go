package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-narrate/internal/server"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// ServeCmd creates the serve command.
// The env parameter provides injectable dependencies for testing.
func ServeCmd(env *Env) *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the narration HTTP service",
		Long: `Run the narration HTTP service.

Serves the streamed generation endpoint, job polling, segment regeneration,
record browsing and the stored audio. Stale jobs are swept on a ticker.
Stops gracefully on SIGINT or SIGTERM.`,
		Example: `  narrate serve
  narrate serve --config ./narrate.yaml --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), env, flags, nil)
		},
	}
	flags.bind(cmd)

	return cmd
}

// runServe serves until ctx is done. When ln is nil it listens on the
// configured address.
func runServe(ctx context.Context, env *Env, flags commonFlags, ln net.Listener) error {
	a, err := openApp(ctx, env, flags, true)
	if err != nil {
		return err
	}
	defer a.close()

	b := a.backend
	srv := server.New(server.Deps{
		Generator:   b.Generator,
		Regenerator: b.Regenerator,
		Records:     b.Records,
		Jobs:        b.Jobs,
		Usage:       b.Usage,
		Audio:       b.Audio,
		Blobs:       b.Blobs,
		Sweeper:     b.Sweeper,
		DB:          b.DB,
		Logger:      a.log,
	})
	httpSrv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if ln == nil {
		if ln, err = net.Listen("tcp", a.cfg.ListenAddr); err != nil {
			return fmt.Errorf("cannot listen on %s: %w", a.cfg.ListenAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Infow("listening", "addr", ln.Addr().String(), "public_url", a.cfg.PublicURL)
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.log.Infow("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	if b.Sweeper != nil {
		g.Go(func() error {
			return b.Sweeper.Run(gctx)
		})
	}

	fmt.Fprintf(env.Stderr, "Serving on %s\n", ln.Addr())
	return g.Wait()
}
