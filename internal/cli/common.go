package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/alnah/go-narrate/internal/config"
	"github.com/alnah/go-narrate/internal/model"
)

// commonFlags are shared by every command that touches the backend.
type commonFlags struct {
	configPath string
	debug      bool
}

func (c *commonFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/go-narrate/config.yaml)")
	cmd.Flags().BoolVar(&c.debug, "debug", false, "Development logging to stderr")
}

func loadConfig(env *Env, path string) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load(path, env.Getenv)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// app is a loaded config with its logger and connected backend.
type app struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	backend *Backend
}

// openApp loads the config and connects the backend. One-shot commands stay
// silent unless debug is set; a service always logs.
func openApp(ctx context.Context, env *Env, flags commonFlags, service bool) (*app, error) {
	cfg, err := loadConfig(env, flags.configPath)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop().Sugar()
	if service || flags.debug {
		if log, err = env.NewLogger(flags.debug); err != nil {
			return nil, err
		}
	}

	backend, err := env.BackendFactory.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, backend: backend}, nil
}

func (a *app) close() {
	if a.backend.Close != nil {
		a.backend.Close()
	}
	_ = a.log.Sync()
}

// synthFlags are the tunable synthesis parameters.
type synthFlags struct {
	stability    float64
	temperature  float64
	speakingRate float64
}

func (s *synthFlags) bind(fs *pflag.FlagSet) {
	fs.Float64Var(&s.stability, "stability", 0, "Voice stability 0..1 (ElevenLabs)")
	fs.Float64Var(&s.temperature, "temperature", 0, "Sampling temperature (0,2] (Inworld)")
	fs.Float64Var(&s.speakingRate, "speaking-rate", 0, "Speaking rate 0.5..1.5 (Inworld)")
}

// options returns the parameters. Stability is only set when the flag was given.
func (s synthFlags) options(fs *pflag.FlagSet) model.Options {
	opts := model.Options{Temperature: s.temperature, SpeakingRate: s.speakingRate}
	if fs.Changed("stability") {
		v := s.stability
		opts.Stability = &v
	}
	return opts
}

// override returns nil when no synthesis flag was given.
func (s synthFlags) override(fs *pflag.FlagSet) *model.Options {
	if !fs.Changed("stability") && !fs.Changed("temperature") && !fs.Changed("speaking-rate") {
		return nil
	}
	opts := s.options(fs)
	return &opts
}

// readText reads a file, or stdin when path is "-".
func readText(env *Env, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(env.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
