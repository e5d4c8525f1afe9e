package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-narrate/internal/format"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/tts"
)

type generateOptions struct {
	common     commonFlags
	url        string
	title      string
	scriptFile string
	provider   string
	voice      string
	synth      synthFlags
}

// GenerateCmd creates the generate command.
// The env parameter provides injectable dependencies for testing.
func GenerateCmd(env *Env) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Narrate a script into MP3 audio",
		Long: `Narrate a script into MP3 audio and store the result.

The script is split into segments that fit the provider's limit, each segment
is synthesized in turn, and the combined MP3 is stored with a chunk map.
Progress events are written to stdout as NDJSON; a human summary goes to stderr.

Use --script-file - to read the script from stdin.`,
		Example: `  narrate generate --url https://blog.example/post --title "My Post" --script-file post.txt --voice 21m00Tcm4TlvDq8ikWAM
  cat post.txt | narrate generate --url https://blog.example/post --script-file - --provider inworld --voice Ashley`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(env, opts)
			if err != nil {
				return err
			}
			req.Options = opts.synth.options(cmd.Flags())
			return runGenerate(cmd.Context(), env, opts.common, req)
		},
	}

	opts.common.bind(cmd)
	cmd.Flags().StringVar(&opts.url, "url", "", "Source URL of the post")
	cmd.Flags().StringVar(&opts.title, "title", "", "Post title, used in the version label")
	cmd.Flags().StringVarP(&opts.scriptFile, "script-file", "f", "", "Script text file, or - for stdin")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "Speech provider: elevenlabs, inworld (default: configured)")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Provider voice id")
	opts.synth.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("script-file")
	_ = cmd.MarkFlagRequired("voice")

	return cmd
}

// buildRequest validates flags that can be checked before any connection.
func buildRequest(env *Env, opts generateOptions) (narrate.Request, error) {
	provider, err := tts.ParseProvider(opts.provider)
	if err != nil {
		return narrate.Request{}, err
	}
	script, err := readText(env, opts.scriptFile)
	if err != nil {
		return narrate.Request{}, err
	}
	req := narrate.Request{
		URL:      strings.TrimSpace(opts.url),
		Title:    strings.TrimSpace(opts.title),
		Script:   script,
		Provider: provider,
		VoiceID:  strings.TrimSpace(opts.voice),
	}
	if err := req.Validate(); err != nil {
		return narrate.Request{}, err
	}
	return req, nil
}

// runGenerate runs one job in-process and streams its events.
func runGenerate(ctx context.Context, env *Env, flags commonFlags, req narrate.Request) error {
	a, err := openApp(ctx, env, flags, false)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.backend.Generator.Generate(ctx, req)
	if err != nil {
		return err
	}

	last, writeErr := streamEvents(env.Stdout, env.Stderr, events)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("generation interrupted: %w", err)
	}
	if last.Type == narrate.EventError {
		return fmt.Errorf("%w: %s", ErrGenerationFailed, last.Error)
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write events: %w", writeErr)
	}
	return nil
}

// streamEvents writes every event as one NDJSON line to out and a summary to
// status. It drains events even after a write error and returns the last event.
func streamEvents(out, status io.Writer, events <-chan narrate.Event) (narrate.Event, error) {
	enc := json.NewEncoder(out)
	var (
		last     narrate.Event
		writeErr error
	)
	for ev := range events {
		last = ev
		if writeErr == nil {
			writeErr = enc.Encode(ev)
		}
		printEvent(status, ev)
	}
	return last, writeErr
}

func printEvent(w io.Writer, ev narrate.Event) {
	switch ev.Type {
	case narrate.EventJob:
		fmt.Fprintf(w, "Job %d started\n", ev.JobID)
	case narrate.EventStatus:
		if ev.Progress != nil {
			fmt.Fprintf(w, "[%s %d/%d] %s\n", ev.Step, ev.Progress.Current, ev.Progress.Total, ev.Message)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", ev.Step, ev.Message)
	case narrate.EventDone:
		if ev.Entry == nil {
			fmt.Fprintln(w, "Done")
			return
		}
		fmt.Fprintf(w, "Done: record %d (%s), %d segments, %d chars, %s\n  %s\n",
			ev.Entry.ID, ev.Entry.Label, ev.Chunks, ev.TotalChars, format.Millis(ev.Entry.DurationMs()), ev.Entry.AudioURL)
	case narrate.EventError:
		fmt.Fprintf(w, "Failed: %s\n", ev.Error)
	}
}
