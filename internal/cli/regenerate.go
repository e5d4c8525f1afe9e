package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-narrate/internal/format"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/narrate"
)

type regenerateOptions struct {
	common   commonFlags
	text     string
	textFile string
	voice    string
	synth    synthFlags
}

// regenerateResult mirrors the HTTP response of a regeneration.
type regenerateResult struct {
	Entry    model.ChunkEntry   `json:"entry"`
	ChunkMap []model.ChunkEntry `json:"chunkMap"`
}

// RegenerateCmd creates the regenerate command.
// The env parameter provides injectable dependencies for testing.
func RegenerateCmd(env *Env) *cobra.Command {
	var opts regenerateOptions

	cmd := &cobra.Command{
		Use:   "regenerate <record-id> <segment-index>",
		Short: "Re-synthesize one segment of a stored narration",
		Long: `Re-synthesize one segment of a stored narration with new text.

The combined MP3 is rebuilt from the stored segments and the chunk map timings
are shifted. The record keeps its provider; voice and synthesis options default
to the record's own. The updated entry and chunk map are written to stdout.`,
		Example: `  narrate regenerate 42 3 --text "A corrected paragraph."
  narrate regenerate 42 0 --text-file intro.txt --stability 0.6`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRegenerateRequest(env, args, opts)
			if err != nil {
				return err
			}
			req.Options = opts.synth.override(cmd.Flags())
			return runRegenerate(cmd.Context(), env, opts.common, req)
		},
	}

	opts.common.bind(cmd)
	cmd.Flags().StringVar(&opts.text, "text", "", "Replacement text")
	cmd.Flags().StringVar(&opts.textFile, "text-file", "", "Replacement text file, or - for stdin")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Voice id (default: the record's)")
	opts.synth.bind(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")
	cmd.MarkFlagsOneRequired("text", "text-file")

	return cmd
}

func buildRegenerateRequest(env *Env, args []string, opts regenerateOptions) (narrate.RegenerateRequest, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return narrate.RegenerateRequest{}, fmt.Errorf("%w: record id %q", ErrBadArgument, args[0])
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return narrate.RegenerateRequest{}, fmt.Errorf("%w: segment index %q", ErrBadArgument, args[1])
	}

	text := opts.text
	if opts.textFile != "" {
		if text, err = readText(env, opts.textFile); err != nil {
			return narrate.RegenerateRequest{}, err
		}
	}

	req := narrate.RegenerateRequest{
		RecordID:     id,
		SegmentIndex: idx,
		NewText:      strings.TrimSpace(text),
		VoiceID:      strings.TrimSpace(opts.voice),
	}
	if err := req.Validate(); err != nil {
		return narrate.RegenerateRequest{}, err
	}
	return req, nil
}

func runRegenerate(ctx context.Context, env *Env, flags commonFlags, req narrate.RegenerateRequest) error {
	a, err := openApp(ctx, env, flags, false)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Fprintf(env.Stderr, "Regenerating segment %d of record %d...\n", req.SegmentIndex, req.RecordID)
	rec, err := a.backend.Regenerator.Regenerate(ctx, req)
	if err != nil {
		return err
	}

	entry := rec.ChunkMap[req.SegmentIndex]
	fmt.Fprintf(env.Stderr, "Segment %d now %s at %s, narration %s\n",
		entry.Index, format.Millis(entry.DurationMs), format.Seconds(entry.StartTime), format.Millis(rec.DurationMs()))
	return printJSON(env.Stdout, regenerateResult{Entry: entry, ChunkMap: rec.ChunkMap})
}
