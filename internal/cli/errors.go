package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/alnah/go-narrate/internal/apierr"
	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/config"
	"github.com/alnah/go-narrate/internal/interrupt"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/segment"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

// CLI-specific sentinel errors that don't belong to domain packages.
var (
	// ErrBackendUnavailable indicates Postgres or NATS could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrBadArgument indicates a positional argument could not be parsed.
	ErrBadArgument = errors.New("bad argument")

	// ErrGenerationFailed indicates the job ended with an error event.
	ErrGenerationFailed = errors.New("generation failed")
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitProvider   = 5
	ExitStorage    = 6
	ExitInterrupt  = interrupt.ExitInterrupt
)

// ExitCode maps errors to process exit codes.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	var provErr *apierr.ProviderError
	switch {
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, tts.ErrMissingCredentials),
		errors.Is(err, segment.ErrEmptyAPIKey):
		return ExitSetup

	case errors.Is(err, narrate.ErrInvalidRequest),
		errors.Is(err, tts.ErrUnknownProvider),
		errors.Is(err, tts.ErrTextTooLong),
		errors.Is(err, tts.ErrEmptyText),
		errors.Is(err, tts.ErrInvalidOption),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrBadArgument):
		return ExitValidation

	case errors.As(err, &provErr),
		errors.Is(err, apierr.ErrRateLimit),
		errors.Is(err, apierr.ErrQuotaExceeded),
		errors.Is(err, apierr.ErrTimeout),
		errors.Is(err, apierr.ErrAuthFailed),
		errors.Is(err, apierr.ErrUpstream),
		errors.Is(err, tts.ErrEmptyAudio):
		return ExitProvider

	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInvalidData),
		errors.Is(err, store.ErrJobFinished),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, blob.ErrExists),
		errors.Is(err, blob.ErrForeignURL):
		return ExitStorage
	}

	if isCobraUsageError(err) {
		return ExitUsage
	}
	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"at least one of the flags", // One-required flag group violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
