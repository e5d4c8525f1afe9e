package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/alnah/go-narrate/internal/apierr"
	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

// statusFor maps an error to the HTTP status that describes it to the client.
func statusFor(err error) int {
	var provErr *apierr.ProviderError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, narrate.ErrInvalidRequest),
		errors.Is(err, tts.ErrUnknownProvider),
		errors.Is(err, tts.ErrTextTooLong),
		errors.Is(err, tts.ErrEmptyText),
		errors.Is(err, tts.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrJobFinished):
		return http.StatusConflict
	case errors.As(err, &provErr),
		errors.Is(err, apierr.ErrRateLimit),
		errors.Is(err, apierr.ErrQuotaExceeded),
		errors.Is(err, apierr.ErrAuthFailed),
		errors.Is(err, apierr.ErrTimeout),
		errors.Is(err, apierr.ErrUpstream),
		errors.Is(err, tts.ErrEmptyAudio):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "status", status, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]string{"error": err.Error()}
	if encodeErr := json.NewEncoder(w).Encode(payload); encodeErr != nil {
		logger.Errorw("failed to encode error response", "error", encodeErr)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}
