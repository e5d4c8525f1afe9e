package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/tts"
)

type generateInput struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Script   string        `json:"script"`
	Provider string        `json:"provider"`
	VoiceID  string        `json:"voiceId"`
	Options  model.Options `json:"options"`
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, errBadRequest)
	}
	return nil
}

// handleGenerate starts a job and streams its events as NDJSON.
// The job runs detached from the request: a client that disconnects can
// poll /api/jobs for the outcome.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in generateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, s.log, http.StatusBadRequest, err)
		return
	}
	provider, err := tts.ParseProvider(in.Provider)
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, err)
		return
	}

	events, err := s.Generator.Generate(context.WithoutCancel(r.Context()), narrate.Request{
		URL:      strings.TrimSpace(in.URL),
		Title:    strings.TrimSpace(in.Title),
		Script:   in.Script,
		Provider: provider,
		VoiceID:  strings.TrimSpace(in.VoiceID),
		Options:  in.Options,
	})
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	s.stream(w, events)
}

// stream writes each event as one JSON line and flushes it. After the first
// failed write it stops writing but keeps draining until the job ends.
func (s *Server) stream(w http.ResponseWriter, events <-chan narrate.Event) {
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	connected := true
	for ev := range events {
		if !connected {
			continue
		}
		err := enc.Encode(ev)
		if err == nil {
			err = rc.Flush()
			if errors.Is(err, http.ErrNotSupported) {
				err = nil
			}
		}
		if err != nil {
			connected = false
			s.log.Infow("stream client gone, job continues", "job", ev.JobID, "error", err)
		}
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.Sweeper != nil {
		s.Sweeper.MaybeSweep(r.Context())
	}

	q := r.URL.Query()
	switch {
	case q.Get("id") != "":
		id, err := parseID(q.Get("id"))
		if err != nil {
			writeError(w, s.log, http.StatusBadRequest, err)
			return
		}
		job, err := s.Jobs.Get(r.Context(), id)
		if err != nil {
			writeError(w, s.log, statusFor(err), err)
			return
		}
		writeJSON(w, s.log, http.StatusOK, job)
	case q.Get("url") != "":
		jobs, err := s.Jobs.ListActive(r.Context(), q.Get("url"))
		if err != nil {
			writeError(w, s.log, statusFor(err), err)
			return
		}
		writeJSON(w, s.log, http.StatusOK, map[string]any{"jobs": jobs})
	default:
		writeError(w, s.log, http.StatusBadRequest, fmt.Errorf("id or url is required: %w", errBadRequest))
	}
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req narrate.RegenerateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, s.log, http.StatusBadRequest, err)
		return
	}
	rec, err := s.Regenerator.Regenerate(r.Context(), req)
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"entry": rec, "chunkMap": rec.ChunkMap})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, s.log, http.StatusBadRequest, fmt.Errorf("url is required: %w", errBadRequest))
		return
	}
	entries, err := s.Records.ListByURL(r.Context(), url)
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, err)
		return
	}
	rec, err := s.Records.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, rec)
}

// handleDeleteGeneration removes the record, then its blobs best-effort.
func (s *Server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, err)
		return
	}
	ctx := r.Context()
	rec, err := s.Records.Get(ctx, id)
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	if err := s.Records.Delete(ctx, id); err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	blob.BestEffortDeleteAll(context.WithoutCancel(ctx), s.Blobs, rec.BlobURLs(), s.log)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.Usage.List(r.Context())
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]any{"usage": usage})
}

// handleAudio serves a stored asset with range support. Names are never
// reused, so responses are cacheable forever.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, contentType, err := s.Audio.Open(r.Context(), name)
	if err != nil {
		writeError(w, s.log, statusFor(err), err)
		return
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		s.log.Warnw("health check failed", "error", err)
		writeJSON(w, s.log, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "ok"})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", raw, errBadRequest)
	}
	return id, nil
}
