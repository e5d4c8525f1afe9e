package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alnah/go-narrate/internal/apierr"
	"github.com/alnah/go-narrate/internal/model"
)

// ElevenLabs API configuration.
const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultElevenLabsModel   = "eleven_multilingual_v2"
	elevenLabsOutputFormat   = "mp3_44100_128"
	elevenLabsMaxChars       = 4000

	// similarity_boost is sent alongside stability because the API
	// requires both fields once voice_settings is present.
	elevenLabsSimilarityBoost = 0.75

	defaultElevenLabsHTTPTimeout = 2 * time.Minute
)

// Compile-time interface compliance checks.
var (
	_ Synthesizer   = (*ElevenLabs)(nil)
	_ UsageReporter = (*ElevenLabs)(nil)
)

// ElevenLabs synthesizes speech with the ElevenLabs text-to-speech API.
// The response body is the MP3 stream itself.
type ElevenLabs struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient httpDoer
}

// ElevenLabsOption configures an ElevenLabs adapter.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsBaseURL sets a custom base URL (for testing or proxies).
func WithElevenLabsBaseURL(u string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if u != "" {
			e.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithElevenLabsModel sets the model identifier.
func WithElevenLabsModel(m string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if m != "" {
			e.model = m
		}
	}
}

// withElevenLabsHTTPClient sets a custom HTTP client (for testing).
func withElevenLabsHTTPClient(c httpDoer) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.httpClient = c
	}
}

// NewElevenLabs creates an ElevenLabs adapter.
// Returns ErrMissingCredentials if apiKey is empty.
func NewElevenLabs(apiKey string, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", nameElevenLabs, ErrMissingCredentials)
	}
	e := &ElevenLabs{
		apiKey:  apiKey,
		baseURL: defaultElevenLabsBaseURL,
		model:   defaultElevenLabsModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: defaultElevenLabsHTTPTimeout}
	}
	return e, nil
}

// Provider returns ProviderElevenLabs.
func (e *ElevenLabs) Provider() Provider { return ProviderElevenLabs }

// Model returns the model identifier sent with each request.
func (e *ElevenLabs) Model() string { return e.model }

// MaxChars returns the per-request ceiling.
func (e *ElevenLabs) MaxChars() int { return elevenLabsMaxChars }

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceConfig `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceConfig struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize returns MP3 audio for text. Stability, when set, must be in [0, 1].
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string, opts model.Options) (_ []byte, err error) {
	if err := checkText(text, elevenLabsMaxChars); err != nil {
		return nil, err
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required: %w", ErrInvalidOption)
	}

	reqBody := elevenLabsRequest{Text: text, ModelID: e.model}
	if s := opts.Stability; s != nil {
		if *s < 0 || *s > 1 {
			return nil, fmt.Errorf("stability %v outside [0, 1]: %w", *s, ErrInvalidOption)
		}
		reqBody.VoiceSettings = &elevenLabsVoiceConfig{Stability: *s, SimilarityBoost: elevenLabsSimilarityBoost}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voiceID), elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	respBody, err := e.do(req)
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("%s: %w", nameElevenLabs, ErrEmptyAudio)
	}
	return respBody, nil
}

type elevenLabsSubscription struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

// Usage returns the account's character consumption for the current period.
func (e *ElevenLabs) Usage(ctx context.Context) (model.Usage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/user/subscription", nil)
	if err != nil {
		return model.Usage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	respBody, err := e.do(req)
	if err != nil {
		return model.Usage{}, err
	}
	var sub elevenLabsSubscription
	if err := json.Unmarshal(respBody, &sub); err != nil {
		return model.Usage{}, fmt.Errorf("failed to parse subscription: %w", err)
	}
	return model.Usage{
		Provider:       nameElevenLabs,
		CharacterCount: sub.CharacterCount,
		CharacterLimit: sub.CharacterLimit,
	}, nil
}

// do sends req and returns the body of a 2xx response.
func (e *ElevenLabs) do(req *http.Request) (_ []byte, err error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nameElevenLabs, classifyTransportError(err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.NewProviderError(nameElevenLabs, resp.StatusCode, respBody)
	}
	return respBody, nil
}
