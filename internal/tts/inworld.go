package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alnah/go-narrate/internal/apierr"
	"github.com/alnah/go-narrate/internal/model"
)

// Inworld API configuration.
const (
	defaultInworldBaseURL = "https://api.inworld.ai"
	defaultInworldModel   = "inworld-tts-1"
	inworldMaxChars       = 2000

	// Valid ranges. Temperature at or below 0 is omitted.
	inworldMaxTemperature  = 2.0
	inworldMinSpeakingRate = 0.5
	inworldMaxSpeakingRate = 1.5

	defaultInworldHTTPTimeout = 2 * time.Minute
)

// Compile-time interface compliance check.
var _ Synthesizer = (*Inworld)(nil)

// Inworld synthesizes speech with the Inworld TTS API.
// Audio comes back base64-encoded inside a JSON envelope.
type Inworld struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient httpDoer
}

// InworldOption configures an Inworld adapter.
type InworldOption func(*Inworld)

// WithInworldBaseURL sets a custom base URL (for testing or proxies).
func WithInworldBaseURL(u string) InworldOption {
	return func(w *Inworld) {
		if u != "" {
			w.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithInworldModel sets the model identifier.
func WithInworldModel(m string) InworldOption {
	return func(w *Inworld) {
		if m != "" {
			w.model = m
		}
	}
}

// withInworldHTTPClient sets a custom HTTP client (for testing).
func withInworldHTTPClient(c httpDoer) InworldOption {
	return func(w *Inworld) {
		w.httpClient = c
	}
}

// NewInworld creates an Inworld adapter. apiKey is the Base64 credential
// issued by Inworld, sent as HTTP Basic authorization.
// Returns ErrMissingCredentials if apiKey is empty.
func NewInworld(apiKey string, opts ...InworldOption) (*Inworld, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", nameInworld, ErrMissingCredentials)
	}
	w := &Inworld{
		apiKey:  apiKey,
		baseURL: defaultInworldBaseURL,
		model:   defaultInworldModel,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.httpClient == nil {
		w.httpClient = &http.Client{Timeout: defaultInworldHTTPTimeout}
	}
	return w, nil
}

// Provider returns ProviderInworld.
func (w *Inworld) Provider() Provider { return ProviderInworld }

// Model returns the model identifier sent with each request.
func (w *Inworld) Model() string { return w.model }

// MaxChars returns the per-request ceiling.
func (w *Inworld) MaxChars() int { return inworldMaxChars }

type inworldRequest struct {
	Text        string             `json:"text"`
	VoiceID     string             `json:"voiceId"`
	ModelID     string             `json:"modelId"`
	AudioConfig inworldAudioConfig `json:"audioConfig"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type inworldAudioConfig struct {
	AudioEncoding string   `json:"audioEncoding"`
	SpeakingRate  *float64 `json:"speakingRate,omitempty"`
}

type inworldResponse struct {
	AudioContent string `json:"audioContent"`
}

// buildInworldRequest validates options and omits those left at provider default:
// temperature is sent only when > 0, speaking rate only when != 1.
func buildInworldRequest(text, voiceID, modelID string, opts model.Options) (inworldRequest, error) {
	req := inworldRequest{
		Text:        text,
		VoiceID:     voiceID,
		ModelID:     modelID,
		AudioConfig: inworldAudioConfig{AudioEncoding: "MP3"},
	}

	if t := opts.Temperature; t > 0 {
		if t > inworldMaxTemperature {
			return req, fmt.Errorf("temperature %v outside (0, %v]: %w", t, inworldMaxTemperature, ErrInvalidOption)
		}
		req.Temperature = &t
	}

	if r := opts.SpeakingRate; r != 0 && r != 1 {
		if r < inworldMinSpeakingRate || r > inworldMaxSpeakingRate {
			return req, fmt.Errorf("speaking rate %v outside [%v, %v]: %w",
				r, inworldMinSpeakingRate, inworldMaxSpeakingRate, ErrInvalidOption)
		}
		req.AudioConfig.SpeakingRate = &r
	}

	return req, nil
}

// Synthesize returns MP3 audio for text.
func (w *Inworld) Synthesize(ctx context.Context, text, voiceID string, opts model.Options) (_ []byte, err error) {
	if err := checkText(text, inworldMaxChars); err != nil {
		return nil, err
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required: %w", ErrInvalidOption)
	}

	reqBody, err := buildInworldRequest(text, voiceID, w.model, opts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/tts/v1/voice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nameInworld, classifyTransportError(err))
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
		return nil, apierr.NewProviderError(nameInworld, resp.StatusCode, respBody)
	}

	var out inworldResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, fmt.Errorf("%s: %w", nameInworld, ErrEmptyAudio)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return audio, nil
}
