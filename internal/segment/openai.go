package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-narrate/internal/apierr"
)

// OpenAI splitter configuration.
const (
	defaultSplitModel = "gpt-4o-mini"

	defaultSplitMaxRetries = 2
	defaultSplitBaseDelay  = 1 * time.Second
	defaultSplitMaxDelay   = 10 * time.Second

	// smallLimit is the ceiling at or under which segments must follow
	// paragraph breaks only.
	smallLimit = 2000
)

// ChatCompleter is the subset of *openai.Client used by OpenAISplitter.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ ChatCompleter = (*openai.Client)(nil)
	_ Splitter      = (*OpenAISplitter)(nil)
)

// OpenAISplitter asks an OpenAI chat model where to cut a script.
type OpenAISplitter struct {
	client     ChatCompleter
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// SplitterOption configures an OpenAISplitter.
type SplitterOption func(*OpenAISplitter)

// WithModel sets the chat model.
func WithModel(model string) SplitterOption {
	return func(s *OpenAISplitter) {
		if model != "" {
			s.model = model
		}
	}
}

// WithMaxRetries sets the number of retries on transient errors.
func WithMaxRetries(n int) SplitterOption {
	return func(s *OpenAISplitter) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) SplitterOption {
	return func(s *OpenAISplitter) {
		if base > 0 {
			s.baseDelay = base
		}
		if max > 0 {
			s.maxDelay = max
		}
	}
}

// NewOpenAISplitter creates a splitter backed by client.
func NewOpenAISplitter(client ChatCompleter, opts ...SplitterOption) *OpenAISplitter {
	s := &OpenAISplitter{
		client:     client,
		model:      defaultSplitModel,
		maxRetries: defaultSplitMaxRetries,
		baseDelay:  defaultSplitBaseDelay,
		maxDelay:   defaultSplitMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOpenAISplitterFromKey creates a splitter with a fresh OpenAI client.
// Returns ErrEmptyAPIKey if apiKey is empty.
func NewOpenAISplitterFromKey(apiKey string, opts ...SplitterOption) (*OpenAISplitter, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	return NewOpenAISplitter(openai.NewClient(apiKey), opts...), nil
}

// splitResponse is the JSON object the model is asked to return.
type splitResponse struct {
	Segments []string `json:"segments"`
}

// Split returns the model's proposed segments. The caller validates them.
func (s *OpenAISplitter) Split(ctx context.Context, text string, maxChars int) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: splitPrompt(maxChars)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	cfg := apierr.RetryConfig{
		MaxRetries: s.maxRetries,
		BaseDelay:  s.baseDelay,
		MaxDelay:   s.maxDelay,
	}
	content, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices in response")
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
	if err != nil {
		return nil, fmt.Errorf("assisted split: %w", err)
	}

	var out splitResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse assisted split: %w", err)
	}
	return out.Segments, nil
}

// splitPrompt builds the system prompt for a given character limit.
func splitPrompt(maxChars int) string {
	rules := fmt.Sprintf(`You split narration scripts for a text-to-speech engine.
Return JSON: {"segments": ["...", "..."]}.

Hard rules:
- Every segment is at most %d characters.
- Copy the text verbatim. Do not add, remove, reorder or rephrase any word.
- Never split inside a sentence.
- Keep a list together with the line that introduces it.
- Each segment contains several sentences.
`, maxChars)

	if maxChars <= smallLimit {
		return rules + `
Voice consistency degrades every time synthesis restarts, so use as few
segments as possible, each as large as the limit allows. Split only at blank
lines between paragraphs, never inside a paragraph.`
	}
	return rules + `
Aim for 3 to 8 segments, split where the topic changes or between paragraphs.`
}

// classifyOpenAIError maps go-openai errors to apierr types.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.NewProviderError("openai", apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apierr.NewProviderError("openai", reqErr.HTTPStatusCode, reqErr.Body)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}
