// Package gemini implements the generation client over Google's Gemini API.
// Every operation is total: backend failures are absorbed here and surfaced
// as fixed, user-safe fallback strings, never as errors. Only construction
// fails fast, so the supervisor can refuse to start without credentials.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/envologia/envo/internal/config"
)

// Client defines the intent-specific generation operations used by the
// dispatcher. Implementations hold no per-call mutable state and are safe
// to invoke concurrently.
type Client interface {
	// Answer produces an open-ended reply. subject is replied-to content
	// placed ahead of history in the prompt; persona, when non-empty, is an
	// identity the reply must adopt.
	Answer(ctx context.Context, question, subject, history, persona string) string

	// Transform applies a fixed instruction template and returns only the
	// transformed text.
	Transform(ctx context.Context, content string, op TransformOp) string

	// Examine returns first-person commentary on the content.
	Examine(ctx context.Context, content string, op ExamineOp) string

	// DescribeImage returns a description plus any extracted text. Never
	// empty: a fixed failure string substitutes for backend errors.
	DescribeImage(ctx context.Context, mimeType string, data []byte) string

	// Transcribe converts a voice recording to text. Unlike the operations
	// above it returns an error, so the content resolver can substitute its
	// own sentinel string.
	Transcribe(ctx context.Context, mimeType string, data []byte) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	modelName   string
	temperature float32
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// NewClient creates a Gemini generation client. It fails fast when the API
// key is missing so the process refuses to start rather than limp along.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.Model)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

func (c *sdkClient) contentConfig(systemInstruction string) *genai.GenerateContentConfig {
	temp := c.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	return cfg
}

// generate runs one bounded, retried call against the backend.
func (c *sdkClient) generate(ctx context.Context, systemInstruction string, parts []*genai.Part) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := c.contentConfig(systemInstruction)

	var resp *genai.GenerateContentResponse
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(callCtx, c.modelName, contents, cfg)
		if err == nil {
			break
		}

		var apiErr *genai.APIError
		retriable := errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503)
		if !retriable || i == c.maxRetries {
			return "", fmt.Errorf("gemini API call failed: %w", err)
		}

		c.log.WarnContext(ctx, "Gemini API call failed, retrying",
			"attempt", i+1, "max_retries", c.maxRetries, "code", apiErr.Code)
		select {
		case <-callCtx.Done():
			return "", fmt.Errorf("gemini API call cancelled: %w", callCtx.Err())
		case <-time.After(c.retryDelay):
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("request blocked by safety filter: %v", resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("backend returned empty content")
	}
	return text, nil
}

func (c *sdkClient) Answer(ctx context.Context, question, subject, history, persona string) string {
	prompt := buildAnswerPrompt(question, subject, history)
	system := personaInstruction(answerSystemInstruction, persona)

	text, err := c.generate(ctx, system, []*genai.Part{{Text: prompt}})
	if err != nil {
		c.log.ErrorContext(ctx, "Answer generation failed", "error", err)
		return fallbackAnswer
	}
	if text == "" {
		return fallbackEmptyAnswer
	}
	return text
}

func (c *sdkClient) Transform(ctx context.Context, content string, op TransformOp) string {
	prompt, ok := buildTransformPrompt(content, op)
	if !ok {
		c.log.ErrorContext(ctx, "Unknown transform operation", "op", op)
		return fallbackTransform(op)
	}

	text, err := c.generate(ctx, transformSystemInstruction, []*genai.Part{{Text: prompt}})
	if err != nil {
		c.log.ErrorContext(ctx, "Transform generation failed", "op", op, "error", err)
		return fallbackTransform(op)
	}
	return text
}

func (c *sdkClient) Examine(ctx context.Context, content string, op ExamineOp) string {
	prompt, ok := buildExaminePrompt(content, op)
	if !ok {
		c.log.ErrorContext(ctx, "Unknown examine operation", "op", op)
		return fallbackExamine
	}

	text, err := c.generate(ctx, examineSystemInstruction, []*genai.Part{{Text: prompt}})
	if err != nil {
		c.log.ErrorContext(ctx, "Examine generation failed", "op", op, "error", err)
		return fallbackExamine
	}
	return text
}

func (c *sdkClient) DescribeImage(ctx context.Context, mimeType string, data []byte) string {
	if len(data) == 0 || mimeType == "" {
		return fallbackImage
	}

	parts := []*genai.Part{
		{Text: describeImagePrompt},
		genai.NewPartFromBytes(data, mimeType),
	}
	text, err := c.generate(ctx, "", parts)
	if err != nil {
		c.log.ErrorContext(ctx, "Image description failed", "error", err)
		return fallbackImage
	}
	return text
}

func (c *sdkClient) Transcribe(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("voice data and MIME type are required")
	}

	parts := []*genai.Part{
		{Text: transcribePrompt},
		genai.NewPartFromBytes(data, mimeType),
	}
	text, err := c.generate(ctx, "", parts)
	if err != nil {
		c.log.ErrorContext(ctx, "Voice transcription failed", "error", err)
		return "", err
	}
	return text, nil
}
