// Package ai wraps the external text-generation service used for video
// categorization and weekly report prose.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/watchtrail/watchtrail/store"
)

// Config holds the classifier endpoint configuration.
type Config struct {
	BaseURL       string
	APIKey        string
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration
	// Referer identifies the calling origin; Title is the display name.
	// Both are sent as headers on every request.
	Referer string
	Title   string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://openrouter.ai/api/v1",
		PrimaryModel:  "google/gemini-2.0-flash-001",
		FallbackModel: "meta-llama/llama-3.3-70b-instruct",
		Timeout:       20 * time.Second,
		Title:         "Watchtrail",
	}
}

// Classification is the structured categorization result.
type Classification struct {
	Category   string                `json:"category"`
	Confidence store.ConfidenceLevel `json:"confidence"`
}

// Classifier calls an OpenAI-compatible endpoint for categorization,
// weekly report prose, and key verification.
type Classifier struct {
	client *openai.Client
	config *Config
}

// headerTransport injects the referer and title headers required by the
// endpoint on every request.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewClassifier creates a classifier. Construction is cheap; callers may
// build one per API key.
func NewClassifier(cfg *Config) *Classifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &Classifier{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

const categorizePromptFormat = `Classify this video into exactly one category.

Video title: %q
Channel: %q

Allowed categories: %s

Respond with only a JSON object of the form
{"category": "<one allowed category>", "confidence": "high" | "medium" | "low"}`

// Categorize classifies a video by title and source. The primary model is
// tried first; any failure (transport, status, malformed or incomplete JSON)
// triggers one attempt against the fallback model. Both failing returns the
// last error.
func (c *Classifier) Categorize(ctx context.Context, title, sourceName string) (*Classification, error) {
	prompt := fmt.Sprintf(categorizePromptFormat, title, sourceName, strings.Join(store.Categories, ", "))

	result, err := c.categorizeWith(ctx, c.config.PrimaryModel, prompt)
	if err == nil {
		return result, nil
	}
	result, fallbackErr := c.categorizeWith(ctx, c.config.FallbackModel, prompt)
	if fallbackErr != nil {
		return nil, fmt.Errorf("primary model: %v; fallback model: %w", err, fallbackErr)
	}
	return result, nil
}

func (c *Classifier) categorizeWith(ctx context.Context, model, prompt string) (*Classification, error) {
	content, err := c.complete(ctx, model, prompt, 0.2, 100)
	if err != nil {
		return nil, err
	}

	var result Classification
	if err := ExtractJSONObject(content, &result); err != nil {
		return nil, fmt.Errorf("malformed classification response: %w", err)
	}
	if !store.IsValidCategory(result.Category) {
		return nil, fmt.Errorf("unknown category %q", result.Category)
	}
	if !store.IsValidConfidence(string(result.Confidence)) {
		return nil, fmt.Errorf("unknown confidence %q", result.Confidence)
	}
	return &result, nil
}

const reportPromptFormat = `You are writing a short weekly watching report for a personal
video-history tracker. Based on the feature summary below, write at most 300
words of friendly prose with exactly these section headers:

Overview
Patterns
Highlights
Reflection

Feature summary:
%s`

// WeeklyReport turns the feature summary into report prose using the
// primary model, falling back once.
func (c *Classifier) WeeklyReport(ctx context.Context, summary string) (string, error) {
	prompt := fmt.Sprintf(reportPromptFormat, summary)

	content, err := c.complete(ctx, c.config.PrimaryModel, prompt, 0.7, 600)
	if err == nil {
		return content, nil
	}
	content, fallbackErr := c.complete(ctx, c.config.FallbackModel, prompt, 0.7, 600)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary model: %v; fallback model: %w", err, fallbackErr)
	}
	return content, nil
}

// VerifyKey performs a minimal completion; the key is considered valid when
// the response text loosely matches "ok".
func (c *Classifier) VerifyKey(ctx context.Context) error {
	content, err := c.complete(ctx, c.config.PrimaryModel, `Respond with exactly: ok`, 0, 10)
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToLower(content), "ok") {
		return fmt.Errorf("unexpected verification response: %q", content)
	}
	return nil
}

func (c *Classifier) complete(ctx context.Context, model, prompt string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model %s", model)
	}
	return resp.Choices[0].Message.Content, nil
}
