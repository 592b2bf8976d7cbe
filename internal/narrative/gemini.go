package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"weeklens/internal/schema"
)

// systemInstruction pins output discipline; the analyst role and task
// framing travel in the prompt itself.
const systemInstruction = "You write weekly analytics reports. Follow the user's instructions exactly and output GitHub-flavored Markdown without code fences."

// probePrompt is the cheap connectivity check used by the check command.
const probePrompt = "Say 'OK' if you can hear me."

// GeminiConfig holds the generation settings for one client. Temperature
// and TopP are used as given; Model, Timeout, and MaxOutputTokens fall
// back to defaults when zero.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
}

// DefaultGeminiConfig returns the settings reports are tuned for: low
// temperature so numbers stay verbatim, enough output budget for a full
// report.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           "gemini-2.0-flash",
		Timeout:         2 * time.Minute,
		Temperature:     0.2,
		TopP:            0.8,
		MaxOutputTokens: 8000,
	}
}

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiGenerator creates the client. The API key is required; other
// zero-valued settings are backfilled from DefaultGeminiConfig.
func NewGeminiGenerator(cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("narrative: Gemini API key is required")
	}
	defaults := DefaultGeminiConfig(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("narrative: create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, cfg: cfg}, nil
}

// Generate sends the prompt and returns the narrative text. When the
// context carries no deadline the configured timeout applies. Failures
// come back as ExternalCallError; there is no retry.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.cfg.Temperature),
		TopP:              genai.Ptr(g.cfg.TopP),
		MaxOutputTokens:   g.cfg.MaxOutputTokens,
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", &schema.ExternalCallError{Operation: "generate narrative", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &schema.ExternalCallError{Operation: "generate narrative", Err: errors.New("model returned no candidates")}
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &schema.ExternalCallError{Operation: "generate narrative", Err: errors.New("model returned empty text")}
	}
	return text, nil
}

// Probe verifies credentials and connectivity with a minimal generation.
func (g *GeminiGenerator) Probe(ctx context.Context) error {
	_, err := g.Generate(ctx, probePrompt)
	return err
}

// Close releases the underlying client. The genai client holds no
// connection state, so there is nothing to tear down.
func (g *GeminiGenerator) Close() error {
	return nil
}
