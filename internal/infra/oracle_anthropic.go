package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

const classifyPrompt = `You decide whether a student is studying or distracted.

The foreground window on their computer is:
  title: %q
  process: %q

Reply with exactly one word: STUDY if this window is plausibly part of studying
(course material, documentation, lectures, editors, reference sites), or
DISTRACTION if it is a game, entertainment video, social media or similar.`

// AnthropicOracle classifies windows with a Claude model.
type AnthropicOracle struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicOracle creates an oracle authenticated with apiKey.
// Extra request options (base URL, retries) are passed through to the SDK.
func NewAnthropicOracle(apiKey, model string, logger *zap.Logger, opts ...option.RequestOption) (*AnthropicOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not set")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicOracle{
		client: &client,
		model:  model,
		logger: logger,
	}, nil
}

// Name identifies the backend in logs.
func (o *AnthropicOracle) Name() string {
	return "anthropic"
}

// Classify asks the model for a one-word verdict and returns it with
// surrounding whitespace and trailing punctuation removed.
func (o *AnthropicOracle) Classify(ctx context.Context, req domain.OracleRequest) (string, error) {
	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(o.model),
		MaxTokens: 8,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf(classifyPrompt, req.WindowTitle, req.ProcessName))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	o.logger.Debug("anthropic verdict",
		zap.String("model", o.model),
		zap.String("text", text.String()),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))

	return strings.TrimRight(strings.TrimSpace(text.String()), ".!"), nil
}

var _ domain.Oracle = (*AnthropicOracle)(nil)
