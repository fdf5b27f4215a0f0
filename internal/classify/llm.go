package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/models"
)

// completeFunc sends a system/user prompt pair and returns the text reply.
type completeFunc func(ctx context.Context, system, user string) (string, error)

// LLMClassifier asks an Anthropic model for the category and falls back
// to another classifier on any failure or unusable reply.
type LLMClassifier struct {
	complete completeFunc
	fallback Classifier
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLLMClassifier creates an LLM-backed classifier. fallback must not be
// nil; it keeps the classifier total when the API is unreachable.
func NewLLMClassifier(apiKey, model string, fallback Classifier, logger *zap.Logger) *LLMClassifier {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	m := anthropic.Model(model)

	complete := func(ctx context.Context, system, user string) (string, error) {
		msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     m,
			MaxTokens: 16,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic API call: %w", err)
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("no text content in API response")
	}

	return newLLMClassifier(complete, fallback, logger)
}

func newLLMClassifier(complete completeFunc, fallback Classifier, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{
		complete: complete,
		fallback: fallback,
		timeout:  5 * time.Second,
		logger:   logger.Named("classify"),
	}
}

// buildClassifyPrompt constructs the system and user prompts.
func buildClassifyPrompt(text string) (system string, user string) {
	names := make([]string, 0, len(models.PriorityOrder)+1)
	for _, c := range models.Categories() {
		names = append(names, `"`+string(c)+`"`)
	}

	system = `You triage emergency reports. Reply with exactly one word, the category of the report, chosen from: ` + strings.Join(names, ", ") + `.

Rules:
- If the report fits several categories, prefer them in this order: medical, fire, police, natural_disaster, accident
- Reply "unknown" if the report does not describe an emergency you can categorize
- No punctuation, no explanation`

	user = "Report:\n\n" + strings.TrimSpace(text)
	return
}

// parseCategoryReply extracts a category from a model reply.
func parseCategoryReply(reply string) (models.Category, bool) {
	word := strings.Trim(strings.TrimSpace(reply), "\"'`.")
	if fields := strings.Fields(word); len(fields) > 0 {
		word = fields[0]
	}
	return models.ParseCategory(word)
}

// Classify returns the model's category, or the fallback's on failure.
func (c *LLMClassifier) Classify(ctx context.Context, text string) models.Category {
	if Normalize(text) == "" {
		return models.CategoryUnknown
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	system, user := buildClassifyPrompt(text)
	reply, err := c.complete(ctx, system, user)
	if err != nil {
		c.logger.Warn("llm classification failed, using fallback", zap.Error(err))
		return c.fallback.Classify(ctx, text)
	}

	cat, ok := parseCategoryReply(reply)
	if !ok {
		c.logger.Warn("unusable llm reply, using fallback", zap.String("reply", reply))
		return c.fallback.Classify(ctx, text)
	}
	return cat
}
