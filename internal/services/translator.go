package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type openAITranslator struct {
	client *openai.Client
}

// NewOpenAITranslator returns nil for an empty key; notes are then sent as typed.
func NewOpenAITranslator(apiKey string) Translator {
	if apiKey == "" {
		return nil
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAITranslator{client: &c}
}

func (t *openAITranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(
				"Translate the user's message into the language with code %q. "+
					"Reply with the translation only, keep it short and plain.", targetLanguage)),
			openai.UserMessage(text),
		},
	}

	resp, err := t.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai: empty translation")
	}
	return out, nil
}
