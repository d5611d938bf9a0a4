package localize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aid-simulator/internal/resilience"
	"github.com/sells-group/aid-simulator/pkg/anthropic"
)

// Translator translates a batch of texts into the target language, returning
// exactly one output per input in the same order.
type Translator interface {
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

const translatePrompt = `You translate short descriptions of public financial-aid programs.
Translate each string of the JSON array you receive into %s.
Keep program names, acronyms, amounts and URLs unchanged.
Respond with a JSON array of strings only, with exactly as many elements as the input, in the same order.`

// LLMTranslator translates through the Anthropic Messages API.
type LLMTranslator struct {
	client    anthropic.Client
	guard     *resilience.Guard
	model     string
	maxTokens int64
}

// NewLLMTranslator creates an LLMTranslator.
func NewLLMTranslator(client anthropic.Client, guard *resilience.Guard, model string, maxTokens int64) *LLMTranslator {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &LLMTranslator{client: client, guard: guard, model: model, maxTokens: maxTokens}
}

// Translate sends texts as one JSON array and expects one back.
func (t *LLMTranslator) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	payload, err := json.Marshal(texts)
	if err != nil {
		return nil, eris.Wrap(err, "localize: marshal batch")
	}

	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:       t.model,
		MaxTokens:   t.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(fmt.Sprintf(translatePrompt, displayName(target))),
		Messages:    []anthropic.Message{{Role: "user", Content: string(payload)}},
		Temperature: &temperature,
	}

	resp, err := resilience.Call(ctx, t.guard, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return t.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "localize: translate")
	}
	resp.Usage.LogCost(t.model, "localize")

	var out []string
	if err := json.Unmarshal([]byte(anthropic.CleanJSONArray(anthropic.ExtractText(resp))), &out); err != nil {
		return nil, eris.Wrap(err, "localize: parse translation")
	}
	if len(out) != len(texts) {
		return nil, eris.Errorf("localize: got %d translations for %d texts", len(out), len(texts))
	}
	return out, nil
}
