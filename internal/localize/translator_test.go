package localize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aid-simulator/internal/resilience"
	"github.com/sells-group/aid-simulator/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func testGuard() *resilience.Guard {
	return resilience.NewGuard(resilience.GuardConfig{
		Name:    "translate-test",
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	})
}

func reply(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

func TestLLMTranslator_Translate(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Messages[0].Content == `["Aide au loyer","Bourse"]` &&
			req.Model == "claude-haiku-4-5-20251001"
	})).Return(reply("```json\n[\"Rent help\", \"Grant\"]\n```"), nil)

	tr := NewLLMTranslator(client, testGuard(), "claude-haiku-4-5-20251001", 0)
	out, err := tr.Translate(context.Background(), []string{"Aide au loyer", "Bourse"}, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rent help", "Grant"}, out)
}

func TestLLMTranslator_LengthMismatch(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(reply(`["one"]`), nil)

	tr := NewLLMTranslator(client, testGuard(), "m", 100)
	_, err := tr.Translate(context.Background(), []string{"a", "b"}, "en")
	assert.Error(t, err)
}

func TestLLMTranslator_Garbage(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(reply("Sorry, I cannot help."), nil)

	tr := NewLLMTranslator(client, testGuard(), "m", 100)
	_, err := tr.Translate(context.Background(), []string{"a"}, "en")
	assert.Error(t, err)
}

func TestLLMTranslator_EndToEndPassThroughOnError(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	l := New(Config{NativeLanguage: "fr", BatchSize: 20}, NewLLMTranslator(client, testGuard(), "m", 100))
	in := aides()
	assert.Equal(t, in, l.Localize(context.Background(), in, "en"))
}
