package relevance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aid-simulator/internal/model"
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

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

func testGuard(threshold int) *resilience.Guard {
	return resilience.NewGuard(resilience.GuardConfig{
		Name:    "relevance-test",
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: threshold, ResetTimeout: time.Minute, HalfOpenMaxProbes: 1},
	})
}

func testConfig() Config {
	return Config{Enabled: true, Model: "claude-haiku-4-5-20251001", MaxTokens: 512, DescriptionMax: 300, SeniorAge: 60, CallTimeout: 2 * time.Second}
}

func studentSituation() model.UserSituation {
	rent := 600.0
	return model.UserSituation{
		Age:           22,
		Nationality:   model.NationalityNonEU,
		Geography:     "ile-de-france",
		HousingStatus: model.HousingRenter,
		MonthlyRent:   &rent,
		MonthlyIncome: 400,
		Employment:    model.EmploymentStudent,
	}
}

func candidates() []model.ProgramRecord {
	return []model.ProgramRecord{
		{ID: "apl", Name: "Aide au logement étudiant", Description: "Aide au paiement du loyer", Category: "housing"},
		{ID: "creche", Name: "Aide à la garde", Description: "Frais de crèche pour les enfants de moins de 6 ans", Category: "family"},
		{ID: "navigo", Name: "Navigo étudiant", Description: "Réduction sur le pass transport", Category: "transport"},
	}
}

func ids(programs []model.ProgramRecord) []string {
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		out = append(out, p.ID)
	}
	return out
}

func TestClassify_LLMThenCache(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.System) == 1 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user"
	})).Return(textResponse("```json\n{\"relevant_ids\": [\"navigo\", \"ghost\", \"apl\", \"apl\"]}\n```"), nil).Once()

	cache := NewMemoryCache(10, time.Hour)
	c := New(testConfig(), client, testGuard(5), cache)

	res := c.Classify(context.Background(), studentSituation(), candidates())
	assert.Equal(t, model.RelevanceLLM, res.Path)
	assert.Equal(t, []string{"apl", "navigo"}, ids(res.Retained), "input order kept, unknown ids dropped")
	require.Len(t, res.Decisions, 3)
	assert.False(t, res.Decisions[1].Eligible)
	assert.Equal(t, model.StageClassifier, res.Decisions[1].Stage)
	assert.Equal(t, 1, cache.Len())

	again := c.Classify(context.Background(), studentSituation(), candidates())
	assert.Equal(t, model.RelevanceCache, again.Path)
	assert.Equal(t, []string{"apl", "navigo"}, ids(again.Retained))
	client.AssertExpectations(t)
}

func TestClassify_ConcurrentCallersShareOneUpstreamCall(t *testing.T) {
	release := make(chan time.Time)
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		WaitUntil(release).
		Return(textResponse(`{"relevant_ids": ["apl", "navigo"]}`), nil)

	c := New(testConfig(), client, testGuard(5), NewMemoryCache(10, time.Hour))

	const callers = 20
	results := make([]Result, callers)
	var ready, done sync.WaitGroup
	ready.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			ready.Done()
			results[i] = c.Classify(context.Background(), studentSituation(), candidates())
		}()
	}
	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	client.AssertNumberOfCalls(t, "CreateMessage", 1)
	for i, res := range results {
		assert.Contains(t, []model.RelevancePath{model.RelevanceLLM, model.RelevanceCache}, res.Path, "caller %d", i)
		assert.Equal(t, []string{"apl", "navigo"}, ids(res.Retained), "caller %d", i)
	}
}

func TestClassify_FallbackOnUpstreamFailure(t *testing.T) {
	tests := []struct {
		name string
		resp *anthropic.MessageResponse
		err  error
	}{
		{"error", nil, errors.New("upstream exploded")},
		{"unparsable", textResponse("I think all of them are relevant."), nil},
		{"empty set", textResponse(`{"relevant_ids": []}`), nil},
		{"only unknown ids", textResponse(`{"relevant_ids": ["ghost"]}`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockAnthropicClient)
			client.On("CreateMessage", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			cache := NewMemoryCache(10, time.Hour)
			c := New(testConfig(), client, testGuard(5), cache)

			res := c.Classify(context.Background(), studentSituation(), candidates())
			want, _ := Fallback{SeniorAge: 60}.Retain(candidates(), studentSituation())

			assert.Equal(t, model.RelevanceFallback, res.Path)
			assert.Equal(t, ids(want), ids(res.Retained))
			assert.Equal(t, []string{"apl", "navigo"}, ids(res.Retained))
			assert.Zero(t, cache.Len(), "fallback decisions are not cached")
		})
	}
}

func TestClassify_OpenBreakerSkipsUpstream(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	c := New(testConfig(), client, testGuard(1), nil)

	first := c.Classify(context.Background(), studentSituation(), candidates())
	second := c.Classify(context.Background(), studentSituation(), candidates())

	assert.Equal(t, model.RelevanceFallback, first.Path)
	assert.Equal(t, model.RelevanceFallback, second.Path)
	assert.Equal(t, resilience.CircuitOpen, c.guard.State())
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestClassify_CancelledCallerGetsFallback(t *testing.T) {
	release := make(chan struct{})
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(textResponse(`{"relevant_ids": ["apl"]}`), nil).Once()

	cache := NewMemoryCache(10, time.Hour)
	c := New(testConfig(), client, testGuard(5), cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Classify(ctx, studentSituation(), candidates())
	assert.Equal(t, model.RelevanceFallback, res.Path)

	close(release)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, 2*time.Second, 10*time.Millisecond,
		"detached upstream call still populates the cache")

	hit := c.Classify(context.Background(), studentSituation(), candidates())
	assert.Equal(t, model.RelevanceCache, hit.Path)
	assert.Equal(t, []string{"apl"}, ids(hit.Retained))
}

func TestClassify_Disabled(t *testing.T) {
	client := new(mockAnthropicClient)
	cfg := testConfig()
	cfg.Enabled = false
	c := New(cfg, client, nil, nil)

	res := c.Classify(context.Background(), studentSituation(), candidates())
	assert.Equal(t, model.RelevanceFallback, res.Path)
	assert.False(t, c.Enabled())
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)

	assert.False(t, New(testConfig(), nil, nil, nil).Enabled())
}

func TestClassify_NoCandidates(t *testing.T) {
	client := new(mockAnthropicClient)
	res := New(testConfig(), client, nil, nil).Classify(context.Background(), studentSituation(), nil)
	assert.Equal(t, model.RelevanceSkipped, res.Path)
	assert.Empty(t, res.Retained)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestClassify_TruncatesDescriptions(t *testing.T) {
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'é'
	}
	progs := []model.ProgramRecord{{ID: "long", Name: "Long", Description: string(long)}}

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		content := req.Messages[0].Content
		return strings.Count(content, "é") == 300
	})).Return(textResponse(`{"relevant_ids": ["long"]}`), nil)

	res := New(testConfig(), client, testGuard(5), nil).Classify(context.Background(), studentSituation(), progs)
	assert.Equal(t, model.RelevanceLLM, res.Path)
}

func TestDegradeCause(t *testing.T) {
	assert.Equal(t, "circuit_open", degradeCause(resilience.ErrCircuitOpen))
	assert.Equal(t, "timeout", degradeCause(context.DeadlineExceeded))
	assert.Equal(t, "unparsable", degradeCause(errUnparsable))
	assert.Equal(t, "empty", degradeCause(errEmptyDecision))
	assert.Equal(t, "error", degradeCause(errors.New("x")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ét", truncate("été", 2))
}
