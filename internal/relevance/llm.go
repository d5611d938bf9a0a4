package relevance

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/resilience"
	"github.com/sells-group/aid-simulator/pkg/anthropic"
)

var (
	errUnparsable    = eris.New("relevance: unparsable classifier output")
	errEmptyDecision = eris.New("relevance: classifier retained no candidates")
)

const systemPrompt = `You screen public financial-aid programs for one person.
You receive the person's profile and a JSON list of programs that already pass the hard eligibility rules (nationality, age, housing, declared children).
Keep every program the person could plausibly claim. Drop a program only when its topic clearly does not fit the profile.

Known anti-patterns to drop:
- Programs for children, parents, childcare or school costs when the person has no children.
- Programs reserved to seniors or retirees when the person is younger than %d.
- Unemployment or job-seeker programs when the person is a student.
- Disability programs when the person declares no disability.
- Programs about a situation the person is clearly not in (pregnancy, widowhood, business creation, home ownership works for a renter, and similar).

Respond with JSON only, no prose:
{"relevant_ids": ["<program id>", ...]}`

type candidateView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type classifierOutput struct {
	RelevantIDs []string `json:"relevant_ids"`
}

// classifyLLM asks the model which candidates are relevant and returns the
// known ids it retained.
func (c *Classifier) classifyLLM(ctx context.Context, s model.UserSituation, candidates []model.ProgramRecord) ([]string, error) {
	views := make([]candidateView, 0, len(candidates))
	known := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		views = append(views, candidateView{
			ID:          p.ID,
			Name:        p.Name,
			Description: truncate(p.Description, c.cfg.DescriptionMax),
			Category:    p.Category,
		})
		known[p.ID] = struct{}{}
	}
	payload, err := json.Marshal(views)
	if err != nil {
		return nil, eris.Wrap(err, "relevance: marshal candidates")
	}

	var user strings.Builder
	user.WriteString("Profile:\n")
	user.WriteString(s.Summary())
	user.WriteString("\nPrograms:\n")
	user.Write(payload)

	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(c.prompt),
		Messages:    []anthropic.Message{{Role: "user", Content: user.String()}},
		Temperature: &temperature,
	}

	resp, err := resilience.Call(ctx, c.guard, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "relevance: classify")
	}
	resp.Usage.LogCost(c.cfg.Model, "relevance")

	var out classifierOutput
	text := anthropic.CleanJSONObject(anthropic.ExtractText(resp))
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, eris.Wrap(errUnparsable, err.Error())
	}

	ids := make([]string, 0, len(out.RelevantIDs))
	seen := make(map[string]struct{}, len(out.RelevantIDs))
	for _, id := range out.RelevantIDs {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errEmptyDecision
	}
	return ids, nil
}

// truncate cuts s to at most n runes. Zero n leaves s untouched.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
