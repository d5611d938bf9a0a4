package model

import (
	"encoding/json"
	"time"
)

// RelevancePath records which relevance classifier branch produced a result.
type RelevancePath string

const (
	RelevanceLLM      RelevancePath = "llm"
	RelevanceCache    RelevancePath = "cache"
	RelevanceFallback RelevancePath = "fallback"
	RelevanceSkipped  RelevancePath = "skipped"
)

// EstimatedAide is a surviving program enriched with its monthly estimate.
// The annual figure is always derived from MonthlyAmount.
type EstimatedAide struct {
	ProgramID     string `json:"program_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Family        Family `json:"family"`
	SourceURL     string `json:"source_url,omitempty"`
	ApplyURL      string `json:"apply_url,omitempty"`
	MonthlyAmount int    `json:"monthly_amount"`
}

// EstimatedAnnual is twelve times the monthly amount.
func (a EstimatedAide) EstimatedAnnual() int {
	return a.MonthlyAmount * 12
}

type estimatedAideJSON struct {
	ProgramID       string `json:"program_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Family          Family `json:"family"`
	SourceURL       string `json:"source_url,omitempty"`
	ApplyURL        string `json:"apply_url,omitempty"`
	MonthlyAmount   int    `json:"monthly_amount"`
	EstimatedAnnual int    `json:"estimated_annual"`
}

// MarshalJSON adds the derived estimated_annual field.
func (a EstimatedAide) MarshalJSON() ([]byte, error) {
	return json.Marshal(estimatedAideJSON{
		ProgramID:       a.ProgramID,
		Name:            a.Name,
		Description:     a.Description,
		Category:        a.Category,
		Family:          a.Family,
		SourceURL:       a.SourceURL,
		ApplyURL:        a.ApplyURL,
		MonthlyAmount:   a.MonthlyAmount,
		EstimatedAnnual: a.EstimatedAnnual(),
	})
}

// UnmarshalJSON ignores any stored estimated_annual and keeps it derived.
func (a *EstimatedAide) UnmarshalJSON(data []byte) error {
	var raw estimatedAideJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = EstimatedAide{
		ProgramID:     raw.ProgramID,
		Name:          raw.Name,
		Description:   raw.Description,
		Category:      raw.Category,
		Family:        raw.Family,
		SourceURL:     raw.SourceURL,
		ApplyURL:      raw.ApplyURL,
		MonthlyAmount: raw.MonthlyAmount,
	}
	return nil
}

// SimulationResult is the output of one pipeline run. Persisted results are
// append-only.
type SimulationResult struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	Language     string          `json:"language"`
	Aides        []EstimatedAide `json:"aides"`
	TotalMonthly int             `json:"total_monthly"`
	Profile      UserSituation   `json:"profile"`
	Relevance    RelevancePath   `json:"relevance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TotalAnnual is twelve times the monthly total.
func (r SimulationResult) TotalAnnual() int {
	return r.TotalMonthly * 12
}

// SumMonthly returns the sum of monthly amounts over aides.
func SumMonthly(aides []EstimatedAide) int {
	total := 0
	for _, a := range aides {
		total += a.MonthlyAmount
	}
	return total
}

type simulationResultAlias SimulationResult

// MarshalJSON adds the derived total_annual field.
func (r SimulationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		simulationResultAlias
		TotalAnnual int `json:"total_annual"`
	}{
		simulationResultAlias: simulationResultAlias(r),
		TotalAnnual:           r.TotalAnnual(),
	})
}
