package relevance

import (
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// Disqualifying keyword tables, pre-folded for textnorm.Words output. They are
// read-only and shared by every run.
var (
	childKeywords = []string{
		"enfant", " child", "familial", "familiale", "creche", "naissance", " paje ",
		" parent", "rentree scolaire", "maternite", "maternity", "garde d'enfant",
	}
	disabilityKeywords = []string{
		"handicap", "disab", " aah ", "invalidite", "mdph", " pch ",
	}
	seniorKeywords = []string{
		"retraite", "senior", "personnes agees", "vieillesse", " aspa ", "elderly", "pensioner",
	}
	unemploymentKeywords = []string{
		"chomage", "demandeur d'emploi", "demandeurs d'emploi", "unemploy", "jobseeker",
		"france travail", "pole emploi", "retour a l'emploi",
	}
)

// Fallback reasons recorded on excluded candidates.
const (
	ReasonChildless     = "childless"
	ReasonNoDisability  = "no_disability"
	ReasonBelowSenior   = "below_senior_age"
	ReasonStudentUnempl = "student_unemployment"
)

// Fallback is the deterministic keyword classifier. It never fails.
type Fallback struct {
	// SeniorAge is the age below which senior programs are dropped.
	SeniorAge int
}

// Retain drops candidates whose name or description carries a keyword that
// contradicts the situation, keeping input order.
func (f Fallback) Retain(candidates []model.ProgramRecord, s model.UserSituation) ([]model.ProgramRecord, []model.EligibilityDecision) {
	kept := make([]model.ProgramRecord, 0, len(candidates))
	decisions := make([]model.EligibilityDecision, 0, len(candidates))
	for _, p := range candidates {
		reason := f.reason(p, s)
		decisions = append(decisions, model.EligibilityDecision{
			ProgramID: p.ID,
			Eligible:  reason == "",
			Stage:     model.StageClassifier,
			Reason:    reason,
		})
		if reason == "" {
			kept = append(kept, p)
		}
	}
	return kept, decisions
}

func (f Fallback) reason(p model.ProgramRecord, s model.UserSituation) string {
	text := textnorm.Words(p.Name + " " + p.Description)

	if s.Children() == 0 && matches(text, childKeywords) {
		return ReasonChildless
	}
	if !s.HasDisability && matches(text, disabilityKeywords) {
		return ReasonNoDisability
	}
	if s.Age > 0 && s.Age < f.SeniorAge && matches(text, seniorKeywords) {
		return ReasonBelowSenior
	}
	if s.Employment == model.EmploymentStudent && matches(text, unemploymentKeywords) {
		return ReasonStudentUnempl
	}
	return ""
}

func matches(text string, keywords []string) bool {
	_, ok := textnorm.ContainsAny(text, keywords)
	return ok
}
