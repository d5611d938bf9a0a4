// Package eligibility applies deterministic hard rules that prune programs a
// user cannot claim.
package eligibility

import (
	"strings"

	"github.com/sells-group/aid-simulator/internal/estimate"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// Reason codes recorded on excluded candidates.
const (
	ReasonNationality      = "nationality"
	ReasonAge              = "age"
	ReasonProfile          = "profile"
	ReasonOwnerRentLinked  = "owner_rent_linked"
	ReasonRequiresChildren = "requires_children"
)

// rule returns the reason a program is excluded, or "" when it passes. A rule
// whose data is absent on the record passes.
type rule func(p model.ProgramRecord, s model.UserSituation) string

var rules = []rule{
	checkNationality,
	checkAge,
	checkProfile,
	checkHousing,
	checkChildren,
}

// Filter returns the programs that pass every rule, in input order, and one
// decision per candidate. Each candidate is judged on its own, so the
// surviving set does not depend on input order.
func Filter(candidates []model.ProgramRecord, s model.UserSituation) ([]model.ProgramRecord, []model.EligibilityDecision) {
	survivors := make([]model.ProgramRecord, 0, len(candidates))
	decisions := make([]model.EligibilityDecision, 0, len(candidates))
	for _, p := range candidates {
		d := Decide(p, s)
		decisions = append(decisions, d)
		if d.Eligible {
			survivors = append(survivors, p)
		}
	}
	return survivors, decisions
}

// Decide evaluates the hard rules for a single program.
func Decide(p model.ProgramRecord, s model.UserSituation) model.EligibilityDecision {
	for _, r := range rules {
		if reason := r(p, s); reason != "" {
			return model.EligibilityDecision{ProgramID: p.ID, Stage: model.StageHardRule, Reason: reason}
		}
	}
	return model.EligibilityDecision{ProgramID: p.ID, Eligible: true, Stage: model.StageHardRule}
}

func checkNationality(p model.ProgramRecord, s model.UserSituation) string {
	if nationalityAllowed(s.Nationality, p.Eligibility.Nationalities) {
		return ""
	}
	return ReasonNationality
}

// checkAge honours both the structured range and the legacy flat bounds. An
// age of zero is treated as not declared.
func checkAge(p model.ProgramRecord, s model.UserSituation) string {
	if s.Age <= 0 {
		return ""
	}
	e := p.Eligibility
	var mins, maxs []*int
	if e.Age != nil {
		mins = append(mins, e.Age.Min)
		maxs = append(maxs, e.Age.Max)
	}
	mins = append(mins, e.MinAge)
	maxs = append(maxs, e.MaxAge)

	for _, m := range mins {
		if m != nil && s.Age < *m {
			return ReasonAge
		}
	}
	for _, m := range maxs {
		if m != nil && s.Age > *m {
			return ReasonAge
		}
	}
	return ""
}

// profileTargets maps target-profile vocabulary to the employment statuses it
// admits.
var profileTargets = map[string][]model.Employment{
	"student":          {model.EmploymentStudent},
	"students":         {model.EmploymentStudent},
	"etudiant":         {model.EmploymentStudent},
	"etudiants":        {model.EmploymentStudent},
	"worker":           {model.EmploymentEmployed, model.EmploymentSelfEmployed},
	"workers":          {model.EmploymentEmployed, model.EmploymentSelfEmployed},
	"employed":         {model.EmploymentEmployed, model.EmploymentSelfEmployed},
	"salarie":          {model.EmploymentEmployed},
	"salaries":         {model.EmploymentEmployed},
	"self-employed":    {model.EmploymentSelfEmployed},
	"independant":      {model.EmploymentSelfEmployed},
	"jobseeker":        {model.EmploymentJobseeker},
	"jobseekers":       {model.EmploymentJobseeker},
	"unemployed":       {model.EmploymentJobseeker},
	"demandeur-emploi": {model.EmploymentJobseeker},
	"retired":          {model.EmploymentRetired},
	"retraite":         {model.EmploymentRetired},
	"retraites":        {model.EmploymentRetired},
}

func checkProfile(p model.ProgramRecord, s model.UserSituation) string {
	target := strings.TrimSpace(p.TargetProfile)
	if target == "" {
		return ""
	}
	known := false
	for _, part := range strings.FieldsFunc(target, func(r rune) bool { return strings.ContainsRune(",;/|", r) }) {
		key := strings.ReplaceAll(textnorm.Slug(part), "demandeurs", "demandeur")
		key = strings.ReplaceAll(key, "demandeur-d-emploi", "demandeur-emploi")
		if key == "all" || key == "tous" {
			return ""
		}
		statuses, ok := profileTargets[key]
		if !ok {
			continue
		}
		known = true
		for _, st := range statuses {
			if st == s.Employment {
				return ""
			}
		}
	}
	if !known {
		return ""
	}
	return ReasonProfile
}

func checkHousing(p model.ProgramRecord, s model.UserSituation) string {
	if s.HousingStatus != model.HousingOwner || !housingCategory(p.Category) {
		return ""
	}
	if p.Family == model.FamilyHousing || estimate.RentLinked(p.Name) {
		return ReasonOwnerRentLinked
	}
	return ""
}

func housingCategory(category string) bool {
	c := textnorm.Fold(strings.TrimSpace(category))
	return c == "housing" || c == "logement"
}

func checkChildren(p model.ProgramRecord, s model.UserSituation) string {
	if p.Eligibility.RequiresChildren && s.Children() == 0 {
		return ReasonRequiresChildren
	}
	return ""
}
