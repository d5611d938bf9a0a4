// Package estimate computes a monthly benefit estimate for each eligible
// program from the family-specific formula registered for it.
package estimate

import (
	"math"

	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// EstimateFunc computes the raw monthly amount of p for s.
type EstimateFunc func(p model.ProgramRecord, s model.UserSituation) float64

// Default caps and bases, used when a record publishes no figure.
const (
	defaultHousingCap      = 350.0
	defaultHousingFlat     = 200.0
	defaultMinIncomeLimit  = 700.0
	defaultMinIncomeBase   = 607.0
	defaultActivityCeiling = 1900.0
	defaultActivityBase    = 240.0
	defaultTransport       = 40.0
	defaultPerChild        = 70.0
	defaultStudentMax      = 550.0
	defaultGeneric         = 80.0
)

// genericByCategory maps a folded category to the generic monthly default.
var genericByCategory = map[string]float64{
	"housing":   150,
	"logement":  150,
	"health":    50,
	"sante":     50,
	"transport": 30,
	"mobilite":  30,
	"education": 100,
	"etudes":    100,
}

// Estimator dispatches records to their family formula.
type Estimator struct {
	formulas map[model.Family]EstimateFunc
}

// New returns an Estimator with the built-in family formulas.
func New() *Estimator {
	return &Estimator{formulas: map[model.Family]EstimateFunc{
		model.FamilyHousing:       housing,
		model.FamilyMinimumIncome: minimumIncome,
		model.FamilyActivityBonus: activityBonus,
		model.FamilyTransport:     transport,
		model.FamilyFee:           fee,
		model.FamilyFamily:        familyAllowance,
		model.FamilyStudentAid:    studentAid,
		model.FamilyGeneric:       generic,
	}}
}

// Register installs or replaces the formula of a family.
func (e *Estimator) Register(f model.Family, fn EstimateFunc) {
	e.formulas[f] = fn
}

// Monthly returns the rounded, non-negative monthly amount of p for s.
func (e *Estimator) Monthly(p model.ProgramRecord, s model.UserSituation) int {
	fn, ok := e.formulas[FamilyOf(p)]
	if !ok {
		fn = generic
	}
	v := fn(p, s)
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Round(v))
}

// Estimate converts programs into EstimatedAides, preserving order.
func (e *Estimator) Estimate(programs []model.ProgramRecord, s model.UserSituation) []model.EstimatedAide {
	out := make([]model.EstimatedAide, 0, len(programs))
	for _, p := range programs {
		out = append(out, model.EstimatedAide{
			ProgramID:     p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Category:      p.Category,
			Family:        FamilyOf(p),
			SourceURL:     p.SourceURL,
			ApplyURL:      p.ApplyURL,
			MonthlyAmount: e.Monthly(p, s),
		})
	}
	return out
}

// IncomeMultiplier scales income-sensitive benefits. It never increases as
// income grows.
func IncomeMultiplier(income float64) float64 {
	switch {
	case income < 500:
		return 1.0
	case income < 1000:
		return 0.85
	case income < 1500:
		return 0.65
	case income < 2000:
		return 0.4
	default:
		return 0.2
	}
}

func housing(p model.ProgramRecord, s model.UserSituation) float64 {
	rent, ok := s.Rent()
	if !ok {
		return p.Amount.BaseOr(defaultHousingFlat)
	}
	return math.Min(rent*0.5*IncomeMultiplier(s.MonthlyIncome), p.Amount.MaxOr(defaultHousingCap))
}

func minimumIncome(p model.ProgramRecord, s model.UserSituation) float64 {
	if s.MonthlyIncome >= p.Amount.IncomeCeilingOr(defaultMinIncomeLimit) {
		return 0
	}
	return p.Amount.BaseOr(defaultMinIncomeBase) * familyFactor(s.Children())
}

// familyFactor is 1 plus 0.3 for each of the first two children and 0.4 for
// each further child.
func familyFactor(children int) float64 {
	factor := 1.0
	for i := 1; i <= children; i++ {
		if i <= 2 {
			factor += 0.3
		} else {
			factor += 0.4
		}
	}
	return factor
}

func activityBonus(p model.ProgramRecord, s model.UserSituation) float64 {
	ceiling := p.Amount.IncomeCeilingOr(defaultActivityCeiling)
	if !s.Employment.Working() || s.MonthlyIncome >= ceiling {
		return 0
	}
	return p.Amount.BaseOr(defaultActivityBase) * (1 - s.MonthlyIncome/ceiling)
}

func transport(p model.ProgramRecord, _ model.UserSituation) float64 {
	return p.Amount.BaseOr(defaultTransport)
}

// fee programs are obligations, not benefits.
func fee(model.ProgramRecord, model.UserSituation) float64 {
	return 0
}

func familyAllowance(p model.ProgramRecord, s model.UserSituation) float64 {
	return p.Amount.BaseOr(defaultPerChild) * float64(s.Children())
}

func studentAid(p model.ProgramRecord, s model.UserSituation) float64 {
	if s.Employment != model.EmploymentStudent {
		return generic(p, s)
	}
	return p.Amount.MaxOr(defaultStudentMax) * IncomeMultiplier(s.MonthlyIncome)
}

func generic(p model.ProgramRecord, _ model.UserSituation) float64 {
	if p.Amount.Base != nil && *p.Amount.Base > 0 {
		return *p.Amount.Base
	}
	if v, ok := genericByCategory[textnorm.Fold(p.Category)]; ok {
		return v
	}
	return defaultGeneric
}
