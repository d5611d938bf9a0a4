package model

// ScopeNational is the geography scope of nationwide programs.
const ScopeNational = "national"

// Family tags an aid program with the estimation formula that applies to it.
// It is assigned once when the catalog is loaded.
type Family string

const (
	FamilyHousing       Family = "housing"
	FamilyMinimumIncome Family = "minimum_income"
	FamilyActivityBonus Family = "activity_bonus"
	FamilyTransport     Family = "transport"
	FamilyFee           Family = "fee"
	FamilyFamily        Family = "family_allowance"
	FamilyStudentAid    Family = "student_aid"
	FamilyGeneric       Family = "generic"
)

// AgeRange is the structured age bound of a program. Either end may be unset.
type AgeRange struct {
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty"`
}

// Eligibility holds the predicate data of a program. Absent fields mean the
// corresponding rule does not apply.
type Eligibility struct {
	Nationalities    []string  `json:"nationalities,omitempty" yaml:"nationalities,omitempty"`
	Age              *AgeRange `json:"age,omitempty" yaml:"age,omitempty"`
	MinAge           *int      `json:"min_age,omitempty" yaml:"min_age,omitempty"` // legacy flat bound
	MaxAge           *int      `json:"max_age,omitempty" yaml:"max_age,omitempty"` // legacy flat bound
	RequiresChildren bool      `json:"requires_children,omitempty" yaml:"requires_children,omitempty"`
}

// AmountData holds the monetary figures published for a program, in currency
// units per month.
type AmountData struct {
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Base *float64 `json:"base,omitempty" yaml:"base,omitempty"`

	// IncomeCeiling is the monthly income at or above which an
	// income-tested program pays nothing.
	IncomeCeiling *float64 `json:"income_ceiling,omitempty" yaml:"income_ceiling,omitempty"`
}

// MaxOr returns the published maximum, or def when none is set.
func (a AmountData) MaxOr(def float64) float64 {
	if a.Max != nil && *a.Max > 0 {
		return *a.Max
	}
	return def
}

// BaseOr returns the published base amount, or def when none is set.
func (a AmountData) BaseOr(def float64) float64 {
	if a.Base != nil && *a.Base > 0 {
		return *a.Base
	}
	return def
}

// IncomeCeilingOr returns the published income ceiling, or def when none is
// set.
func (a AmountData) IncomeCeilingOr(def float64) float64 {
	if a.IncomeCeiling != nil && *a.IncomeCeiling > 0 {
		return *a.IncomeCeiling
	}
	return def
}

// ProgramRecord is one catalogued aid program. Records are owned by the
// catalog loader and read-only to the simulation pipeline.
type ProgramRecord struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Description   string      `json:"description" yaml:"description"`
	Category      string      `json:"category" yaml:"category"`
	Scope         string      `json:"scope" yaml:"scope"`
	TargetProfile string      `json:"target_profile,omitempty" yaml:"target_profile,omitempty"`
	Eligibility   Eligibility `json:"eligibility" yaml:"eligibility"`
	Amount        AmountData  `json:"amount" yaml:"amount"`
	SourceURL     string      `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	ApplyURL      string      `json:"apply_url,omitempty" yaml:"apply_url,omitempty"`
	Family        Family      `json:"family,omitempty" yaml:"family,omitempty"`
	Position      int         `json:"-" yaml:"position,omitempty"`
}

// DecisionStage names the pipeline stage that decided a candidate's fate.
type DecisionStage string

const (
	StageHardRule   DecisionStage = "hard_rule"
	StageClassifier DecisionStage = "classifier"
)

// EligibilityDecision pairs a program with the outcome of one stage. Decisions
// are only logged; survivors flow forward as ProgramRecords.
type EligibilityDecision struct {
	ProgramID string        `json:"program_id"`
	Eligible  bool          `json:"eligible"`
	Stage     DecisionStage `json:"stage"`
	Reason    string        `json:"reason,omitempty"`
}
