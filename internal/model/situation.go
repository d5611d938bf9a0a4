package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Nationality is the coarse nationality class declared by the user.
type Nationality string

const (
	NationalityCitizen Nationality = "citizen"
	NationalityEU      Nationality = "eu"
	NationalityNonEU   Nationality = "non-eu"
)

// HousingStatus describes how the user is housed.
type HousingStatus string

const (
	HousingRenter HousingStatus = "renter"
	HousingOwner  HousingStatus = "owner"
	HousingOther  HousingStatus = "other"
)

// Employment is the user's declared activity.
type Employment string

const (
	EmploymentStudent      Employment = "student"
	EmploymentEmployed     Employment = "employed"
	EmploymentSelfEmployed Employment = "self_employed"
	EmploymentJobseeker    Employment = "jobseeker"
	EmploymentRetired      Employment = "retired"
	EmploymentOther        Employment = "other"
)

// Working reports whether the status counts as declared employment.
func (e Employment) Working() bool {
	return e == EmploymentEmployed || e == EmploymentSelfEmployed
}

// UserSituation holds the answers of one simulation questionnaire. It is never
// mutated once a run has started.
type UserSituation struct {
	Age            int           `json:"age" validate:"gte=0,lte=120"`
	Nationality    Nationality   `json:"nationality" validate:"required,oneof=citizen eu non-eu"`
	Geography      string        `json:"geography" validate:"max=128"`
	HousingStatus  HousingStatus `json:"housing_status" validate:"required,oneof=renter owner other"`
	MonthlyRent    *float64      `json:"monthly_rent,omitempty" validate:"omitempty,gte=0"`
	MonthlyIncome  float64       `json:"monthly_income" validate:"gte=0"`
	HasChildren    bool          `json:"has_children"`
	ChildCount     int           `json:"child_count" validate:"gte=0,lte=20"`
	Employment     Employment    `json:"employment_status" validate:"required,oneof=student employed self_employed jobseeker retired other"`
	YearsInCountry *int          `json:"years_in_country,omitempty" validate:"omitempty,gte=0"`
	HasDisability  bool          `json:"has_disability"`
}

// Rent returns the declared monthly rent and whether it is known.
func (s UserSituation) Rent() (float64, bool) {
	if s.MonthlyRent == nil || *s.MonthlyRent <= 0 {
		return 0, false
	}
	return *s.MonthlyRent, true
}

// Children returns the number of dependent children, treating a declared
// "has children" with no count as one child.
func (s UserSituation) Children() int {
	if !s.HasChildren {
		return 0
	}
	if s.ChildCount <= 0 {
		return 1
	}
	return s.ChildCount
}

// Summary renders the situation as a short plain-text profile for prompts.
func (s UserSituation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age: %d\n", s.Age)
	fmt.Fprintf(&b, "Nationality: %s\n", s.Nationality)
	if s.Geography != "" {
		fmt.Fprintf(&b, "Region: %s\n", s.Geography)
	}
	if rent, ok := s.Rent(); ok {
		fmt.Fprintf(&b, "Housing: %s (rent %.0f/month)\n", s.HousingStatus, rent)
	} else {
		fmt.Fprintf(&b, "Housing: %s\n", s.HousingStatus)
	}
	fmt.Fprintf(&b, "Monthly income: %.0f\n", s.MonthlyIncome)
	if n := s.Children(); n > 0 {
		fmt.Fprintf(&b, "Children: %d\n", n)
	} else {
		b.WriteString("Children: none\n")
	}
	fmt.Fprintf(&b, "Employment: %s\n", s.Employment)
	if s.YearsInCountry != nil {
		fmt.Fprintf(&b, "Years in country: %d\n", *s.YearsInCountry)
	}
	if s.HasDisability {
		b.WriteString("Disability: yes\n")
	} else {
		b.WriteString("Disability: no\n")
	}
	return b.String()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalid is the root of every validation failure returned by Validate.
var ErrInvalid = eris.New("invalid input")

// Validate checks struct tags on v and flattens validator errors into a
// single readable message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "validate")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
	}
	return eris.Wrap(ErrInvalid, strings.Join(msgs, "; "))
}
