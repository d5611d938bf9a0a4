package estimate

import (
	"strings"

	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// Keyword tables are matched against textnorm.Words output, so entries are
// folded and padded where a bare substring would over-match.
var (
	feeKeywords = []string{
		" cvec ", "contribution vie etudiante", " fee ", " fees ", " levy ",
	}
	// benefitPrefixes open the names of programs that pay or waive, never
	// charge.
	benefitPrefixes = []string{
		" aide ", " aides ", " exoneration ", " prise en charge ", " allocation ",
		" allocations ", " remboursement ", " reduction ",
	}
	activityKeywords = []string{
		"prime d'activite", "prime activite", "activity bonus", "in-work bonus",
	}
	minimumIncomeKeywords = []string{
		" rsa ", "revenu de solidarite", "minimum income", "minimum vieillesse", " aspa ",
	}
	familyKeywords = []string{
		"allocations familiales", "allocation familiale", "family allowance", "child benefit",
		" paje ", "complement familial", "allocation de rentree",
	}
	rentKeywords = []string{
		" apl ", " als ", " alf ", "aide personnalisee au logement", "allocation de logement",
		"allocation logement", "aide au logement", "housing benefit", " rent ", " loyer",
	}
	transportKeywords = []string{
		" navigo ", "imagine r", "transport", "reduction tarifaire", "travel pass",
	}
	studentKeywords = []string{
		" bourse", "crous", "scholarship", "student aid", "aide etudiant", "etudiant",
	}
)

// RentLinked reports whether a program name marks a benefit computed from
// rent, which only renters can claim.
func RentLinked(name string) bool {
	_, ok := textnorm.ContainsAny(textnorm.Words(name), rentKeywords)
	return ok
}

// ClassifyFamily picks the estimation family of a program from its name and
// category. It runs once when a catalog is loaded.
func ClassifyFamily(p model.ProgramRecord) model.Family {
	text := textnorm.Words(p.Name + " " + p.Category)
	name := textnorm.Words(p.Name)

	switch {
	case has(name, feeKeywords) && !benefitName(name):
		return model.FamilyFee
	case has(text, activityKeywords):
		return model.FamilyActivityBonus
	case has(text, minimumIncomeKeywords):
		return model.FamilyMinimumIncome
	case has(text, familyKeywords):
		return model.FamilyFamily
	case has(name, rentKeywords):
		return model.FamilyHousing
	case has(text, transportKeywords):
		return model.FamilyTransport
	case has(text, studentKeywords):
		return model.FamilyStudentAid
	}
	return model.FamilyGeneric
}

// FamilyOf returns the stored family of p, classifying untagged records.
func FamilyOf(p model.ProgramRecord) model.Family {
	if p.Family != "" {
		return p.Family
	}
	return ClassifyFamily(p)
}

func benefitName(name string) bool {
	for _, prefix := range benefitPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func has(text string, keywords []string) bool {
	_, ok := textnorm.ContainsAny(text, keywords)
	return ok
}
