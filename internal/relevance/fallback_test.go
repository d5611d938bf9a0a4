package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/aid-simulator/internal/model"
)

func TestFallback_Reasons(t *testing.T) {
	f := Fallback{SeniorAge: 60}
	programs := []model.ProgramRecord{
		{ID: "apl", Name: "Aide au logement", Description: "Pour les locataires"},
		{ID: "af", Name: "Allocations familiales", Description: "Versées dès le deuxième enfant"},
		{ID: "aah", Name: "AAH", Description: "Allocation aux adultes handicapés"},
		{ID: "aspa", Name: "ASPA", Description: "Minimum vieillesse pour les retraités"},
		{ID: "are", Name: "Allocation chômage", Description: "Aide au retour à l'emploi"},
	}

	tests := []struct {
		name    string
		mutate  func(*model.UserSituation)
		want    []string
		reasons map[string]string
	}{
		{
			name: "young childless student",
			want: []string{"apl"},
			reasons: map[string]string{
				"af":   ReasonChildless,
				"aah":  ReasonNoDisability,
				"aspa": ReasonBelowSenior,
				"are":  ReasonStudentUnempl,
			},
		},
		{
			name: "parent with disability",
			mutate: func(s *model.UserSituation) {
				s.HasChildren = true
				s.ChildCount = 2
				s.HasDisability = true
			},
			want: []string{"apl", "af", "aah"},
		},
		{
			name: "retired jobseeker",
			mutate: func(s *model.UserSituation) {
				s.Age = 67
				s.Employment = model.EmploymentJobseeker
			},
			want: []string{"apl", "aspa", "are"},
		},
		{
			name:   "unknown age keeps senior programs",
			mutate: func(s *model.UserSituation) { s.Age = 0 },
			want:   []string{"apl", "aspa"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := studentSituation()
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			kept, decisions := f.Retain(programs, s)
			assert.Equal(t, tt.want, ids(kept))
			assert.Len(t, decisions, len(programs))
			for _, d := range decisions {
				if want, ok := tt.reasons[d.ProgramID]; ok {
					assert.Equal(t, want, d.Reason, d.ProgramID)
					assert.False(t, d.Eligible)
				}
			}
		})
	}
}

func TestFallback_ChildKeywordsMatchWholeWords(t *testing.T) {
	f := Fallback{SeniorAge: 60}
	childless := model.UserSituation{Age: 30, Employment: model.EmploymentEmployed}
	programs := []model.ProgramRecord{
		{ID: "energie", Name: "Chèque énergie", Description: "Tarif transparent pour les ménages modestes"},
		{ID: "mutuelle", Name: "Complémentaire santé", Description: "Prise en charge apparente des frais"},
		{ID: "isole", Name: "Allocation parent isolé", Description: "Pour les parents seuls"},
		{ID: "care", Name: "Childcare grant", Description: "Help with nursery costs"},
	}

	retained, decisions := f.Retain(programs, childless)
	assert.Equal(t, []string{"energie", "mutuelle"}, ids(retained))
	for _, d := range decisions {
		if d.ProgramID == "isole" || d.ProgramID == "care" {
			assert.Equal(t, ReasonChildless, d.Reason, d.ProgramID)
		}
	}
}

func TestFallback_Empty(t *testing.T) {
	kept, decisions := Fallback{SeniorAge: 60}.Retain(nil, studentSituation())
	assert.Empty(t, kept)
	assert.Empty(t, decisions)
}
