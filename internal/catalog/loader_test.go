package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aid-simulator/internal/model"
)

func TestLoadFile(t *testing.T) {
	programs, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	require.Len(t, programs, 5)

	apl := programs[0]
	assert.Equal(t, "apl-etudiant", apl.ID)
	assert.Equal(t, "ile-de-france", apl.Scope)
	assert.Equal(t, model.FamilyHousing, apl.Family)
	assert.Equal(t, 1, apl.Position)
	require.NotNil(t, apl.Amount.Max)
	assert.Equal(t, 500.0, *apl.Amount.Max)

	assert.True(t, programs[1].Eligibility.RequiresChildren)
	assert.Equal(t, model.FamilyFamily, programs[1].Family)
	assert.Equal(t, model.FamilyTransport, programs[2].Family)

	rsa := programs[3]
	assert.Equal(t, model.ScopeNational, rsa.Scope)
	assert.Equal(t, model.FamilyMinimumIncome, rsa.Family)
	require.NotNil(t, rsa.Eligibility.Age)
	assert.Equal(t, 25, *rsa.Eligibility.Age.Min)
	assert.Equal(t, 700.0, rsa.Amount.IncomeCeilingOr(0))
	assert.Equal(t, 607.0, rsa.Amount.BaseOr(0))

	assert.Equal(t, model.FamilyFee, programs[4].Family)
	assert.Equal(t, 5, programs[4].Position)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"missing name":   "programs:\n  - id: x\n",
		"duplicate":      "programs:\n  - {id: x, name: X, scope: bretagne}\n  - {id: x, name: Y, scope: Bretagne}\n",
		"unknown field":  "programs:\n  - {id: x, name: X, colour: red}\n",
		"malformed yaml": "programs: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	programs, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/nope.yaml")
	assert.Error(t, err)
}
