package relevance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// keyVersion changes whenever the prompt or key fields change, so stale
// shared-cache entries stop matching.
const keyVersion = "v1"

// Key hashes the situation fields that influence relevance together with the
// sorted candidate ids. Income is bucketed to the nearest hundred.
func Key(s model.UserSituation, candidates []model.ProgramRecord) string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	_, hasRent := s.Rent()
	years := -1
	if s.YearsInCountry != nil {
		years = *s.YearsInCountry
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s|age=%d|nat=%s|geo=%s|housing=%s|rent=%t|income=%d|children=%d|emp=%s|years=%d|disability=%t|ids=",
		keyVersion,
		s.Age,
		s.Nationality,
		textnorm.Slug(s.Geography),
		s.HousingStatus,
		hasRent,
		int(math.Round(s.MonthlyIncome/100)),
		s.Children(),
		s.Employment,
		years,
		s.HasDisability,
	)
	b.WriteString(strings.Join(ids, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
