package eligibility

import (
	"strings"

	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// nationalityBuckets lists the allow-list entries each nationality class
// satisfies. Entries are normalised by normalizeEntry.
var nationalityBuckets = map[model.Nationality]map[string]struct{}{
	model.NationalityCitizen: set("citizen", "citizens", "national", "nationals", "french", "eu", "eu-eea", "all",
		"citizens-only", "nationals-only", "eu-only", "eea-only"),
	model.NationalityEU:    set("eu", "eu-eea", "eea", "all", "eu-only", "eea-only"),
	model.NationalityNonEU: set("non-eu", "all"),
}

// strictMarkers are entries that turn an allow-list into a hard restriction.
var strictMarkers = set("citizens-only", "nationals-only", "eu-only", "eea-only")

// permitMarkers imply a valid residence permit, which documented non-EU
// residents hold.
var permitMarkers = []string{"residence-permit", "titre-de-sejour", "permit", "resident", "regular-stay", "sejour-regulier"}

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func normalizeEntry(s string) string {
	return strings.ReplaceAll(textnorm.Slug(s), "_", "-")
}

// nationalityAllowed reports whether a user of class n may claim a program
// restricted to allow. Without a strict marker the rule is permissive.
func nationalityAllowed(n model.Nationality, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	bucket := nationalityBuckets[n]
	strict := false
	for _, raw := range allow {
		entry := normalizeEntry(raw)
		if _, ok := bucket[entry]; ok {
			return true
		}
		if n == model.NationalityNonEU && impliesPermit(entry) {
			return true
		}
		if _, ok := strictMarkers[entry]; ok {
			strict = true
		}
	}
	return !strict
}

func impliesPermit(entry string) bool {
	for _, m := range permitMarkers {
		if strings.Contains(entry, m) {
			return true
		}
	}
	return false
}
