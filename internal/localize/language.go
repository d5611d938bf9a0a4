package localize

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// NormalizeLanguage reduces a language tag to its primary subtag ("en-GB" →
// "en"). Unparseable tags fall back to their lowercased first segment.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	first := strings.FieldsFunc(tag, func(r rune) bool { return r == '-' || r == '_' })
	if len(first) == 0 {
		return ""
	}
	return strings.ToLower(first[0])
}

// displayName returns the English name of a primary subtag for prompts.
func displayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
