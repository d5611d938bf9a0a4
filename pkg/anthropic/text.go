package anthropic

import "strings"

// ExtractText joins the text blocks of a response.
func ExtractText(resp *MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// CleanJSON extracts a JSON value from model output that may be wrapped in
// markdown fences or prose. openCh and closeCh are the delimiters of the expected
// top-level value ('{' '}' for objects, '[' ']' for arrays).
func CleanJSON(text string, openCh, closeCh byte) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexByte(text, openCh)
	end := strings.LastIndexByte(text, closeCh)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// CleanJSONObject is CleanJSON for a top-level object.
func CleanJSONObject(text string) string { return CleanJSON(text, '{', '}') }

// CleanJSONArray is CleanJSON for a top-level array.
func CleanJSONArray(text string) string { return CleanJSON(text, '[', ']') }
