package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Extract locates the first JSON object embedded in free text. Models
// wrap replies in markdown fences or surround them with prose; both
// are stripped before the brace-delimited slice is validated.
func Extract(text string) (string, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no object delimiters", ErrNoJSON)
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return "", fmt.Errorf("%w: malformed object", ErrNoJSON)
	}
	return s, nil
}

// Unmarshal extracts the embedded JSON object, verifies the required
// fields exist, and decodes it into out. A reply that parses but lacks
// a required field is a schema violation, reported distinctly from a
// reply with no JSON at all.
func Unmarshal(text string, out any, required ...string) error {
	blob, err := Extract(text)
	if err != nil {
		return err
	}
	for _, field := range required {
		if !gjson.Get(blob, field).Exists() {
			return fmt.Errorf("%w: missing field %q", ErrBadSchema, field)
		}
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSchema, err)
	}
	return nil
}
