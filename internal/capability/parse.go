package capability

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError indicates a capability response could not be parsed as the
// expected JSON payload. It carries a bounded snippet of the raw response
// for logging.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("capability: parse payload (snippet %q): %v", e.Snippet, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const snippetLimit = 120

func newParseError(raw string, err error) *ParseError {
	snippet := raw
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &ParseError{Snippet: snippet, Err: err}
}

// ParsePayload extracts a JSON object from a raw capability response and
// unmarshals it into v. The response may wrap the object in markdown code
// fences or surround it with prose; the extraction takes the span from the
// first '{' to the last '}'.
func ParsePayload(raw string, v any) error {
	s := strings.TrimSpace(raw)

	// Strip markdown code fences (``` or ```json).
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return newParseError(raw, fmt.Errorf("no JSON object found"))
	}
	s = s[start : end+1]

	if err := json.Unmarshal([]byte(s), v); err != nil {
		return newParseError(raw, err)
	}
	return nil
}
