package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format for every persisted timestamp: UTC,
// second precision. Lexical order equals chronological order, which the
// started_at/timestamp ORDER BY clauses rely on.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in TimeLayout, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// encodeSteps serializes a step list into the steps column.
// A nil list encodes as the empty array, matching the column default.
func encodeSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(raw), nil
}

// decodeSteps parses the steps column. Blank or malformed values decode to
// an empty list rather than an error: a damaged row must not make span
// reads fail (the tracker degrades, it does not block).
func decodeSteps(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var steps []string
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return []string{}
	}
	if steps == nil {
		return []string{}
	}
	return steps
}

// decodePayload opportunistically parses an event payload as JSON,
// falling back to the raw text when it does not parse.
func decodePayload(raw string) any {
	if raw == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw
	}
	return decoded
}

// nullable converts optional text fields for insertion: empty strings
// become NULL so the parent_span_id foreign key is not checked against "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
