package store

import (
	"reflect"
	"testing"
	"time"
)

func TestFormatTime_UTCSecondPrecision(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	in := time.Date(2026, 8, 25, 12, 30, 45, 999999999, loc)

	got := FormatTime(in)
	want := "2026-08-25T10:30:45Z"
	if got != want {
		t.Errorf("FormatTime = %q, want %q", got, want)
	}
}

func TestEncodeSteps_NilBecomesEmptyArray(t *testing.T) {
	got, err := encodeSteps(nil)
	if err != nil {
		t.Fatalf("encodeSteps failed: %v", err)
	}
	if got != "[]" {
		t.Errorf("encodeSteps(nil) = %q, want []", got)
	}
}

func TestDecodeSteps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty string", "", []string{}},
		{"empty array", "[]", []string{}},
		{"json null", "null", []string{}},
		{"values", `["gather","decide"]`, []string{"gather", "decide"}},
		{"malformed", "{not json", []string{}},
		{"wrong shape", `{"a":1}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeSteps(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeSteps(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStepsRoundTrip(t *testing.T) {
	in := []string{"gather", "decide", "gather"}

	encoded, err := encodeSteps(in)
	if err != nil {
		t.Fatalf("encodeSteps failed: %v", err)
	}
	got := decodeSteps(encoded)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestDecodePayload(t *testing.T) {
	if got := decodePayload(""); got != nil {
		t.Errorf("empty payload = %v, want nil", got)
	}

	got := decodePayload(`{"spans":2}`)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("json payload decoded to %T, want map", got)
	}
	if m["spans"] != float64(2) {
		t.Errorf("payload field = %v, want 2", m["spans"])
	}

	if got := decodePayload("plain note"); got != "plain note" {
		t.Errorf("raw payload = %v, want passthrough string", got)
	}
}

func TestNullable(t *testing.T) {
	if got := nullable(""); got != nil {
		t.Errorf("nullable(\"\") = %v, want nil", got)
	}
	if got := nullable("x"); got != "x" {
		t.Errorf("nullable(x) = %v, want x", got)
	}
}
