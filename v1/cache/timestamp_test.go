package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewTimestampTruncatesToUTCSecond(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	in := time.Date(2024, 5, 1, 14, 30, 15, 999_000_000, loc)

	ts := NewTimestamp(in)
	if ts.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", ts.Location())
	}
	if got, want := ts.String(), "2024-05-01 12:30:15"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTimestampJSON(t *testing.T) {
	e := Entry{Key: "k", Value: "v", CreatedAt: NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"key":"k","value":"v","created_at":"2024-01-02 03:04:05"}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}

	var back Entry
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.CreatedAt.Equal(e.CreatedAt.Time) {
		t.Fatalf("expected %v, got %v", e.CreatedAt, back.CreatedAt)
	}
}

func TestParseTimestampRejectsOtherLayouts(t *testing.T) {
	if _, err := ParseTimestamp("2024-01-02T03:04:05Z"); err == nil {
		t.Fatal("expected error for RFC 3339 input")
	}
}
