package main

import (
	"testing"
	"time"
)

func TestCheckFlags(t *testing.T) {
	if err := checkFlags(50, 100000, 256, 1000, 0.2); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	cases := []struct {
		name       string
		c, n, d, k int
		w          float64
	}{
		{"zero concurrency", 0, 100, 1, 10, 0.2},
		{"fewer requests than workers", 10, 5, 1, 10, 0.2},
		{"negative size", 1, 10, -1, 10, 0.2},
		{"zero keys", 1, 10, 1, 0, 0.2},
		{"ratio above one", 1, 10, 1, 10, 1.5},
	}
	for _, tc := range cases {
		if err := checkFlags(tc.c, tc.n, tc.d, tc.k, tc.w); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestSummarize(t *testing.T) {
	latencies := []time.Duration{4 * time.Millisecond, time.Millisecond, 100 * time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond}
	avg, p99 := summarize(latencies)
	if avg != 22*time.Millisecond {
		t.Fatalf("expected mean 22ms, got %s", avg)
	}
	if p99 != 4*time.Millisecond {
		t.Fatalf("expected p99 4ms, got %s", p99)
	}

	avg, p99 = summarize([]time.Duration{7 * time.Millisecond})
	if avg != 7*time.Millisecond || p99 != 7*time.Millisecond {
		t.Fatalf("single sample: avg %s p99 %s", avg, p99)
	}
}
