package timegrid

import (
	"testing"
	"time"
)

func minutes(start string, deltas ...int) []time.Time {
	t0 := ts(start)
	out := []time.Time{t0}
	cur := t0
	for _, d := range deltas {
		cur = cur.Add(time.Duration(d) * time.Minute)
		out = append(out, cur)
	}
	return out
}

func TestModalInterval(t *testing.T) {
	tests := []struct {
		name     string
		ts       []time.Time
		lead     int
		expected time.Duration
	}{
		{
			name:     "uniform minute cadence",
			ts:       minutes("2024-03-05 00:00:00", 1, 1, 1, 1),
			lead:     100,
			expected: time.Minute,
		},
		{
			name:     "most frequent wins over larger gaps",
			ts:       minutes("2024-03-05 00:00:00", 1, 1, 45, 1, 1, 1),
			lead:     100,
			expected: time.Minute,
		},
		{
			name:     "lead window excludes later cadence change",
			ts:       minutes("2024-03-05 00:00:00", 5, 5, 5, 1, 1, 1, 1, 1),
			lead:     4,
			expected: 5 * time.Minute,
		},
		{
			name:     "too few samples",
			ts:       minutes("2024-03-05 00:00:00"),
			lead:     100,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModalInterval(tt.ts, tt.lead); got != tt.expected {
				t.Errorf("ModalInterval = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFindGaps(t *testing.T) {
	series := minutes("2024-03-05 00:00:00", 1, 1, 45, 1, 90, 1)

	gaps := FindGaps(series, time.Minute)
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}

	if !gaps[0].Start.Equal(ts("2024-03-05 00:02:00")) || !gaps[0].End.Equal(ts("2024-03-05 00:47:00")) {
		t.Errorf("gap 0 = %s..%s", gaps[0].Start, gaps[0].End)
	}
	if gaps[0].Minutes() != 45 {
		t.Errorf("gap 0 minutes = %v, want 45", gaps[0].Minutes())
	}
	if gaps[1].Hours() != 1.5 {
		t.Errorf("gap 1 hours = %v, want 1.5", gaps[1].Hours())
	}
	if !gaps[0].Start.Before(gaps[1].Start) {
		t.Errorf("gaps not ordered by start")
	}

	// Threshold is strict: exact-cadence pairs never report.
	if got := FindGaps(minutes("2024-03-05 00:00:00", 1, 1, 1), time.Minute); len(got) != 0 {
		t.Errorf("expected no gaps, got %d", len(got))
	}
}
