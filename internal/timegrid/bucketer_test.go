package timegrid

import (
	"math"
	"testing"
	"time"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/types"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBucketKey(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		width    int
		expected string
	}{
		{"hourly truncation", "2024-03-05 10:42:17", 3600, "2024-03-05 10:00:00"},
		{"on the grid line", "2024-03-05 10:00:00", 3600, "2024-03-05 10:00:00"},
		{"20 minute grid", "2024-03-05 10:42:17", 1200, "2024-03-05 10:40:00"},
		{"two hour grid", "2024-03-05 11:59:59", 7200, "2024-03-05 10:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketKey(ts(tt.in), tt.width)
			if !got.Equal(ts(tt.expected)) {
				t.Errorf("BucketKey(%s, %d) = %s, want %s", tt.in, tt.width, got, tt.expected)
			}
		})
	}
}

func TestExtendEnd(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		timeDelta int
		added     int
	}{
		{"already a multiple", "2024-03-01 00:00:00", "2024-03-06 00:00:00", 3, 0},
		{"one day short", "2024-03-01 00:00:00", "2024-03-05 00:00:00", 3, 1},
		{"two days short", "2024-03-01 00:00:00", "2024-03-04 00:00:00", 3, 2},
		{"single day, weekly chunks", "2024-03-01 00:00:00", "2024-03-01 00:00:00", 7, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, added := ExtendEnd(ts(tt.start), ts(tt.end), tt.timeDelta)
			if added != tt.added {
				t.Errorf("added = %d, want %d", added, tt.added)
			}
			days := int(end.Sub(ts(tt.start)).Hours()/24) + 1
			if days%tt.timeDelta != 0 {
				t.Errorf("extended window of %d days is not a multiple of %d", days, tt.timeDelta)
			}
		})
	}
}

func TestAlignMergesAndFills(t *testing.T) {
	mult := [7]float64{0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01}

	ae33 := []database.AE33Sample{
		{Time: ts("2024-03-05 10:05:00"), Abs: [7]float64{100, 200, 300, 400, 500, 600, 700}},
		{Time: ts("2024-03-05 10:25:00"), Abs: [7]float64{300, 400, 500, 600, 700, 800, 900}},
		{Time: ts("2024-03-05 12:00:00"), Abs: [7]float64{100, 100, 100, 100, 100, 100, 100}},
	}
	tca := []database.TCASample{
		{Time: ts("2024-03-05 10:30:00"), TCconc: 5, CO2: 400, EC: 1, OC: 4, BC6: 2},
		{Time: ts("2024-03-05 11:10:00"), TCconc: 7, CO2: 410, EC: 2, OC: 5, BC6: 3},
	}

	records := Align(ae33, tca, 3600, mult)

	if len(records) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(records))
	}

	// Bucket timestamps are unique and strictly increasing.
	for i := 1; i < len(records); i++ {
		if !records[i].Time.After(records[i-1].Time) {
			t.Errorf("bucket times not strictly increasing at %d", i)
		}
	}

	// 10:00 has both sources; AE33 channels are averaged then scaled.
	r0 := records[0]
	if !r0.Time.Equal(ts("2024-03-05 10:00:00")) {
		t.Errorf("first bucket = %s, want 10:00", r0.Time)
	}
	if math.Abs(r0.Abs[0]-2.0) > 1e-9 { // mean(100,300) * 0.01
		t.Errorf("Abs[0] = %v, want 2.0", r0.Abs[0])
	}
	if r0.TCconc != 5 {
		t.Errorf("TCconc = %v, want 5", r0.TCconc)
	}

	// 11:00 has only TCA; absorption channels carry the sentinel.
	r1 := records[1]
	for i, v := range r1.Abs {
		if !types.IsSentinel(v) {
			t.Errorf("Abs[%d] = %v, want sentinel", i, v)
		}
	}
	if r1.OC != 5 {
		t.Errorf("OC = %v, want 5", r1.OC)
	}

	// 12:00 has only AE33; carbon channels carry the sentinel.
	r2 := records[2]
	if !types.IsSentinel(r2.TCconc) || !types.IsSentinel(r2.OC) {
		t.Errorf("TCA channels should be sentinel, got TCconc=%v OC=%v", r2.TCconc, r2.OC)
	}
	if math.Abs(r2.Abs[6]-1.0) > 1e-9 {
		t.Errorf("Abs[6] = %v, want 1.0", r2.Abs[6])
	}

	// Derived columns start out missing.
	if !types.IsMissing(r0.SOC) || !types.IsMissing(r0.BrCAbsSec) {
		t.Errorf("derived columns should start missing")
	}
}

func TestAlignSkipsNonNumericCells(t *testing.T) {
	mult := [7]float64{1, 1, 1, 1, 1, 1, 1}
	nan := math.NaN()

	ae33 := []database.AE33Sample{
		{Time: ts("2024-03-05 10:05:00"), Abs: [7]float64{1, nan, nan, 1, 1, 1, 1}},
		{Time: ts("2024-03-05 10:25:00"), Abs: [7]float64{3, 5, nan, 3, 3, 3, 3}},
	}

	records := Align(ae33, nil, 3600, mult)
	if len(records) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(records))
	}

	r := records[0]
	if r.Abs[0] != 2 {
		t.Errorf("Abs[0] = %v, want 2", r.Abs[0])
	}
	if r.Abs[1] != 5 { // lone numeric reading survives
		t.Errorf("Abs[1] = %v, want 5", r.Abs[1])
	}
	if !types.IsSentinel(r.Abs[2]) { // all-NULL channel falls back to sentinel
		t.Errorf("Abs[2] = %v, want sentinel", r.Abs[2])
	}
}
