package optimizer

import (
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/budget-optimizer/internal/forecast"
)

func assertAllocation(t *testing.T, res Result, budget float64, bounds Bounds) {
	t.Helper()
	if !res.Succeeded() {
		t.Fatalf("expected success, got failed: %s", res.Reason)
	}
	var sum float64
	for i, x := range res.Allocation {
		if x < bounds[i].Min-1e-6 || x > bounds[i].Max+1e-6 {
			t.Fatalf("allocation %d = %v outside [%v, %v]", i, x, bounds[i].Min, bounds[i].Max)
		}
		sum += x
	}
	if math.Abs(sum-budget) > 1e-3*budget {
		t.Fatalf("allocation sums to %v, expected %v", sum, budget)
	}
}

func TestSolveDefaultScenario(t *testing.T) {
	fc := forecast.ChannelForecast{300, 200, 250, 150}
	bounds, err := BuildBounds(len(fc), 500000, DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("BuildBounds returned error: %v", err)
	}

	res := Solve(fc, 500000, bounds)
	assertAllocation(t, res, 500000, bounds)

	want := []float64{300000, 30000, 140000, 30000}
	for i := range want {
		if math.Abs(res.Allocation[i]-want[i]) > 1e-3 {
			t.Fatalf("allocation = %v, want %v", res.Allocation, want)
		}
	}
	if math.Abs(res.ExpectedRevenue-1355000) > 1e-3 {
		t.Fatalf("expected revenue 1355000, got %v", res.ExpectedRevenue)
	}
}

func TestSolveSmallBudgetDropsFloors(t *testing.T) {
	fc := forecast.ChannelForecast{300, 200, 250, 150}
	bounds, err := BuildBounds(len(fc), 50000, DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("BuildBounds returned error: %v", err)
	}

	res := Solve(fc, 50000, bounds)
	assertAllocation(t, res, 50000, bounds)

	want := []float64{30000, 0, 20000, 0}
	for i := range want {
		if math.Abs(res.Allocation[i]-want[i]) > 1e-3 {
			t.Fatalf("allocation = %v, want %v", res.Allocation, want)
		}
	}
}

// bruteForce enumerates integer allocations of budget across three channels.
func bruteForce(fc []float64, budget int, bounds Bounds) float64 {
	best := math.Inf(-1)
	for a := int(bounds[0].Min); a <= int(bounds[0].Max); a++ {
		for b := int(bounds[1].Min); b <= int(bounds[1].Max); b++ {
			c := budget - a - b
			if float64(c) < bounds[2].Min || float64(c) > bounds[2].Max {
				continue
			}
			v := float64(a)*fc[0] + float64(b)*fc[1] + float64(c)*fc[2]
			if v > best {
				best = v
			}
		}
	}
	return best
}

func TestSolveMatchesBruteForce(t *testing.T) {
	cases := []struct {
		fc     []float64
		budget int
		bounds Bounds
	}{
		{fc: []float64{120, 340, 90}, budget: 100, bounds: Bounds{{0, 60}, {0, 60}, {0, 60}}},
		{fc: []float64{500, 500, 100}, budget: 90, bounds: Bounds{{10, 40}, {10, 40}, {10, 40}}},
		{fc: []float64{50, 60, 800}, budget: 75, bounds: Bounds{{5, 30}, {0, 50}, {20, 25}}},
		{fc: []float64{200, 200, 200}, budget: 30, bounds: Bounds{{10, 10}, {0, 20}, {0, 20}}},
	}

	for _, tc := range cases {
		res := Solve(tc.fc, float64(tc.budget), tc.bounds)
		assertAllocation(t, res, float64(tc.budget), tc.bounds)

		got := res.ExpectedRevenue * 100
		want := bruteForce(tc.fc, tc.budget, tc.bounds)
		if got < want-1e-6*math.Abs(want) {
			t.Fatalf("forecast %v: objective %v below brute-force optimum %v", tc.fc, got, want)
		}
	}
}

func TestSolveEqualForecasts(t *testing.T) {
	fc := forecast.ChannelForecast{250, 250, 250, 250}
	bounds, err := BuildBounds(len(fc), 500000, DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("BuildBounds returned error: %v", err)
	}
	res := Solve(fc, 500000, bounds)
	assertAllocation(t, res, 500000, bounds)
	if math.Abs(res.ExpectedRevenue-1250000) > 1e-3 {
		t.Fatalf("expected revenue 1250000, got %v", res.ExpectedRevenue)
	}
}

func TestSolveSingleChannel(t *testing.T) {
	bounds, err := BuildBounds(1, 80000, DefaultBoundsPolicy())
	if err != nil {
		t.Fatalf("BuildBounds returned error: %v", err)
	}
	res := Solve(forecast.ChannelForecast{180}, 80000, bounds)
	assertAllocation(t, res, 80000, bounds)
	if res.Allocation[0] != 80000 {
		t.Fatalf("expected entire budget on the single channel, got %v", res.Allocation)
	}
	if math.Abs(res.ExpectedRevenue-144000) > 1e-6 {
		t.Fatalf("expected revenue 144000, got %v", res.ExpectedRevenue)
	}
}

func TestSolveFailures(t *testing.T) {
	tests := []struct {
		name   string
		fc     forecast.ChannelForecast
		budget float64
		bounds Bounds
		reason string
	}{
		{
			name:   "length mismatch",
			fc:     forecast.ChannelForecast{100, 200},
			budget: 1000,
			bounds: Bounds{{0, 1000}},
			reason: "forecast has 2 channels but bounds have 1",
		},
		{
			name:   "infeasible bounds",
			fc:     forecast.ChannelForecast{100, 200},
			budget: 1000,
			bounds: Bounds{{0, 100}, {0, 100}},
			reason: "do not admit",
		},
		{
			name:   "empty",
			fc:     forecast.ChannelForecast{},
			budget: 1000,
			reason: "empty forecast",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Solve(tt.fc, tt.budget, tt.bounds)
			if res.Status != StatusFailed {
				t.Fatalf("expected failed status, got %s", res.Status)
			}
			if !strings.Contains(res.Reason, tt.reason) {
				t.Fatalf("expected reason containing %q, got %q", tt.reason, res.Reason)
			}
			if res.Allocation != nil {
				t.Fatalf("expected no allocation on failure, got %v", res.Allocation)
			}
		})
	}
}

func TestExpectedRevenue(t *testing.T) {
	got := ExpectedRevenue(Allocation{300000, 30000, 140000, 30000}, forecast.ChannelForecast{300, 200, 250, 150})
	if math.Abs(got-1355000) > 1e-6 {
		t.Fatalf("expected revenue 1355000, got %v", got)
	}
	if got := ExpectedRevenue(Allocation{1000, 2000}, forecast.ChannelForecast{150}); math.Abs(got-1500) > 1e-9 {
		t.Fatalf("expected only paired channels to count, got %v", got)
	}
}

func TestCheckAllocationConservation(t *testing.T) {
	bounds := Bounds{{0, 600000}, {0, 600000}}
	tests := []struct {
		name    string
		alloc   Allocation
		wantErr bool
	}{
		{name: "exact", alloc: Allocation{300000, 200000}},
		{name: "within relative tolerance", alloc: Allocation{300000.2, 200000.2}},
		{name: "drifted", alloc: Allocation{300001, 200000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAllocation(tt.alloc, 500000, bounds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkAllocation(%v) error = %v, wantErr %v", tt.alloc, err, tt.wantErr)
			}
		})
	}
}
