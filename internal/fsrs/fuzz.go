package fsrs

import "math"

type fuzzRange struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// fuzzDelta = 1 + Σ factor * max(min(interval, end) - start, 0)
func fuzzDelta(interval float64) float64 {
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// applyFuzz spreads an interval over [ivl-delta, ivl+delta] so cards
// reviewed together do not fall due on the same day. Intervals under
// 2.5 days are returned unchanged. The result never exceeds maxIvl.
func applyFuzz(interval, maxIvl int, src FuzzSource) int {
	ivl := float64(interval)
	if ivl < 2.5 {
		return interval
	}
	delta := fuzzDelta(ivl)

	lo := max(2, int(math.Round(ivl-delta)))
	hi := min(int(math.Round(ivl+delta)), maxIvl)
	lo = min(lo, hi)

	fuzzed := lo + int(src.Float64()*float64(hi-lo+1))
	return max(1, min(fuzzed, hi))
}
