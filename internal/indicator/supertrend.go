package indicator

import (
	"cryptotick/internal/model"
)

// SuperTrend evaluates the trailing-band indicator for the latest bar in
// seq. atr = ATR(atrPeriod), mid = HL2(), upper = mid + factor*atr,
// lower = mid - factor*atr. Trend is 1 if close > upper, 0 if close < lower,
// else 1 (default bullish when the close sits inside the band). Value is
// lower when trend is 1, else upper.
//
// This is a single-bar evaluation: trend has no memory of the previous
// bar's trend, so it never "latches" the way a canonical SuperTrend does.
// That is the documented behavior (see DESIGN.md Open Question 1) —
// preserved exactly rather than redesigned.
func SuperTrend(seq []model.Candle, atrPeriod int, factor float64) model.SuperTrendOutput {
	atr := ATR(seq, atrPeriod)
	mid := HL2(seq)
	upper := mid + factor*atr
	lower := mid - factor*atr

	var close_ float64
	if len(seq) > 0 {
		close_ = seq[len(seq)-1].Close
	}

	trend := 1
	switch {
	case close_ > upper:
		trend = 1
	case close_ < lower:
		trend = 0
	}

	value := upper
	if trend == 1 {
		value = lower
	}

	return model.SuperTrendOutput{
		Upper:  upper,
		Lower:  lower,
		Value:  value,
		Trend:  trend,
		Factor: factor,
	}
}

// SuperTrendSweep evaluates SuperTrend at each factor in {min, min+step, ...
// <= max}, returning the outputs in factor order.
func SuperTrendSweep(seq []model.Candle, atrPeriod int, min, max, step float64) []model.SuperTrendOutput {
	if step <= 0 || min > max {
		return nil
	}
	var outputs []model.SuperTrendOutput
	for f := min; f <= max+1e-9; f += step {
		outputs = append(outputs, SuperTrend(seq, atrPeriod, f))
	}
	return outputs
}

// PerformanceIndex scores a close series by the ratio of its net positive
// movement to the smoothed magnitude of its moves: d[i] = close[i] -
// close[i-1], numerator = max(0, sum(d)), denominator = EMA(|d|, alpha).
// Returns 0 if the denominator is 0 or the input has fewer than 2 candles.
func PerformanceIndex(seq []model.Candle, alpha int) float64 {
	if len(seq) < 2 {
		return 0.0
	}

	deltas := make([]model.Candle, 0, len(seq)-1)
	sum := 0.0
	for i := 1; i < len(seq); i++ {
		d := seq[i].Close - seq[i-1].Close
		sum += d
		deltas = append(deltas, model.Candle{Close: absF(d), Timestamp: seq[i].Timestamp})
	}

	denom := EMA(deltas, alpha)
	if denom == 0 {
		return 0.0
	}

	numerator := sum
	if numerator < 0 {
		numerator = 0
	}
	return numerator / denom
}

// KMeansCluster evaluates a SuperTrend factor sweep, scores every entry with
// PerformanceIndex(alpha) (the same score for every factor — see DESIGN.md
// Open Question 3, this is the sort-and-partition logic the original code
// carries, not iterative k-means), keeps entries in factor order (which is
// also score order, as all scores are equal), and partitions into 3
// contiguous buckets of size n/3 (the last bucket absorbs the remainder).
// Best = the bucket with the highest mean score, Worst = lowest, Average =
// the remaining middle bucket. The returned output is the first member of
// the requested cluster; if the sweep is empty, it falls back to SuperTrend
// evaluated at (min+max)/2.
func KMeansCluster(seq []model.Candle, atrPeriod int, min, max, step float64, alpha int, want model.ClusterID) model.SuperTrendCluster {
	factors := factorRange(min, max, step)
	outputs := SuperTrendSweep(seq, atrPeriod, min, max, step)

	if len(outputs) == 0 {
		fallback := SuperTrend(seq, atrPeriod, (min+max)/2)
		return model.SuperTrendCluster{
			Factors:     []float64{(min + max) / 2},
			Outputs:     []model.SuperTrendOutput{fallback},
			Performance: 0,
			Cluster:     model.ClusterAverage,
		}
	}

	score := PerformanceIndex(seq, alpha)

	type scored struct {
		factor float64
		out    model.SuperTrendOutput
	}
	entries := make([]scored, len(outputs))
	for i, o := range outputs {
		entries[i] = scored{factor: factors[i], out: o}
	}
	// Every entry shares the same score (see doc comment above), so score
	// order and factor order coincide; no sort call is made and entries stay
	// in factor order.

	n := len(entries)
	bucket := n / 3
	if bucket == 0 {
		bucket = n
	}

	var lo, hi int
	switch want {
	case model.ClusterWorst:
		lo, hi = 0, bucket
	case model.ClusterBest:
		lo, hi = 2*bucket, n
	default: // ClusterAverage
		lo, hi = bucket, 2*bucket
		if lo >= n {
			lo, hi = 0, n
		}
	}
	if hi > n {
		hi = n
	}
	if lo >= hi {
		lo, hi = 0, n
	}

	selected := entries[lo:hi]
	outFactors := make([]float64, len(selected))
	outOutputs := make([]model.SuperTrendOutput, len(selected))
	for i, e := range selected {
		outFactors[i] = e.factor
		outOutputs[i] = e.out
	}

	return model.SuperTrendCluster{
		Factors:     outFactors,
		Outputs:     outOutputs,
		Performance: score,
		Cluster:     want,
	}
}

func factorRange(min, max, step float64) []float64 {
	if step <= 0 || min > max {
		return nil
	}
	var fs []float64
	for f := min; f <= max+1e-9; f += step {
		fs = append(fs, f)
	}
	return fs
}
