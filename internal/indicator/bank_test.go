package indicator

import (
	"math"
	"testing"

	"cryptotick/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func candle(ts int64, close_ float64) model.Candle {
	return model.Candle{
		Timestamp: ts,
		Open:      close_,
		High:      close_ + 0.5,
		Low:       close_ - 0.5,
		Close:     close_,
	}
}

func closeSeries(closes ...float64) []model.Candle {
	seq := make([]model.Candle, len(closes))
	for i, c := range closes {
		seq[i] = candle(int64(i+1), c)
	}
	return seq
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// Closes: 100, 102, 104, 103, 105
	// Seed (candle 3): (100+102+104)/3 = 102.0
	// Candle 4: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Candle 5: EMA = 105*0.5 + 102.5*0.5 = 103.75
	seq := closeSeries(100, 102, 104, 103, 105)
	assertClose(t, "EMA(3) full", EMA(seq, 3), 103.75, 0.0001)
	assertClose(t, "EMA(3) prefix@3", EMA(seq[:3], 3), 102.0, 0.0001)
	assertClose(t, "EMA(3) prefix@4", EMA(seq[:4], 3), 102.5, 0.0001)
}

func TestEMA_EmptySequence_ReturnsZero(t *testing.T) {
	assertClose(t, "EMA empty", EMA(nil, 5), 0.0, 0)
}

func TestEMA_IsPure(t *testing.T) {
	seq := closeSeries(10, 11, 12, 13, 14, 15, 16)
	a := EMA(seq, 5)
	b := EMA(seq, 5)
	if a != b {
		t.Fatalf("EMA is not deterministic across repeated calls: %v != %v", a, b)
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_AllUp_Is100(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assertClose(t, "RSI all up", RSI(closeSeries(closes...), 5), 100.0, 0.001)
}

func TestRSI_AllDown_Is0(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	assertClose(t, "RSI all down", RSI(closeSeries(closes...), 5), 0.0, 0.001)
}

func TestRSI_Flat_Is100(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}
	// avgGain==0 and avgLoss==0 hits the avgLoss==0 branch and returns 100.
	assertClose(t, "RSI flat", RSI(closeSeries(closes...), 5), 100.0, 0.001)
}

func TestRSI_TooFewCandles_ReturnsZero(t *testing.T) {
	assertClose(t, "RSI len<2", RSI(closeSeries(100), 5), 0.0, 0)
	assertClose(t, "RSI len=0", RSI(nil, 5), 0.0, 0)
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_Determinism(t *testing.T) {
	// closes 1..10, MACD(2,4,2): two independent evaluations must agree
	// to floating-point precision since the function carries no state.
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	seq := closeSeries(closes...)

	a := MACD(seq, 2, 4, 2)
	b := MACD(seq, 2, 4, 2)

	if a.Macd != b.Macd || a.Signal != b.Signal || a.Histogram != b.Histogram {
		t.Fatalf("MACD is not deterministic: %+v != %+v", a, b)
	}
	assertClose(t, "MACD histogram = macd-signal", a.Histogram, a.Macd-a.Signal, 1e-9)
}

func TestMACD_EmptySequence_ReturnsZeroValue(t *testing.T) {
	got := MACD(nil, 12, 26, 9)
	want := model.MacdOutput{}
	if got != want {
		t.Fatalf("expected zero-value MacdOutput, got %+v", got)
	}
}

func TestMACD_InvalidPeriods_ReturnsZeroValue(t *testing.T) {
	seq := closeSeries(1, 2, 3)
	got := MACD(seq, 0, 26, 9)
	if got != (model.MacdOutput{}) {
		t.Fatalf("expected zero-value MacdOutput for fast<=0, got %+v", got)
	}
}

// ────────────────────────────────────────────────────────────
// ATR / HL2
// ────────────────────────────────────────────────────────────

func TestATR_TooFewCandles_ReturnsZero(t *testing.T) {
	assertClose(t, "ATR len<2", ATR(closeSeries(100), 14), 0.0, 0)
	assertClose(t, "ATR len=0", ATR(nil, 14), 0.0, 0)
}

func TestATR_ConstantRange_EqualsTrueRange(t *testing.T) {
	// Every bar has High-Low = 1, and closes don't gap beyond the bar's own
	// range, so true range is constant at 1 and ATR converges to 1.
	seq := make([]model.Candle, 20)
	for i := range seq {
		c := 100.0
		seq[i] = model.Candle{Timestamp: int64(i + 1), Open: c, Close: c, High: c + 0.5, Low: c - 0.5}
	}
	assertClose(t, "ATR constant range", ATR(seq, 14), 1.0, 1e-9)
}

func TestHL2_EmptySequence_ReturnsZero(t *testing.T) {
	assertClose(t, "HL2 empty", HL2(nil), 0.0, 0)
}

func TestHL2_UsesLastBarOnly(t *testing.T) {
	seq := []model.Candle{
		{Timestamp: 1, High: 10, Low: 0},
		{Timestamp: 2, High: 110, Low: 90},
	}
	assertClose(t, "HL2 last bar", HL2(seq), 100.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// SuperTrend — spec scenario 4
// ────────────────────────────────────────────────────────────

func TestSuperTrend_KnownScenario(t *testing.T) {
	// Hand-computed: TR(bar2) = max(12-2, |12-5|, |2-5|) = 10
	//                TR(bar3) = max(14-4, |14-7|, |4-7|) = 10
	// ATR(period=2) = (10+10)/2 = 10. HL2(last) = (14+4)/2 = 9.
	// factor=1 -> upper=19, lower=-1; close=9 sits inside the band, so
	// trend defaults to 1 (bullish) and value is the lower band.
	seq := []model.Candle{
		{Timestamp: 1, Open: 5, Close: 5, High: 10, Low: 0},
		{Timestamp: 2, Open: 7, Close: 7, High: 12, Low: 2},
		{Timestamp: 3, Open: 9, Close: 9, High: 14, Low: 4},
	}
	out := SuperTrend(seq, 2, 1)

	assertClose(t, "SuperTrend upper", out.Upper, 19.0, 1e-9)
	assertClose(t, "SuperTrend lower", out.Lower, -1.0, 1e-9)
	if out.Trend != 1 {
		t.Fatalf("expected trend=1 (close inside band defaults bullish), got %d", out.Trend)
	}
	assertClose(t, "SuperTrend value", out.Value, -1.0, 1e-9)
}

func TestSuperTrend_WidensAsFactorIncreases(t *testing.T) {
	seq := make([]model.Candle, 10)
	for i := range seq {
		c := 100.0 + float64(i)
		seq[i] = model.Candle{Timestamp: int64(i + 1), Open: c, Close: c, High: c + 1, Low: c - 1}
	}

	small := SuperTrend(seq, 5, 1.0)
	large := SuperTrend(seq, 5, 3.0)

	smallWidth := small.Upper - small.Lower
	largeWidth := large.Upper - large.Lower
	if largeWidth <= smallWidth {
		t.Fatalf("expected band to widen with factor: factor=1 width=%.4f, factor=3 width=%.4f", smallWidth, largeWidth)
	}
}

func TestSuperTrendSweep_InvalidRange_ReturnsNil(t *testing.T) {
	seq := closeSeries(100, 101, 102)
	if out := SuperTrendSweep(seq, 5, 3, 1, 0.5); out != nil {
		t.Fatalf("expected nil for min>max, got %v", out)
	}
	if out := SuperTrendSweep(seq, 5, 1, 3, 0); out != nil {
		t.Fatalf("expected nil for step<=0, got %v", out)
	}
}

func TestSuperTrendSweep_OrderedByFactor(t *testing.T) {
	seq := make([]model.Candle, 10)
	for i := range seq {
		c := 100.0 + float64(i)
		seq[i] = model.Candle{Timestamp: int64(i + 1), Open: c, Close: c, High: c + 1, Low: c - 1}
	}
	out := SuperTrendSweep(seq, 5, 1, 3, 1)
	if len(out) != 3 {
		t.Fatalf("expected 3 factors (1,2,3), got %d", len(out))
	}
	for i, f := range []float64{1, 2, 3} {
		assertClose(t, "sweep factor", out[i].Factor, f, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// PerformanceIndex / KMeansCluster
// ────────────────────────────────────────────────────────────

func TestPerformanceIndex_TooFewCandles_ReturnsZero(t *testing.T) {
	assertClose(t, "PerformanceIndex len<2", PerformanceIndex(closeSeries(100), 5), 0.0, 0)
}

func TestPerformanceIndex_MonotonicUptrend_IsPositive(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	perf := PerformanceIndex(closeSeries(closes...), 5)
	if perf <= 0 {
		t.Fatalf("expected positive performance index for a monotonic uptrend, got %.6f", perf)
	}
}

func TestKMeansCluster_PartitionsIntoThreeNonOverlappingBuckets(t *testing.T) {
	seq := make([]model.Candle, 20)
	for i := range seq {
		c := 100.0 + float64(i)
		seq[i] = model.Candle{Timestamp: int64(i + 1), Open: c, Close: c, High: c + 1, Low: c - 1}
	}

	worst := KMeansCluster(seq, 5, 1, 9, 1, 5, model.ClusterWorst)
	avg := KMeansCluster(seq, 5, 1, 9, 1, 5, model.ClusterAverage)
	best := KMeansCluster(seq, 5, 1, 9, 1, 5, model.ClusterBest)

	total := len(worst.Factors) + len(avg.Factors) + len(best.Factors)
	sweepLen := len(SuperTrendSweep(seq, 5, 1, 9, 1))
	if total != sweepLen {
		t.Fatalf("expected partition to cover every swept factor exactly once: total=%d, sweep=%d", total, sweepLen)
	}

	seen := map[float64]int{}
	for _, f := range worst.Factors {
		seen[f]++
	}
	for _, f := range avg.Factors {
		seen[f]++
	}
	for _, f := range best.Factors {
		seen[f]++
	}
	for f, count := range seen {
		if count != 1 {
			t.Fatalf("factor %.2f appeared in %d buckets, want exactly 1", f, count)
		}
	}
}

func TestKMeansCluster_EmptySweep_FallsBackToMidpoint(t *testing.T) {
	seq := closeSeries(100, 101, 102)
	got := KMeansCluster(seq, 5, 3, 1, 0.5, 5, model.ClusterBest)
	if len(got.Factors) != 1 {
		t.Fatalf("expected single fallback factor, got %v", got.Factors)
	}
	assertClose(t, "fallback factor", got.Factors[0], 2.0, 1e-9)
}
