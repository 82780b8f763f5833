// Package indicator computes technical indicators as pure functions over an
// ordered candle sequence: ATR, EMA, RSI, MACD, SuperTrend (including a
// K-means cluster variant) and the performance index SuperTrend clustering
// scores by. Every function is restartable — it carries no hidden state and
// returns the same value for the same input prefix every time it's called.
// Malformed or insufficient input never panics; it yields a documented 0.0
// sentinel instead, which conflates "insufficient data" with a real zero —
// preserved as-is, see DESIGN.md Open Question 4.
package indicator

import "cryptotick/internal/model"

// EMA returns the exponential moving average of closes after consuming every
// candle in seq, including the final one ("close-inclusive"). The series is
// seeded with a plain average of the first `period` closes, then smoothed
// with the standard multiplier 2/(period+1), reapplied here as a pure fold.
func EMA(seq []model.Candle, period int) float64 {
	if period <= 0 || len(seq) == 0 {
		return 0.0
	}
	if len(seq) < period {
		period = len(seq)
	}

	mult := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += seq[i].Close
	}
	ema := sum / float64(period)

	for i := period; i < len(seq); i++ {
		ema = (seq[i].Close * mult) + (ema * (1 - mult))
	}
	return ema
}

// RSI returns Wilder's RSI of closes, seeded by a plain average of the first
// `period` gains/losses and then smoothed, same terminal-value convention as
// EMA (close-inclusive).
func RSI(seq []model.Candle, period int) float64 {
	if period <= 0 || len(seq) < 2 {
		return 0.0
	}

	gains := make([]float64, 0, len(seq)-1)
	losses := make([]float64, 0, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		delta := seq[i].Close - seq[i-1].Close
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	n := len(gains)
	if n < period {
		period = n
	}
	if period == 0 {
		return 0.0
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns {macd, signal, histogram} for the standard fast/slow/signal
// configuration. The signal line is the EMA of the MACD series itself,
// computed by re-running EMA(fast)-EMA(slow) over every growing prefix of
// seq so the signal line has its own warm-up history, matching conventional
// MACD semantics rather than a single-point approximation.
func MACD(seq []model.Candle, fast, slow, signal int) model.MacdOutput {
	if len(seq) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return model.MacdOutput{}
	}

	macdSeries := make([]model.Candle, 0, len(seq))
	for i := 1; i <= len(seq); i++ {
		prefix := seq[:i]
		m := EMA(prefix, fast) - EMA(prefix, slow)
		macdSeries = append(macdSeries, model.Candle{Close: m, Timestamp: seq[i-1].Timestamp})
	}

	macd := macdSeries[len(macdSeries)-1].Close
	sig := EMA(macdSeries, signal)
	return model.MacdOutput{
		Macd:      macd,
		Signal:    sig,
		Histogram: macd - sig,
	}
}

// ATR returns Wilder's Average True Range over HLC, 0.0 when fewer than 2
// bars are available.
func ATR(seq []model.Candle, period int) float64 {
	if period <= 0 || len(seq) < 2 {
		return 0.0
	}

	trueRanges := make([]float64, 0, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		trueRanges = append(trueRanges, trueRange(seq[i], seq[i-1]))
	}

	n := len(trueRanges)
	if n < period {
		period = n
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trueRanges[i]
	}
	atr := sum / float64(period)

	p := float64(period)
	for i := period; i < n; i++ {
		atr = (atr*(p-1) + trueRanges[i]) / p
	}
	return atr
}

func trueRange(cur, prev model.Candle) float64 {
	hl := cur.High - cur.Low
	hc := absF(cur.High - prev.Close)
	lc := absF(cur.Low - prev.Close)
	return maxF(hl, maxF(hc, lc))
}

// HL2 returns (last.High + last.Low) / 2, or 0.0 on empty input.
func HL2(seq []model.Candle) float64 {
	if len(seq) == 0 {
		return 0.0
	}
	last := seq[len(seq)-1]
	return (last.High + last.Low) / 2
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
