package model

import (
	"encoding/json"
	"time"
)

// Candle is a single OHLCV bar. Timestamp is the bar's close time in
// milliseconds since epoch, the broker's canonical unit. Candles are
// immutable once constructed; equality between two candles is by Timestamp.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // close time, ms since epoch
}

// TS returns the derived wall-clock time for the candle's close.
func (c Candle) TS() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Valid reports whether the bar satisfies low <= min(open,close) <=
// max(open,close) <= high and volume >= 0.
func (c Candle) Valid() bool {
	if c.Volume < 0 {
		return false
	}
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && hi <= c.High
}

// JSON returns the JSON-encoded candle, ignoring marshal errors — used on
// hot paths (WS forwarding) where Candle is always well-formed.
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
