package domain

import (
	"math"
	"time"
)

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime    time.Time
	CloseTime   time.Time
	Symbol      string
	Interval    string // e.g. "1m", "60m"
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64 // base asset volume
	QuoteVolume float64
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func (k *Kline) TrueRange(prevClose float64) float64 {
	hl := k.High - k.Low
	if prevClose <= 0 {
		return hl
	}
	return math.Max(hl, math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
}

// Return is the close-to-close change relative to prevClose.
func (k *Kline) Return(prevClose float64) float64 {
	if prevClose == 0 {
		return 0
	}
	return (k.Close - prevClose) / prevClose
}
