// Package entities contains the core domain objects for the evaporation monitor
package entities

import (
	"time"
)

// Key layouts shared by the store, the log file names and the API
const (
	DateKeyLayout  = "02-01-2006" // History buckets and rain log file names
	TimeKeyLayout  = "15:04:05"   // Samples inside a history bucket
	DailyKeyLayout = "2006-01-02" // Daily results
)

// RainEvent is one rainfall record parsed from a logger file
type RainEvent struct {
	Timestamp time.Time
	AmountMM  float64 // Rainfall in millimetres, never negative
}

// HeightSample is a point reading of the water-surface distance
type HeightSample struct {
	Timestamp  time.Time
	DistanceMM float64
}

// HistoryEntry is one stored sample inside a calendar-day history bucket
type HistoryEntry struct {
	TimeKey    string // Time of day, HH:MM:SS
	DistanceMM float64
}

// EvapResult is the outcome of one evaporation computation over [WindowStart, WindowEnd)
type EvapResult struct {
	WindowStart time.Time
	WindowEnd   time.Time
	HeightPrev  float64 // Distance at the start of the window
	HeightNow   float64 // Distance at the end of the window
	RainSum     float64
	EvapMM      float64
}

// NewEvapResult builds a result from the window edges, the two heights and the rain sum
func NewEvapResult(start, end time.Time, heightPrev, heightNow, rainSum float64) EvapResult {
	return EvapResult{
		WindowStart: start,
		WindowEnd:   end,
		HeightPrev:  heightPrev,
		HeightNow:   heightNow,
		RainSum:     rainSum,
		EvapMM:      (heightPrev - heightNow) + rainSum,
	}
}

// RollingRecord is the persisted form of a 10-minute result, keyed by Timestamp
type RollingRecord struct {
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	EvapMM    float64 `json:"evap_mm"`
	HPrev     float64 `json:"h_prev"`
	HNow      float64 `json:"h_now"`
	Rain10Min float64 `json:"rain_10min"`
}

// DailyRecord is the persisted form of a 07:00-to-07:00 result, keyed by Date
type DailyRecord struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	EvapMM      float64 `json:"evap_mm"`
	H7Yesterday float64 `json:"h7_yesterday"`
	H7Today     float64 `json:"h7_today"`
	Rain24h     float64 `json:"rain_24h"`
	CreatedAt   int64   `json:"createdAt"` // Unix milliseconds
}

// LiveReading is the API view of the latest live sample
type LiveReading struct {
	Distance  float64 `json:"distance"`
	UpdatedAt int64   `json:"updatedAt"` // Unix milliseconds
}
