package rainlog

import (
	"math"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
)

// SumWithin adds up the rain of every event with start <= timestamp < end.
// Events need not be sorted.
func SumWithin(events []entities.RainEvent, start, end time.Time) float64 {
	var sum float64
	for _, e := range events {
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		if math.IsNaN(e.AmountMM) || math.IsInf(e.AmountMM, 0) {
			continue
		}
		sum += e.AmountMM
	}
	return sum
}
