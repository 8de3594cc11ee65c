// Package rainlog turns rain gauge logger files into rain events and sums them over time windows.
//
// Logger lines look like
//
//	STG1079;15032024070000;2.5;...
//
// where the second field is DDMMYYYYHHMMSS in the station's wall-clock time and the
// third is the rainfall in millimetres. Lines that do not fit are skipped, never reported.
package rainlog

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jihansalmaa/Website-Monitoring-Evaporation/internal/entities"
)

const timestampLayout = "02012006150405"

// MatchPolicy decides whether a line's station field belongs to the target station
type MatchPolicy int

const (
	// MatchUpperTarget accepts a field equal to the upper-cased target, leaving the field untouched
	MatchUpperTarget MatchPolicy = iota
	// MatchCaseInsensitive accepts any casing on either side
	MatchCaseInsensitive
)

// ParsePolicy maps a configuration value onto a MatchPolicy; unknown values fall back to MatchUpperTarget
func ParsePolicy(name string) MatchPolicy {
	if name == "case_insensitive" {
		return MatchCaseInsensitive
	}
	return MatchUpperTarget
}

// Parser extracts rain events for one station
type Parser struct {
	station  string
	policy   MatchPolicy
	location *time.Location
}

// NewParser creates a parser for station; timestamps are read in loc
func NewParser(station string, policy MatchPolicy, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		station:  strings.ToUpper(strings.TrimSpace(station)),
		policy:   policy,
		location: loc,
	}
}

// Parse returns the station's rain events in the order they appear in logText
func (p *Parser) Parse(logText string) []entities.RainEvent {
	var events []entities.RainEvent

	for _, line := range strings.Split(logText, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || !p.mentionsStation(line) {
			continue
		}

		event, ok := p.parseLine(line)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	return events
}

// mentionsStation is the substring check run before splitting a line
func (p *Parser) mentionsStation(line string) bool {
	if p.policy == MatchCaseInsensitive {
		return strings.Contains(strings.ToUpper(line), p.station)
	}
	return strings.Contains(line, p.station)
}

func (p *Parser) matchesStation(field string) bool {
	if p.policy == MatchCaseInsensitive {
		return strings.EqualFold(field, p.station)
	}
	return field == p.station
}

func (p *Parser) parseLine(line string) (entities.RainEvent, bool) {
	parts := strings.Split(line, ";")
	if len(parts) < 3 {
		return entities.RainEvent{}, false
	}

	if !p.matchesStation(parts[0]) {
		return entities.RainEvent{}, false
	}

	rawTs := parts[1]
	if len(rawTs) != len(timestampLayout) {
		return entities.RainEvent{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, rawTs, p.location)
	if err != nil {
		return entities.RainEvent{}, false
	}

	rain, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || math.IsNaN(rain) || math.IsInf(rain, 0) || rain < 0 {
		return entities.RainEvent{}, false
	}

	return entities.RainEvent{Timestamp: ts, AmountMM: rain}, true
}

// Parse is a convenience wrapper for a one-off parse
func Parse(logText, station string, policy MatchPolicy, loc *time.Location) []entities.RainEvent {
	return NewParser(station, policy, loc).Parse(logText)
}
