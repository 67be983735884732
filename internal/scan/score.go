package scan

import "github.com/dqguardrail/guardrail/internal/remote"

// Band classifies a data-quality score.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

const (
	goodThreshold = 80
	poorThreshold = 50
)

// Classify maps a 0-100 score to a band: good at 80 and above, poor below 50.
func Classify(score float64) Band {
	switch {
	case score >= goodThreshold:
		return BandGood
	case score < poorThreshold:
		return BandPoor
	default:
		return BandFair
	}
}

// SeverityCounts tallies issues per severity.
type SeverityCounts struct {
	High   int
	Medium int
	Low    int
	Other  int
}

// Total returns the number of issues counted.
func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low + c.Other
}

// CountSeverities tallies the issues of a result.
func CountSeverities(issues []remote.Issue) SeverityCounts {
	var c SeverityCounts
	for _, i := range issues {
		switch i.Severity {
		case remote.SeverityHigh:
			c.High++
		case remote.SeverityMedium:
			c.Medium++
		case remote.SeverityLow:
			c.Low++
		default:
			c.Other++
		}
	}
	return c
}
