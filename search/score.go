package search

import (
	"math"
	"strings"
	"time"

	"github.com/shreyasgurav/UniMemory/fingerprint"
)

// Hybrid scoring weights. They sum to 1 so the raw score stays in [0,1]
// before the sigmoid squash.
const (
	weightSimilarity = 0.35
	weightOverlap    = 0.20
	weightWaypoint   = 0.15
	weightRecency    = 0.10
	weightTagMatch   = 0.20
)

// Scoring shape parameters.
const (
	similarityTau   = 3.0
	recencyHalfLife = 7.0  // days
	recencyHorizon  = 60.0 // days
)

// BoostedSim amplifies similarity so mid-range matches separate better.
func BoostedSim(similarity float64) float64 {
	return 1 - math.Exp(-similarityTau*similarity)
}

// TokenOverlap is the fraction of query tokens present in content.
func TokenOverlap(query, content string) float64 {
	queryTokens := fingerprint.Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	contentTokens := fingerprint.Tokenize(content)

	overlap := 0
	for token := range queryTokens {
		if contentTokens[token] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

// Recency decays with days since the memory was last seen and cuts off
// entirely past the horizon.
func Recency(lastSeen, now time.Time) float64 {
	days := now.Sub(lastSeen).Seconds() / 86400.0
	recency := math.Exp(-days/recencyHalfLife) * (1 - math.Min(1.0, days/recencyHorizon))
	return math.Max(0, math.Min(1, recency))
}

// TagMatch is the number of query tokens appearing among the memory's tags,
// normalized by tag count and capped at 1.
func TagMatch(queryTokens map[string]bool, tags []string) float64 {
	if len(tags) == 0 || len(queryTokens) == 0 {
		return 0
	}

	lower := make(map[string]bool, len(tags))
	for _, tag := range tags {
		lower[strings.ToLower(tag)] = true
	}

	matches := 0.0
	for token := range queryTokens {
		if lower[token] {
			matches++
		}
	}
	return math.Min(1.0, matches/float64(len(tags)))
}

// HybridScore combines the signal components into a final score in (0,1).
func HybridScore(similarity, tokenOverlap, waypointWeight, recency, tagMatch float64) float64 {
	raw := weightSimilarity*BoostedSim(similarity) +
		weightOverlap*tokenOverlap +
		weightWaypoint*waypointWeight +
		weightRecency*recency +
		weightTagMatch*tagMatch
	return sigmoid(raw)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
