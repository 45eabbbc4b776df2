// Package salience implements the importance score of a memory and its
// reinforcement dynamics. Salience lives in [0,1]; the only mutations in
// the engine are the two additive boosts defined here, both clamped.
//
// A passive time-based decay of salience is deliberately absent: the
// per-memory decay rate is stored but no scheduled process applies it.
// Recency is captured at query time by the ranker's recency term instead.
package salience

import (
	"time"

	"github.com/shreyasgurav/UniMemory/types"
)

const (
	// initialBase is the starting salience of a freshly created memory.
	initialBase = 0.4

	// perAdditionalSector is the bonus added for each additional sector
	// the content touched.
	perAdditionalSector = 0.1

	// DuplicateBoost is added when an incoming statement deduplicates
	// against an existing memory.
	DuplicateBoost = 0.15

	// RetrievalBoost is added to every memory returned by a search.
	RetrievalBoost = 0.1
)

// Initial computes the starting salience from the number of additional
// sectors: 0.4 + 0.1 per additional sector, clamped to [0,1].
func Initial(additionalSectors int) float64 {
	if additionalSectors < 0 {
		additionalSectors = 0
	}
	return types.ClampSalience(initialBase + perAdditionalSector*float64(additionalSectors))
}

// ReinforceDuplicate applies the duplicate boost to a memory and stamps it
// as seen. Saturates at 1.0.
func ReinforceDuplicate(m *types.Memory, now time.Time) {
	m.Salience = types.ClampSalience(m.Salience + DuplicateBoost)
	m.LastSeenAt = now
	m.UpdatedAt = now
}

// ReinforceRetrieval applies the retrieval boost to a memory and stamps it
// as seen. Saturates at 1.0.
func ReinforceRetrieval(m *types.Memory, now time.Time) {
	m.Salience = types.ClampSalience(m.Salience + RetrievalBoost)
	m.LastSeenAt = now
	m.UpdatedAt = now
}
