package types

import (
	"time"
)

// Sector is a topical/affective category assigned to a memory.
type Sector string

const (
	SectorSemantic   Sector = "semantic"
	SectorEpisodic   Sector = "episodic"
	SectorProcedural Sector = "procedural"
	SectorEmotional  Sector = "emotional"
	SectorReflective Sector = "reflective"
)

// Scope is the (tenant, end-user) pair that isolates all data access.
// OwnerID identifies the tenant application; UserID identifies the end-user
// within it. Duplicate checks, waypoint links, and candidate fetches never
// cross a scope boundary.
type Scope struct {
	OwnerID string `json:"owner_id"`
	UserID  string `json:"user_id"`
}

// IsZero reports whether the scope carries no tenant at all.
func (s Scope) IsZero() bool {
	return s.OwnerID == "" && s.UserID == ""
}

// Memory is a single stored statement about an end-user.
type Memory struct {
	ID      string `json:"id"`
	Content string `json:"content"`

	// Fingerprint is the 64-bit simhash of Content, encoded as 16 hex
	// nibbles. Used for near-duplicate detection.
	Fingerprint string `json:"fingerprint"`

	Sector   Sector  `json:"sector"`
	Salience float64 `json:"salience"` // always in [0,1]

	// DecayRate is derived from the sector at creation time and frozen.
	// It is stored for downstream consumers; no scheduled process in this
	// engine applies it (recency is scored at query time instead).
	DecayRate float64 `json:"decay_rate"`

	Tags []string `json:"tags,omitempty"`

	OwnerID string `json:"owner_id"`
	UserID  string `json:"user_id"`

	Embedding []float64 `json:"embedding,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastSeenAt time.Time `json:"last_seen_at"`

	IsActive bool `json:"is_active"`
}

// Scope returns the isolation key of the memory.
func (m *Memory) Scope() Scope {
	return Scope{OwnerID: m.OwnerID, UserID: m.UserID}
}

// SeenAt returns the reference timestamp for recency scoring:
// LastSeenAt when set, CreatedAt otherwise.
func (m *Memory) SeenAt() time.Time {
	if !m.LastSeenAt.IsZero() {
		return m.LastSeenAt
	}
	return m.CreatedAt
}

// Waypoint is a weighted directed association between two memories.
// At most one edge exists per ordered (SrcID, DstID) pair; re-evaluating an
// edge replaces its weight. A memory with no sufficiently similar neighbor
// links to itself with weight 1.0.
type Waypoint struct {
	ID        string    `json:"id"`
	SrcID     string    `json:"src_id"`
	DstID     string    `json:"dst_id"`
	Weight    float64   `json:"weight"` // in [0,1]
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSelfLoop reports whether the edge points back at its own source.
func (w *Waypoint) IsSelfLoop() bool {
	return w.SrcID == w.DstID
}

// ClampSalience bounds a salience value to [0,1]. Every write site goes
// through this so no error path can corrupt the invariant.
func ClampSalience(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
