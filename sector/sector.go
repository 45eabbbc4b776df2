// Package sector classifies memory text into topical/affective categories
// and exposes the static per-sector configuration: match patterns, decay
// rates, and the inter-sector relationship matrix.
//
// The tables are process-wide and read-only after init.
package sector

import (
	"regexp"
	"sort"

	"github.com/shreyasgurav/UniMemory/types"
)

const (
	// defaultDecayRate is used for unknown sectors.
	defaultDecayRate = 0.02

	// defaultRelationshipWeight is used for unconfigured sector pairs.
	defaultRelationshipWeight = 0.3

	// fallbackConfidence is the confidence reported when no pattern
	// matches any sector.
	fallbackConfidence = 0.2

	// additionalScoreRatio is the fraction of the primary score a sector
	// must reach to count as an additional sector.
	additionalScoreRatio = 0.3
)

// Fallback is the sector assigned when no pattern matches.
const Fallback = types.SectorSemantic

// Order is the fixed enumeration order of sectors. Tie-breaks during
// classification preserve this order, which keeps results reproducible.
var Order = []types.Sector{
	types.SectorSemantic,
	types.SectorEpisodic,
	types.SectorProcedural,
	types.SectorEmotional,
	types.SectorReflective,
}

// profile holds the static configuration of one sector.
type profile struct {
	patterns  []*regexp.Regexp
	decayRate float64
	weight    float64
}

var profiles = map[types.Sector]profile{
	types.SectorSemantic: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(know|understand|learn|concept|fact|definition|what is)\b`),
			regexp.MustCompile(`(?i)\b(means|defined as|refers to)\b`),
		},
		decayRate: 0.02,
		weight:    1.0,
	},
	types.SectorEpisodic: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(today|yesterday|tomorrow|last week|this week)\b`),
			regexp.MustCompile(`(?i)\b(remember|happened|went|did|saw|met)\b`),
			regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		},
		decayRate: 0.05,
		weight:    1.0,
	},
	types.SectorProcedural: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(how to|steps|process|procedure|method|way to)\b`),
			regexp.MustCompile(`(?i)\b(first|then|next|finally|step|instruction)\b`),
		},
		decayRate: 0.03,
		weight:    1.0,
	},
	types.SectorEmotional: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(feel|feeling|love|hate|like|dislike|prefer)\b`),
			regexp.MustCompile(`(?i)\b(excited|happy|sad|angry|frustrated|proud)\b`),
		},
		decayRate: 0.08,
		weight:    1.0,
	},
	types.SectorReflective: {
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(think|believe|opinion|view|perspective|realize)\b`),
			regexp.MustCompile(`(?i)\b(important|matters|values|principle|philosophy)\b`),
		},
		decayRate: 0.04,
		weight:    1.0,
	},
}

// relationships maps sector pairs to their association weight. The matrix is
// symmetric-ish by construction; same-sector weight is always 1.0 and is not
// stored here.
var relationships = map[types.Sector]map[types.Sector]float64{
	types.SectorSemantic:   {types.SectorProcedural: 0.8, types.SectorEpisodic: 0.6, types.SectorReflective: 0.7, types.SectorEmotional: 0.4},
	types.SectorProcedural: {types.SectorSemantic: 0.8, types.SectorEpisodic: 0.6, types.SectorReflective: 0.6, types.SectorEmotional: 0.3},
	types.SectorEpisodic:   {types.SectorReflective: 0.8, types.SectorSemantic: 0.6, types.SectorProcedural: 0.6, types.SectorEmotional: 0.7},
	types.SectorReflective: {types.SectorEpisodic: 0.8, types.SectorSemantic: 0.7, types.SectorProcedural: 0.6, types.SectorEmotional: 0.6},
	types.SectorEmotional:  {types.SectorEpisodic: 0.7, types.SectorReflective: 0.6, types.SectorSemantic: 0.4, types.SectorProcedural: 0.3},
}

// Classification is the result of classifying one piece of text.
type Classification struct {
	Primary    types.Sector
	Additional []types.Sector
	Confidence float64
}

// Classify scores every sector against the text and picks the best one.
// Each pattern contributes one count per match found, uncapped. Ties keep
// the enumeration order. Additional sectors are those scoring at least
// max(1, 0.3*primary) with a nonzero score. When nothing matches, the
// fallback sector is returned with confidence 0.2.
func Classify(text string) Classification {
	type scored struct {
		sector types.Sector
		score  float64
	}

	scores := make([]scored, 0, len(Order))
	for _, s := range Order {
		p := profiles[s]
		count := 0
		for _, re := range p.patterns {
			count += len(re.FindAllStringIndex(text, -1))
		}
		scores = append(scores, scored{sector: s, score: float64(count) * p.weight})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	primary := scores[0]
	second := 0.0
	if len(scores) > 1 {
		second = scores[1].score
	}

	confidence := primary.score / (primary.score + second + 1)
	if confidence > 1 {
		confidence = 1
	}

	threshold := primary.score * additionalScoreRatio
	if threshold < 1 {
		threshold = 1
	}
	var additional []types.Sector
	for _, s := range scores[1:] {
		if s.score > 0 && s.score >= threshold {
			additional = append(additional, s.sector)
		}
	}

	if primary.score == 0 {
		return Classification{Primary: Fallback, Confidence: fallbackConfidence}
	}

	return Classification{Primary: primary.sector, Additional: additional, Confidence: confidence}
}

// DecayRate returns the decay-rate constant of a sector, falling back to the
// default for unknown sectors.
func DecayRate(s types.Sector) float64 {
	if p, ok := profiles[s]; ok {
		return p.decayRate
	}
	return defaultDecayRate
}

// RelationshipWeight returns the association weight between two sectors:
// 1.0 for the same sector, the matrix value otherwise, and the default
// weight for unconfigured pairs.
func RelationshipWeight(a, b types.Sector) float64 {
	if a == b {
		return 1.0
	}
	if row, ok := relationships[a]; ok {
		if w, ok := row[b]; ok {
			return w
		}
	}
	return defaultRelationshipWeight
}
