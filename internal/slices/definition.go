// Package slices is the versioned, precomputed cache of Top-25 leaderboard
// rankings. Whole versions are computed off to the side of the published
// one and flipped live with a single pointer update, so readers never see
// a partially built version.
package slices

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// DefinitionKind discriminates what a slice ranks.
type DefinitionKind string

const (
	KindBeforeAge DefinitionKind = "beforeAge"
	KindMilestone DefinitionKind = "milestone"
)

// Definition is the structural description of one slice: either a
// single-stat before-age sum or a milestone game count. Definitions are
// content-addressed — Key() of equal definitions is always equal.
type Definition struct {
	Kind   DefinitionKind              `json:"kind"`
	Metric stats.Metric                `json:"metric,omitempty"`
	Preset *leaderboard.MilestoneQuery `json:"preset,omitempty"`
}

// BeforeAgeDefinition describes a single-stat before-age slice.
func BeforeAgeDefinition(metric stats.Metric) Definition {
	return Definition{Kind: KindBeforeAge, Metric: metric}
}

// MilestoneDefinition describes a milestone-count slice.
func MilestoneDefinition(q leaderboard.MilestoneQuery) Definition {
	return Definition{Kind: KindMilestone, Preset: &q}
}

// Key derives the stable cache key for the definition: canonical JSON
// (struct fields marshal in declaration order, zero-valued optional fields
// are omitted, no maps are involved) hashed with SHA-256 and truncated.
// Identical definitions always produce identical keys; a fragmenting key
// would silently split the cache across duplicates.
func (d Definition) Key() string {
	canonical, err := json.Marshal(d)
	if err != nil {
		// Definition is a plain value type; marshalling cannot fail.
		panic(fmt.Sprintf("marshal slice definition: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16])
}

// Label returns the display name for the definition.
func (d Definition) Label() string {
	if d.Kind == KindMilestone && d.Preset != nil {
		return d.Preset.Label()
	}
	return "Career " + string(d.Metric)
}
