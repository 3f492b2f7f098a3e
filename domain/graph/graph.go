package graph

// GrowthMetrics tracks the engine's windowed sense of how fast the graph is
// growing, feeding the fitness stability score (spec §4.11). The exact
// smoothing window is left
// domain-configurable per spec §9 open question 2; WindowSize below is that
// configurable knob, defaulting to 10 samples when a non-positive size is
// given.
type GrowthMetrics struct {
	WindowSize            int
	relationshipCounts    []int // relationships added, one sample per tick
	AverageGrowthRate     float64
	lastRelationshipTotal int
}

// NewGrowthMetrics builds a GrowthMetrics with the given smoothing window
// (number of trailing tick samples averaged together).
func NewGrowthMetrics(windowSize int) *GrowthMetrics {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &GrowthMetrics{WindowSize: windowSize}
}

// RecordTick folds in the relationship count observed at the end of a tick
// and recomputes the windowed mean growth rate.
func (g *GrowthMetrics) RecordTick(totalRelationships int) {
	delta := totalRelationships - g.lastRelationshipTotal
	g.lastRelationshipTotal = totalRelationships
	if delta < 0 {
		delta = 0
	}

	g.relationshipCounts = append(g.relationshipCounts, delta)
	if len(g.relationshipCounts) > g.WindowSize {
		g.relationshipCounts = g.relationshipCounts[len(g.relationshipCounts)-g.WindowSize:]
	}

	sum := 0
	for _, c := range g.relationshipCounts {
		sum += c
	}
	g.AverageGrowthRate = float64(sum) / float64(len(g.relationshipCounts))
}

// Samples returns the trailing per-tick relationship growth samples, used by
// the stability-score variance calculation (spec §4.11).
func (g *GrowthMetrics) Samples() []int {
	out := make([]int, len(g.relationshipCounts))
	copy(out, g.relationshipCounts)
	return out
}

// RelationshipCooldowns tracks the last tick each (entity, relationship
// kind) pair fired, so templates/systems can rate-limit repeat connections.
type RelationshipCooldowns struct {
	byEntity map[string]map[string]int
}

func newRelationshipCooldowns() *RelationshipCooldowns {
	return &RelationshipCooldowns{byEntity: make(map[string]map[string]int)}
}

// LastTick returns the last tick the (entityID, kind) pair was touched, and
// whether it has ever occurred.
func (c *RelationshipCooldowns) LastTick(entityID, kind string) (int, bool) {
	byKind, ok := c.byEntity[entityID]
	if !ok {
		return 0, false
	}
	last, ok := byKind[kind]
	return last, ok
}

// Touch records that (entityID, kind) fired at tick.
func (c *RelationshipCooldowns) Touch(entityID, kind string, tick int) {
	byKind, ok := c.byEntity[entityID]
	if !ok {
		byKind = make(map[string]int)
		c.byEntity[entityID] = byKind
	}
	byKind[kind] = tick
}
