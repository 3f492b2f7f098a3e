package systems

import (
	"log/slog"
	"sort"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// CullingWeights are the four weakness-score coefficients from spec §4.8.
type CullingWeights struct {
	Strength     float64 // w1
	AgeDecay     float64 // w2
	EndpointDegree float64 // w3
	Recentness   float64 // w4
}

// DefaultCullingWeights mirrors a balanced weighting; domains may override.
var DefaultCullingWeights = CullingWeights{Strength: 0.4, AgeDecay: 0.3, EndpointDegree: 0.2, Recentness: 0.1}

// RelationshipCulling runs at end of tick under budget pressure (spec
// §4.8), never sampled like an ordinary system.
type RelationshipCulling struct {
	log     *slog.Logger
	weights CullingWeights
}

// NewRelationshipCulling builds a RelationshipCulling system.
func NewRelationshipCulling(log *slog.Logger, weights CullingWeights) *RelationshipCulling {
	return &RelationshipCulling{log: log.With(logger.Scope("systems.culling")), weights: weights}
}

func (c *RelationshipCulling) ID() string      { return "relationship_culling" }
func (c *RelationshipCulling) AlwaysRun() bool { return false }

type weaknessScore struct {
	rel   *graph.Relationship
	score float64
}

// Apply scores every non-protected active relationship, sorts descending by
// weakness, and archives the highest-scoring (weakest) ones until `excess` of them
// have been culled or 20% of non-protected relationships would be culled,
// whichever comes first. excess is relationshipsAdded - maxPerSimulationTick
// (spec §4.8: "run culling until the budget is satisfied"), not the budget
// itself — culling the budget rather than the overage leaves the tick over
// budget whenever more than double the budget was added.
func (c *RelationshipCulling) Apply(view *graph.TemplateView, excess int) Result {
	all := view.FindRelationships(graph.FindRelationshipCriteria{})
	var candidates []*graph.Relationship
	for _, r := range all {
		if r.Status != graph.RelationshipActive || graph.IsProtectedKind(r.Kind) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return Result{}
	}

	scored := make([]weaknessScore, 0, len(candidates))
	for _, r := range candidates {
		scored = append(scored, weaknessScore{rel: r, score: c.weakness(view, r)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	maxCull := len(candidates) / 5 // 20%
	if maxCull == 0 {
		maxCull = 1 // always allow at least one cull when over budget, however small the pool
	}
	toCull := excess
	if toCull > maxCull {
		toCull = maxCull
	}
	if toCull > len(scored) {
		toCull = len(scored)
	}

	culled := 0
	for i := 0; i < toCull; i++ {
		view.ArchiveRelationshipByID(scored[i].rel.ID)
		culled++
	}
	if culled > 0 {
		view.AddHistoryEvent(graph.EventCulling, "culled relationships")
	}
	return Result{RelationshipsAdded: -culled, Description: "culled relationships"}
}

func (c *RelationshipCulling) weakness(view *graph.TemplateView, r *graph.Relationship) float64 {
	age := float64(view.Tick() - r.CreatedAt)
	ageDecay := age / (age + 10) // asymptotic toward 1 as age grows

	degree := len(view.GetEntityRelationships(r.Src, graph.DirectionBoth)) + len(view.GetEntityRelationships(r.Dst, graph.DirectionBoth))

	recentness := 0.0
	if age < 5 {
		recentness = 1 - age/5
	}

	return c.weights.Strength*(1-r.Strength) +
		c.weights.AgeDecay*ageDecay +
		c.weights.EndpointDegree*float64(degree) -
		c.weights.Recentness*recentness
}
