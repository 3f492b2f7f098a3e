// Package clustering implements the greedy chronological clustering and
// meta-entity promotion described in spec.md §4.12.
package clustering

import (
	"sort"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
)

// Criterion is one weighted similarity dimension a candidate is scored
// against when considering joining a cluster.
type Criterion struct {
	Weight float64
	Score  func(candidate, member *graph.Entity, view *graph.TemplateView) float64
}

// SharedRelationship scores 1 if candidate and member share a relationship
// of the given kind in the given direction, 0 otherwise.
func SharedRelationship(kind string, dir graph.Direction) func(*graph.Entity, *graph.Entity, *graph.TemplateView) float64 {
	return func(candidate, member *graph.Entity, view *graph.TemplateView) float64 {
		for _, r := range view.GetEntityRelationships(candidate.ID, dir) {
			if r.Kind != kind {
				continue
			}
			if r.Src == member.ID || r.Dst == member.ID {
				return 1
			}
		}
		return 0
	}
}

// SharedTags scores the Jaccard similarity of two entities' tag key sets,
// counted as a match (1) once it clears threshold, else 0.
func SharedTags(threshold float64) func(*graph.Entity, *graph.Entity, *graph.TemplateView) float64 {
	return func(candidate, member *graph.Entity, _ *graph.TemplateView) float64 {
		j := jaccard(candidate.Tags, member.Tags)
		if j >= threshold {
			return 1
		}
		return 0
	}
}

func jaccard(a, b map[string]string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	union := map[string]bool{}
	intersection := 0
	for k := range a {
		union[k] = true
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	for k := range b {
		union[k] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// TemporalProximity scores 1 if two entities were created within maxDelta
// ticks of each other.
func TemporalProximity(maxDelta int) func(*graph.Entity, *graph.Entity, *graph.TemplateView) float64 {
	return func(candidate, member *graph.Entity, _ *graph.TemplateView) float64 {
		delta := candidate.CreatedAt - member.CreatedAt
		if delta < 0 {
			delta = -delta
		}
		if delta <= maxDelta {
			return 1
		}
		return 0
	}
}

// SameSubtype scores 1 when both entities share a subtype.
func SameSubtype(candidate, member *graph.Entity, _ *graph.TemplateView) float64 {
	if candidate.Subtype == member.Subtype {
		return 1
	}
	return 0
}

// SameCulture scores 1 when both entities share a culture.
func SameCulture(candidate, member *graph.Entity, _ *graph.TemplateView) float64 {
	if candidate.Culture != "" && candidate.Culture == member.Culture {
		return 1
	}
	return 0
}

// Config configures a clustering pass.
type Config struct {
	Criteria           []Criterion
	ClusterJoinThreshold float64 // default 0.7, per spec §4.12
	MinimumScore       float64 // the "minimumScore" factor combined with ClusterJoinThreshold
	MinSize            int     // cluster size required to promote to a meta-entity
	LiftExternalLinks  bool
}

// DefaultClusterJoinThreshold is spec §4.12's default.
const DefaultClusterJoinThreshold = 0.7

// Cluster is one chronologically-grown group of candidate entities.
type Cluster struct {
	Members []*graph.Entity
}

// Build greedily clusters eligible entities (non-historical, not already a
// meta-entity) in chronological order: a candidate joins the first cluster
// whose average similarity to existing members clears
// minimumScore*clusterJoinThreshold; otherwise it seeds a new cluster.
func Build(view *graph.TemplateView, candidates []*graph.Entity, cfg Config) []Cluster {
	eligible := make([]*graph.Entity, 0, len(candidates))
	for _, e := range candidates {
		if e.Status == graph.StatusHistorical {
			continue
		}
		if e.Tags["meta-entity"] != "" {
			continue
		}
		eligible = append(eligible, e)
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].CreatedAt < eligible[j].CreatedAt })

	joinThreshold := cfg.MinimumScore * cfg.ClusterJoinThreshold
	var clusters []Cluster

	for _, candidate := range eligible {
		placed := false
		for i := range clusters {
			if averageSimilarity(view, candidate, clusters[i].Members, cfg.Criteria) >= joinThreshold {
				clusters[i].Members = append(clusters[i].Members, candidate)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, Cluster{Members: []*graph.Entity{candidate}})
		}
	}
	return clusters
}

func averageSimilarity(view *graph.TemplateView, candidate *graph.Entity, members []*graph.Entity, criteria []Criterion) float64 {
	if len(members) == 0 {
		return 0
	}
	var total float64
	for _, member := range members {
		total += similarity(view, candidate, member, criteria)
	}
	return total / float64(len(members))
}

func similarity(view *graph.TemplateView, candidate, member *graph.Entity, criteria []Criterion) float64 {
	var weighted, weightSum float64
	for _, c := range criteria {
		weighted += c.Weight * c.Score(candidate, member, view)
		weightSum += c.Weight
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

// Promote creates a meta-entity container for every cluster at least
// cfg.MinSize, links members via part_of, and optionally lifts members'
// external relationships onto the container. Returns the created
// meta-entity ids, in cluster order.
func Promote(view *graph.TemplateView, clusters []Cluster, cfg Config) []string {
	var metaIDs []string
	for _, cluster := range clusters {
		if len(cluster.Members) < cfg.MinSize {
			continue
		}
		metaID := view.CreateEntity(graph.EntitySettings{
			Kind:       cluster.Members[0].Kind,
			Subtype:    "cluster",
			Name:       "Cluster",
			Status:     graph.StatusActive,
			Prominence: graph.ProminenceRecognized,
			Tags:       map[string]string{"meta-entity": "true"},
		})

		for _, member := range cluster.Members {
			view.AddRelationship("part_of", member.ID, metaID, 1.0, nil, "")
			if cfg.LiftExternalLinks {
				liftExternalRelationships(view, member.ID, metaID)
			}
		}
		metaIDs = append(metaIDs, metaID)
	}
	return metaIDs
}

// liftExternalRelationships mirrors a member's non-part_of relationships
// onto the meta container, per the domain's optional relationship-transfer
// rule (spec §4.12: "members' external relationships may be optionally
// lifted to the container").
func liftExternalRelationships(view *graph.TemplateView, memberID, metaID string) {
	for _, r := range view.GetEntityRelationships(memberID, graph.DirectionBoth) {
		if r.Kind == "part_of" {
			continue
		}
		other := r.Dst
		if r.Src != memberID {
			other = r.Src
		}
		if other == metaID {
			continue
		}
		view.AddRelationship(r.Kind, metaID, other, r.Strength, r.Distance, r.Category)
	}
}
