// Package statistics computes per-epoch running counters and final
// distribution/diversity/connectivity/fitness statistics (spec.md §4.11).
package statistics

import (
	"math"

	domcfg "github.com/chris-arsenault/penguin-tales-sub002/domain/config"
	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/mathutil"
)

// EpochStats is the running-counter snapshot spec §4.11 describes, taken at
// each epoch boundary.
type EpochStats struct {
	Epoch                  int                `json:"epoch"`
	EntitiesByKind         map[string]int     `json:"entitiesByKind"`
	EntitiesBySubtype      map[string]int     `json:"entitiesBySubtype"`
	RelationshipsByKind    map[string]int     `json:"relationshipsByKind"`
	Pressures              map[string]float64 `json:"pressures"`
	GrowthTarget           int                `json:"growthTarget"`
	GrowthActual           int                `json:"growthActual"`
	RelationshipGrowthRate float64            `json:"relationshipGrowthRate"`
	ResourceUsage          ResourceUsage      `json:"resourceUsage"`
}

// ResourceUsage is the process resource snapshot pkg/syshealth supplies,
// folded in at epoch boundaries so a long run can surface memory growth.
// Zero when no sampler is configured.
type ResourceUsage struct {
	RSSBytes     uint64  `json:"rssBytes"`
	CPUPercent   float64 `json:"cpuPercent"`
	NumGoroutine int     `json:"numGoroutine"`
}

// Collect builds one EpochStats from the current store state.
func Collect(store *graph.Store, epoch int, growthTarget int) EpochStats {
	stats := EpochStats{
		Epoch:               epoch,
		EntitiesByKind:       map[string]int{},
		EntitiesBySubtype:    map[string]int{},
		RelationshipsByKind:  map[string]int{},
		Pressures:            store.Pressures(),
		GrowthTarget:         growthTarget,
		RelationshipGrowthRate: store.GrowthMetrics().AverageGrowthRate,
	}
	for _, e := range store.AllEntities() {
		stats.EntitiesByKind[string(e.Kind)]++
		stats.EntitiesBySubtype[e.Subtype]++
	}
	for _, r := range store.GetRelationships() {
		stats.RelationshipsByKind[r.Kind]++
	}
	stats.GrowthActual = store.TotalRelationships()
	return stats
}

// DistributionReport captures ratios and deviation from configured targets.
type DistributionReport struct {
	KindRatios       map[string]float64
	ProminenceRatios map[string]float64
	Deviation        float64 // mean absolute deviation from target ratios, [0, ~1]
}

// Distribution computes entity-kind and prominence distributions against
// the configured targets (spec §4.11).
func Distribution(store *graph.Store, targets *domcfg.DistributionTargets) DistributionReport {
	entities := store.AllEntities()
	report := DistributionReport{KindRatios: map[string]float64{}, ProminenceRatios: map[string]float64{}}
	if len(entities) == 0 {
		return report
	}

	kindCounts := map[string]int{}
	promCounts := map[string]int{}
	for _, e := range entities {
		kindCounts[string(e.Kind)]++
		promCounts[e.Prominence.String()]++
	}
	total := float64(len(entities))
	for k, c := range kindCounts {
		report.KindRatios[k] = float64(c) / total
	}
	for p, c := range promCounts {
		report.ProminenceRatios[p] = float64(c) / total
	}

	if targets == nil {
		return report
	}
	var sum, n float64
	for kind, targetRatio := range targets.KindRatios {
		sum += math.Abs(report.KindRatios[kind] - targetRatio)
		n++
	}
	for prom, targetRatio := range targets.ProminenceRatios {
		sum += math.Abs(report.ProminenceRatios[prom] - targetRatio)
		n++
	}
	if n > 0 {
		report.Deviation = sum / n
	}
	return report
}

// ShannonDiversity computes the normalized Shannon evenness index over
// relationship-kind counts (spec §4.11: "relationship diversity (Shannon
// index, normalized evenness)").
func ShannonDiversity(relationshipsByKind map[string]int) float64 {
	total := 0
	for _, c := range relationshipsByKind {
		total += c
	}
	if total == 0 || len(relationshipsByKind) <= 1 {
		return 0
	}

	var h float64
	for _, c := range relationshipsByKind {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	hMax := math.Log(float64(len(relationshipsByKind)))
	if hMax == 0 {
		return 0
	}
	return h / hMax
}

// ConnectivityReport captures the connected-component metrics spec §4.11
// names.
type ConnectivityReport struct {
	ConnectedComponents int
	IsolatedNodeRatio   float64
	AverageDegree       float64
}

// Connectivity computes connected components via DFS, isolated node ratio,
// and average degree.
func Connectivity(store *graph.Store) ConnectivityReport {
	entities := store.AllEntities()
	if len(entities) == 0 {
		return ConnectivityReport{}
	}

	adjacency := make(map[string][]string, len(entities))
	for _, e := range entities {
		adjacency[e.ID] = nil
	}
	for _, r := range store.GetRelationships() {
		adjacency[r.Src] = append(adjacency[r.Src], r.Dst)
		adjacency[r.Dst] = append(adjacency[r.Dst], r.Src)
	}

	visited := make(map[string]bool, len(entities))
	components := 0
	isolated := 0
	totalDegree := 0

	for _, e := range entities {
		totalDegree += len(adjacency[e.ID])
		if len(adjacency[e.ID]) == 0 {
			isolated++
		}
		if visited[e.ID] {
			continue
		}
		components++
		dfs(e.ID, adjacency, visited)
	}

	return ConnectivityReport{
		ConnectedComponents: components,
		IsolatedNodeRatio:   float64(isolated) / float64(len(entities)),
		AverageDegree:       float64(totalDegree) / float64(len(entities)),
	}
}

func dfs(start string, adjacency map[string][]string, visited map[string]bool) {
	stack := []string{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		id := stack[n]
		stack = stack[:n]
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, adjacency[id]...)
	}
}

// FitnessWeights weights the three fitness components into a composite.
type FitnessWeights struct {
	Distribution float64
	Diversity    float64
	Connectivity float64
}

// DefaultFitnessWeights splits the composite evenly across the three
// components.
var DefaultFitnessWeights = FitnessWeights{Distribution: 1.0 / 3, Diversity: 1.0 / 3, Connectivity: 1.0 / 3}

// FitnessReport is the final composite fitness spec §4.11 describes.
type FitnessReport struct {
	DistributionFitness float64
	DiversityFitness    float64
	ConnectivityFitness float64
	Composite           float64
	ConstraintViolations int
	StabilityScore      float64
}

// Fitness computes the weighted composite fitness in [0,1], plus
// constraint violation count and growth-rate-variance stability score.
func Fitness(dist DistributionReport, diversity float64, conn ConnectivityReport, violations int, growthSamples []int, weights FitnessWeights) FitnessReport {
	distFitness := mathutil.Sigmoid(float32(-4 * dist.Deviation))
	connFitness := 1 - conn.IsolatedNodeRatio

	composite := weights.Distribution*float64(distFitness) +
		weights.Diversity*diversity +
		weights.Connectivity*connFitness

	return FitnessReport{
		DistributionFitness: float64(distFitness),
		DiversityFitness:    diversity,
		ConnectivityFitness: connFitness,
		Composite:           composite,
		ConstraintViolations: violations,
		StabilityScore:      stability(growthSamples),
	}
}

// stability scores the inverse of relationship-growth-rate variance as
// sigmoid(2 - std) of the samples: steadier growth scores higher, high
// variance trends toward 0, and fewer than two samples score 1.
// mathutil.CalcMeanStd reports a zero spread as 1, so a perfectly steady
// rate scores sigmoid(1), about 0.73.
func stability(samples []int) float64 {
	if len(samples) < 2 {
		return 1
	}
	f32 := make([]float32, len(samples))
	for i, s := range samples {
		f32[i] = float32(s)
	}
	_, std := mathutil.CalcMeanStd(f32)
	return float64(mathutil.Sigmoid(-std + 2))
}
