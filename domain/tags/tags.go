// Package tags implements the append-only tag registry and health
// accounting spec.md §2 calls "tag conflicts, saturation, coverage".
package tags

import "sort"

// Registry tracks every tag value ever applied to an entity, append-only
// per spec §5 ("tags registry and statistics accumulators are
// append-only"): entries are never removed, only accumulated.
type Registry struct {
	// usage[tagKey][tagValue] = number of recorded tag sets that carried it
	// (cumulative; never decremented).
	usage map[string]map[string]int
	// seenValues[tagKey] = set of distinct values ever seen for that key,
	// used to flag keys whose values disagree across entities.
	seenValues map[string]map[string]bool
	total      int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		usage:      map[string]map[string]int{},
		seenValues: map[string]map[string]bool{},
	}
}

// Record accounts for one entity's tag set. Call once per entity creation
// or tag update; the registry keeps a running total, never decrementing
// (append-only).
func (r *Registry) Record(entityTags map[string]string) {
	r.total++
	for k, v := range entityTags {
		if r.usage[k] == nil {
			r.usage[k] = map[string]int{}
		}
		r.usage[k][v]++

		if r.seenValues[k] == nil {
			r.seenValues[k] = map[string]bool{}
		}
		r.seenValues[k][v] = true
	}
}

// Health is the per-tag-key coverage and conflict summary.
type Health struct {
	Key             string
	DistinctValues  int
	Saturation      float64 // fraction of recorded entities carrying this key
	TopValue        string
	TopValueCount   int
	HasConflicts    bool // more than one distinct value recorded for the key
}

// Report computes health for every tag key seen so far, sorted by key.
func (r *Registry) Report() []Health {
	keys := make([]string, 0, len(r.usage))
	for k := range r.usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reports := make([]Health, 0, len(keys))
	for _, k := range keys {
		values := r.usage[k]
		var keyTotal int
		var topValue string
		var topCount int
		valueNames := make([]string, 0, len(values))
		for v := range values {
			valueNames = append(valueNames, v)
		}
		sort.Strings(valueNames)
		for _, v := range valueNames {
			c := values[v]
			keyTotal += c
			if c > topCount {
				topCount = c
				topValue = v
			}
		}

		saturation := 0.0
		if r.total > 0 {
			saturation = float64(keyTotal) / float64(r.total)
		}

		reports = append(reports, Health{
			Key:            k,
			DistinctValues: len(r.seenValues[k]),
			Saturation:     saturation,
			TopValue:       topValue,
			TopValueCount:  topCount,
			HasConflicts:   len(r.seenValues[k]) > 1,
		})
	}
	return reports
}

// Coverage returns the fraction of recorded entities carrying the given
// tag key at all.
func (r *Registry) Coverage(key string) float64 {
	if r.total == 0 {
		return 0
	}
	var count int
	for _, c := range r.usage[key] {
		count += c
	}
	return float64(count) / float64(r.total)
}
