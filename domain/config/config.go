// Package config holds the JSON/YAML-configured domain object: EngineConfig
// and its nested shapes, as named by spec.md §6.
package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/apperror"
)

// RelationshipBudget caps how many new relationships a tick or growth phase
// may add before culling triggers (spec §4.8).
type RelationshipBudget struct {
	MaxPerSimulationTick int `json:"maxPerSimulationTick" yaml:"maxPerSimulationTick"`
	MaxPerGrowthPhase    int `json:"maxPerGrowthPhase" yaml:"maxPerGrowthPhase"`
}

// TransitionCondition is one AND-gated clause an era must satisfy before
// advancing (spec §4.6 step 4): exactly one of Pressure/EntityCount/
// Occurrence/Time is populated.
type TransitionCondition struct {
	Pressure *struct {
		PressureID string  `json:"pressureId" yaml:"pressureId"`
		Operator   string  `json:"operator" yaml:"operator"` // above|below
		Threshold  float64 `json:"threshold" yaml:"threshold"`
	} `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	EntityCount *struct {
		EntityKind string `json:"entityKind" yaml:"entityKind"`
		Subtype    string `json:"subtype,omitempty" yaml:"subtype,omitempty"`
		Status     string `json:"status,omitempty" yaml:"status,omitempty"`
		Operator   string `json:"operator" yaml:"operator"`
		Threshold  int    `json:"threshold" yaml:"threshold"`
	} `json:"entityCount,omitempty" yaml:"entityCount,omitempty"`
	Occurrence *struct {
		Subtype  string `json:"subtype" yaml:"subtype"`
		Operator string `json:"operator" yaml:"operator"` // exists|ended
	} `json:"occurrence,omitempty" yaml:"occurrence,omitempty"`
	Time *struct {
		MinTicks int `json:"minTicks" yaml:"minTicks"`
	} `json:"time,omitempty" yaml:"time,omitempty"`
}

// PressureDelta is a named pressure adjustment applied by era entry/exit
// effects.
type PressureDelta struct {
	ID    string  `json:"id" yaml:"id"`
	Delta float64 `json:"delta" yaml:"delta"`
}

// EraEffects bundles the pressure changes an era transition or entry applies.
type EraEffects struct {
	PressureChanges []PressureDelta `json:"pressureChanges,omitempty" yaml:"pressureChanges,omitempty"`
}

// EraConfig is one entry of EngineConfig.Eras (spec §6).
type EraConfig struct {
	ID                   string                 `json:"id" yaml:"id"`
	Name                 string                 `json:"name" yaml:"name"`
	Description          string                 `json:"description" yaml:"description"`
	MinEraLength         int                    `json:"minEraLength" yaml:"minEraLength"`
	TransitionCooldown   int                    `json:"transitionCooldown,omitempty" yaml:"transitionCooldown,omitempty"`
	TemplateWeights      map[string]float64     `json:"templateWeights,omitempty" yaml:"templateWeights,omitempty"`
	SystemModifiers      map[string]float64     `json:"systemModifiers,omitempty" yaml:"systemModifiers,omitempty"`
	PressureModifiers    map[string]float64     `json:"pressureModifiers,omitempty" yaml:"pressureModifiers,omitempty"`
	TransitionConditions []TransitionCondition  `json:"transitionConditions,omitempty" yaml:"transitionConditions,omitempty"`
	TransitionEffects    *EraEffects            `json:"transitionEffects,omitempty" yaml:"transitionEffects,omitempty"`
	EntryEffects         *EraEffects            `json:"entryEffects,omitempty" yaml:"entryEffects,omitempty"`
}

// ActionRequirements gates which agents may select an action (spec §4.7
// step 2).
type ActionRequirements struct {
	MinProminence       string             `json:"minProminence,omitempty" yaml:"minProminence,omitempty"`
	RequiredRelationships []string         `json:"requiredRelationships,omitempty" yaml:"requiredRelationships,omitempty"`
	RequiredPressures   map[string]float64 `json:"requiredPressures,omitempty" yaml:"requiredPressures,omitempty"`
}

// ActionPressureModifier scales an action's weight/attempt-chance by a
// pressure's current value (spec §4.7 steps 1 and 3).
type ActionPressureModifier struct {
	PressureID string  `json:"pressureId" yaml:"pressureId"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// ActionConfig is one catalyst action an agent may take.
type ActionConfig struct {
	ID                   string                   `json:"id" yaml:"id"`
	BaseWeight           float64                  `json:"baseWeight" yaml:"baseWeight"`
	BaseSuccessChance     float64                  `json:"baseSuccessChance" yaml:"baseSuccessChance"`
	Requirements          ActionRequirements       `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	PressureModifiers     []ActionPressureModifier `json:"pressureModifiers,omitempty" yaml:"pressureModifiers,omitempty"`
	ProminenceFeedback    bool                     `json:"prominenceFeedback,omitempty" yaml:"prominenceFeedback,omitempty"`
	ProminenceUpChance    float64                  `json:"prominenceUpChance,omitempty" yaml:"prominenceUpChance,omitempty"`
	ProminenceDownChance  float64                  `json:"prominenceDownChance,omitempty" yaml:"prominenceDownChance,omitempty"`
}

// ActionDomain groups actions under a named domain an agent opts into via
// catalyst.actionDomains.
type ActionDomain struct {
	ID      string         `json:"id" yaml:"id"`
	Actions []ActionConfig `json:"actions" yaml:"actions"`
}

// DistributionTargets is the optional entity-kind/prominence ratio target
// feeding the distribution-fitness calculation (spec §4.11).
type DistributionTargets struct {
	KindRatios       map[string]float64 `json:"kindRatios,omitempty" yaml:"kindRatios,omitempty"`
	ProminenceRatios map[string]float64 `json:"prominenceRatios,omitempty" yaml:"prominenceRatios,omitempty"`
}

// EmergentDiscoveryConfig controls the optional discovery subsystem.
type EmergentDiscoveryConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	MinimumPressure   float64 `json:"minimumPressure,omitempty" yaml:"minimumPressure,omitempty"`
	CooldownTicks     int     `json:"cooldownTicks,omitempty" yaml:"cooldownTicks,omitempty"`
}

// PressureDefinition is one named feedback signal's static configuration
// (spec §4.9). The calling binary translates these into
// domain/pressures.Definition values.
type PressureDefinition struct {
	ID       string  `json:"id" yaml:"id"`
	Baseline float64 `json:"baseline" yaml:"baseline"`
	Decay    float64 `json:"decay" yaml:"decay"`
}

// ClusteringConfig controls the optional spec §4.12 consolidation pass.
// Criteria names the weighted similarity dimensions to combine by name
// (domain/clustering's shared_relationship/shared_tags/temporal_proximity/
// same_subtype/same_culture); the calling binary resolves each name to a
// clustering.Criterion.
type ClusteringConfig struct {
	Enabled              bool     `json:"enabled" yaml:"enabled"`
	Criteria             []string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	ClusterJoinThreshold float64  `json:"clusterJoinThreshold,omitempty" yaml:"clusterJoinThreshold,omitempty"`
	MinimumScore         float64  `json:"minimumScore,omitempty" yaml:"minimumScore,omitempty"`
	MinSize              int      `json:"minSize,omitempty" yaml:"minSize,omitempty"`
	LiftExternalLinks    bool     `json:"liftExternalLinks,omitempty" yaml:"liftExternalLinks,omitempty"`
}

// EngineConfig is the top-level JSON/YAML configuration object named by
// spec.md §6. The `Domain` callbacks it describes are supplied in-process
// (this struct carries only the static, serializable portion); the calling
// binary wires an engine.Domain implementation alongside it.
type EngineConfig struct {
	EpochLength              int                      `json:"epochLength" yaml:"epochLength"`
	SimulationTicksPerGrowth int                      `json:"simulationTicksPerGrowth" yaml:"simulationTicksPerGrowth"`
	MaxTicks                 int                      `json:"maxTicks" yaml:"maxTicks"`
	HardCap                  int                      `json:"hardCap,omitempty" yaml:"hardCap,omitempty"`
	TargetEntitiesPerKind    map[string]int           `json:"targetEntitiesPerKind" yaml:"targetEntitiesPerKind"`
	RelationshipBudget       RelationshipBudget       `json:"relationshipBudget" yaml:"relationshipBudget"`
	Eras                     []EraConfig              `json:"eras" yaml:"eras"`
	ActionDomains            []ActionDomain           `json:"actionDomains,omitempty" yaml:"actionDomains,omitempty"`
	DistributionTargets      *DistributionTargets     `json:"distributionTargets,omitempty" yaml:"distributionTargets,omitempty"`
	EmergentDiscovery        *EmergentDiscoveryConfig `json:"emergentDiscovery,omitempty" yaml:"emergentDiscovery,omitempty"`
	Pressures                []PressureDefinition     `json:"pressures" yaml:"pressures"`
	Clustering               *ClusteringConfig        `json:"clustering,omitempty" yaml:"clustering,omitempty"`

	// PressureDomainMappings implements spec §4.9's "the domain config maps
	// [an entity kind] to [pressure ids]": when a kind's population falls
	// short of targetEntitiesPerKind, every pressure its kind maps to here
	// gets a positive delta (engine.Domain.PressureDomainMappings).
	PressureDomainMappings map[string][]string `json:"pressureDomainMappings,omitempty" yaml:"pressureDomainMappings,omitempty"`
}

// Validate enforces the minimum required fields per spec §7 ("missing/
// invalid required fields produce a ConfigError before tick 1").
func (c *EngineConfig) Validate() error {
	if c.EpochLength <= 0 {
		return apperror.NewConfig("epochLength must be positive")
	}
	if c.SimulationTicksPerGrowth <= 0 {
		return apperror.NewConfig("simulationTicksPerGrowth must be positive")
	}
	if c.MaxTicks <= 0 {
		return apperror.NewConfig("maxTicks must be positive")
	}
	if len(c.TargetEntitiesPerKind) == 0 {
		return apperror.NewConfig("targetEntitiesPerKind must not be empty")
	}
	if c.RelationshipBudget.MaxPerSimulationTick <= 0 {
		return apperror.NewConfig("relationshipBudget.maxPerSimulationTick must be positive")
	}
	if c.RelationshipBudget.MaxPerGrowthPhase <= 0 {
		return apperror.NewConfig("relationshipBudget.maxPerGrowthPhase must be positive")
	}
	if len(c.Eras) == 0 {
		return apperror.NewConfig("at least one era is required")
	}
	for i, e := range c.Eras {
		if e.ID == "" {
			return apperror.NewConfig(fmt.Sprintf("era at index %d missing id", i))
		}
	}
	if len(c.Pressures) == 0 {
		return apperror.NewConfig("at least one pressure definition is required")
	}
	for i, p := range c.Pressures {
		if p.ID == "" {
			return apperror.NewConfig(fmt.Sprintf("pressure at index %d missing id", i))
		}
	}
	return nil
}

// Load decodes an EngineConfig from raw bytes, sniffing JSON vs. YAML by content
// (teacher's manifests accept either; JSON is canonical per spec.md §6,
// YAML is decoded then re-marshaled through the same tagged structs).
func Load(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig

	jsonErr := json.Unmarshal(data, &cfg)
	if jsonErr != nil {
		var raw map[string]any
		if yamlErr := yaml.Unmarshal(data, &raw); yamlErr != nil {
			return nil, apperror.NewConfig("could not parse config as JSON or YAML").WithInternal(jsonErr)
		}
		normalized, err := json.Marshal(raw)
		if err != nil {
			return nil, apperror.NewConfig("failed to normalize YAML config").WithInternal(err)
		}
		if err := json.Unmarshal(normalized, &cfg); err != nil {
			return nil, apperror.NewConfig("failed to decode normalized config").WithInternal(err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
