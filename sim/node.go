package sim

import (
	"errors"
	"fmt"
	"math"
)

// MinRisk and MaxRisk bound a node's risk score.
const (
	MinRisk = 0.0
	MaxRisk = 10.0

	// DefaultRisk is applied to nodes that carry no explicit risk score.
	DefaultRisk = 5.0
)

var (
	ErrEmptyNodeID     = errors.New("chain node has an empty id")
	ErrDuplicateNodeID = errors.New("duplicate chain node id")
	ErrMissingLocation = errors.New("chain node has no location")
	ErrRiskOutOfRange  = errors.New("risk score out of range")
)

// Location is a geocoordinate in degrees.
type Location struct {
	Lat float64
	Lon float64
}

// ChainNode is one stage of the supply chain (a fab, a packaging house, ...).
// Nodes are built by the path provider and never mutated by the engine.
type ChainNode struct {
	ID       string
	Name     string
	Location *Location // nil when the stage has no primary site
	Risk     *float64  // nil falls back to the engine's default risk
}

// NewChainNode builds a node with a location and an explicit risk score.
func NewChainNode(id, name string, lat, lon, risk float64) ChainNode {
	return ChainNode{
		ID:       id,
		Name:     name,
		Location: &Location{Lat: lat, Lon: lon},
		Risk:     &risk,
	}
}

// EffectiveRisk returns the node's risk, or fallback when none is set.
func (n ChainNode) EffectiveRisk(fallback float64) float64 {
	if n.Risk == nil {
		return fallback
	}
	return *n.Risk
}

// String returns the display label, or the id when the label is empty.
func (n ChainNode) String() string {
	if n.Name == "" {
		return n.ID
	}
	return n.Name
}

// ValidatePath checks that a path can be traversed without structural errors:
// ids must be non-empty and unique, effective risks must lie in
// [MinRisk, MaxRisk], and every node must have a location whenever the path
// has at least one leg.
func ValidatePath(path []ChainNode, defaultRisk float64) error {
	seen := make(map[string]int, len(path))
	for i, n := range path {
		if n.ID == "" {
			return fmt.Errorf("node[%d]: %w", i, ErrEmptyNodeID)
		}
		if prev, ok := seen[n.ID]; ok {
			return fmt.Errorf("node[%d] %q (first seen at node[%d]): %w", i, n.ID, prev, ErrDuplicateNodeID)
		}
		seen[n.ID] = i
		if err := validateRisk(n.EffectiveRisk(defaultRisk)); err != nil {
			return fmt.Errorf("node[%d] %q: %w", i, n.ID, err)
		}
		if len(path) > 1 && n.Location == nil {
			return fmt.Errorf("node[%d] %q: %w", i, n.ID, ErrMissingLocation)
		}
	}
	return nil
}

func validateRisk(risk float64) error {
	if math.IsNaN(risk) || risk < MinRisk || risk > MaxRisk {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrRiskOutOfRange, risk, MinRisk, MaxRisk)
	}
	return nil
}
