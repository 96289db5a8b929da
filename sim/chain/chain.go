// Package chain loads supply-chain paths from YAML and turns them into the
// ordered node list the engine consumes.
package chain

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chainsim/chainsim/sim"
	"gopkg.in/yaml.v3"
)

// PathSpec is the top-level chain file.
// Loaded from YAML via LoadPathSpec(path).
type PathSpec struct {
	Version string     `yaml:"version"`
	Name    string     `yaml:"name,omitempty"`
	Nodes   []NodeSpec `yaml:"nodes"`
}

// NodeSpec describes one stage of the chain.
type NodeSpec struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name,omitempty"`
	Stage    string        `yaml:"stage,omitempty"` // free-form label, e.g. "fab" or "osat"
	Location *LocationSpec `yaml:"location,omitempty"`
	Risk     *float64      `yaml:"risk,omitempty"` // omitted = engine default risk
}

// LocationSpec is a geocoordinate in degrees.
type LocationSpec struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

var validVersions = map[string]bool{"": true, "1": true}

// LoadPathSpec reads and parses a YAML chain file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadPathSpec(path string) (*PathSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chain file: %w", err)
	}
	return ParsePathSpec(bytes.NewReader(data))
}

// ParsePathSpec parses a YAML chain document from r with strict field checking.
func ParsePathSpec(r io.Reader) (*PathSpec, error) {
	var spec PathSpec
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing chain file: %w", err)
	}
	return &spec, nil
}

// Validate checks field-level constraints. Path-level rules (unique ids,
// locations on every leg, risk after defaulting) are checked again by the
// engine at start.
func (s *PathSpec) Validate() error {
	if !validVersions[s.Version] {
		return fmt.Errorf("unsupported version %q; valid: 1", s.Version)
	}
	for i, n := range s.Nodes {
		prefix := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			return fmt.Errorf("%s: id is required", prefix)
		}
		if n.Location != nil {
			if err := validateLocation(prefix+".location", *n.Location); err != nil {
				return err
			}
		}
		if n.Risk != nil {
			r := *n.Risk
			if math.IsNaN(r) || r < sim.MinRisk || r > sim.MaxRisk {
				return fmt.Errorf("%s.risk must be in [%v, %v], got %v", prefix, sim.MinRisk, sim.MaxRisk, r)
			}
		}
	}
	return sim.ValidatePath(s.ChainNodes(), sim.DefaultRisk)
}

func validateLocation(prefix string, loc LocationSpec) error {
	if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("%s.lat must be in [-90, 90], got %v", prefix, loc.Lat)
	}
	if math.IsNaN(loc.Lon) || loc.Lon < -180 || loc.Lon > 180 {
		return fmt.Errorf("%s.lon must be in [-180, 180], got %v", prefix, loc.Lon)
	}
	return nil
}

// ChainNodes converts the spec into engine nodes, in file order.
// Each node owns its own copies of location and risk.
func (s *PathSpec) ChainNodes() []sim.ChainNode {
	nodes := make([]sim.ChainNode, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		node := sim.ChainNode{ID: n.ID, Name: n.Name}
		if n.Location != nil {
			node.Location = &sim.Location{Lat: n.Location.Lat, Lon: n.Location.Lon}
		}
		if n.Risk != nil {
			r := *n.Risk
			node.Risk = &r
		}
		nodes = append(nodes, node)
	}
	return nodes
}
