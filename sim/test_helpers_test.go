package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedSource replays fixed draws, then repeats fallback forever.
type scriptedSource struct {
	values   []float64
	next     int
	fallback float64
}

func (s *scriptedSource) Float64() float64 {
	if s.next < len(s.values) {
		v := s.values[s.next]
		s.next++
		return v
	}
	return s.fallback
}

func constSource(v float64) *scriptedSource {
	return &scriptedSource{fallback: v}
}

// script returns a source yielding values in order, then 0.99 (always a clean roll).
func script(values ...float64) *scriptedSource {
	return &scriptedSource{values: values, fallback: 0.99}
}

// testPath returns a four-stage chain with risks [2, 7.5, 4, 3].
func testPath() []ChainNode {
	return []ChainNode{
		NewChainNode("design", "Design (Santa Clara)", 37.35, -121.95, 2),
		NewChainNode("fab", "Wafer Fab (Hsinchu)", 24.80, 120.97, 7.5),
		NewChainNode("packaging", "Packaging (Penang)", 5.41, 100.33, 4),
		NewChainNode("test", "Final Test (Chandler)", 33.30, -111.84, 3),
	}
}

// newTestEngine builds an engine with default config and the given outcome source.
func newTestEngine(t *testing.T, outcomes Float64Source, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithOutcomeSource(outcomes)}, opts...)
	e, err := NewEngine(DefaultEngineConfig(), opts...)
	require.NoError(t, err)
	return e
}

func ptr[T any](v T) *T { return &v }

const second = int64(1_000_000) // ticks
