// Package kgtest provides graph fixtures and a deterministic text-generator
// stub for engine and alignment tests.
package kgtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/ai/provider"
	"github.com/entalign/kgmorph/kg"
)

// NewGraph builds a graph from entity ids and (source, predicate, target)
// triples, failing the test on any violation.
func NewGraph(t *testing.T, entities []kg.Entity, relations []kg.Relation) *kg.Graph {
	t.Helper()
	g := kg.NewGraph()
	for i := range entities {
		e := entities[i]
		require.NoError(t, g.AddEntity(&e))
	}
	for i := range relations {
		r := relations[i]
		require.NoError(t, g.AddRelation(&r))
	}
	return g
}

// ChainGraph builds the five-entity scenario fixture: entities A..E with
// relations (A,knows,B), (B,knows,C), (C,knows,D).
func ChainGraph(t *testing.T) *kg.Graph {
	t.Helper()
	return NewGraph(t,
		[]kg.Entity{
			{ID: "A", Name: "Alice"},
			{ID: "B", Name: "Bob"},
			{ID: "C", Name: "Carol"},
			{ID: "D", Name: "Dan"},
			{ID: "E", Name: "Eve"},
		},
		[]kg.Relation{
			{Source: "A", Predicate: "knows", Target: "B"},
			{Source: "B", Predicate: "knows", Target: "C"},
			{Source: "C", Predicate: "knows", Target: "D"},
		},
	)
}

// StaticGenerator is a deterministic TextGenerator stub: each call returns
// the current value with a fixed prefix, so outputs are a pure function of
// the request. Safe for concurrent use.
type StaticGenerator struct {
	// Prefix defaults to "alt ".
	Prefix string
	// Fail maps attribute kinds to an error returned instead of a variant.
	Fail map[provider.AttributeKind]error

	mu    sync.Mutex
	calls []provider.VariantRequest
}

// GenerateVariant implements provider.TextGenerator.
func (s *StaticGenerator) GenerateVariant(_ context.Context, req provider.VariantRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if err, ok := s.Fail[req.Attribute]; ok && err != nil {
		return "", err
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = "alt "
	}
	return prefix + req.CurrentValue, nil
}

// Calls returns a copy of every request seen so far.
func (s *StaticGenerator) Calls() []provider.VariantRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.VariantRequest, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of requests seen so far.
func (s *StaticGenerator) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
