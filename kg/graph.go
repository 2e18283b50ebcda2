package kg

import (
	"fmt"
	"sort"

	"github.com/entalign/kgmorph/errors"
)

// Graph is the mutable in-memory knowledge graph. It is not safe for
// concurrent mutation; the perturbation engine serializes all structural
// operations.
type Graph struct {
	entities  map[string]*Entity
	order     []string // entity insertion order, drives Dump output
	relations []*Relation
	relSet    map[Triplet]*Relation

	// usedIDs records every id that ever existed in this graph, including
	// removed ones, so fresh ids never collide with historical ids and the
	// ground-truth mapping stays unambiguous.
	usedIDs map[string]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		entities: make(map[string]*Entity),
		relSet:   make(map[Triplet]*Relation),
		usedIDs:  make(map[string]struct{}),
	}
}

// EntityCount returns the number of entities currently in the graph.
func (g *Graph) EntityCount() int { return len(g.entities) }

// RelationCount returns the number of relations currently in the graph.
func (g *Graph) RelationCount() int { return len(g.relations) }

// HasEntity reports whether the entity id is present.
func (g *Graph) HasEntity(id string) bool {
	_, ok := g.entities[id]
	return ok
}

// Entity returns the entity by id, or nil if absent.
func (g *Graph) Entity(id string) *Entity {
	return g.entities[id]
}

// EntityIDs returns the current entity ids in insertion order.
func (g *Graph) EntityIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Entities returns the current entities in insertion order.
func (g *Graph) Entities() []*Entity {
	out := make([]*Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out
}

// HasRelation reports whether the triplet is present.
func (g *Graph) HasRelation(t Triplet) bool {
	_, ok := g.relSet[t]
	return ok
}

// Relations returns the current relations in insertion order.
func (g *Graph) Relations() []*Relation {
	out := make([]*Relation, len(g.relations))
	copy(out, g.relations)
	return out
}

// Triplets returns the identities of all current relations in insertion order.
func (g *Graph) Triplets() []Triplet {
	out := make([]Triplet, 0, len(g.relations))
	for _, r := range g.relations {
		out = append(out, r.Triplet())
	}
	return out
}

// Predicates returns the sorted set of predicate labels observed on current
// relations. Edge addition draws from this vocabulary; no novel predicates
// are invented.
func (g *Graph) Predicates() []string {
	seen := make(map[string]struct{})
	for _, r := range g.relations {
		seen[r.Predicate] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AddEntity inserts a new entity. The id must be non-empty and fresh
// against every id ever used in this graph, including removed ones.
func (g *Graph) AddEntity(e *Entity) error {
	if e == nil || e.ID == "" {
		return errors.Mark(errors.New("entity id must not be empty"), ErrMalformedGraph)
	}
	if _, used := g.usedIDs[e.ID]; used {
		return errors.Mark(errors.Newf("entity id %q already used", e.ID), ErrDuplicate)
	}
	g.entities[e.ID] = e
	g.order = append(g.order, e.ID)
	g.usedIDs[e.ID] = struct{}{}
	return nil
}

// RemoveEntity deletes the entity and cascades to every incident relation.
// The cascade is atomic: membership is checked before any mutation.
func (g *Graph) RemoveEntity(id string) error {
	if !g.HasEntity(id) {
		return errors.Mark(errors.Newf("entity %q", id), ErrNotFound)
	}
	kept := g.relations[:0]
	for _, r := range g.relations {
		if r.Source == id || r.Target == id {
			delete(g.relSet, r.Triplet())
			continue
		}
		kept = append(kept, r)
	}
	g.relations = kept
	delete(g.entities, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddRelation inserts a new relation. Both endpoints must exist and the
// triplet must not already be present.
func (g *Graph) AddRelation(r *Relation) error {
	if r == nil {
		return errors.Mark(errors.New("nil relation"), ErrMalformedGraph)
	}
	if !g.HasEntity(r.Source) {
		return errors.Mark(errors.Newf("relation source %q", r.Source), ErrNotFound)
	}
	if !g.HasEntity(r.Target) {
		return errors.Mark(errors.Newf("relation target %q", r.Target), ErrNotFound)
	}
	t := r.Triplet()
	if _, ok := g.relSet[t]; ok {
		return errors.Mark(errors.Newf("relation %s", formatTriplet(t)), ErrDuplicate)
	}
	g.relations = append(g.relations, r)
	g.relSet[t] = r
	return nil
}

// RemoveRelation deletes the relation identified by the triplet.
func (g *Graph) RemoveRelation(t Triplet) error {
	if _, ok := g.relSet[t]; !ok {
		return errors.Mark(errors.Newf("relation %s", formatTriplet(t)), ErrNotFound)
	}
	delete(g.relSet, t)
	for i, r := range g.relations {
		if r.Triplet() == t {
			g.relations = append(g.relations[:i], g.relations[i+1:]...)
			break
		}
	}
	return nil
}

// RetypeRelation changes a relation's predicate label in place, preserving
// insertion order. Fails with ErrDuplicate if the new triplet already exists.
func (g *Graph) RetypeRelation(t Triplet, newPredicate string) error {
	r, ok := g.relSet[t]
	if !ok {
		return errors.Mark(errors.Newf("relation %s", formatTriplet(t)), ErrNotFound)
	}
	nt := Triplet{Source: r.Source, Predicate: newPredicate, Target: r.Target}
	if nt == t {
		return nil
	}
	if _, dup := g.relSet[nt]; dup {
		return errors.Mark(errors.Newf("relation %s", formatTriplet(nt)), ErrDuplicate)
	}
	delete(g.relSet, t)
	r.Predicate = newPredicate
	g.relSet[nt] = r
	return nil
}

// RenameEntity changes an entity's id, rewriting every incident relation.
// The new id must be fresh under the same rules as AddEntity. Used by the
// optional id-reassignment step.
func (g *Graph) RenameEntity(oldID, newID string) error {
	e, ok := g.entities[oldID]
	if !ok {
		return errors.Mark(errors.Newf("entity %q", oldID), ErrNotFound)
	}
	if newID == "" {
		return errors.Mark(errors.New("entity id must not be empty"), ErrMalformedGraph)
	}
	if _, used := g.usedIDs[newID]; used {
		return errors.Mark(errors.Newf("entity id %q already used", newID), ErrDuplicate)
	}

	e.ID = newID
	delete(g.entities, oldID)
	g.entities[newID] = e
	g.usedIDs[newID] = struct{}{}
	for i, id := range g.order {
		if id == oldID {
			g.order[i] = newID
			break
		}
	}
	for _, r := range g.relations {
		old := r.Triplet()
		changed := false
		if r.Source == oldID {
			r.Source = newID
			changed = true
		}
		if r.Target == oldID {
			r.Target = newID
			changed = true
		}
		if changed {
			delete(g.relSet, old)
			g.relSet[r.Triplet()] = r
		}
	}
	return nil
}

// FreshID mints an id of the form prefix1, prefix2, ... that has never been
// used in this graph's lifetime. The candidate counter is deterministic, so
// a fixed sequence of operations yields a fixed sequence of synthetic ids.
func (g *Graph) FreshID(prefix string) string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%d", prefix, i)
		if _, used := g.usedIDs[candidate]; !used {
			return candidate
		}
	}
}

func formatTriplet(t Triplet) string {
	return fmt.Sprintf("(%s, %s, %s)", t.Source, t.Predicate, t.Target)
}
