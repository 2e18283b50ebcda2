// Package kg implements the mutable knowledge-graph model: entities, typed
// directed relations (triplets), JSON load/dump, and the structural mutation
// operations the perturbation engine builds on.
//
// Invariants maintained by every mutation:
//   - entity ids are unique and never reused within a graph's lifetime
//   - both endpoints of every relation exist in the entity set
//   - the relation set contains no duplicate (source, predicate, target) triplets
package kg

// Entity is a node in the knowledge graph. Name, Description and Type are
// the core attributes the perturbation engine knows how to rewrite; Attrs
// carries every other attribute verbatim through load/dump.
type Entity struct {
	ID          string
	Name        string
	Description string
	Type        string
	Attrs       map[string]interface{}

	// emptyCore records core keys that were loaded as explicit empty
	// strings, so Dump re-emits them and round-trips stay exact.
	emptyCore map[string]bool
}

// Clone returns a deep-enough copy for single-level attribute maps.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Attrs != nil {
		c.Attrs = make(map[string]interface{}, len(e.Attrs))
		for k, v := range e.Attrs {
			c.Attrs[k] = v
		}
	}
	if e.emptyCore != nil {
		c.emptyCore = make(map[string]bool, len(e.emptyCore))
		for k := range e.emptyCore {
			c.emptyCore[k] = true
		}
	}
	return &c
}

func (e *Entity) markEmptyCore(key string) {
	if e.emptyCore == nil {
		e.emptyCore = make(map[string]bool, 1)
	}
	e.emptyCore[key] = true
}

// Relation is a labeled directed edge between two entities. The predicate
// label is serialized under the "type" key for compatibility with the KG
// JSON schema.
type Relation struct {
	Source    string
	Predicate string
	Target    string
	Attrs     map[string]interface{}
}

// Triplet is the identity of a relation: duplicate triplets are not allowed
// regardless of extra attributes.
type Triplet struct {
	Source    string
	Predicate string
	Target    string
}

// Triplet returns the relation's identity key.
func (r *Relation) Triplet() Triplet {
	return Triplet{Source: r.Source, Predicate: r.Predicate, Target: r.Target}
}

// Clone returns a copy of the relation with its own attribute map.
func (r *Relation) Clone() *Relation {
	c := *r
	if r.Attrs != nil {
		c.Attrs = make(map[string]interface{}, len(r.Attrs))
		for k, v := range r.Attrs {
			c.Attrs[k] = v
		}
	}
	return &c
}
