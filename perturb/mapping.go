package perturb

import (
	"sort"
	"sync"

	"github.com/entalign/kgmorph/errors"
)

// Kind tags the transformation applied to an entity.
type Kind string

const (
	KindUnchanged   Kind = "unchanged"
	KindRenamed     Kind = "renamed"
	KindRedescribed Kind = "redescribed"
	KindRetyped     Kind = "retyped"
	KindRemoved     Kind = "removed"
	KindAdded       Kind = "added"
)

// ErrMappingConflict signals an engine-internal invariant breach: an id was
// recorded twice, or the finalize completeness check failed. It should never
// occur in correct operation.
var ErrMappingConflict = errors.New("mapping conflict")

// Entry is one row of the ground-truth mapping. A nil OriginalID means the
// entity is synthetic; a nil PerturbedID means the original was removed.
type Entry struct {
	OriginalID  *string `json:"original_id"`
	PerturbedID *string `json:"perturbed_id"`
	Kinds       []Kind  `json:"kinds"`
}

type entryState struct {
	originalID  *string
	perturbedID *string
	kinds       []Kind
	removed     bool
}

// Tracker is the bidirectional ledger of original-id to perturbed-id
// correspondence. Writes are mutex-serialized so the concurrent text
// perturbation phase can record outcomes safely.
type Tracker struct {
	mu sync.Mutex

	// originals is keyed by load-time id; added by synthetic id.
	originals map[string]*entryState
	added     map[string]*entryState

	finalized bool
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		originals: make(map[string]*entryState),
		added:     make(map[string]*entryState),
	}
}

// RecordRemoved records that an original entity was deleted.
func (t *Tracker) RecordRemoved(originalID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.originals[originalID]; ok {
		return errors.Mark(errors.Newf("entity %q already recorded", originalID), ErrMappingConflict)
	}
	id := originalID
	t.originals[originalID] = &entryState{
		originalID: &id,
		kinds:      []Kind{KindRemoved},
		removed:    true,
	}
	return nil
}

// RecordAdded records a synthetic entity with no original counterpart.
func (t *Tracker) RecordAdded(newID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.added[newID]; ok {
		return errors.Mark(errors.Newf("synthetic %q already recorded", newID), ErrMappingConflict)
	}
	if _, ok := t.originals[newID]; ok {
		return errors.Mark(errors.Newf("id %q already recorded as original", newID), ErrMappingConflict)
	}
	id := newID
	t.added[newID] = &entryState{
		perturbedID: &id,
		kinds:       []Kind{KindAdded},
	}
	return nil
}

// RecordReassigned records that a surviving original received a fresh id.
// The entry stays open for later transform or unchanged kinds.
func (t *Tracker) RecordReassigned(originalID, newID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writable(); err != nil {
		return err
	}
	es, ok := t.originals[originalID]
	if !ok {
		oid, nid := originalID, newID
		t.originals[originalID] = &entryState{originalID: &oid, perturbedID: &nid}
		return nil
	}
	if es.removed {
		return errors.Mark(errors.Newf("entity %q already removed", originalID), ErrMappingConflict)
	}
	nid := newID
	es.perturbedID = &nid
	return nil
}

// RecordUnchanged records a surviving entity that no operator touched.
func (t *Tracker) RecordUnchanged(originalID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writable(); err != nil {
		return err
	}
	es, ok := t.originals[originalID]
	if !ok {
		id := originalID
		t.originals[originalID] = &entryState{
			originalID:  &id,
			perturbedID: &id,
			kinds:       []Kind{KindUnchanged},
		}
		return nil
	}
	if es.removed || len(es.kinds) > 0 {
		return errors.Mark(errors.Newf("entity %q already has a terminal record", originalID), ErrMappingConflict)
	}
	// Reassigned but otherwise untouched.
	es.kinds = []Kind{KindUnchanged}
	return nil
}

// RecordTransformed records a text transformation on a surviving entity.
// Multiple kinds merge onto one entry; synthetic entities accumulate kinds
// after their added record. Transforming a removed entity is a conflict.
func (t *Tracker) RecordTransformed(id, currentID string, kind Kind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writable(); err != nil {
		return err
	}
	switch kind {
	case KindRenamed, KindRedescribed, KindRetyped:
	default:
		return errors.Mark(errors.Newf("kind %q is not a transformation", kind), ErrMappingConflict)
	}

	if es, ok := t.added[id]; ok {
		es.kinds = appendKind(es.kinds, kind)
		return nil
	}

	es, ok := t.originals[id]
	if !ok {
		oid, cid := id, currentID
		t.originals[id] = &entryState{originalID: &oid, perturbedID: &cid, kinds: []Kind{kind}}
		return nil
	}
	if es.removed {
		return errors.Mark(errors.Newf("entity %q already removed", id), ErrMappingConflict)
	}
	cid := currentID
	es.perturbedID = &cid
	es.kinds = appendKind(es.kinds, kind)
	return nil
}

func appendKind(kinds []Kind, kind Kind) []Kind {
	for _, k := range kinds {
		if k == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

// Finalize runs the completeness gate and exports the mapping. Every
// load-time id must have exactly one terminal entry, and the non-nil
// perturbed ids must equal the final graph's entity set exactly. The tracker
// rejects all writes afterwards.
func (t *Tracker) Finalize(originalIDs, finalIDs []string) ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return nil, errors.Mark(errors.New("tracker already finalized"), ErrMappingConflict)
	}

	originalSet := make(map[string]struct{}, len(originalIDs))
	for _, id := range originalIDs {
		originalSet[id] = struct{}{}
		es, ok := t.originals[id]
		if !ok {
			return nil, errors.Mark(errors.Newf("entity %q has no mapping entry", id), ErrMappingConflict)
		}
		if len(es.kinds) == 0 {
			return nil, errors.Mark(errors.Newf("entity %q has no terminal kind", id), ErrMappingConflict)
		}
	}
	for id := range t.originals {
		if _, ok := originalSet[id]; !ok {
			return nil, errors.Mark(errors.Newf("entry for unknown original %q", id), ErrMappingConflict)
		}
	}

	perturbed := make(map[string]struct{})
	for _, es := range t.originals {
		if es.perturbedID != nil {
			perturbed[*es.perturbedID] = struct{}{}
		}
	}
	for _, es := range t.added {
		perturbed[*es.perturbedID] = struct{}{}
	}
	if len(perturbed) != len(finalIDs) {
		return nil, errors.Mark(
			errors.Newf("mapping covers %d final entities, graph has %d", len(perturbed), len(finalIDs)),
			ErrMappingConflict)
	}
	for _, id := range finalIDs {
		if _, ok := perturbed[id]; !ok {
			return nil, errors.Mark(errors.Newf("final entity %q has no mapping entry", id), ErrMappingConflict)
		}
	}

	entries := make([]Entry, 0, len(t.originals)+len(t.added))
	origKeys := make([]string, 0, len(t.originals))
	for id := range t.originals {
		origKeys = append(origKeys, id)
	}
	sort.Strings(origKeys)
	for _, id := range origKeys {
		es := t.originals[id]
		entries = append(entries, Entry{OriginalID: es.originalID, PerturbedID: es.perturbedID, Kinds: es.kinds})
	}
	addedKeys := make([]string, 0, len(t.added))
	for id := range t.added {
		addedKeys = append(addedKeys, id)
	}
	sort.Strings(addedKeys)
	for _, id := range addedKeys {
		es := t.added[id]
		entries = append(entries, Entry{OriginalID: nil, PerturbedID: es.perturbedID, Kinds: es.kinds})
	}

	t.finalized = true
	return entries, nil
}

func (t *Tracker) writable() error {
	if t.finalized {
		return errors.Mark(errors.New("tracker already finalized"), ErrMappingConflict)
	}
	return nil
}
