// Package align converts a perturbation run's outputs into entity-alignment
// training files: integer-indexed entity, type, relation and triple listings
// for both graphs plus reference pair splits.
package align

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/entalign/kgmorph/errors"
	"github.com/entalign/kgmorph/kg"
	"github.com/entalign/kgmorph/perturb"
)

// FileNames lists every exported file, in a stable order.
var FileNames = []string{
	"ent_ids_1", "ent_ids_2",
	"ent_types_1", "ent_types_2",
	"type_ids",
	"ref_ent_ids", "ref_pairs", "sup_pairs",
	"rel_ids_1", "rel_ids_2",
	"triples_1", "triples_2",
}

// Options controls the reference pair split.
type Options struct {
	// TestRatio is the fraction of aligned pairs placed in ref_pairs
	// (the test split). 0 means the default of 0.57.
	TestRatio float64
	// Seed drives the split shuffle. 0 means the default of 42.
	Seed int64
}

const (
	defaultTestRatio = 0.57
	defaultSplitSeed = 42
	unknownType      = "Unknown"
	typePrefix       = "pekg:"
)

// Dataset holds the rendered alignment files keyed by file name.
type Dataset struct {
	Files map[string][]byte
}

// WriteDir writes every file into dir, creating it if needed.
func (d *Dataset) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	for _, name := range FileNames {
		content, ok := d.Files[name]
		if !ok {
			return errors.AssertionFailedf("dataset missing file %s", name)
		}
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", name)
		}
	}
	return nil
}

// Build renders the alignment files for an (original, perturbed, mapping)
// triple. All enumerations are sorted and the pair split is drawn from a
// seeded sampler, so identical inputs give identical bytes.
func Build(original, perturbed *kg.Graph, mapping []perturb.Entry, opts Options) (*Dataset, error) {
	ratio := opts.TestRatio
	if ratio == 0 {
		ratio = defaultTestRatio
	}
	if ratio < 0 || ratio > 1 {
		return nil, errors.Newf("test ratio %v out of range [0, 1]", ratio)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = defaultSplitSeed
	}

	idx1 := newIndexer(original)
	idx2 := newIndexer(perturbed)
	typeIDs := collectTypeIDs(original, perturbed)

	files := make(map[string][]byte, len(FileNames))
	files["type_ids"] = renderTypeIDs(typeIDs)
	files["ent_ids_1"] = renderEntityNames(original, idx1)
	files["ent_ids_2"] = renderEntityNames(perturbed, idx2)
	files["ent_types_1"] = renderEntityTypes(original, idx1, typeIDs)
	files["ent_types_2"] = renderEntityTypes(perturbed, idx2, typeIDs)

	pairs, err := alignedPairs(mapping, idx1, idx2)
	if err != nil {
		return nil, err
	}
	shufflePairs(pairs, seed)
	splitAt := int(float64(len(pairs)) * ratio)
	files["ref_ent_ids"] = renderPairs(pairs)
	files["ref_pairs"] = renderPairs(pairs[:splitAt])
	files["sup_pairs"] = renderPairs(pairs[splitAt:])

	rels1 := predicateIDs(original, 0)
	rels2 := predicateIDs(perturbed, len(rels1))
	files["rel_ids_1"] = renderRelationIDs(rels1)
	files["rel_ids_2"] = renderRelationIDs(rels2)
	files["triples_1"] = renderTriples(original, idx1, rels1)
	files["triples_2"] = renderTriples(perturbed, idx2, rels2)

	return &Dataset{Files: files}, nil
}

var numericID = regexp.MustCompile(`^e([0-9]+)$`)

// indexer assigns each entity a stable integer index. Ids of the form e<N>
// map to N-1, matching the alignment tooling's numbering convention; any
// other id (synthetic rand_ ids, arbitrary strings) is numbered past the
// highest parsed index in insertion order.
type indexer struct {
	byID map[string]int
}

func newIndexer(g *kg.Graph) *indexer {
	idx := &indexer{byID: make(map[string]int, g.EntityCount())}
	next := 0
	var rest []string
	for _, id := range g.EntityIDs() {
		m := numericID.FindStringSubmatch(id)
		// Only canonical e<N> ids (N >= 1, no leading zeros) take the N-1
		// slot; e0 would index -1 and e01 would collide with e1.
		if m == nil || m[1][0] == '0' {
			rest = append(rest, id)
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			rest = append(rest, id)
			continue
		}
		idx.byID[id] = n - 1
		if n > next {
			next = n
		}
	}
	for _, id := range rest {
		idx.byID[id] = next
		next++
	}
	return idx
}

func (x *indexer) index(id string) (int, error) {
	i, ok := x.byID[id]
	if !ok {
		return 0, errors.Newf("unknown entity id %q", id)
	}
	return i, nil
}

type indexedID struct {
	index int
	id    string
}

// sorted returns (index, id) pairs ordered by index.
func (x *indexer) sorted() []indexedID {
	out := make([]indexedID, 0, len(x.byID))
	for id, i := range x.byID {
		out = append(out, indexedID{index: i, id: id})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].index < out[b].index })
	return out
}

func normalizeType(t string) string {
	if t == "" {
		return unknownType
	}
	return strings.ReplaceAll(t, typePrefix, "")
}

func collectTypeIDs(graphs ...*kg.Graph) map[string]int {
	unique := make(map[string]struct{})
	for _, g := range graphs {
		for _, e := range g.Entities() {
			unique[normalizeType(e.Type)] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(unique))
	for t := range unique {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)
	out := make(map[string]int, len(sorted))
	for i, t := range sorted {
		out[t] = i
	}
	return out
}

// entityName picks the display name: Name, else the first *Name attribute in
// sorted key order, else the id.
func entityName(e *kg.Entity) string {
	if e.Name != "" {
		return e.Name
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		if strings.HasSuffix(k, "Name") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := e.Attrs[k].(string); ok && s != "" {
			return s
		}
	}
	return e.ID
}

func renderTypeIDs(typeIDs map[string]int) []byte {
	ordered := make([]string, len(typeIDs))
	for t, i := range typeIDs {
		ordered[i] = t
	}
	var buf bytes.Buffer
	for i, t := range ordered {
		fmt.Fprintf(&buf, "%d\t%s\n", i, t)
	}
	return buf.Bytes()
}

func renderEntityNames(g *kg.Graph, idx *indexer) []byte {
	var buf bytes.Buffer
	for _, p := range idx.sorted() {
		fmt.Fprintf(&buf, "%d\t%s\n", p.index, entityName(g.Entity(p.id)))
	}
	return buf.Bytes()
}

func renderEntityTypes(g *kg.Graph, idx *indexer, typeIDs map[string]int) []byte {
	var buf bytes.Buffer
	for _, p := range idx.sorted() {
		fmt.Fprintf(&buf, "%d\t%d\n", p.index, typeIDs[normalizeType(g.Entity(p.id).Type)])
	}
	return buf.Bytes()
}

func alignedPairs(mapping []perturb.Entry, idx1, idx2 *indexer) ([][2]int, error) {
	type pair struct {
		origID string
		a, b   int
	}
	var pairs []pair
	for _, entry := range mapping {
		if entry.OriginalID == nil || entry.PerturbedID == nil {
			continue
		}
		a, err := idx1.index(*entry.OriginalID)
		if err != nil {
			return nil, errors.Wrap(err, "mapping references id missing from original graph")
		}
		b, err := idx2.index(*entry.PerturbedID)
		if err != nil {
			return nil, errors.Wrap(err, "mapping references id missing from perturbed graph")
		}
		pairs = append(pairs, pair{origID: *entry.OriginalID, a: a, b: b})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].origID < pairs[j].origID })

	out := make([][2]int, len(pairs))
	for i, p := range pairs {
		out[i] = [2]int{p.a, p.b}
	}
	return out, nil
}

func shufflePairs(pairs [][2]int, seed int64) {
	s := perturb.NewSampler(seed)
	for i := len(pairs) - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
}

func renderPairs(pairs [][2]int) []byte {
	var buf bytes.Buffer
	for _, p := range pairs {
		fmt.Fprintf(&buf, "%d\t%d\n", p[0], p[1])
	}
	return buf.Bytes()
}

func predicateIDs(g *kg.Graph, offset int) map[string]int {
	unique := make(map[string]struct{})
	for _, r := range g.Relations() {
		unique[normalizeType(r.Predicate)] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for p := range unique {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	out := make(map[string]int, len(sorted))
	for i, p := range sorted {
		out[p] = offset + i
	}
	return out
}

func renderRelationIDs(rels map[string]int) []byte {
	type rel struct {
		id   int
		name string
	}
	ordered := make([]rel, 0, len(rels))
	for name, id := range rels {
		ordered = append(ordered, rel{id: id, name: name})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })
	var buf bytes.Buffer
	for _, r := range ordered {
		fmt.Fprintf(&buf, "%d\t%s\n", r.id, r.name)
	}
	return buf.Bytes()
}

func renderTriples(g *kg.Graph, idx *indexer, rels map[string]int) []byte {
	var buf bytes.Buffer
	for _, r := range g.Relations() {
		head := idx.byID[r.Source]
		tail := idx.byID[r.Target]
		fmt.Fprintf(&buf, "%d\t%d\t%d\n", head, rels[normalizeType(r.Predicate)], tail)
	}
	return buf.Bytes()
}
