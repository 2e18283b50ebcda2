package align

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/internal/kgtest"
	"github.com/entalign/kgmorph/kg"
	"github.com/entalign/kgmorph/perturb"
)

func strPtr(s string) *string { return &s }

func fixture(t *testing.T) (*kg.Graph, *kg.Graph, []perturb.Entry) {
	t.Helper()
	original := kgtest.NewGraph(t,
		[]kg.Entity{
			{ID: "e1", Name: "CNIM Group", Type: "pekg:Organization"},
			{ID: "e2", Name: "Sam Altman", Type: "Person"},
			{ID: "e3", Name: "OpenAI", Type: "Organization"},
		},
		[]kg.Relation{
			{Source: "e2", Predicate: "works_for", Target: "e3"},
			{Source: "e1", Predicate: "competes_with", Target: "e3"},
		},
	)
	perturbed := kgtest.NewGraph(t,
		[]kg.Entity{
			{ID: "e4", Name: "CNIM", Type: "Organization"},
			{ID: "e5", Name: "OpenAI Inc.", Type: "Company"},
			{ID: "rand_1", Name: "Random Entity 1", Type: "RandomEntity"},
		},
		[]kg.Relation{
			{Source: "e4", Predicate: "competes_against", Target: "e5"},
		},
	)
	mapping := []perturb.Entry{
		{OriginalID: strPtr("e1"), PerturbedID: strPtr("e4"), Kinds: []perturb.Kind{perturb.KindRenamed}},
		{OriginalID: strPtr("e2"), PerturbedID: nil, Kinds: []perturb.Kind{perturb.KindRemoved}},
		{OriginalID: strPtr("e3"), PerturbedID: strPtr("e5"), Kinds: []perturb.Kind{perturb.KindRenamed}},
		{OriginalID: nil, PerturbedID: strPtr("rand_1"), Kinds: []perturb.Kind{perturb.KindAdded}},
	}
	return original, perturbed, mapping
}

func TestBuildProducesAllFiles(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)
	for _, name := range FileNames {
		assert.Contains(t, ds.Files, name)
	}
}

func TestEntityIndexing(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	// e<N> ids map to N-1; rand_1 numbers past the highest parsed index.
	assert.Equal(t, "0\tCNIM Group\n1\tSam Altman\n2\tOpenAI\n", string(ds.Files["ent_ids_1"]))
	assert.Equal(t, "3\tCNIM\n4\tOpenAI Inc.\n5\tRandom Entity 1\n", string(ds.Files["ent_ids_2"]))
}

func TestEntityIndexingNonCanonicalIDs(t *testing.T) {
	// e0 would index -1 and e01 would collide with e1; both fall back to
	// insertion-order numbering past the highest canonical index.
	original := kgtest.NewGraph(t,
		[]kg.Entity{
			{ID: "e0", Name: "Zero"},
			{ID: "e01", Name: "Padded"},
			{ID: "e1", Name: "One"},
		},
		nil,
	)
	perturbed := kgtest.NewGraph(t,
		[]kg.Entity{{ID: "e2", Name: "Two"}},
		nil,
	)
	mapping := []perturb.Entry{
		{OriginalID: strPtr("e0"), PerturbedID: nil, Kinds: []perturb.Kind{perturb.KindRemoved}},
		{OriginalID: strPtr("e01"), PerturbedID: nil, Kinds: []perturb.Kind{perturb.KindRemoved}},
		{OriginalID: strPtr("e1"), PerturbedID: strPtr("e2"), Kinds: []perturb.Kind{perturb.KindRenamed}},
	}

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	assert.Equal(t, "0\tOne\n1\tZero\n2\tPadded\n", string(ds.Files["ent_ids_1"]))
	assert.Equal(t, "1\tTwo\n", string(ds.Files["ent_ids_2"]))
	assert.Equal(t, "0\t1\n", string(ds.Files["ref_ent_ids"]))
}

func TestTypeNormalization(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	// pekg: prefixes are stripped before type ids are assigned.
	typeIDs := string(ds.Files["type_ids"])
	assert.Contains(t, typeIDs, "Organization")
	assert.NotContains(t, typeIDs, "pekg:")

	lines := strings.Split(strings.TrimSpace(typeIDs), "\n")
	assert.Len(t, lines, 4) // Organization, Person, Company, RandomEntity
}

func TestAlignmentSplit(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{TestRatio: 0.5})
	require.NoError(t, err)

	ref := strings.TrimSpace(string(ds.Files["ref_ent_ids"]))
	test := strings.TrimSpace(string(ds.Files["ref_pairs"]))
	train := strings.TrimSpace(string(ds.Files["sup_pairs"]))

	refLines := strings.Split(ref, "\n")
	assert.Len(t, refLines, 2) // two surviving aligned pairs
	assert.Len(t, strings.Split(test, "\n"), 1)
	assert.Len(t, strings.Split(train, "\n"), 1)

	// ref_ent_ids is the concatenation of the two splits.
	assert.ElementsMatch(t, refLines, append(strings.Split(test, "\n"), strings.Split(train, "\n")...))
}

func TestRelationIDsOffset(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	assert.Equal(t, "0\tcompetes_with\n1\tworks_for\n", string(ds.Files["rel_ids_1"]))
	// Perturbed graph relations number past the original's vocabulary.
	assert.Equal(t, "2\tcompetes_against\n", string(ds.Files["rel_ids_2"]))

	assert.Equal(t, "1\t1\t2\n0\t0\t2\n", string(ds.Files["triples_1"]))
	assert.Equal(t, "3\t2\t4\n", string(ds.Files["triples_2"]))
}

func TestBuildDeterministic(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds1, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)
	ds2, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	for _, name := range FileNames {
		assert.Equal(t, string(ds1.Files[name]), string(ds2.Files[name]), name)
	}
}

func TestBuildRejectsBadRatio(t *testing.T) {
	original, perturbed, mapping := fixture(t)
	_, err := Build(original, perturbed, mapping, Options{TestRatio: 1.5})
	require.Error(t, err)
}

func TestWriteDir(t *testing.T) {
	original, perturbed, mapping := fixture(t)

	ds, err := Build(original, perturbed, mapping, Options{})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "alignment")
	require.NoError(t, ds.WriteDir(dir))

	for _, name := range FileNames {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, string(ds.Files[name]), string(content), name)
	}
}
