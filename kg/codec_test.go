package kg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entalign/kgmorph/errors"
)

const sampleKG = `{
  "entities": [
    {"id": "e1", "name": "CNIM Group", "type": "Company", "foundedYear": 1856, "location": "France"},
    {"id": "e2", "name": "Sam Altman", "type": "Person", "description": "CEO of OpenAI"},
    {"id": "e3", "name": "OpenAI", "type": "Company"}
  ],
  "relations": [
    {"source": "e2", "target": "e3", "type": "works_for"},
    {"source": "e1", "target": "e3", "type": "competes_with", "since": 2023}
  ]
}`

func TestLoadWellFormed(t *testing.T) {
	g, err := Load([]byte(sampleKG))
	require.NoError(t, err)

	assert.Equal(t, 3, g.EntityCount())
	assert.Equal(t, 2, g.RelationCount())

	e1 := g.Entity("e1")
	require.NotNil(t, e1)
	assert.Equal(t, "CNIM Group", e1.Name)
	assert.Equal(t, "Company", e1.Type)
	assert.Equal(t, json.Number("1856"), e1.Attrs["foundedYear"])
	assert.Equal(t, "France", e1.Attrs["location"])

	e2 := g.Entity("e2")
	require.NotNil(t, e2)
	assert.Equal(t, "CEO of OpenAI", e2.Description)

	rel := g.Relations()[1]
	assert.Equal(t, "competes_with", rel.Predicate)
	assert.Equal(t, json.Number("2023"), rel.Attrs["since"])
}

func TestLoadMissingEntityID(t *testing.T) {
	_, err := Load([]byte(`{"entities": [{"name": "no id"}], "relations": []}`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestLoadDuplicateEntityID(t *testing.T) {
	_, err := Load([]byte(`{"entities": [{"id": "e1"}, {"id": "e1"}], "relations": []}`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestLoadDanglingRelation(t *testing.T) {
	_, err := Load([]byte(`{
		"entities": [{"id": "e1"}],
		"relations": [{"source": "e1", "target": "ghost", "type": "knows"}]
	}`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestLoadDuplicateTriplet(t *testing.T) {
	_, err := Load([]byte(`{
		"entities": [{"id": "e1"}, {"id": "e2"}],
		"relations": [
			{"source": "e1", "target": "e2", "type": "knows"},
			{"source": "e1", "target": "e2", "type": "knows"}
		]
	}`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestLoadNonStringName(t *testing.T) {
	_, err := Load([]byte(`{
		"entities": [{"id": "e1", "name": ["CNIM Group"]}],
		"relations": []
	}`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

func TestLoadInvalidJSON(t *testing.T) {
	_, err := Load([]byte(`{"entities": [`))
	assert.True(t, errors.Is(err, ErrMalformedGraph))
}

// Round-trip law: Dump(Load(x)) is structurally identical to x up to key
// ordering.
func TestRoundTrip(t *testing.T) {
	g, err := Load([]byte(sampleKG))
	require.NoError(t, err)

	out, err := Dump(g)
	require.NoError(t, err)

	var want, got interface{}
	require.NoError(t, json.Unmarshal([]byte(sampleKG), &want))
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, want, got)
}

func TestRoundTripAfterMutation(t *testing.T) {
	g, err := Load([]byte(sampleKG))
	require.NoError(t, err)

	require.NoError(t, g.RemoveEntity("e1"))
	require.NoError(t, g.AddEntity(&Entity{ID: "rand_1", Name: "random entity 1", Type: "RandomEntity"}))
	require.NoError(t, g.AddRelation(&Relation{Source: "rand_1", Predicate: "works_for", Target: "e3"}))

	out, err := Dump(g)
	require.NoError(t, err)

	g2, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, g.EntityCount(), g2.EntityCount())
	assert.Equal(t, g.RelationCount(), g2.RelationCount())
	assert.Equal(t, g.EntityIDs(), g2.EntityIDs())
	assert.Equal(t, g.Triplets(), g2.Triplets())
}

func TestRoundTripExplicitEmptyFields(t *testing.T) {
	input := `{
  "entities": [
    {"id": "e1", "name": "", "type": ""},
    {"id": "e2", "description": ""}
  ],
  "relations": []
}`
	g, err := Load([]byte(input))
	require.NoError(t, err)

	out, err := Dump(g)
	require.NoError(t, err)

	var want, got interface{}
	require.NoError(t, json.Unmarshal([]byte(input), &want))
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, want, got)

	// Keys that were never loaded stay absent.
	var doc struct {
		Entities []map[string]interface{} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.NotContains(t, doc.Entities[0], "description")
	assert.NotContains(t, doc.Entities[1], "name")
	assert.NotContains(t, doc.Entities[1], "type")

	g2, err := Load(out)
	require.NoError(t, err)
	out2, err := Dump(g2)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestDumpIsDeterministic(t *testing.T) {
	g1, err := Load([]byte(sampleKG))
	require.NoError(t, err)
	g2, err := Load([]byte(sampleKG))
	require.NoError(t, err)

	out1, err := Dump(g1)
	require.NoError(t, err)
	out2, err := Dump(g2)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestDumpEmptyGraph(t *testing.T) {
	out, err := Dump(NewGraph())
	require.NoError(t, err)

	var got struct {
		Entities  []interface{} `json:"entities"`
		Relations []interface{} `json:"relations"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Empty(t, got.Entities)
	assert.Empty(t, got.Relations)
}
