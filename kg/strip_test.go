package kg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripSourceAnnotations(t *testing.T) {
	raw := []byte(`{
		"entities": [
			{
				"id": "e1",
				"name": [{"value": "CNIM Group", "source_doc_id": "doc1"}],
				"type": "pekg:Company",
				"products": [{"value": ["boilers", "turbines"], "source_doc_id": "doc2"}],
				"_source_pages": [1, 2],
				"source_doc_id": "doc1"
			}
		],
		"relationships": [
			{"source": "e1", "target": "e1", "type": "pekg:partners_with", "_source_span": "p3"}
		]
	}`)

	out, err := Strip(raw)
	require.NoError(t, err)

	var doc struct {
		Entities  []map[string]interface{} `json:"entities"`
		Relations []map[string]interface{} `json:"relations"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.Entities, 1)
	require.Len(t, doc.Relations, 1)

	e := doc.Entities[0]
	assert.Equal(t, "CNIM Group", e["name"], "singleton value list collapses to a string")
	assert.Equal(t, "Company", e["type"], "pekg: prefix is removed")
	assert.Equal(t, []interface{}{"boilers", "turbines"}, e["products"], "nested value lists flatten")
	assert.NotContains(t, e, "_source_pages")
	assert.NotContains(t, e, "source_doc_id")

	r := doc.Relations[0]
	assert.Equal(t, "partners_with", r["type"])
	assert.NotContains(t, r, "_source_span")
}

func TestStripPlainGraphPassesThrough(t *testing.T) {
	out, err := Strip([]byte(sampleKG))
	require.NoError(t, err)

	// A stripped plain graph must still load cleanly.
	g, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, 3, g.EntityCount())
	assert.Equal(t, 2, g.RelationCount())
}

func TestStripMakesGraphLoadable(t *testing.T) {
	raw := []byte(`{
		"entities": [
			{"id": "e1", "name": [{"value": "Tesla Inc"}], "type": "pekg:Company"},
			{"id": "e2", "name": [{"value": "Elon Musk"}], "type": "pekg:Person"}
		],
		"relationships": [
			{"source": "e2", "target": "e1", "type": "leads"}
		]
	}`)

	// The annotated form is rejected by Load.
	_, err := Load(raw)
	require.Error(t, err)

	stripped, err := Strip(raw)
	require.NoError(t, err)

	g, err := Load(stripped)
	require.NoError(t, err)
	assert.Equal(t, "Tesla Inc", g.Entity("e1").Name)
	assert.Equal(t, "Person", g.Entity("e2").Type)
}

func TestStripInvalidJSON(t *testing.T) {
	_, err := Strip([]byte(`not json`))
	assert.Error(t, err)
}
