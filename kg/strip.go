package kg

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/entalign/kgmorph/errors"
)

// Strip normalizes a source-annotated knowledge graph (as produced by LLM
// extraction pipelines) into the plain schema Load accepts:
//
//   - keys starting with "_source" and the "source_doc_id" key are dropped
//   - attribute values of the form [{"value": ...}, ...] collapse to a list
//     of the values (nested lists are flattened)
//   - the "pekg:" ontology prefix is removed from type values
//   - singleton list values for name/description/type collapse to the first
//     string element
//
// Strip accepts either "relations" or "relationships" as the edge list key.
func Strip(data []byte) ([]byte, error) {
	var doc struct {
		Entities      []map[string]interface{} `json:"entities"`
		Relations     []map[string]interface{} `json:"relations"`
		Relationships []map[string]interface{} `json:"relationships"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding graph JSON"), ErrMalformedGraph)
	}

	relations := doc.Relations
	if len(relations) == 0 {
		relations = doc.Relationships
	}

	out := map[string]interface{}{
		"entities":  simplifyAll(doc.Entities),
		"relations": simplifyAll(relations),
	}
	return json.MarshalIndent(out, "", "  ")
}

func simplifyAll(items []map[string]interface{}) []map[string]interface{} {
	// Preserve an empty-but-present list rather than null.
	simplified := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		simplified = append(simplified, simplifyRecord(item))
	}
	return simplified
}

func simplifyRecord(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if strings.HasPrefix(k, "_source") || k == "source_doc_id" {
			continue
		}
		out[k] = stripSourceValues(v)
	}
	if t, ok := out[keyType].(string); ok {
		out[keyType] = strings.ReplaceAll(t, "pekg:", "")
	}
	for _, k := range []string{keyName, keyDescription, keyType} {
		if list, ok := out[k].([]interface{}); ok {
			if len(list) == 0 {
				delete(out, k)
				continue
			}
			if s, ok := list[0].(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// stripSourceValues collapses [{"value": v, "source_doc_id": ...}, ...]
// into a flat list of the values. Any other shape passes through unchanged.
func stripSourceValues(attr interface{}) interface{} {
	list, ok := attr.([]interface{})
	if !ok || len(list) == 0 {
		return attr
	}
	values := make([]interface{}, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return attr
		}
		v, ok := m["value"]
		if !ok {
			return attr
		}
		if nested, ok := v.([]interface{}); ok {
			values = append(values, nested...)
		} else {
			values = append(values, v)
		}
	}
	return values
}
