package kg

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/entalign/kgmorph/errors"
)

// Wire keys. The KG JSON schema uses "type" both for an entity's type and
// for a relation's predicate label.
const (
	keyID          = "id"
	keyName        = "name"
	keyDescription = "description"
	keyType        = "type"
	keySource      = "source"
	keyTarget      = "target"
)

// Load parses a JSON knowledge graph into a Graph. It fails with
// ErrMalformedGraph on schema violations: missing or duplicate entity ids,
// non-string id/name/description/type values, relations referencing unknown
// entities, or duplicate triplets.
func Load(data []byte) (*Graph, error) {
	var doc struct {
		Entities  []map[string]interface{} `json:"entities"`
		Relations []map[string]interface{} `json:"relations"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // preserve numeric attribute representation through round-trips
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding graph JSON"), ErrMalformedGraph)
	}

	g := NewGraph()

	for i, raw := range doc.Entities {
		e := &Entity{}
		var err error
		if e.ID, err = requiredString(raw, keyID); err != nil {
			return nil, errors.Wrapf(err, "entity %d", i)
		}
		for _, key := range []string{keyName, keyDescription, keyType} {
			value, present, err := optionalString(raw, key)
			if err != nil {
				return nil, errors.Wrapf(err, "entity %q", e.ID)
			}
			switch key {
			case keyName:
				e.Name = value
			case keyDescription:
				e.Description = value
			case keyType:
				e.Type = value
			}
			if present && value == "" {
				e.markEmptyCore(key)
			}
		}
		e.Attrs = extraAttrs(raw, keyID, keyName, keyDescription, keyType)
		if err := g.AddEntity(e); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return nil, malformedf("duplicate entity id %q", e.ID)
			}
			return nil, err
		}
	}

	for i, raw := range doc.Relations {
		r := &Relation{}
		var err error
		if r.Source, err = requiredString(raw, keySource); err != nil {
			return nil, errors.Wrapf(err, "relation %d", i)
		}
		if r.Target, err = requiredString(raw, keyTarget); err != nil {
			return nil, errors.Wrapf(err, "relation %d", i)
		}
		if r.Predicate, _, err = optionalString(raw, keyType); err != nil {
			return nil, errors.Wrapf(err, "relation %d", i)
		}
		r.Attrs = extraAttrs(raw, keySource, keyTarget, keyType)
		if err := g.AddRelation(r); err != nil {
			if errors.IsAny(err, ErrNotFound, ErrDuplicate) {
				return nil, errors.Mark(errors.Wrapf(err, "relation %d", i), ErrMalformedGraph)
			}
			return nil, err
		}
	}

	return g, nil
}

// Dump serializes the graph back to the KG JSON schema, indented. Entities
// and relations appear in insertion order; within each object the core keys
// come first, then extra attributes sorted by key. Dump is the structural
// inverse of Load up to key ordering.
func Dump(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"entities":[`)
	for i, e := range g.Entities() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeEntity(&buf, e); err != nil {
			return nil, errors.Wrapf(err, "serializing entity %q", e.ID)
		}
	}
	buf.WriteString(`],"relations":[`)
	for i, r := range g.Relations() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRelation(&buf, r); err != nil {
			return nil, errors.Wrapf(err, "serializing relation %s", formatTriplet(r.Triplet()))
		}
	}
	buf.WriteString(`]}`)

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, errors.Wrap(err, "indenting graph JSON")
	}
	return out.Bytes(), nil
}

func writeEntity(buf *bytes.Buffer, e *Entity) error {
	buf.WriteByte('{')
	if err := writeField(buf, keyID, e.ID, true); err != nil {
		return err
	}
	if e.Name != "" || e.emptyCore[keyName] {
		if err := writeField(buf, keyName, e.Name, false); err != nil {
			return err
		}
	}
	if e.Description != "" || e.emptyCore[keyDescription] {
		if err := writeField(buf, keyDescription, e.Description, false); err != nil {
			return err
		}
	}
	if e.Type != "" || e.emptyCore[keyType] {
		if err := writeField(buf, keyType, e.Type, false); err != nil {
			return err
		}
	}
	if err := writeAttrs(buf, e.Attrs); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeRelation(buf *bytes.Buffer, r *Relation) error {
	buf.WriteByte('{')
	if err := writeField(buf, keySource, r.Source, true); err != nil {
		return err
	}
	if err := writeField(buf, keyTarget, r.Target, false); err != nil {
		return err
	}
	if err := writeField(buf, keyType, r.Predicate, false); err != nil {
		return err
	}
	if err := writeAttrs(buf, r.Attrs); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeField(buf *bytes.Buffer, key string, value interface{}, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func writeAttrs(buf *bytes.Buffer, attrs map[string]interface{}) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeField(buf, k, attrs[k], false); err != nil {
			return err
		}
	}
	return nil
}

func requiredString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", malformedf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", malformedf("field %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(m map[string]interface{}, key string) (string, bool, error) {
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, errors.WithHint(
			malformedf("field %q must be a string", key),
			"run 'kgmorph strip' to normalize source-annotated graphs first")
	}
	return s, true, nil
}

func extraAttrs(m map[string]interface{}, reserved ...string) map[string]interface{} {
	attrs := make(map[string]interface{})
	for k, v := range m {
		skip := false
		for _, r := range reserved {
			if k == r {
				skip = true
				break
			}
		}
		if !skip {
			attrs[k] = v
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
