package kg

import "github.com/entalign/kgmorph/errors"

// Sentinel errors for the graph model. Use errors.Is to check them;
// wrapped variants carry context about the offending entity or relation.
var (
	// ErrMalformedGraph indicates the input JSON violates the KG schema:
	// missing or duplicate ids, non-string core fields, dangling relation
	// endpoints, or duplicate triplets.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrNotFound indicates the referenced entity or relation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates the entity id or relation triplet already exists.
	ErrDuplicate = errors.New("duplicate")
)

func malformedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedGraph)
}
