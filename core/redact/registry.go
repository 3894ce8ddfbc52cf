package redact

import "strconv"

// DefaultPrefix is the literal part of every pseudonym token.
const DefaultPrefix = "PERSREF"

// Mapping is one registry entry.
type Mapping struct {
	Ordinal   int
	Token     string
	Canonical string
	// Source is the file the name was first seen in.
	Source string
}

// Registry maps canonical names to pseudonym tokens for one batch run.
//
// Tokens are the prefix followed by a 1-based ordinal, handed out in
// first-seen order. A name keeps its token for the lifetime of the
// registry, and the counter is never reset, so a single Registry shared
// by every file of a batch numbers names across the whole batch.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	prefix  string
	counter int
	tokens  map[string]string
	order   []Mapping
}

// NewRegistry returns an empty registry. An empty prefix selects
// DefaultPrefix.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{
		prefix:  prefix,
		counter: 1,
		tokens:  make(map[string]string),
	}
}

// Prefix returns the token prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Assign returns the token for canonical, allocating the next ordinal if
// the name has not been seen before. source is recorded for new names.
func (r *Registry) Assign(canonical, source string) string {
	if token, ok := r.tokens[canonical]; ok {
		return token
	}
	token := r.prefix + strconv.Itoa(r.counter)
	r.tokens[canonical] = token
	r.order = append(r.order, Mapping{
		Ordinal:   r.counter,
		Token:     token,
		Canonical: canonical,
		Source:    source,
	})
	r.counter++
	return token
}

// Lookup returns the token already assigned to canonical.
func (r *Registry) Lookup(canonical string) (string, bool) {
	token, ok := r.tokens[canonical]
	return token, ok
}

// Len returns the number of distinct names seen.
func (r *Registry) Len() int {
	return len(r.order)
}

// Mappings returns a copy of all entries in ordinal order.
func (r *Registry) Mappings() []Mapping {
	out := make([]Mapping, len(r.order))
	copy(out, r.order)
	return out
}
