// Package urlstate holds the page's URL query parameters. A Query is an immutable snapshot;
// the Store versions snapshots and merges route updates into them.
package urlstate

import (
	"net/url"
	"sort"
	"strings"
)

// Query is an immutable set of query parameters. A key that is present with an empty value is
// distinct from an absent key.
type Query struct {
	values map[string]string
}

// NewQuery copies values into a new Query.
func NewQuery(values map[string]string) Query {
	q := Query{values: make(map[string]string, len(values))}
	for k, v := range values {
		q.values[k] = v
	}
	return q
}

// ParseQuery parses an encoded query string, keeping the first value of repeated keys.
func ParseQuery(raw string) (Query, error) {
	parsed, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Query{}, err
	}
	return FromValues(parsed), nil
}

// FromValues converts url.Values, keeping the first value of repeated keys.
func FromValues(values url.Values) Query {
	q := Query{values: make(map[string]string, len(values))}
	for k, vs := range values {
		if len(vs) > 0 {
			q.values[k] = vs[0]
		} else {
			q.values[k] = ""
		}
	}
	return q
}

// Get returns the value of key and whether it is present.
func (q Query) Get(key string) (string, bool) {
	v, ok := q.values[key]
	return v, ok
}

// Value returns the value of key, or "" when absent.
func (q Query) Value(key string) string {
	return q.values[key]
}

// Has reports whether key is present.
func (q Query) Has(key string) bool {
	_, ok := q.values[key]
	return ok
}

// Len returns the number of keys.
func (q Query) Len() int {
	return len(q.values)
}

// Map returns a copy of the parameters.
func (q Query) Map() map[string]string {
	out := make(map[string]string, len(q.values))
	for k, v := range q.values {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (q Query) Keys() []string {
	keys := make([]string, 0, len(q.values))
	for k := range q.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode returns the URL encoding of the query with keys sorted.
func (q Query) Encode() string {
	values := url.Values{}
	for k, v := range q.values {
		values.Set(k, v)
	}
	return values.Encode()
}

// Merge returns a new Query with set applied and unset keys removed. Unset wins over set.
func (q Query) Merge(set map[string]string, unset ...string) Query {
	out := q.Map()
	for k, v := range set {
		out[k] = v
	}
	for _, k := range unset {
		delete(out, k)
	}
	return Query{values: out}
}

// Equal reports whether both queries hold the same parameters.
func (q Query) Equal(other Query) bool {
	if len(q.values) != len(other.values) {
		return false
	}
	for k, v := range q.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
