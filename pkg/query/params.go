// Package query builds request URLs from an ordered parameter set.
//
// WordPress accepts flag-style parameters such as "_embed" without a value,
// so a boolean true is serialized as a bare key. Everything else is written
// as key=value. Order follows insertion, which keeps URLs stable for logs
// and tests.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered set of query parameters. The zero value is ready to use.
type Params struct {
	items []Param
}

// New creates a parameter set from key/value pairs in order.
func New(pairs ...Param) *Params {
	p := &Params{}
	for _, kv := range pairs {
		p.Set(kv.Key, kv.Value)
	}
	return p
}

// Set replaces the value of an existing key in place or appends a new key.
func (p *Params) Set(key string, value any) {
	for i := range p.items {
		if p.items[i].Key == key {
			p.items[i].Value = value
			return
		}
	}
	p.items = append(p.items, Param{Key: key, Value: value})
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	for _, kv := range p.items {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Int returns the value under key as an int. Strings holding integers are accepted.
func (p *Params) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Delete removes key if present.
func (p *Params) Delete(key string) {
	for i := range p.items {
		if p.items[i].Key == key {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return
		}
	}
}

// Keys returns the parameter names in order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, len(p.items))
	for _, kv := range p.items {
		keys = append(keys, kv.Key)
	}
	return keys
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	c := &Params{}
	if p == nil {
		return c
	}
	c.items = append(c.items, p.items...)
	return c
}

// Merge returns a copy of p with overlay applied on top. Keys already in p keep
// their position; keys only in overlay are appended in overlay order.
func (p *Params) Merge(overlay *Params) *Params {
	out := p.Clone()
	if overlay == nil {
		return out
	}
	for _, kv := range overlay.items {
		out.Set(kv.Key, kv.Value)
	}
	return out
}

// Encode serializes the parameters without the leading separator.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.items))
	for _, kv := range p.items {
		key := url.QueryEscape(kv.Key)
		if b, ok := kv.Value.(bool); ok && b {
			parts = append(parts, key)
			continue
		}
		parts = append(parts, key+"="+url.QueryEscape(fmt.Sprint(kv.Value)))
	}
	return strings.Join(parts, "&")
}

// BuildURL appends the encoded parameters to base.
func (p *Params) BuildURL(base string) string {
	q := p.Encode()
	if q == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q
}

// ParseList parses config entries of the form "key=value" or "key".
// A bare key means true and integer values are stored as int.
func ParseList(entries []string) (*Params, error) {
	p := &Params{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		key, value, hasValue := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("query: empty key in %q", raw)
		}
		if !hasValue {
			p.Set(key, true)
			continue
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.Atoi(value); err == nil {
			p.Set(key, n)
			continue
		}
		p.Set(key, value)
	}
	return p, nil
}
