// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identity maps raw molecular identifiers to canonical identities
// and memoizes the mapping for the length of one run.
package identity

import (
	"fmt"
	"slices"

	"github.com/pdiddy/qca-catalog/internal/chem"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// CanonicalFunc turns a raw identifier into its canonical form.
type CanonicalFunc func(raw string) (string, error)

// Cache memoizes raw identifier -> canonical identity for one run. Entries
// are never evicted or overwritten. A Cache is not safe for concurrent use.
type Cache struct {
	entries map[string]string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the cached identity for raw.
func (c *Cache) Get(raw string) (string, bool) {
	v, ok := c.entries[raw]
	return v, ok
}

// Put records raw -> identity. Putting a different identity for a key that
// is already present is an error and leaves the entry unchanged.
func (c *Cache) Put(raw, identity string) error {
	if prev, ok := c.entries[raw]; ok && prev != identity {
		return fmt.Errorf("cache entry for %q already holds %q, refusing %q", raw, prev, identity)
	}
	c.entries[raw] = identity
	return nil
}

// Len returns the number of cached identifiers.
func (c *Cache) Len() int { return len(c.entries) }

// Canonicalizer computes canonical identities through a run-scoped Cache.
type Canonicalizer struct {
	canon CanonicalFunc
	cache *Cache
	calls int
}

// NewCanonicalizer returns a Canonicalizer backed by the chemistry package.
func NewCanonicalizer() *Canonicalizer {
	return NewCanonicalizerWith(chem.Canonicalize)
}

// NewCanonicalizerWith returns a Canonicalizer using fn, for callers that
// supply their own chemistry backend.
func NewCanonicalizerWith(fn CanonicalFunc) *Canonicalizer {
	return &Canonicalizer{canon: fn, cache: NewCache()}
}

// Canonicalize returns the canonical identity of raw. Failures are returned
// as *types.IdentityError and are not cached, so the string is retried if
// seen again.
func (c *Canonicalizer) Canonicalize(raw string) (string, error) {
	if v, ok := c.cache.Get(raw); ok {
		return v, nil
	}
	c.calls++
	v, err := c.canon(raw)
	if err != nil {
		return "", &types.IdentityError{Identifier: raw, Err: err}
	}
	if err := c.cache.Put(raw, v); err != nil {
		return "", &types.IdentityError{Identifier: raw, Err: err}
	}
	return v, nil
}

// CanonicalizeAll canonicalizes the distinct values of raws in sorted order
// and returns the successful mappings with one error per failing value.
func (c *Canonicalizer) CanonicalizeAll(raws []string) (map[string]string, []error) {
	distinct := slices.Clone(raws)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	out := make(map[string]string, len(distinct))
	var errs []error
	for _, raw := range distinct {
		v, err := c.Canonicalize(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[raw] = v
	}
	return out, errs
}

// Calls returns how many times the backend has been invoked.
func (c *Canonicalizer) Calls() int { return c.calls }

// Cache returns the run-scoped cache.
func (c *Canonicalizer) Cache() *Cache { return c.cache }
