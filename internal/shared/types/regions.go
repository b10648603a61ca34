package types

import (
	"sort"
	"strings"
)

// RegionSet is an unordered collection of region names with set semantics.
// Region names are the service-area identifiers used across the platform
// (e.g. "Delhi", "Punjab"); they are opaque strings to this package.
type RegionSet map[string]struct{}

// NewRegionSet builds a set from the given names, trimming whitespace and
// dropping empties and duplicates.
func NewRegionSet(names ...string) RegionSet {
	s := make(RegionSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Add inserts a region name into the set.
func (s RegionSet) Add(name string) {
	name = strings.TrimSpace(name)
	if name != "" {
		s[name] = struct{}{}
	}
}

// AddAll inserts every name from names.
func (s RegionSet) AddAll(names []string) {
	for _, n := range names {
		s.Add(n)
	}
}

// Contains reports whether the set holds the region.
func (s RegionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the region names in lexical order.
func (s RegionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of regions in the set.
func (s RegionSet) Len() int {
	return len(s)
}
