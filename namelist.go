package slacksink

import "strings"

// nameSet holds property names for case-insensitive matching.
// The names are stored in lower-case for efficient lookup.
// A nil nameSet means "not configured", which is different from an empty one.
type nameSet map[string]struct{}

// newNameSet builds a set from names. It returns nil when names is nil,
// so an unset list stays distinguishable from an empty list.
func newNameSet(names []string) nameSet {
	if names == nil {
		return nil
	}

	s := make(nameSet, len(names))

	for _, n := range names {
		s.add(n)
	}

	return s
}

// add adds one or more names.
func (s nameSet) add(names ...string) {
	for _, n := range names {
		s[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
}

// configured reports whether the list was set at all.
func (s nameSet) configured() bool {
	return s != nil
}

// contains checks if the given name is in the set, ignoring case.
// It performs a zero-cost check first if no names are registered.
func (s nameSet) contains(name string) bool {
	if len(s) == 0 {
		return false
	}

	_, ok := s[strings.ToLower(name)]

	return ok
}

// propertyFilter applies the allow and deny lists.
// An allow-list, when configured, decides alone: a listed name is kept even if it
// is also denied, and an unlisted name is dropped. Without an allow-list, denied
// names are dropped and everything else is kept.
type propertyFilter struct {
	allow nameSet
	deny  nameSet
}

func (f propertyFilter) includes(name string) bool {
	if f.allow.configured() {
		return f.allow.contains(name)
	}

	return !f.deny.contains(name)
}
