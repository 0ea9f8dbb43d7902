package permission

import "sort"

// AdminPermission grants every permission to its holder.
const AdminPermission = "core.admin"

// Set is an unordered set of permission names. The zero value is empty and
// ready to use for reads; use New or Add before writing.
type Set map[string]struct{}

// New returns a Set holding names. Empty names are skipped.
func New(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name. Empty names are ignored.
func (s Set) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s Set) Len() int { return len(s) }

// Names returns the names in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Intersects reports whether any of names is in the set.
func (s Set) Intersects(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}
