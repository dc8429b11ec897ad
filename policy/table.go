package policy

import (
	"fmt"
	"sort"
)

/* Table is the data-driven mapping consulted by the Engine
 * Loaded once at startup and read-only afterwards, so it needs no locking
 */
type Table struct {
	entries map[Role]Entry
}

// NewTable builds a table from entries, rejecting duplicates and invalid rows
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{
		entries: make(map[Role]Entry, len(entries)),
	}
	for _, e := range entries {
		e = newEntry(e.Role, e.Helper, e.Administrative, e.Permissions)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("validating entry: %w", err)
		}
		if _, exists := t.entries[e.Role]; exists {
			return nil, fmt.Errorf("role %s is declared more than once", e.Role)
		}
		t.entries[e.Role] = e
	}
	if len(t.entries) == 0 {
		return nil, fmt.Errorf("policy table has no roles")
	}
	return t, nil
}

// Lookup returns the entry for a role
func (t *Table) Lookup(role Role) (Entry, bool) {
	e, ok := t.entries[role]
	return e, ok
}

// Roles returns every entry ordered by role name
func (t *Table) Roles() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// Helpers returns the distinct helpers referenced by the table
func (t *Table) Helpers() []HelperID {
	seen := make(map[HelperID]struct{})
	var out []HelperID
	for _, e := range t.Roles() {
		if _, ok := seen[e.Helper]; ok {
			continue
		}
		seen[e.Helper] = struct{}{}
		out = append(out, e.Helper)
	}
	return out
}
