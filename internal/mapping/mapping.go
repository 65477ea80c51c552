// Package mapping holds the source to target assignment for one session.
package mapping

import (
	"errors"
	"fmt"

	"github.com/ryanm101/zipmap/internal/inventory"
)

// ErrUnknownSource is returned when a source is not part of the mapping.
var ErrUnknownSource = errors.New("unknown source")

// Entry is one source and its target. A zero Target means unassigned.
type Entry struct {
	Source inventory.SourceItem
	Target inventory.TargetItem
}

// IsAssigned reports whether the entry has a target.
func (e Entry) IsAssigned() bool {
	return e.Target.Path != ""
}

// Mapping is a total function from every source to a target or unassigned.
// It is not required to be injective.
type Mapping struct {
	entries []Entry
	index   map[string]int // source path -> position in entries
}

// Initial returns a mapping with every source unassigned.
func Initial(sources []inventory.SourceItem) *Mapping {
	m := &Mapping{
		entries: make([]Entry, len(sources)),
		index:   make(map[string]int, len(sources)),
	}
	for i, s := range sources {
		m.entries[i] = Entry{Source: s}
		m.index[s.Path] = i
	}
	return m
}

// Assign maps source to target, replacing any previous entry.
func (m *Mapping) Assign(source inventory.SourceItem, target inventory.TargetItem) error {
	i, err := m.position(source)
	if err != nil {
		return err
	}
	m.entries[i].Target = target
	return nil
}

// Unassign clears the entry for source.
func (m *Mapping) Unassign(source inventory.SourceItem) error {
	i, err := m.position(source)
	if err != nil {
		return err
	}
	m.entries[i].Target = inventory.TargetItem{}
	return nil
}

// Clear resets every entry to unassigned, keeping the source set.
func (m *Mapping) Clear() {
	for i := range m.entries {
		m.entries[i].Target = inventory.TargetItem{}
	}
}

// Lookup returns the entry for source.
func (m *Mapping) Lookup(source inventory.SourceItem) (Entry, error) {
	i, err := m.position(source)
	if err != nil {
		return Entry{}, err
	}
	return m.entries[i], nil
}

// Len returns the number of sources.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Entries returns a copy of every entry in scan order.
func (m *Mapping) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Assigned returns the assigned entries in scan order.
func (m *Mapping) Assigned() []Entry {
	var out []Entry
	for _, e := range m.entries {
		if e.IsAssigned() {
			out = append(out, e)
		}
	}
	return out
}

func (m *Mapping) position(source inventory.SourceItem) (int, error) {
	i, ok := m.index[source.Path]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSource, source.Path)
	}
	return i, nil
}
