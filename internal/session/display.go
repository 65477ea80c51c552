package session

import (
	"fmt"
	"io"

	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/mapping"
)

const unassignedText = "(none)"

// Render writes the three state sections, each followed by a blank line.
func Render(w io.Writer, inv *inventory.Inventory, m *mapping.Mapping) {
	_, _ = fmt.Fprintln(w, "Source items")
	for _, s := range inv.Sources {
		_, _ = fmt.Fprintln(w, s.ID(), s.Path)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Target items")
	for _, t := range inv.Targets {
		_, _ = fmt.Fprintln(w, t.ID(), t.Path)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Mapping")
	for _, e := range m.Entries() {
		target := unassignedText
		if e.IsAssigned() {
			target = e.Target.Path
		}
		_, _ = fmt.Fprintln(w, e.Source.ID(), e.Source.Path, "->", target)
	}
	_, _ = fmt.Fprintln(w)
}
