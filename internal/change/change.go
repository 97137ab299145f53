// Package change compares network snapshots.
package change

import (
	"sort"

	"github.com/HerbHall/netlogger/pkg/models"
)

// Changed reports whether current and previous hold different sets of
// observations. Acquisition order never affects the result.
func Changed(current, previous models.Snapshot) bool {
	if current.Len() != previous.Len() {
		return true
	}
	prev := make(map[models.InterfaceObservation]struct{}, previous.Len())
	for _, o := range previous.Observations() {
		prev[o] = struct{}{}
	}
	for _, o := range current.Observations() {
		if _, ok := prev[o]; !ok {
			return true
		}
	}
	return false
}

// Delta lists the interface names that differ between two snapshots.
type Delta struct {
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Modified []string `json:"modified,omitempty"`
}

// Empty reports whether the delta carries no differences.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Diff computes the per-interface differences from previous to current.
func Diff(current, previous models.Snapshot) Delta {
	var d Delta
	for _, o := range current.Observations() {
		old, ok := previous.Lookup(o.Name)
		switch {
		case !ok:
			d.Added = append(d.Added, o.Name)
		case old != o:
			d.Modified = append(d.Modified, o.Name)
		}
	}
	for _, o := range previous.Observations() {
		if _, ok := current.Lookup(o.Name); !ok {
			d.Removed = append(d.Removed, o.Name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Modified)
	return d
}
