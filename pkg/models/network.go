package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrDuplicateInterface is returned when a snapshot would contain two
// observations for the same interface name.
var ErrDuplicateInterface = errors.New("duplicate interface name")

// InterfaceObservation is one active, non-loopback interface as seen at
// observation time.
type InterfaceObservation struct {
	Name       string `json:"name"`
	MACAddress string `json:"mac_address"`
	IPAddress  string `json:"ip_address"`
}

func (o InterfaceObservation) String() string {
	return fmt.Sprintf("%s mac=%s ip=%s", o.Name, o.MACAddress, o.IPAddress)
}

// Snapshot is the set of interface observations taken on one poll.
// Construct with NewSnapshot; the zero value is the empty snapshot.
// The primary interface is informational and never part of comparisons.
type Snapshot struct {
	interfaces []InterfaceObservation
	primary    string
}

// NewSnapshot builds a Snapshot from observations in any order.
// Interface names must be unique.
func NewSnapshot(obs ...InterfaceObservation) (Snapshot, error) {
	seen := make(map[string]struct{}, len(obs))
	out := make([]InterfaceObservation, 0, len(obs))
	for _, o := range obs {
		if _, dup := seen[o.Name]; dup {
			return Snapshot{}, fmt.Errorf("%w: %q", ErrDuplicateInterface, o.Name)
		}
		seen[o.Name] = struct{}{}
		out = append(out, o)
	}
	return Snapshot{interfaces: out}, nil
}

// MustSnapshot is like NewSnapshot but panics on duplicate names.
// Intended for tests and literals.
func MustSnapshot(obs ...InterfaceObservation) Snapshot {
	s, err := NewSnapshot(obs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of observations.
func (s Snapshot) Len() int { return len(s.interfaces) }

// IsEmpty reports whether the snapshot has no observations.
func (s Snapshot) IsEmpty() bool { return len(s.interfaces) == 0 }

// Observations returns a copy of the observations in acquisition order.
func (s Snapshot) Observations() []InterfaceObservation {
	out := make([]InterfaceObservation, len(s.interfaces))
	copy(out, s.interfaces)
	return out
}

// Canonical returns a copy of the observations sorted by interface name.
func (s Snapshot) Canonical() []InterfaceObservation {
	out := s.Observations()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the interface names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.interfaces))
	for _, o := range s.Canonical() {
		names = append(names, o.Name)
	}
	return names
}

// Lookup returns the observation for the named interface.
func (s Snapshot) Lookup(name string) (InterfaceObservation, bool) {
	for _, o := range s.interfaces {
		if o.Name == name {
			return o, true
		}
	}
	return InterfaceObservation{}, false
}

// WithPrimary returns a copy of s that marks the named interface as the
// one carrying the default route. Unknown names leave s unmarked.
func (s Snapshot) WithPrimary(name string) Snapshot {
	if _, ok := s.Lookup(name); !ok {
		name = ""
	}
	return Snapshot{interfaces: s.interfaces, primary: name}
}

// Primary returns the default-route interface, if one was determined.
func (s Snapshot) Primary() (InterfaceObservation, bool) {
	if s.primary == "" {
		return InterfaceObservation{}, false
	}
	return s.Lookup(s.primary)
}

// StoredState is the last persisted snapshot. A zero SavedAt means
// nothing has been persisted yet.
type StoredState struct {
	Snapshot Snapshot
	SavedAt  time.Time
}

// Metadata describes the host being observed.
type Metadata struct {
	Hostname    string `json:"hostname" yaml:"hostname"`
	Description string `json:"description" yaml:"description"`
}

// LogRecord is one recorded snapshot transition.
type LogRecord struct {
	ID          string
	Timestamp   time.Time
	Hostname    string
	Description string
	Snapshot    Snapshot
}
