package testutil

import (
	"github.com/HerbHall/netlogger/pkg/models"
)

// NewObservation returns an InterfaceObservation with sensible defaults.
// Override individual fields with options.
func NewObservation(opts ...func(*models.InterfaceObservation)) models.InterfaceObservation {
	o := models.InterfaceObservation{
		Name:       "eth0",
		MACAddress: "00:11:22:33:44:55",
		IPAddress:  "10.0.0.5",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithName sets the interface name.
func WithName(name string) func(*models.InterfaceObservation) {
	return func(o *models.InterfaceObservation) { o.Name = name }
}

// WithIP sets the interface IP address.
func WithIP(ip string) func(*models.InterfaceObservation) {
	return func(o *models.InterfaceObservation) { o.IPAddress = ip }
}

// WithMAC sets the interface MAC address.
func WithMAC(mac string) func(*models.InterfaceObservation) {
	return func(o *models.InterfaceObservation) { o.MACAddress = mac }
}

// Snapshot builds a snapshot from observations, panicking on duplicates.
func Snapshot(obs ...models.InterfaceObservation) models.Snapshot {
	return models.MustSnapshot(obs...)
}
