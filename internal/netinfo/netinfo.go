// Package netinfo observes the host's active network interfaces and loads
// the host metadata recorded alongside them.
package netinfo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"

	"go.uber.org/zap"

	"github.com/HerbHall/netlogger/pkg/models"
)

// Source supplies the current network snapshot.
type Source interface {
	Acquire(ctx context.Context) (models.Snapshot, error)
}

// Config controls which interfaces are observed.
type Config struct {
	// PrimaryOnly keeps only the interface that carries the default
	// outbound route, found by a connectionless UDP dial to ProbeAddr.
	PrimaryOnly bool     `mapstructure:"primary_only"`
	ProbeAddr   string   `mapstructure:"probe_addr"`
	Include     []string `mapstructure:"include"` // glob patterns; empty means all
	Exclude     []string `mapstructure:"exclude"` // glob patterns
}

// DefaultConfig returns the default source configuration.
func DefaultConfig() Config {
	return Config{
		ProbeAddr: "8.8.8.8:80",
		Exclude:   []string{"docker*", "veth*"},
	}
}

// Validate checks the glob patterns and probe address.
func (c Config) Validate() error {
	for _, p := range append(append([]string{}, c.Include...), c.Exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("source: bad interface pattern %q: %w", p, err)
		}
	}
	if c.PrimaryOnly && c.ProbeAddr == "" {
		return errors.New("source.probe_addr is required when primary_only is set")
	}
	return nil
}

// iface is the subset of net.Interface the source needs.
type iface struct {
	Name  string
	MAC   string
	Flags net.Flags
	IPs   []net.IP
}

// Compile-time interface guard.
var _ Source = (*OSSource)(nil)

// OSSource reads interfaces from the operating system.
type OSSource struct {
	cfg    Config
	logger *zap.Logger

	list    func() ([]iface, error)
	primary func(ctx context.Context, probe string) (net.IP, error)
}

// NewOSSource returns a Source backed by net.Interfaces.
func NewOSSource(cfg Config, logger *zap.Logger) *OSSource {
	return &OSSource{
		cfg:     cfg,
		logger:  logger,
		list:    listInterfaces,
		primary: primaryIP,
	}
}

// Acquire returns one observation per active, non-loopback interface that
// has an IP address and passes the include/exclude filters.
func (s *OSSource) Acquire(ctx context.Context) (models.Snapshot, error) {
	ifaces, err := s.list()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list interfaces: %w", err)
	}

	// The default-route address names the primary interface. Only
	// primary_only mode treats a failed probe as fatal.
	var primary net.IP
	if s.cfg.PrimaryOnly || s.cfg.ProbeAddr != "" {
		primary, err = s.primary(ctx, s.cfg.ProbeAddr)
		if err != nil {
			if s.cfg.PrimaryOnly {
				return models.Snapshot{}, fmt.Errorf("determine primary interface: %w", err)
			}
			s.logger.Debug("primary interface unknown", zap.String("probe", s.cfg.ProbeAddr), zap.Error(err))
			primary = nil
		}
	}

	var obs []models.InterfaceObservation
	var primaryName string
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		if !s.selected(ifc.Name) {
			continue
		}
		onPrimary := primary != nil && containsIP(ifc.IPs, primary)
		if s.cfg.PrimaryOnly && !onPrimary {
			continue
		}
		ip := pickIP(ifc.IPs)
		if ip == nil {
			s.logger.Debug("skipping interface without address", zap.String("interface", ifc.Name))
			continue
		}
		if onPrimary && primaryName == "" {
			ip = primary
			primaryName = ifc.Name
		}
		obs = append(obs, models.InterfaceObservation{
			Name:       ifc.Name,
			MACAddress: ifc.MAC,
			IPAddress:  ip.String(),
		})
	}
	snap, err := models.NewSnapshot(obs...)
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap.WithPrimary(primaryName), nil
}

func (s *OSSource) selected(name string) bool {
	for _, p := range s.cfg.Exclude {
		if ok, _ := path.Match(p, name); ok {
			return false
		}
	}
	if len(s.cfg.Include) == 0 {
		return true
	}
	for _, p := range s.cfg.Include {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// pickIP prefers a routable IPv4 address, then any IPv4, then a routable
// IPv6 address, then whatever is left.
func pickIP(ips []net.IP) net.IP {
	rank := func(ip net.IP) int {
		switch {
		case ip.To4() != nil && !ip.IsLinkLocalUnicast():
			return 0
		case ip.To4() != nil:
			return 1
		case !ip.IsLinkLocalUnicast():
			return 2
		default:
			return 3
		}
	}
	var best net.IP
	bestRank := 4
	for _, ip := range ips {
		if r := rank(ip); r < bestRank {
			best, bestRank = ip, r
		}
	}
	return best
}

func containsIP(ips []net.IP, want net.IP) bool {
	for _, ip := range ips {
		if ip.Equal(want) {
			return true
		}
	}
	return false
}

func listInterfaces() ([]iface, error) {
	nifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]iface, 0, len(nifs))
	for _, n := range nifs {
		addrs, err := n.Addrs()
		if err != nil {
			return nil, fmt.Errorf("addresses of %s: %w", n.Name, err)
		}
		ifc := iface{Name: n.Name, MAC: n.HardwareAddr.String(), Flags: n.Flags}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok {
				ifc.IPs = append(ifc.IPs, ipn.IP)
			}
		}
		out = append(out, ifc)
	}
	return out, nil
}

// primaryIP finds the local address the kernel would use to reach probe.
// UDP dial sends no packets.
func primaryIP(ctx context.Context, probe string) (net.IP, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", probe)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP, nil
}
