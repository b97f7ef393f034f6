// Package lnxconfig loads the topology description a vhost or vrouter runs
// from: interfaces with their link emulation addresses, static routes, RIP
// neighbors, and TCP tuning.
package lnxconfig

import (
	"net/netip"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	protocol "ip-tcp-stack/pkg"
)

// rawConfig mirrors the YAML document before address parsing.
type rawConfig struct {
	Interfaces []struct {
		Name      string   `yaml:"name"`
		MAC       string   `yaml:"mac"`
		IP        string   `yaml:"ip"`
		Prefix    string   `yaml:"prefix"`
		UDPAddr   string   `yaml:"udpAddr"`
		Neighbors []string `yaml:"neighbors"`
	} `yaml:"interfaces"`
	Routes []struct {
		Prefix    string `yaml:"prefix"`
		NextHop   string `yaml:"nextHop"`
		Interface int    `yaml:"interface"`
	} `yaml:"routes"`
	RIPNeighbors []string `yaml:"ripNeighbors"`
	TCP          struct {
		RtTimeout       uint64 `yaml:"rtTimeout"`
		MaxRetxAttempts uint   `yaml:"maxRetxAttempts"`
		Capacity        uint64 `yaml:"capacity"`
		LocalPort       uint16 `yaml:"localPort"`
		RemotePort      uint16 `yaml:"remotePort"`
		RemoteIP        string `yaml:"remoteIP"`
	} `yaml:"tcp"`
}

type InterfaceConfig struct {
	Name      string
	MAC       protocol.MACAddress
	IP        netip.Addr
	Prefix    netip.Prefix
	UDPAddr   netip.AddrPort
	Neighbors []netip.AddrPort // UDP addresses sharing this link
}

type RouteConfig struct {
	Prefix    netip.Prefix
	NextHop   netip.Addr // zero value when directly attached
	Interface int
}

type TCPTuning struct {
	RtTimeout       uint64
	MaxRetxAttempts uint
	Capacity        uint64
	LocalPort       uint16
	RemotePort      uint16
	RemoteIP        netip.Addr
}

type Config struct {
	Interfaces   []InterfaceConfig
	Routes       []RouteConfig
	RIPNeighbors []netip.Addr
	TCP          TCPTuning
}

// ParseConfig loads and validates a config file.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	config := &Config{}
	for _, ri := range raw.Interfaces {
		iface := InterfaceConfig{Name: ri.Name}
		if iface.MAC, err = protocol.ParseMAC(ri.MAC); err != nil {
			return nil, errors.Wrapf(err, "interface %s", ri.Name)
		}
		if iface.IP, err = netip.ParseAddr(ri.IP); err != nil {
			return nil, errors.Wrapf(err, "interface %s ip", ri.Name)
		}
		if iface.Prefix, err = netip.ParsePrefix(ri.Prefix); err != nil {
			return nil, errors.Wrapf(err, "interface %s prefix", ri.Name)
		}
		if iface.UDPAddr, err = netip.ParseAddrPort(ri.UDPAddr); err != nil {
			return nil, errors.Wrapf(err, "interface %s udpAddr", ri.Name)
		}
		for _, n := range ri.Neighbors {
			addrPort, err := netip.ParseAddrPort(n)
			if err != nil {
				return nil, errors.Wrapf(err, "interface %s neighbor", ri.Name)
			}
			iface.Neighbors = append(iface.Neighbors, addrPort)
		}
		config.Interfaces = append(config.Interfaces, iface)
	}

	for _, rr := range raw.Routes {
		route := RouteConfig{Interface: rr.Interface}
		if route.Prefix, err = netip.ParsePrefix(rr.Prefix); err != nil {
			return nil, errors.Wrap(err, "route prefix")
		}
		if rr.NextHop != "" {
			if route.NextHop, err = netip.ParseAddr(rr.NextHop); err != nil {
				return nil, errors.Wrap(err, "route nextHop")
			}
		}
		if rr.Interface < 0 || rr.Interface >= len(config.Interfaces) {
			return nil, errors.Errorf("route %s references interface %d of %d",
				rr.Prefix, rr.Interface, len(config.Interfaces))
		}
		config.Routes = append(config.Routes, route)
	}

	for _, n := range raw.RIPNeighbors {
		addr, err := netip.ParseAddr(n)
		if err != nil {
			return nil, errors.Wrap(err, "rip neighbor")
		}
		config.RIPNeighbors = append(config.RIPNeighbors, addr)
	}

	config.TCP = TCPTuning{
		RtTimeout:       raw.TCP.RtTimeout,
		MaxRetxAttempts: raw.TCP.MaxRetxAttempts,
		Capacity:        raw.TCP.Capacity,
		LocalPort:       raw.TCP.LocalPort,
		RemotePort:      raw.TCP.RemotePort,
	}
	if raw.TCP.RemoteIP != "" {
		if config.TCP.RemoteIP, err = netip.ParseAddr(raw.TCP.RemoteIP); err != nil {
			return nil, errors.Wrap(err, "tcp remoteIP")
		}
	}
	return config, nil
}
