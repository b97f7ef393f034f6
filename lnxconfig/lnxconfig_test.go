package lnxconfig

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
interfaces:
  - name: if0
    mac: "02:00:00:00:00:01"
    ip: 10.0.0.1
    prefix: 10.0.0.0/24
    udpAddr: 127.0.0.1:5000
    neighbors:
      - 127.0.0.1:5001
      - 127.0.0.1:5002
routes:
  - prefix: 0.0.0.0/0
    nextHop: 10.0.0.2
    interface: 0
ripNeighbors:
  - 10.0.0.2
tcp:
  rtTimeout: 500
  maxRetxAttempts: 4
  capacity: 32000
  localPort: 9000
  remotePort: 9001
  remoteIP: 10.0.0.2
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.lnx")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Interfaces) != 1 {
		t.Fatalf("interfaces = %d, want 1", len(cfg.Interfaces))
	}
	iface := cfg.Interfaces[0]
	if iface.Name != "if0" || iface.IP != netip.MustParseAddr("10.0.0.1") ||
		iface.Prefix != netip.MustParsePrefix("10.0.0.0/24") ||
		iface.UDPAddr != netip.MustParseAddrPort("127.0.0.1:5000") ||
		len(iface.Neighbors) != 2 {
		t.Fatalf("interface = %+v", iface)
	}
	if iface.MAC.String() != "02:00:00:00:00:01" {
		t.Fatalf("mac = %s", iface.MAC)
	}

	if len(cfg.Routes) != 1 || cfg.Routes[0].NextHop != netip.MustParseAddr("10.0.0.2") {
		t.Fatalf("routes = %+v", cfg.Routes)
	}
	if len(cfg.RIPNeighbors) != 1 {
		t.Fatalf("rip neighbors = %+v", cfg.RIPNeighbors)
	}
	if cfg.TCP.RtTimeout != 500 || cfg.TCP.MaxRetxAttempts != 4 ||
		cfg.TCP.LocalPort != 9000 || cfg.TCP.RemoteIP != netip.MustParseAddr("10.0.0.2") {
		t.Fatalf("tcp = %+v", cfg.TCP)
	}
}

func TestParseConfigRejectsBadAddresses(t *testing.T) {
	bad := `
interfaces:
  - name: if0
    mac: "not-a-mac"
    ip: 10.0.0.1
    prefix: 10.0.0.0/24
    udpAddr: 127.0.0.1:5000
`
	if _, err := ParseConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("accepted an invalid MAC")
	}
}

func TestParseConfigRejectsBadInterfaceIndex(t *testing.T) {
	bad := `
interfaces:
  - name: if0
    mac: "02:00:00:00:00:01"
    ip: 10.0.0.1
    prefix: 10.0.0.0/24
    udpAddr: 127.0.0.1:5000
routes:
  - prefix: 0.0.0.0/0
    interface: 3
`
	if _, err := ParseConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("accepted a route to a missing interface")
	}
}
