package main

import (
	"bufio"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ip-tcp-stack/iptcp_utils"
	"ip-tcp-stack/lnxconfig"
	protocol "ip-tcp-stack/pkg"
	tcp "ip-tcp-stack/tcp_pkg"
)

const tickMS = 10

// host bundles the single-interface, single-connection stack a vhost runs.
type host struct {
	mu    sync.Mutex
	cfg   *lnxconfig.Config
	iface *protocol.NetworkInterface
	conn  *tcp.TCPConnection
	sock  *net.UDPConn
}

// nextHopFor picks the next hop for dst: on-link destinations are their own
// next hop, anything else goes to the longest matching static route.
func (h *host) nextHopFor(dst netip.Addr) netip.Addr {
	if h.iface.Prefix.Contains(dst) {
		return dst
	}
	bestBits := -1
	nextHop := dst
	for _, route := range h.cfg.Routes {
		if route.Prefix.Contains(dst) && route.Prefix.Bits() > bestBits {
			bestBits = route.Prefix.Bits()
			nextHop = dst
			if route.NextHop.IsValid() {
				nextHop = route.NextHop
			}
		}
	}
	return nextHop
}

// pump moves queued TCP segments into IP datagrams and queued Ethernet
// frames onto the UDP link. Callers hold h.mu.
func (h *host) pump() {
	tcpCfg := h.cfg.TCP
	for {
		seg, ok := h.conn.PopSegment()
		if !ok {
			break
		}
		fields := seg.Fields(tcpCfg.LocalPort, tcpCfg.RemotePort)
		payload := iptcp_utils.SerializeTCPSegment(&fields, h.iface.IP, tcpCfg.RemoteIP, seg.Payload)
		dgram := protocol.NewIPPacket(h.iface.IP, tcpCfg.RemoteIP, protocol.ProtocolTCP, payload)
		h.iface.SendDatagram(dgram, h.nextHopFor(tcpCfg.RemoteIP))
	}
	for {
		frame, ok := h.iface.PopFrame()
		if !ok {
			break
		}
		raw := frame.Marshal()
		for _, neighbor := range h.cfg.Interfaces[0].Neighbors {
			addr := net.UDPAddrFromAddrPort(neighbor)
			h.sock.WriteToUDP(raw, addr)
		}
	}
}

// deliver hands one received datagram to the right consumer.
func (h *host) deliver(dgram *protocol.IPPacket) {
	if dgram.Header.Dst != h.iface.IP {
		return
	}
	switch dgram.Header.Protocol {
	case protocol.ProtocolTCP:
		tcpHdr, payload, err := iptcp_utils.ParseTCPSegment(dgram.Payload, dgram.Header.Src, dgram.Header.Dst)
		if err != nil {
			return
		}
		if tcpHdr.DstPort != h.cfg.TCP.LocalPort {
			return
		}
		h.conn.SegmentReceived(tcp.SegmentFromFields(&tcpHdr, payload))
	case protocol.ProtocolTest:
		fmt.Printf("Received test packet: Src: %s, Dst: %s, TTL: %d, Data: %s\n",
			dgram.Header.Src, dgram.Header.Dst, dgram.Header.TTL, string(dgram.Payload))
	}
}

func (h *host) listen() {
	buf := make([]byte, 65535)
	for {
		n, _, err := h.sock.ReadFromUDP(buf)
		if err != nil {
			return
		}
		frame, err := protocol.ParseEthernetFrame(buf[:n])
		if err != nil {
			continue
		}
		h.mu.Lock()
		h.iface.ReceiveFrame(frame)
		for {
			dgram, ok := h.iface.PopDatagram()
			if !ok {
				break
			}
			h.deliver(dgram)
		}
		h.pump()
		h.mu.Unlock()
	}
}

func (h *host) tickLoop() {
	ticker := time.NewTicker(tickMS * time.Millisecond)
	for range ticker.C {
		h.mu.Lock()
		h.conn.Tick(tickMS)
		h.iface.Tick(tickMS)
		h.pump()
		h.mu.Unlock()
	}
}

func main() {
	if len(os.Args) != 3 || os.Args[1] != "--config" {
		fmt.Println("Usage: ./vhost --config <lnx file>")
		return
	}

	cfg, err := lnxconfig.ParseConfig(os.Args[2])
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(cfg.Interfaces) != 1 {
		fmt.Println("vhost expects exactly one interface")
		return
	}
	ifCfg := cfg.Interfaces[0]

	tcpCfg := tcp.DefaultConfig()
	if cfg.TCP.RtTimeout > 0 {
		tcpCfg.RtTimeout = cfg.TCP.RtTimeout
	}
	if cfg.TCP.MaxRetxAttempts > 0 {
		tcpCfg.MaxRetxAttempts = cfg.TCP.MaxRetxAttempts
	}
	if cfg.TCP.Capacity > 0 {
		tcpCfg.RecvCapacity = cfg.TCP.Capacity
		tcpCfg.SendCapacity = cfg.TCP.Capacity
	}

	sock, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(ifCfg.UDPAddr))
	if err != nil {
		fmt.Println(err)
		return
	}

	h := &host{
		cfg:   cfg,
		iface: protocol.NewNetworkInterface(ifCfg.Name, ifCfg.MAC, ifCfg.IP, ifCfg.Prefix),
		conn:  tcp.NewTCPConnection(tcpCfg),
		sock:  sock,
	}

	go h.listen()
	go h.tickLoop()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter command:")
	for scanner.Scan() {
		userInput := scanner.Text()
		h.mu.Lock()

		if userInput == "c" {
			h.conn.Connect()

		} else if len(userInput) > 2 && userInput[0:2] == "s " {
			fmt.Printf("Wrote %d bytes\n", h.conn.Write([]byte(userInput[2:])))

		} else if len(userInput) > 2 && userInput[0:2] == "r " {
			n, err := strconv.ParseUint(userInput[2:], 10, 32)
			if err != nil {
				fmt.Println(err)
			} else {
				fmt.Printf("Read: %q\n", string(h.conn.InboundStream().Read(n)))
			}

		} else if userInput == "cl" {
			h.conn.EndInputStream()

		} else if userInput == "rst" {
			h.conn.Reset()

		} else if userInput == "status" {
			fmt.Printf("active=%v in_flight=%d unassembled=%d quiet_ms=%d\n",
				h.conn.Active(), h.conn.BytesInFlight(), h.conn.UnassembledBytes(),
				h.conn.TimeSinceLastSegmentReceived())

		} else if len(userInput) > 5 && userInput[0:5] == "send " {
			rest := userInput[5:]
			spaceIdx := strings.Index(rest, " ")
			if spaceIdx < 0 {
				fmt.Println("Please enter a message to send after the IP address")
			} else if dst, err := netip.ParseAddr(rest[:spaceIdx]); err != nil {
				fmt.Println("Please enter a valid IP address after send")
			} else {
				dgram := protocol.NewIPPacket(h.iface.IP, dst, protocol.ProtocolTest, []byte(rest[spaceIdx+1:]))
				h.iface.SendDatagram(dgram, h.nextHopFor(dst))
			}

		} else {
			fmt.Println("Invalid command.")
		}

		h.pump()
		h.mu.Unlock()
	}
}
