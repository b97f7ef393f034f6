package main

import (
	"bufio"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"

	"ip-tcp-stack/lnxconfig"
	protocol "ip-tcp-stack/pkg"
	"ip-tcp-stack/rip"
)

const tickMS = 10

type vrouter struct {
	mu     sync.Mutex
	cfg    *lnxconfig.Config
	router *protocol.Router
	ripd   *rip.Instance
	socks  []*net.UDPConn
}

// ifaceNumFor finds the interface whose network contains addr.
func (vr *vrouter) ifaceNumFor(addr netip.Addr) int {
	for n, iface := range vr.router.Interfaces() {
		if iface.Prefix.Contains(addr) {
			return n
		}
	}
	return -1
}

func (vr *vrouter) isLocalIP(addr netip.Addr) bool {
	for _, iface := range vr.router.Interfaces() {
		if iface.IP == addr {
			return true
		}
	}
	return false
}

// sendRIP emits one RIP packet to a neighbor router.
func (vr *vrouter) sendRIP(dest netip.Addr, packet *rip.RIPPacket) {
	n := vr.ifaceNumFor(dest)
	if n < 0 {
		return
	}
	data, err := rip.MarshalRIP(packet)
	if err != nil {
		return
	}
	iface := vr.router.Interface(n)
	dgram := protocol.NewIPPacket(iface.IP, dest, protocol.ProtocolRIP, data)
	iface.SendDatagram(dgram, dest)
}

// process drains received datagrams, delivering router-addressed traffic
// locally and forwarding the rest. Callers hold vr.mu.
func (vr *vrouter) process() {
	for _, iface := range vr.router.Interfaces() {
		for {
			dgram, ok := iface.PopDatagram()
			if !ok {
				break
			}
			if !vr.isLocalIP(dgram.Header.Dst) {
				vr.router.RouteOneDatagram(dgram)
				continue
			}
			switch dgram.Header.Protocol {
			case protocol.ProtocolRIP:
				if vr.ripd == nil {
					continue
				}
				response, err := vr.ripd.HandlePacket(dgram.Header.Src, dgram.Payload)
				if err == nil && response != nil {
					vr.sendRIP(dgram.Header.Src, response)
				}
			case protocol.ProtocolTest:
				fmt.Printf("Received test packet: Src: %s, Dst: %s, TTL: %d, Data: %s\n",
					dgram.Header.Src, dgram.Header.Dst, dgram.Header.TTL, string(dgram.Payload))
			}
		}
	}
}

// pump flushes every interface's outbound frames over its UDP link.
// Callers hold vr.mu.
func (vr *vrouter) pump() {
	for n, iface := range vr.router.Interfaces() {
		for {
			frame, ok := iface.PopFrame()
			if !ok {
				break
			}
			raw := frame.Marshal()
			for _, neighbor := range vr.cfg.Interfaces[n].Neighbors {
				vr.socks[n].WriteToUDP(raw, net.UDPAddrFromAddrPort(neighbor))
			}
		}
	}
}

func (vr *vrouter) listen(n int) {
	buf := make([]byte, 65535)
	for {
		nbytes, _, err := vr.socks[n].ReadFromUDP(buf)
		if err != nil {
			return
		}
		frame, err := protocol.ParseEthernetFrame(buf[:nbytes])
		if err != nil {
			continue
		}
		vr.mu.Lock()
		vr.router.Interface(n).ReceiveFrame(frame)
		vr.process()
		vr.pump()
		vr.mu.Unlock()
	}
}

func (vr *vrouter) tickLoop() {
	ticker := time.NewTicker(tickMS * time.Millisecond)
	var sinceUpdateMS uint64
	for range ticker.C {
		vr.mu.Lock()
		vr.router.Tick(tickMS)
		if vr.ripd != nil {
			vr.ripd.Tick(tickMS)
			sinceUpdateMS += tickMS
			if sinceUpdateMS >= rip.UpdateIntervalMS {
				sinceUpdateMS = 0
				for _, neighbor := range vr.ripd.Neighbors() {
					vr.sendRIP(neighbor, vr.ripd.BuildResponse(neighbor))
				}
			}
		}
		vr.pump()
		vr.mu.Unlock()
	}
}

func main() {
	if len(os.Args) != 3 || os.Args[1] != "--config" {
		fmt.Println("Usage: ./vrouter --config <lnx file>")
		return
	}

	cfg, err := lnxconfig.ParseConfig(os.Args[2])
	if err != nil {
		fmt.Println(err)
		return
	}

	vr := &vrouter{cfg: cfg, router: protocol.NewRouter()}

	for _, ifCfg := range cfg.Interfaces {
		iface := protocol.NewNetworkInterface(ifCfg.Name, ifCfg.MAC, ifCfg.IP, ifCfg.Prefix)
		n := vr.router.AddInterface(iface)

		// directly attached network
		vr.router.AddRoute(ifCfg.Prefix, netip.Addr{}, n)

		sock, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(ifCfg.UDPAddr))
		if err != nil {
			fmt.Println(err)
			return
		}
		vr.socks = append(vr.socks, sock)
	}

	for _, route := range cfg.Routes {
		vr.router.AddRoute(route.Prefix, route.NextHop, route.Interface)
	}

	if len(cfg.RIPNeighbors) > 0 {
		vr.ripd = rip.NewInstance(cfg.RIPNeighbors,
			func(prefix netip.Prefix, nextHop netip.Addr) {
				vr.router.RemoveRoute(prefix)
				if n := vr.ifaceNumFor(nextHop); n >= 0 {
					vr.router.AddRoute(prefix, nextHop, n)
				}
			},
			func(prefix netip.Prefix) {
				vr.router.RemoveRoute(prefix)
			})
		for _, ifCfg := range cfg.Interfaces {
			vr.ripd.AddLocalPrefix(ifCfg.Prefix)
		}
		for _, neighbor := range cfg.RIPNeighbors {
			vr.mu.Lock()
			vr.sendRIP(neighbor, rip.BuildRequest())
			vr.pump()
			vr.mu.Unlock()
		}
	}

	for n := range vr.socks {
		go vr.listen(n)
	}
	go vr.tickLoop()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter command:")
	for scanner.Scan() {
		userInput := scanner.Text()
		vr.mu.Lock()

		if userInput == "li" {
			fmt.Println(vr.router.Li())

		} else if userInput == "ln" {
			fmt.Println(vr.router.Ln())

		} else if userInput == "lr" {
			fmt.Println(vr.router.Lr())

		} else if len(userInput) >= 6 && userInput[0:4] == "down" {
			vr.router.Down(userInput[5:])

		} else if len(userInput) >= 4 && userInput[0:2] == "up" {
			vr.router.Up(userInput[3:])

		} else if len(userInput) > 5 && userInput[0:5] == "send " {
			rest := userInput[5:]
			spaceIdx := strings.Index(rest, " ")
			if spaceIdx < 0 {
				fmt.Println("Please enter a message to send after the IP address")
			} else if dst, err := netip.ParseAddr(rest[:spaceIdx]); err != nil {
				fmt.Println("Please enter a valid IP address after send")
			} else if n := vr.ifaceNumFor(dst); n < 0 {
				fmt.Println("No interface for that destination")
			} else {
				iface := vr.router.Interface(n)
				dgram := protocol.NewIPPacket(iface.IP, dst, protocol.ProtocolTest, []byte(rest[spaceIdx+1:]))
				iface.SendDatagram(dgram, dst)
			}

		} else {
			fmt.Println("Invalid command.")
		}

		vr.pump()
		vr.mu.Unlock()
	}
}
