package protocol

import (
	"net/netip"
)

// RouteEntry matches destination addresses whose top PrefixLen bits equal
// the same bits of Prefix. An invalid NextHop means the network is directly
// attached and the datagram's own destination is the next hop.
type RouteEntry struct {
	Prefix       uint32
	PrefixLen    uint8
	NextHop      netip.Addr
	InterfaceNum int
}

// Router forwards datagrams between its interfaces by longest-prefix match
// over an ordered route list.
type Router struct {
	routes     []RouteEntry
	interfaces []*NetworkInterface
}

func NewRouter() *Router {
	return &Router{}
}

// AddInterface registers an interface and returns its index.
func (router *Router) AddInterface(iface *NetworkInterface) int {
	router.interfaces = append(router.interfaces, iface)
	return len(router.interfaces) - 1
}

func (router *Router) Interface(n int) *NetworkInterface {
	if n < 0 || n >= len(router.interfaces) {
		return nil
	}
	return router.interfaces[n]
}

func (router *Router) Interfaces() []*NetworkInterface { return router.interfaces }

// AddRoute appends a route. nextHop may be the zero Addr for directly
// attached networks.
func (router *Router) AddRoute(prefix netip.Prefix, nextHop netip.Addr, interfaceNum int) {
	router.routes = append(router.routes, RouteEntry{
		Prefix:       AddrToUint32(prefix.Masked().Addr()),
		PrefixLen:    uint8(prefix.Bits()),
		NextHop:      nextHop,
		InterfaceNum: interfaceNum,
	})
}

// RemoveRoute deletes every entry for the given prefix.
func (router *Router) RemoveRoute(prefix netip.Prefix) {
	target := AddrToUint32(prefix.Masked().Addr())
	kept := router.routes[:0]
	for _, entry := range router.routes {
		if entry.Prefix == target && int(entry.PrefixLen) == prefix.Bits() {
			continue
		}
		kept = append(kept, entry)
	}
	router.routes = kept
}

func (router *Router) Routes() []RouteEntry { return router.routes }

// RouteOneDatagram forwards one datagram: expired TTLs are dropped, the
// TTL is decremented with the header checksum rewritten, and the datagram
// goes out the interface of the longest matching route.
func (router *Router) RouteOneDatagram(dgram *IPPacket) {
	if dgram.Header.TTL <= 1 {
		return
	}
	dgram.Header.TTL--
	dgram.Header.Checksum = 0
	if headerBytes, err := dgram.Header.Marshal(); err == nil {
		dgram.Header.Checksum = int(ComputeChecksum(headerBytes))
	}

	dst := AddrToUint32(dgram.Header.Dst)
	entry := router.findLongestPrefixMatch(dst)
	if entry == nil {
		return
	}

	nextHop := dgram.Header.Dst
	if entry.NextHop.IsValid() {
		nextHop = entry.NextHop
	}
	if entry.InterfaceNum >= 0 && entry.InterfaceNum < len(router.interfaces) {
		router.interfaces[entry.InterfaceNum].SendDatagram(dgram, nextHop)
	}
}

func (router *Router) findLongestPrefixMatch(dst uint32) *RouteEntry {
	var best *RouteEntry
	bestLen := -1
	for i := range router.routes {
		entry := &router.routes[i]
		mask := PrefixToMask(int(entry.PrefixLen))
		if dst&mask == entry.Prefix&mask && int(entry.PrefixLen) > bestLen {
			best = entry
			bestLen = int(entry.PrefixLen)
		}
	}
	return best
}

// Route drains every interface's received datagrams and forwards them.
// Time never advances here; drive Tick from the event loop.
func (router *Router) Route() {
	for _, iface := range router.interfaces {
		for {
			dgram, ok := iface.PopDatagram()
			if !ok {
				break
			}
			router.RouteOneDatagram(dgram)
		}
	}
}

// Tick forwards elapsed time to every interface's ARP timers.
func (router *Router) Tick(ms uint64) {
	for _, iface := range router.interfaces {
		iface.Tick(ms)
	}
}
