package rip

import (
	"bytes"
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"

	protocol "ip-tcp-stack/pkg"
)

const INF = 16

// Timing, in milliseconds.
const (
	UpdateIntervalMS uint64 = 5000  // periodic update time
	RouteTimeoutMS   uint64 = 12000 // routing refresh time
)

// RIP commands.
const (
	CommandRequest  uint16 = 1
	CommandResponse uint16 = 2
)

type RIPPacket struct {
	Command    uint16
	NumEntries uint16
	Entries    []RIPEntry
}

type RIPEntry struct {
	Cost    uint32
	Address uint32
	Mask    uint32
}

func MarshalRIP(ripPacket *RIPPacket) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, ripPacket.Command); err != nil {
		return nil, errors.Wrap(err, "marshal rip command")
	}
	if err := binary.Write(buf, binary.BigEndian, ripPacket.NumEntries); err != nil {
		return nil, errors.Wrap(err, "marshal rip entry count")
	}
	if err := binary.Write(buf, binary.BigEndian, ripPacket.Entries); err != nil {
		return nil, errors.Wrap(err, "marshal rip entries")
	}
	return buf.Bytes(), nil
}

func UnmarshalRIP(b []byte) (*RIPPacket, error) {
	buf := bytes.NewReader(b)
	packet := &RIPPacket{}
	if err := binary.Read(buf, binary.BigEndian, &packet.Command); err != nil {
		return nil, errors.Wrap(err, "unmarshal rip command")
	}
	if err := binary.Read(buf, binary.BigEndian, &packet.NumEntries); err != nil {
		return nil, errors.Wrap(err, "unmarshal rip entry count")
	}
	packet.Entries = make([]RIPEntry, packet.NumEntries)
	if err := binary.Read(buf, binary.BigEndian, &packet.Entries); err != nil {
		return nil, errors.Wrap(err, "unmarshal rip entries")
	}
	return packet, nil
}

type learnedRoute struct {
	prefix  netip.Prefix
	nextHop netip.Addr
	cost    uint32
	ageMS   uint64
	local   bool
}

// Instance speaks RIP on behalf of one router: it answers requests with the
// current table, merges neighbor responses into it, and expires routes that
// stop being refreshed. Route changes are pushed through the install and
// remove callbacks so the forwarding table stays in sync.
type Instance struct {
	neighbors []netip.Addr
	routes    map[netip.Prefix]*learnedRoute

	install func(prefix netip.Prefix, nextHop netip.Addr)
	remove  func(prefix netip.Prefix)
}

func NewInstance(neighbors []netip.Addr, install func(netip.Prefix, netip.Addr), remove func(netip.Prefix)) *Instance {
	return &Instance{
		neighbors: neighbors,
		routes:    make(map[netip.Prefix]*learnedRoute),
		install:   install,
		remove:    remove,
	}
}

func (instance *Instance) Neighbors() []netip.Addr { return instance.neighbors }

// AddLocalPrefix seeds the table with a directly attached network. Local
// routes cost 0 and never expire.
func (instance *Instance) AddLocalPrefix(prefix netip.Prefix) {
	instance.routes[prefix.Masked()] = &learnedRoute{
		prefix: prefix.Masked(),
		cost:   0,
		local:  true,
	}
}

// BuildRequest is the empty request sent to every neighbor at startup.
func BuildRequest() *RIPPacket {
	return &RIPPacket{Command: CommandRequest}
}

// BuildResponse renders the table for one neighbor, advertising routes
// learned from that neighbor back to it at cost INF (poisoned reverse).
func (instance *Instance) BuildResponse(dest netip.Addr) *RIPPacket {
	packet := &RIPPacket{Command: CommandResponse}
	for _, route := range instance.routes {
		cost := route.cost
		if !route.local && route.nextHop == dest {
			cost = INF
		}
		packet.Entries = append(packet.Entries, RIPEntry{
			Cost:    cost,
			Address: protocol.AddrToUint32(route.prefix.Addr()),
			Mask:    protocol.PrefixToMask(route.prefix.Bits()),
		})
	}
	packet.NumEntries = uint16(len(packet.Entries))
	return packet
}

// HandlePacket merges one RIP packet from src. A request returns the
// response to send back; a response returns nil after updating the table.
func (instance *Instance) HandlePacket(src netip.Addr, data []byte) (*RIPPacket, error) {
	packet, err := UnmarshalRIP(data)
	if err != nil {
		return nil, err
	}
	switch packet.Command {
	case CommandRequest:
		return instance.BuildResponse(src), nil
	case CommandResponse:
		for _, entry := range packet.Entries {
			instance.mergeEntry(src, entry)
		}
		return nil, nil
	}
	return nil, errors.Errorf("unknown rip command %d", packet.Command)
}

func (instance *Instance) mergeEntry(from netip.Addr, entry RIPEntry) {
	addr := protocol.Uint32ToAddr(entry.Address)
	prefix, err := addr.Prefix(protocol.MaskToPrefixLen(entry.Mask))
	if err != nil {
		return
	}

	cost := entry.Cost + 1
	if cost > INF {
		cost = INF
	}

	existing, known := instance.routes[prefix]
	switch {
	case known && existing.local:
		return
	case !known:
		if cost >= INF {
			return
		}
		instance.routes[prefix] = &learnedRoute{prefix: prefix, nextHop: from, cost: cost}
		instance.install(prefix, from)
	case cost < existing.cost:
		existing.nextHop = from
		existing.cost = cost
		existing.ageMS = 0
		instance.install(prefix, from)
	case existing.nextHop == from:
		// refresh from the route's own next hop, including poison
		existing.ageMS = 0
		if cost >= INF {
			delete(instance.routes, prefix)
			instance.remove(prefix)
		} else {
			existing.cost = cost
		}
	}
}

// Tick ages learned routes and drops the ones that time out.
func (instance *Instance) Tick(ms uint64) {
	for prefix, route := range instance.routes {
		if route.local {
			continue
		}
		route.ageMS += ms
		if route.ageMS >= RouteTimeoutMS {
			delete(instance.routes, prefix)
			instance.remove(prefix)
		}
	}
}
