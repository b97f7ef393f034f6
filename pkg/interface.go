package protocol

import (
	"net/netip"
)

// ARP timing constants.
const (
	ArpCacheLifetimeMS  uint64 = 30000
	ArpRequestTimeoutMS uint64 = 5000
)

type arpEntry struct {
	mac                 MACAddress
	remainingLifetimeMS uint64
}

// NetworkInterface connects the internet layer to an Ethernet link. It
// resolves next-hop IPs to MACs with ARP, parking datagrams until the
// resolution completes, and hands received IPv4 datagrams up the stack.
type NetworkInterface struct {
	Name   string
	MAC    MACAddress
	IP     netip.Addr
	Prefix netip.Prefix
	Down   bool

	framesOut   []*EthernetFrame
	datagramsIn []*IPPacket

	arpTable      map[netip.Addr]*arpEntry
	pending       map[netip.Addr][]*IPPacket
	requestTimers map[netip.Addr]uint64
}

func NewNetworkInterface(name string, mac MACAddress, ip netip.Addr, prefix netip.Prefix) *NetworkInterface {
	return &NetworkInterface{
		Name:          name,
		MAC:           mac,
		IP:            ip,
		Prefix:        prefix,
		arpTable:      make(map[netip.Addr]*arpEntry),
		pending:       make(map[netip.Addr][]*IPPacket),
		requestTimers: make(map[netip.Addr]uint64),
	}
}

// PopFrame removes and returns the next outbound Ethernet frame.
func (iface *NetworkInterface) PopFrame() (*EthernetFrame, bool) {
	if len(iface.framesOut) == 0 {
		return nil, false
	}
	frame := iface.framesOut[0]
	iface.framesOut = iface.framesOut[1:]
	return frame, true
}

// PopDatagram removes and returns the next received IPv4 datagram.
func (iface *NetworkInterface) PopDatagram() (*IPPacket, bool) {
	if len(iface.datagramsIn) == 0 {
		return nil, false
	}
	dgram := iface.datagramsIn[0]
	iface.datagramsIn = iface.datagramsIn[1:]
	return dgram, true
}

// SendDatagram emits dgram toward next_hop. If the hop's MAC is unknown the
// datagram waits while one ARP request per 5 seconds goes out for it.
func (iface *NetworkInterface) SendDatagram(dgram *IPPacket, nextHop netip.Addr) {
	if iface.Down {
		return
	}
	if entry, ok := iface.arpTable[nextHop]; ok {
		iface.pushIPv4Frame(dgram, entry.mac)
		return
	}

	iface.pending[nextHop] = append(iface.pending[nextHop], dgram)
	timer, active := iface.requestTimers[nextHop]
	if !active || timer >= ArpRequestTimeoutMS {
		iface.pushARPRequest(nextHop)
		iface.requestTimers[nextHop] = 0
	}
}

// RecvFrame processes one Ethernet frame. Frames not addressed to this
// interface are dropped; ARP frames update the cache (and may answer or
// flush pending traffic) but never produce a datagram; IPv4 frames yield
// their datagram when they parse.
func (iface *NetworkInterface) RecvFrame(frame *EthernetFrame) *IPPacket {
	if iface.Down {
		return nil
	}
	if frame.Dst != iface.MAC && frame.Dst != BroadcastMAC {
		return nil
	}

	switch frame.Type {
	case EthernetTypeARP:
		msg, err := ParseARPMessage(frame.Payload)
		if err != nil {
			return nil
		}
		iface.arpTable[msg.SenderIP] = &arpEntry{mac: msg.SenderMAC, remainingLifetimeMS: ArpCacheLifetimeMS}
		delete(iface.requestTimers, msg.SenderIP)

		switch msg.Opcode {
		case ARPOpReply:
			for _, dgram := range iface.pending[msg.SenderIP] {
				iface.pushIPv4Frame(dgram, msg.SenderMAC)
			}
			delete(iface.pending, msg.SenderIP)
		case ARPOpRequest:
			if msg.TargetIP == iface.IP {
				iface.pushARPReply(msg.SenderMAC, msg.SenderIP)
			}
		}
		return nil

	case EthernetTypeIPv4:
		dgram, err := ParseIPPacket(frame.Payload)
		if err != nil {
			return nil
		}
		return dgram
	}
	return nil
}

// ReceiveFrame runs RecvFrame and queues any resulting datagram for a
// later PopDatagram, so a router can drain interfaces at its own pace.
func (iface *NetworkInterface) ReceiveFrame(frame *EthernetFrame) {
	if dgram := iface.RecvFrame(frame); dgram != nil {
		iface.datagramsIn = append(iface.datagramsIn, dgram)
	}
}

// Tick ages the ARP cache and drives request retransmission.
func (iface *NetworkInterface) Tick(ms uint64) {
	for ip, entry := range iface.arpTable {
		if entry.remainingLifetimeMS <= ms {
			delete(iface.arpTable, ip)
		} else {
			entry.remainingLifetimeMS -= ms
		}
	}
	for ip := range iface.requestTimers {
		iface.requestTimers[ip] += ms
		if iface.requestTimers[ip] >= ArpRequestTimeoutMS {
			iface.pushARPRequest(ip)
			iface.requestTimers[ip] = 0
		}
	}
}

func (iface *NetworkInterface) pushIPv4Frame(dgram *IPPacket, dst MACAddress) {
	payload, err := dgram.Marshal()
	if err != nil {
		return
	}
	iface.framesOut = append(iface.framesOut, &EthernetFrame{
		Dst:     dst,
		Src:     iface.MAC,
		Type:    EthernetTypeIPv4,
		Payload: payload,
	})
}

func (iface *NetworkInterface) pushARPRequest(targetIP netip.Addr) {
	msg := &ARPMessage{
		Opcode:    ARPOpRequest,
		SenderMAC: iface.MAC,
		SenderIP:  iface.IP,
		TargetIP:  targetIP,
	}
	payload, err := msg.Marshal()
	if err != nil {
		return
	}
	iface.framesOut = append(iface.framesOut, &EthernetFrame{
		Dst:     BroadcastMAC,
		Src:     iface.MAC,
		Type:    EthernetTypeARP,
		Payload: payload,
	})
}

func (iface *NetworkInterface) pushARPReply(requesterMAC MACAddress, requesterIP netip.Addr) {
	msg := &ARPMessage{
		Opcode:    ARPOpReply,
		SenderMAC: iface.MAC,
		SenderIP:  iface.IP,
		TargetMAC: requesterMAC,
		TargetIP:  requesterIP,
	}
	payload, err := msg.Marshal()
	if err != nil {
		return
	}
	iface.framesOut = append(iface.framesOut, &EthernetFrame{
		Dst:     requesterMAC,
		Src:     iface.MAC,
		Type:    EthernetTypeARP,
		Payload: payload,
	})
}
