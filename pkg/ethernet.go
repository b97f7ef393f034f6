package protocol

import (
	"bytes"
	"encoding/binary"
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

type MACAddress [6]byte

var BroadcastMAC = MACAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (mac MACAddress) String() string {
	return net.HardwareAddr(mac[:]).String()
}

func ParseMAC(s string) (MACAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return MACAddress{}, errors.Errorf("invalid MAC address %q", s)
	}
	var mac MACAddress
	copy(mac[:], hw)
	return mac, nil
}

// EtherTypes carried by the stack.
const (
	EthernetTypeIPv4 uint16 = 0x0800
	EthernetTypeARP  uint16 = 0x0806
)

const EthernetHeaderLen = 14

type EthernetFrame struct {
	Dst     MACAddress
	Src     MACAddress
	Type    uint16
	Payload []byte
}

func (frame *EthernetFrame) Marshal() []byte {
	buf := make([]byte, 0, EthernetHeaderLen+len(frame.Payload))
	buf = append(buf, frame.Dst[:]...)
	buf = append(buf, frame.Src[:]...)
	buf = binary.BigEndian.AppendUint16(buf, frame.Type)
	buf = append(buf, frame.Payload...)
	return buf
}

func ParseEthernetFrame(b []byte) (*EthernetFrame, error) {
	if len(b) < EthernetHeaderLen {
		return nil, errors.New("ethernet frame too short")
	}
	frame := &EthernetFrame{
		Type:    binary.BigEndian.Uint16(b[12:14]),
		Payload: b[EthernetHeaderLen:],
	}
	copy(frame.Dst[:], b[0:6])
	copy(frame.Src[:], b[6:12])
	return frame, nil
}

// ARP opcodes.
const (
	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

const (
	arpHardwareEthernet uint16 = 1
	arpMessageLen              = 28
)

// ARPMessage is the logical view of an Ethernet/IPv4 ARP message.
type ARPMessage struct {
	Opcode    uint16
	SenderMAC MACAddress
	SenderIP  netip.Addr
	TargetMAC MACAddress
	TargetIP  netip.Addr
}

func (msg *ARPMessage) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, field := range []any{
		arpHardwareEthernet,
		EthernetTypeIPv4,
		uint8(6),
		uint8(4),
		msg.Opcode,
		msg.SenderMAC,
		AddrToUint32(msg.SenderIP),
		msg.TargetMAC,
		AddrToUint32(msg.TargetIP),
	} {
		if err := binary.Write(buf, binary.BigEndian, field); err != nil {
			return nil, errors.Wrap(err, "marshal arp message")
		}
	}
	return buf.Bytes(), nil
}

func ParseARPMessage(b []byte) (*ARPMessage, error) {
	if len(b) < arpMessageLen {
		return nil, errors.New("arp message too short")
	}
	if binary.BigEndian.Uint16(b[0:2]) != arpHardwareEthernet ||
		binary.BigEndian.Uint16(b[2:4]) != EthernetTypeIPv4 ||
		b[4] != 6 || b[5] != 4 {
		return nil, errors.New("arp message not ethernet/ipv4")
	}
	msg := &ARPMessage{
		Opcode:   binary.BigEndian.Uint16(b[6:8]),
		SenderIP: Uint32ToAddr(binary.BigEndian.Uint32(b[14:18])),
		TargetIP: Uint32ToAddr(binary.BigEndian.Uint32(b[24:28])),
	}
	copy(msg.SenderMAC[:], b[8:14])
	copy(msg.TargetMAC[:], b[18:24])
	return msg, nil
}
