package iptcp_utils

import (
	"net/netip"
	"testing"

	"github.com/google/netstack/tcpip/header"
)

var (
	srcIP = netip.MustParseAddr("10.0.0.1")
	dstIP = netip.MustParseAddr("10.0.0.2")
)

func sampleFields() header.TCPFields {
	return header.TCPFields{
		SrcPort:    9000,
		DstPort:    9001,
		SeqNum:     0x10000000,
		AckNum:     0x20000000,
		DataOffset: TcpHeaderLen,
		Flags:      header.TCPFlagAck | header.TCPFlagPsh,
		WindowSize: 4096,
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	fields := sampleFields()
	raw := SerializeTCPSegment(&fields, srcIP, dstIP, []byte("hello"))

	got, payload, err := ParseTCPSegment(raw, srcIP, dstIP)
	if err != nil {
		t.Fatal(err)
	}
	if got.SrcPort != 9000 || got.DstPort != 9001 ||
		got.SeqNum != 0x10000000 || got.AckNum != 0x20000000 ||
		got.Flags != fields.Flags || got.WindowSize != 4096 {
		t.Fatalf("parsed = %+v", got)
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestParseRejectsCorruption(t *testing.T) {
	fields := sampleFields()
	raw := SerializeTCPSegment(&fields, srcIP, dstIP, []byte("hello"))
	raw[len(raw)-1] ^= 0xff
	if _, _, err := ParseTCPSegment(raw, srcIP, dstIP); err == nil {
		t.Fatal("accepted a corrupted segment")
	}
}

func TestParseRejectsWrongAddresses(t *testing.T) {
	fields := sampleFields()
	raw := SerializeTCPSegment(&fields, srcIP, dstIP, nil)
	other := netip.MustParseAddr("10.0.0.3")
	if _, _, err := ParseTCPSegment(raw, srcIP, other); err == nil {
		t.Fatal("pseudo-header mismatch not detected")
	}
}

func TestParseRejectsShortHeader(t *testing.T) {
	if _, err := ParseTCPHeader(make([]byte, 10)); err == nil {
		t.Fatal("accepted a truncated header")
	}
}
