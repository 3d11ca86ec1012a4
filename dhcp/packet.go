// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dhcp implements the DHCPv4 wire codec (BOOTP framing with
// RFC 2132 options) and the client/server lease state machines built on
// top of it.
package dhcp

import (
	"errors"
	"net/netip"

	edgebytes "github.com/Jigsaw-Code/edge-net/bytes"
)

// MessageType is the DHCP message type carried in option 53.
type MessageType byte

const (
	MessageTypeDiscover MessageType = 1
	MessageTypeOffer    MessageType = 2
	MessageTypeRequest  MessageType = 3
	MessageTypeDecline  MessageType = 4
	MessageTypeAck      MessageType = 5
	MessageTypeNak      MessageType = 6
	MessageTypeRelease  MessageType = 7
	MessageTypeInform   MessageType = 8
)

func (mt MessageType) String() string {
	switch mt {
	case MessageTypeDiscover:
		return "Discover"
	case MessageTypeOffer:
		return "Offer"
	case MessageTypeRequest:
		return "Request"
	case MessageTypeDecline:
		return "Decline"
	case MessageTypeAck:
		return "Ack"
	case MessageTypeNak:
		return "Nak"
	case MessageTypeRelease:
		return "Release"
	case MessageTypeInform:
		return "Inform"
	default:
		return "Unknown"
	}
}

var (
	// ErrInvalidHlen is returned when a decoded packet's hardware-address
	// length is not 6 (Ethernet).
	ErrInvalidHlen = errors.New("dhcp: hlen != 6")
	// ErrMissingCookie is returned when the magic cookie is absent or wrong.
	ErrMissingCookie = errors.New("dhcp: missing magic cookie")
)

// MagicCookie is the fixed 4-byte sequence that precedes DHCP options.
var MagicCookie = [4]byte{99, 130, 83, 99}

// MinPacketLen is the minimum encoded length of a DHCP packet, per RFC 951/1542.
const MinPacketLen = 272

const (
	fixedFieldsLen = 1 + 1 + 1 + 1 + 4 + 2 + 2 + 4 + 4 + 4 + 4 + 16 // through chaddr
	snameFileLen   = 64 + 128
	headerLen      = fixedFieldsLen + snameFileLen + len(MagicCookie)
	broadcastFlag  = 0x8000
	bootRequestOp  = 1
	bootReplyOp    = 2
	ethernetHType  = 1
	ethernetHLen   = 6
)

// Packet is a decoded or to-be-encoded DHCPv4 message.
type Packet struct {
	Reply     bool
	Xid       uint32
	Secs      uint16
	Broadcast bool
	CIAddr    netip.Addr
	YIAddr    netip.Addr
	SIAddr    netip.Addr
	GIAddr    netip.Addr
	// CHAddr holds the 16-byte client hardware address field; for Ethernet
	// only the first 6 bytes are significant, the rest are zero.
	CHAddr  [16]byte
	Options Options
}

// Decode parses a DHCPv4 packet from buf. The returned Packet's Options is
// a RawOptions view aliasing buf; it remains valid only as long as buf is
// not reused.
func Decode(buf []byte) (Packet, error) {
	var p Packet

	r := edgebytes.NewReader(buf)

	op, err := r.Byte()
	if err != nil {
		return p, err
	}
	p.Reply = op == bootReplyOp

	if _, err := r.Byte(); err != nil { // htype
		return p, err
	}

	hlen, err := r.Byte()
	if err != nil {
		return p, err
	}
	if hlen != ethernetHLen {
		return p, ErrInvalidHlen
	}

	if _, err := r.Byte(); err != nil { // hops
		return p, err
	}

	if p.Xid, err = r.U32(); err != nil {
		return p, err
	}
	if p.Secs, err = r.U16(); err != nil {
		return p, err
	}

	flags, err := r.U16()
	if err != nil {
		return p, err
	}
	p.Broadcast = flags&broadcastFlag != 0

	for _, addr := range []*netip.Addr{&p.CIAddr, &p.YIAddr, &p.SIAddr, &p.GIAddr} {
		b, err := r.Slice(4)
		if err != nil {
			return p, err
		}
		*addr = netip.AddrFrom4([4]byte(b))
	}

	chaddr, err := r.Slice(16)
	if err != nil {
		return p, err
	}
	copy(p.CHAddr[:], chaddr)

	if err := r.Skip(snameFileLen); err != nil {
		return p, err
	}

	cookie, err := r.Slice(len(MagicCookie))
	if err != nil {
		return p, err
	}
	if [4]byte(cookie) != MagicCookie {
		return p, ErrMissingCookie
	}

	p.Options = RawOptions(r.Remainder())

	return p, nil
}

// Encode writes p into buf, returning the encoded packet (padded to at
// least MinPacketLen bytes).
func Encode(buf []byte, p Packet) ([]byte, error) {
	w := edgebytes.NewWriter(buf)

	op := byte(bootRequestOp)
	if p.Reply {
		op = bootReplyOp
	}
	if _, err := w.PushByte(op); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(ethernetHType); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(ethernetHLen); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(0); err != nil { // hops
		return nil, err
	}
	if _, err := w.PushU32(p.Xid); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(p.Secs); err != nil {
		return nil, err
	}
	flags := uint16(0)
	if p.Broadcast {
		flags |= broadcastFlag
	}
	if _, err := w.PushU16(flags); err != nil {
		return nil, err
	}

	for _, addr := range []netip.Addr{p.CIAddr, p.YIAddr, p.SIAddr, p.GIAddr} {
		a4 := addr4(addr)
		if _, err := w.Push(a4[:]); err != nil {
			return nil, err
		}
	}

	if _, err := w.Push(p.CHAddr[:]); err != nil {
		return nil, err
	}

	if _, err := w.PushZero(snameFileLen); err != nil {
		return nil, err
	}

	if _, err := w.Push(MagicCookie[:]); err != nil {
		return nil, err
	}

	if p.Options != nil {
		if err := EncodeOptions(w, p.Options); err != nil {
			return nil, err
		}
	} else {
		if _, err := w.PushByte(optEnd); err != nil {
			return nil, err
		}
	}

	for w.Len() < MinPacketLen {
		if _, err := w.PushByte(optPad); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}

// NewReply builds the header of a reply packet (op=BOOTREPLY) that copies
// the transaction identity of request: xid, chaddr, broadcast flag, and
// (if non-nil) sets yiaddr.
func NewReply(request Packet, yiaddr *netip.Addr) Packet {
	reply := Packet{
		Reply:     true,
		Xid:       request.Xid,
		Secs:      request.Secs,
		Broadcast: request.Broadcast,
		GIAddr:    request.GIAddr,
		CHAddr:    request.CHAddr,
	}
	if yiaddr != nil {
		reply.YIAddr = *yiaddr
	}
	return reply
}

// ClientID returns the 6-byte Ethernet client hardware address prefix of
// CHAddr as a comparable array, ignoring the trailing padding.
func (p Packet) ClientID() [6]byte {
	var id [6]byte
	copy(id[:], p.CHAddr[:6])
	return id
}
