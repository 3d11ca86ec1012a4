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

package dhcp

import (
	"crypto/rand"
	"encoding/binary"
	"net/netip"
)

// NewXid generates a fresh, random DHCP transaction identifier.
func NewXid() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func clientHeader(mac [6]byte, secs uint16, broadcast bool) Packet {
	var chaddr [16]byte
	copy(chaddr[:], mac[:])
	return Packet{
		Xid:       NewXid(),
		Secs:      secs,
		Broadcast: broadcast,
		CHAddr:    chaddr,
	}
}

// Discover builds a DHCPDISCOVER packet. If requestedIP is valid, it is
// carried as option 50.
func Discover(mac [6]byte, secs uint16, requestedIP netip.Addr) Packet {
	p := clientHeader(mac, secs, true)

	opts := BuiltOptions{messageTypeOption(MessageTypeDiscover)}
	if requestedIP.IsValid() {
		opts = append(opts, addrOption(OptRequestedIP, requestedIP))
	}
	p.Options = opts

	return p
}

// Request builds a DHCPREQUEST packet for ip, asking for the usual set of
// configuration parameters (router, subnet mask, DNS).
func Request(mac [6]byte, secs uint16, ip netip.Addr) Packet {
	p := clientHeader(mac, secs, true)

	p.Options = BuiltOptions{
		messageTypeOption(MessageTypeRequest),
		addrOption(OptRequestedIP, ip),
		{Code: OptParameterRequestList, Data: []byte{byte(OptRouter), byte(OptSubnetMask), byte(OptDNS)}},
	}

	return p
}

// Release builds a DHCPRELEASE packet relinquishing ip.
func Release(mac [6]byte, secs uint16, serverID, ip netip.Addr) Packet {
	p := clientHeader(mac, secs, false)
	p.CIAddr = ip
	p.Options = BuiltOptions{
		messageTypeOption(MessageTypeRelease),
		addrOption(OptServerIdentifier, serverID),
	}
	return p
}

// Decline builds a DHCPDECLINE packet rejecting ip (e.g. after detecting an
// address conflict).
func Decline(mac [6]byte, secs uint16, serverID, ip netip.Addr) Packet {
	p := clientHeader(mac, secs, false)
	p.Options = BuiltOptions{
		messageTypeOption(MessageTypeDecline),
		addrOption(OptRequestedIP, ip),
		addrOption(OptServerIdentifier, serverID),
	}
	return p
}

// isReplyTo reports whether reply is a well-formed reply to a request from
// mac with the given xid: reply.Reply is set, the xid matches, and the
// client hardware address round-trips exactly (first 6 bytes equal mac,
// remaining 10 bytes zero).
func isReplyTo(reply Packet, xid uint32, mac [6]byte) bool {
	if !reply.Reply || reply.Xid != xid {
		return false
	}
	if reply.ClientID() != mac {
		return false
	}
	for _, b := range reply.CHAddr[6:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsOffer reports whether reply is a DHCPOFFER answering the Discover sent
// with the given xid/mac.
func IsOffer(reply Packet, xid uint32, mac [6]byte) bool {
	mt, ok := MessageTypeOf(reply.Options)
	return isReplyTo(reply, xid, mac) && ok && mt == MessageTypeOffer
}

// IsAck reports whether reply is a DHCPACK answering the Request sent with
// the given xid/mac.
func IsAck(reply Packet, xid uint32, mac [6]byte) bool {
	mt, ok := MessageTypeOf(reply.Options)
	return isReplyTo(reply, xid, mac) && ok && mt == MessageTypeAck
}

// IsNak reports whether reply is a DHCPNAK answering the Request sent with
// the given xid/mac.
func IsNak(reply Packet, xid uint32, mac [6]byte) bool {
	mt, ok := MessageTypeOf(reply.Options)
	return isReplyTo(reply, xid, mac) && ok && mt == MessageTypeNak
}

// Settings is the negotiated configuration of a leased address, extracted
// from a DHCPACK's options.
type Settings struct {
	Addr       netip.Addr
	ServerID   netip.Addr
	LeaseSecs  uint32
	Router     netip.Addr
	Subnet     netip.Addr
	DNS        []netip.Addr
	CaptiveURL string
	HasCaptive bool
}

// SettingsFromAck extracts a Settings from a DHCPACK packet.
func SettingsFromAck(ack Packet) Settings {
	s := Settings{Addr: ack.YIAddr}
	s.ServerID, _ = AddrOptionOf(ack.Options, OptServerIdentifier)
	s.LeaseSecs, _ = LeaseTimeOf(ack.Options)
	s.Router, _ = AddrOptionOf(ack.Options, OptRouter)
	s.Subnet, _ = AddrOptionOf(ack.Options, OptSubnetMask)
	s.DNS, _ = AddrListOptionOf(ack.Options, OptDNS)
	if msg, ok := MessageOf(ack.Options); ok {
		s.CaptiveURL, s.HasCaptive = msg, true
	}
	return s
}
