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

package ipudp

import "net/netip"

// DecodeUDP parses a raw IPv4 datagram known to carry UDP, verifying both
// checksums, and returns the UDP-level source/destination socket addresses
// plus the UDP payload (aliasing packet). Optional port filters behave as
// in DecodeUDPWithPayload; a filtered-out or non-UDP/non-IPv4 packet
// returns (zero, zero, nil, nil) so a caller looping over a raw socket can
// simply `continue` on a nil error with a nil payload.
func DecodeUDP(packet []byte, filterSrcPort, filterDstPort *uint16) (netip.AddrPort, netip.AddrPort, []byte, error) {
	ipHdr, err := DecodeIPv4(packet)
	if err == ErrUnsupportedVersion {
		return netip.AddrPort{}, netip.AddrPort{}, nil, nil
	}
	if err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, nil, err
	}
	if ipHdr.Protocol != ProtoUDP {
		return netip.AddrPort{}, netip.AddrPort{}, nil, nil
	}
	total := int(ipHdr.TotalLen)
	if total < MinIPv4HeaderLen || total > len(packet) {
		return netip.AddrPort{}, netip.AddrPort{}, nil, ErrDataUnderflow
	}

	udpHdr, payload, err := DecodeUDPWithPayload(packet[MinIPv4HeaderLen:total], ipHdr.Src, ipHdr.Dst, filterSrcPort, filterDstPort)
	if err != nil {
		return netip.AddrPort{}, netip.AddrPort{}, nil, err
	}
	if udpHdr == nil {
		return netip.AddrPort{}, netip.AddrPort{}, nil, nil
	}

	return netip.AddrPortFrom(ipHdr.Src, udpHdr.SrcPort), netip.AddrPortFrom(ipHdr.Dst, udpHdr.DstPort), payload, nil
}

// EncodeUDP builds a full IPv4+UDP datagram into buf: the IPv4 header (ttl,
// tos as given), then a UDP header and payload produced by encodePayload,
// with both checksums filled in. It returns the complete datagram.
func EncodeUDP(buf []byte, src, dst netip.AddrPort, ttl byte, encodePayload func([]byte) (int, error)) ([]byte, error) {
	if len(buf) < MinIPv4HeaderLen {
		return nil, ErrBufferOverflow
	}

	udpDatagram, err := EncodeUDPWithPayload(buf[MinIPv4HeaderLen:], src, dst, encodePayload)
	if err != nil {
		return nil, err
	}

	ipHdr := IPv4Header{
		TotalLen: uint16(MinIPv4HeaderLen + len(udpDatagram)),
		TTL:      ttl,
		Protocol: ProtoUDP,
		Src:      src.Addr(),
		Dst:      dst.Addr(),
	}
	if _, err := EncodeIPv4(buf[:MinIPv4HeaderLen], ipHdr); err != nil {
		return nil, err
	}

	return buf[:MinIPv4HeaderLen+len(udpDatagram)], nil
}
