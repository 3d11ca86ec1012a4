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

import (
	"net/netip"

	edgebytes "github.com/Jigsaw-Code/edge-net/bytes"
)

// UDPHeaderLen is the size, in bytes, of a UDP header.
const UDPHeaderLen = 8

// udpChecksumWord is the big-endian 16-bit word index of the checksum
// field within the UDP header.
const udpChecksumWord = 3

// UDPHeader is a parsed UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Len      uint16
	Checksum uint16
}

// DecodeUDPHeader parses a bare UDP header (no pseudo-header check) from the
// start of data.
func DecodeUDPHeader(data []byte) (UDPHeader, error) {
	var h UDPHeader
	r := edgebytes.NewReader(data)
	var err error
	if h.SrcPort, err = r.U16(); err != nil {
		return h, err
	}
	if h.DstPort, err = r.U16(); err != nil {
		return h, err
	}
	if h.Len, err = r.U16(); err != nil {
		return h, err
	}
	if h.Checksum, err = r.U16(); err != nil {
		return h, err
	}
	return h, nil
}

// udpChecksum computes the UDP checksum over a 12-byte IPv4 pseudo-header
// followed by the full UDP datagram (header+payload), treating the
// datagram's own checksum field as zero.
func udpChecksum(datagram []byte, src, dst netip.Addr) uint16 {
	var pseudo [12]byte
	w := edgebytes.NewWriter(pseudo[:])
	src4 := src.As4()
	dst4 := dst.As4()
	_, _ = w.Push(src4[:])
	_, _ = w.Push(dst4[:])
	_, _ = w.PushByte(0)
	_, _ = w.PushByte(ProtoUDP)
	_, _ = w.PushU16(uint16(len(datagram)))

	sum := edgebytes.ChecksumAccumulate(pseudo[:], -1)
	sum += edgebytes.ChecksumAccumulate(datagram, udpChecksumWord)

	return edgebytes.ChecksumFold(sum)
}

// EncodeUDPWithPayload writes a UDP header followed by the bytes produced
// by encodePayload(buf[UDPHeaderLen:]) into buf, then patches in the
// checksum computed over the IPv4 pseudo-header and the whole datagram.
// It returns the full header+payload slice.
func EncodeUDPWithPayload(buf []byte, src, dst netip.AddrPort, encodePayload func([]byte) (int, error)) ([]byte, error) {
	if len(buf) < UDPHeaderLen {
		return nil, ErrBufferOverflow
	}

	payloadLen, err := encodePayload(buf[UDPHeaderLen:])
	if err != nil {
		return nil, err
	}

	total := UDPHeaderLen + payloadLen
	w := edgebytes.NewWriter(buf[:UDPHeaderLen])
	if _, err := w.PushU16(src.Port()); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(dst.Port()); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(uint16(total)); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(0); err != nil { // checksum placeholder
		return nil, err
	}

	datagram := buf[:total]
	checksum := udpChecksum(datagram, src.Addr(), dst.Addr())
	injectChecksum(datagram, udpChecksumWord, checksum)

	return datagram, nil
}

// DecodeUDPWithPayload parses and verifies a UDP datagram, given the IPv4
// source/destination addresses it rode in on (required for checksum
// verification), and optional source/destination port filters. It returns
// (nil, nil, nil) if the ports don't match the filters. A stored checksum
// of zero is accepted without verification (the sender chose not to
// compute one; this is legal for UDP over IPv4).
func DecodeUDPWithPayload(packet []byte, src, dst netip.Addr, filterSrcPort, filterDstPort *uint16) (*UDPHeader, []byte, error) {
	h, err := DecodeUDPHeader(packet)
	if err != nil {
		return nil, nil, err
	}

	if filterSrcPort != nil && *filterSrcPort != h.SrcPort {
		return nil, nil, nil
	}
	if filterDstPort != nil && *filterDstPort != h.DstPort {
		return nil, nil, nil
	}

	length := int(h.Len)
	if len(packet) < length {
		return nil, nil, ErrDataUnderflow
	}
	datagram := packet[:length]

	if h.Checksum != 0 {
		checksum := udpChecksum(datagram, src, dst)
		if checksum != h.Checksum {
			return nil, nil, ErrInvalidChecksum
		}
	}

	return &h, datagram[UDPHeaderLen:], nil
}
