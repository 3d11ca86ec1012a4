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

// Package ipudp provides a bit-exact codec for IPv4 and UDP headers,
// including Internet checksum computation, suitable for building and
// parsing raw IPv4+UDP datagrams a caller reads from and writes to a raw
// socket or TUN device. It does not own the socket; ServeDevice relays over
// a network/ip.IPDevice.
package ipudp

import (
	"errors"
	"net/netip"

	edgebytes "github.com/Jigsaw-Code/edge-net/bytes"
)

// ErrInvalidChecksum is returned when a decoded header's checksum does not
// match the one computed over the received bytes.
var ErrInvalidChecksum = errors.New("ipudp: invalid checksum")

// ErrUnsupportedVersion is returned when decoding a non-IPv4 datagram.
var ErrUnsupportedVersion = errors.New("ipudp: unsupported IP version")

// ErrDataUnderflow is returned when the buffer is shorter than the header
// or the length it declares.
var ErrDataUnderflow = edgebytes.ErrDataUnderflow

// ErrBufferOverflow is returned when encoding does not fit the destination buffer.
var ErrBufferOverflow = edgebytes.ErrBufferOverflow

// IPv4Header is a parsed IPv4 header. Options are not modeled; HeaderLen is
// always MinIPv4HeaderLen on encode.
type IPv4Header struct {
	TOS       byte
	TotalLen  uint16
	ID        uint16
	FlagsFrag uint16
	TTL       byte
	Protocol  byte
	Checksum  uint16
	Src       netip.Addr
	Dst       netip.Addr
}

const (
	// MinIPv4HeaderLen is the size, in bytes, of an IPv4 header with no options.
	MinIPv4HeaderLen = 20
	// ipv4ChecksumWord is the big-endian 16-bit word index of the checksum field.
	ipv4ChecksumWord = 5

	// ProtoUDP is the IPv4 protocol number for UDP.
	ProtoUDP byte = 17
)

// DecodeIPv4 parses an IPv4 header from the start of data. It does not
// validate the payload length against TotalLen; callers needing the
// payload should use DecodeUDP, which does.
func DecodeIPv4(data []byte) (IPv4Header, error) {
	var h IPv4Header

	r := edgebytes.NewReader(data)
	b, err := r.Byte()
	if err != nil {
		return h, err
	}
	version := b >> 4
	if version != 4 {
		return h, ErrUnsupportedVersion
	}
	// Header length (low nibble, in 32-bit words) is assumed to be 5 (no options).

	tos, err := r.Byte()
	if err != nil {
		return h, err
	}
	h.TOS = tos

	if h.TotalLen, err = r.U16(); err != nil {
		return h, err
	}
	if h.ID, err = r.U16(); err != nil {
		return h, err
	}
	if h.FlagsFrag, err = r.U16(); err != nil {
		return h, err
	}
	ttl, err := r.Byte()
	if err != nil {
		return h, err
	}
	h.TTL = ttl
	proto, err := r.Byte()
	if err != nil {
		return h, err
	}
	h.Protocol = proto
	if h.Checksum, err = r.U16(); err != nil {
		return h, err
	}
	srcBytes, err := r.Slice(4)
	if err != nil {
		return h, err
	}
	dstBytes, err := r.Slice(4)
	if err != nil {
		return h, err
	}
	h.Src = netip.AddrFrom4([4]byte(srcBytes))
	h.Dst = netip.AddrFrom4([4]byte(dstBytes))

	checksum := ipv4Checksum(data[:MinIPv4HeaderLen])
	if checksum != h.Checksum {
		return h, ErrInvalidChecksum
	}

	return h, nil
}

// EncodeIPv4 writes h into buf (checksum recomputed) and returns the
// written header bytes.
func EncodeIPv4(buf []byte, h IPv4Header) ([]byte, error) {
	if len(buf) < MinIPv4HeaderLen {
		return nil, ErrBufferOverflow
	}

	w := edgebytes.NewWriter(buf)
	if _, err := w.PushByte(4<<4 | 5); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(h.TOS); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(h.TotalLen); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(h.ID); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(h.FlagsFrag); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(h.TTL); err != nil {
		return nil, err
	}
	if _, err := w.PushByte(h.Protocol); err != nil {
		return nil, err
	}
	if _, err := w.PushU16(0); err != nil { // checksum placeholder
		return nil, err
	}
	src4 := h.Src.As4()
	if _, err := w.Push(src4[:]); err != nil {
		return nil, err
	}
	dst4 := h.Dst.As4()
	if _, err := w.Push(dst4[:]); err != nil {
		return nil, err
	}

	hdr := buf[:MinIPv4HeaderLen]
	checksum := ipv4Checksum(hdr)
	injectChecksum(hdr, ipv4ChecksumWord, checksum)

	return hdr, nil
}

// ipv4Checksum computes the IPv4 header checksum, treating the checksum
// field itself as zero.
func ipv4Checksum(hdr []byte) uint16 {
	sum := edgebytes.ChecksumAccumulate(hdr, ipv4ChecksumWord)
	return edgebytes.ChecksumFold(sum)
}

func injectChecksum(buf []byte, word int, checksum uint16) {
	off := word * 2
	buf[off] = byte(checksum >> 8)
	buf[off+1] = byte(checksum)
}
