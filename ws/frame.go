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

// Package ws implements the RFC 6455 WebSocket frame codec and the
// handshake helpers needed to upgrade an HTTP/1.1 connection to it.
package ws

import (
	"errors"

	edgebytes "github.com/Jigsaw-Code/edge-net/bytes"
)

// FrameType is a WebSocket frame's opcode.
type FrameType byte

const (
	FrameTypeContinue FrameType = 0x0
	FrameTypeText     FrameType = 0x1
	FrameTypeBinary   FrameType = 0x2
	FrameTypeClose    FrameType = 0x8
	FrameTypePing     FrameType = 0x9
	FrameTypePong     FrameType = 0xA
)

// IsControl reports whether t is a control frame (close/ping/pong), which
// per RFC 6455 must not be fragmented and is capped at 125 bytes of payload.
func (t FrameType) IsControl() bool {
	return t&0x8 != 0
}

var (
	// ErrInvalidOpcode is returned when a frame header carries an opcode
	// not defined by RFC 6455.
	ErrInvalidOpcode = errors.New("ws: invalid opcode")
	// ErrControlFrameTooLarge is returned when a control frame's declared
	// payload length exceeds 125 bytes.
	ErrControlFrameTooLarge = errors.New("ws: control frame payload exceeds 125 bytes")
	// ErrFragmentedControlFrame is returned when a control frame is marked
	// as not final (FIN=0); control frames cannot be fragmented.
	ErrFragmentedControlFrame = errors.New("ws: control frame must not be fragmented")
	// ErrReservedBitsSet is returned when a frame header has any of the
	// RSV1-RSV3 bits set without an extension negotiated to define them.
	ErrReservedBitsSet = errors.New("ws: reserved bits must be zero")
)

// FrameHeader is a decoded or to-be-encoded WebSocket frame header (RFC
// 6455 §5.2), excluding the payload itself.
type FrameHeader struct {
	FIN     bool
	Type    FrameType
	Mask    bool
	MaskKey [4]byte
	// Len is the payload length in bytes, as declared by the header.
	Len uint64
}

func validOpcode(b byte) bool {
	switch FrameType(b) {
	case FrameTypeContinue, FrameTypeText, FrameTypeBinary, FrameTypeClose, FrameTypePing, FrameTypePong:
		return true
	default:
		return false
	}
}

// DecodeHeader parses a FrameHeader off the front of buf, returning it along
// with the number of header bytes consumed. It does not read the payload.
func DecodeHeader(buf []byte) (FrameHeader, int, error) {
	var h FrameHeader
	r := edgebytes.NewReader(buf)

	b0, err := r.Byte()
	if err != nil {
		return h, 0, err
	}
	h.FIN = b0&0x80 != 0
	if b0&0x70 != 0 {
		return h, 0, ErrReservedBitsSet
	}
	opcode := b0 & 0x0F
	if !validOpcode(opcode) {
		return h, 0, ErrInvalidOpcode
	}
	h.Type = FrameType(opcode)

	b1, err := r.Byte()
	if err != nil {
		return h, 0, err
	}
	h.Mask = b1&0x80 != 0
	lenField := b1 & 0x7F

	switch {
	case lenField < 126:
		h.Len = uint64(lenField)
	case lenField == 126:
		v, err := r.U16()
		if err != nil {
			return h, 0, err
		}
		h.Len = uint64(v)
	default: // 127
		hi, err := r.U32()
		if err != nil {
			return h, 0, err
		}
		lo, err := r.U32()
		if err != nil {
			return h, 0, err
		}
		h.Len = uint64(hi)<<32 | uint64(lo)
	}

	if h.Mask {
		key, err := r.Slice(4)
		if err != nil {
			return h, 0, err
		}
		copy(h.MaskKey[:], key)
	}

	if h.Type.IsControl() {
		if h.Len > 125 {
			return h, 0, ErrControlFrameTooLarge
		}
		if !h.FIN {
			return h, 0, ErrFragmentedControlFrame
		}
	}

	return h, r.Len(), nil
}

// EncodedLen returns the number of bytes EncodeHeader writes for h.
func EncodedLen(h FrameHeader) int {
	n := 2
	switch {
	case h.Len < 126:
	case h.Len <= 0xFFFF:
		n += 2
	default:
		n += 8
	}
	if h.Mask {
		n += 4
	}
	return n
}

// EncodeHeader writes h into buf, which must be at least EncodedLen(h)
// bytes, returning the bytes written.
func EncodeHeader(buf []byte, h FrameHeader) ([]byte, error) {
	if h.Type.IsControl() {
		if h.Len > 125 {
			return nil, ErrControlFrameTooLarge
		}
		if !h.FIN {
			return nil, ErrFragmentedControlFrame
		}
	}

	w := edgebytes.NewWriter(buf)

	b0 := byte(h.Type)
	if h.FIN {
		b0 |= 0x80
	}
	if _, err := w.PushByte(b0); err != nil {
		return nil, err
	}

	b1 := byte(0)
	if h.Mask {
		b1 |= 0x80
	}
	switch {
	case h.Len < 126:
		b1 |= byte(h.Len)
		if _, err := w.PushByte(b1); err != nil {
			return nil, err
		}
	case h.Len <= 0xFFFF:
		b1 |= 126
		if _, err := w.PushByte(b1); err != nil {
			return nil, err
		}
		if _, err := w.PushU16(uint16(h.Len)); err != nil {
			return nil, err
		}
	default:
		b1 |= 127
		if _, err := w.PushByte(b1); err != nil {
			return nil, err
		}
		if _, err := w.PushU32(uint32(h.Len >> 32)); err != nil {
			return nil, err
		}
		if _, err := w.PushU32(uint32(h.Len)); err != nil {
			return nil, err
		}
	}

	if h.Mask {
		if _, err := w.Push(h.MaskKey[:]); err != nil {
			return nil, err
		}
	}

	return w.Bytes(), nil
}

// MaskUnmask XORs data in place with key, cycling the 4-byte key starting
// at offset (the number of mask-cycle bytes already consumed by a prior
// call on the same logical stream). It is its own inverse: the same
// operation both masks and unmasks.
func MaskUnmask(data []byte, key [4]byte, offset int) {
	for i := range data {
		data[i] ^= key[(offset+i)%4]
	}
}

// maskScratchLen is the size of the bounded scratch buffer streaming
// helpers use to mask/unmask a payload in fixed-size chunks rather than
// allocating one buffer the size of the whole payload.
const maskScratchLen = 32
