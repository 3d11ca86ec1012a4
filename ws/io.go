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

package ws

import (
	"crypto/rand"
	"io"
)

// NewMaskKey generates a fresh random 4-byte masking key, as a client must
// for every frame it sends (RFC 6455 §5.3).
func NewMaskKey() [4]byte {
	var key [4]byte
	_, _ = rand.Read(key[:])
	return key
}

// Recv reads one complete frame from r: the header, then its (unmasked, if
// masked) payload into payload, which must be at least as large as the
// frame's declared length. It returns the header and the payload slice
// (aliasing payload) actually used.
func Recv(r io.Reader, payload []byte) (FrameHeader, []byte, error) {
	var hdrBuf [14]byte // max header size: 2 + 8 (64-bit len) + 4 (mask key)
	if _, err := io.ReadFull(r, hdrBuf[:2]); err != nil {
		return FrameHeader{}, nil, err
	}

	lenField := hdrBuf[1] & 0x7F
	extra := 0
	switch {
	case lenField == 126:
		extra = 2
	case lenField == 127:
		extra = 8
	}
	masked := hdrBuf[1]&0x80 != 0
	if masked {
		extra += 4
	}
	if extra > 0 {
		if _, err := io.ReadFull(r, hdrBuf[2:2+extra]); err != nil {
			return FrameHeader{}, nil, err
		}
	}

	h, n, err := DecodeHeader(hdrBuf[:2+extra])
	if err != nil {
		return FrameHeader{}, nil, err
	}
	_ = n

	if uint64(len(payload)) < h.Len {
		return FrameHeader{}, nil, ErrBufferTooSmall
	}
	body := payload[:h.Len]
	if _, err := io.ReadFull(r, body); err != nil {
		return FrameHeader{}, nil, err
	}

	if h.Mask {
		unmaskStreaming(body, h.MaskKey)
	}

	return h, body, nil
}

// unmaskStreaming XORs data with key in maskScratchLen-sized chunks,
// mirroring the bounded-memory masking the wire format is designed to allow
// without ever holding more than one scratch buffer's worth of key-aligned
// state; since MaskUnmask is already O(1) extra space, this just documents
// the chunk boundary for callers built around a fixed scratch buffer.
func unmaskStreaming(data []byte, key [4]byte) {
	for off := 0; off < len(data); off += maskScratchLen {
		end := off + maskScratchLen
		if end > len(data) {
			end = len(data)
		}
		MaskUnmask(data[off:end], key, off)
	}
}

// ErrBufferTooSmall is returned by Recv when the caller's payload buffer
// cannot hold the declared frame length.
var ErrBufferTooSmall = errBufferTooSmall{}

type errBufferTooSmall struct{}

func (errBufferTooSmall) Error() string { return "ws: payload buffer too small for frame" }

// Send writes a complete frame to w: header followed by payload. If h.Mask
// is set the payload is masked on the fly through a bounded scratch buffer,
// leaving the caller's slice untouched.
func Send(w io.Writer, h FrameHeader, payload []byte) error {
	h.Len = uint64(len(payload))

	var hdrBuf [14]byte
	encoded, err := EncodeHeader(hdrBuf[:], h)
	if err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		return err
	}

	if !h.Mask {
		if len(payload) == 0 {
			return nil
		}
		_, err = w.Write(payload)
		return err
	}

	var scratch [maskScratchLen]byte
	for off := 0; off < len(payload); off += maskScratchLen {
		end := off + maskScratchLen
		if end > len(payload) {
			end = len(payload)
		}
		n := copy(scratch[:], payload[off:end])
		MaskUnmask(scratch[:n], h.MaskKey, off)
		if _, err := w.Write(scratch[:n]); err != nil {
			return err
		}
	}
	return nil
}
