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
	"encoding/binary"
	"net/netip"

	edgebytes "github.com/Jigsaw-Code/edge-net/bytes"
)

// OptionCode identifies a DHCP option's wire-format code (RFC 2132).
type OptionCode byte

const (
	OptSubnetMask           OptionCode = 1
	OptRouter               OptionCode = 3
	OptDNS                  OptionCode = 6
	OptHostName             OptionCode = 12
	OptRequestedIP          OptionCode = 50
	OptLeaseTime            OptionCode = 51
	OptMessageType          OptionCode = 53
	OptServerIdentifier     OptionCode = 54
	OptParameterRequestList OptionCode = 55
	OptMessage              OptionCode = 56

	optPad = 0
	optEnd = 255
)

// Option is a single decoded or to-be-encoded DHCP option: a code plus its
// raw payload bytes, exactly as they appear on the wire.
type Option struct {
	Code OptionCode
	Data []byte
}

// Options is the polymorphic option view described in the design notes: it
// can be backed either by a raw byte slice read off the wire (RawOptions)
// or by an in-memory slice built by the caller (BuiltOptions). Both are
// iterated the same way.
type Options interface {
	// All calls yield for every option in order, stopping early if yield
	// returns false. Malformed trailing bytes are silently ignored, mirroring
	// the wire decoder's tolerance for a packet that ends mid-option.
	All(yield func(Option) bool)
}

// RawOptions iterates options lazily out of a borrowed options-section byte
// slice (everything after the magic cookie, trailing padding included; PAD
// bytes are skipped and iteration stops at END), without allocating.
type RawOptions []byte

var _ Options = RawOptions(nil)

func (o RawOptions) All(yield func(Option) bool) {
	r := edgebytes.NewReader(o)
	for {
		code, err := r.Byte()
		if err != nil || OptionCode(code) == optEnd {
			return
		}
		if OptionCode(code) == optPad {
			continue
		}

		length, err := r.Byte()
		if err != nil {
			return
		}
		data, err := r.Slice(int(length))
		if err != nil {
			return
		}

		if !yield(Option{Code: OptionCode(code), Data: data}) {
			return
		}
	}
}

// BuiltOptions iterates a slice of options constructed in memory for encoding.
type BuiltOptions []Option

var _ Options = BuiltOptions(nil)

func (o BuiltOptions) All(yield func(Option) bool) {
	for _, opt := range o {
		if !yield(opt) {
			return
		}
	}
}

// Lookup returns the first option with the given code.
func Lookup(opts Options, code OptionCode) (Option, bool) {
	var found Option
	var ok bool
	opts.All(func(o Option) bool {
		if o.Code == code {
			found, ok = o, true
			return false
		}
		return true
	})
	return found, ok
}

// MessageTypeOf extracts the MessageType option, if present.
func MessageTypeOf(opts Options) (MessageType, bool) {
	opt, ok := Lookup(opts, OptMessageType)
	if !ok || len(opt.Data) != 1 {
		return 0, false
	}
	return MessageType(opt.Data[0]), true
}

// AddrOptionOf extracts a 4-byte IPv4 address option, such as
// OptRequestedIP or OptServerIdentifier.
func AddrOptionOf(opts Options, code OptionCode) (netip.Addr, bool) {
	opt, ok := Lookup(opts, code)
	if !ok || len(opt.Data) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte(opt.Data)), true
}

// AddrListOptionOf extracts a list of 4-byte IPv4 addresses, such as
// OptRouter or OptDNS.
func AddrListOptionOf(opts Options, code OptionCode) ([]netip.Addr, bool) {
	opt, ok := Lookup(opts, code)
	if !ok || len(opt.Data)%4 != 0 || len(opt.Data) == 0 {
		return nil, false
	}
	addrs := make([]netip.Addr, 0, len(opt.Data)/4)
	for i := 0; i < len(opt.Data); i += 4 {
		addrs = append(addrs, netip.AddrFrom4([4]byte(opt.Data[i:i+4])))
	}
	return addrs, true
}

// LeaseTimeOf extracts the IP address lease time option, in seconds.
func LeaseTimeOf(opts Options) (uint32, bool) {
	opt, ok := Lookup(opts, OptLeaseTime)
	if !ok || len(opt.Data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(opt.Data), true
}

// MessageOf extracts a human-readable error/status message option (code 56).
func MessageOf(opts Options) (string, bool) {
	opt, ok := Lookup(opts, OptMessage)
	if !ok {
		return "", false
	}
	return string(opt.Data), true
}

// addr4 is addr as 4 wire bytes, treating the zero netip.Addr as 0.0.0.0
// so unset packet fields encode without panicking.
func addr4(addr netip.Addr) [4]byte {
	if !addr.IsValid() {
		return [4]byte{}
	}
	return addr.As4()
}

func addrOption(code OptionCode, addr netip.Addr) Option {
	a4 := addr4(addr)
	return Option{Code: code, Data: append([]byte(nil), a4[:]...)}
}

func addrListOption(code OptionCode, addrs []netip.Addr) Option {
	data := make([]byte, 0, len(addrs)*4)
	for _, a := range addrs {
		a4 := addr4(a)
		data = append(data, a4[:]...)
	}
	return Option{Code: code, Data: data}
}

func u32Option(code OptionCode, v uint32) Option {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return Option{Code: code, Data: b[:]}
}

func messageTypeOption(mt MessageType) Option {
	return Option{Code: OptMessageType, Data: []byte{byte(mt)}}
}

// EncodeOptions writes every option in opts as code+length+payload TLVs,
// followed by the END marker (0xFF). It does not pad to the minimum packet
// length; the packet-level encoder does that.
func EncodeOptions(w *edgebytes.Writer, opts Options) error {
	var encErr error
	opts.All(func(o Option) bool {
		if _, err := w.PushByte(byte(o.Code)); err != nil {
			encErr = err
			return false
		}
		if _, err := w.PushByte(byte(len(o.Data))); err != nil {
			encErr = err
			return false
		}
		if _, err := w.Push(o.Data); err != nil {
			encErr = err
			return false
		}
		return true
	})
	if encErr != nil {
		return encErr
	}
	_, err := w.PushByte(optEnd)
	return err
}
