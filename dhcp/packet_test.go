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

package dhcp_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/dhcp"
)

func mac(b6 byte) [6]byte {
	return [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, b6}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	yiaddr := netip.MustParseAddr("192.168.0.50")
	p := dhcp.Packet{
		Reply:  true,
		Xid:    0x11223344,
		YIAddr: yiaddr,
		CHAddr: func() [16]byte { var c [16]byte; m := mac(1); copy(c[:], m[:]); return c }(),
		Options: dhcp.BuiltOptions{
			{Code: dhcp.OptMessageType, Data: []byte{byte(dhcp.MessageTypeOffer)}},
			{Code: dhcp.OptLeaseTime, Data: []byte{0, 0, 0x1c, 0x20}}, // 7200
		},
	}

	buf := make([]byte, 1024)
	encoded, err := dhcp.Encode(buf, p)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(encoded), dhcp.MinPacketLen)

	decoded, err := dhcp.Decode(encoded)
	require.NoError(t, err)
	require.True(t, decoded.Reply)
	require.Equal(t, uint32(0x11223344), decoded.Xid)
	require.Equal(t, yiaddr, decoded.YIAddr)

	mt, ok := dhcp.MessageTypeOf(decoded.Options)
	require.True(t, ok)
	require.Equal(t, dhcp.MessageTypeOffer, mt)

	lease, ok := dhcp.LeaseTimeOf(decoded.Options)
	require.True(t, ok)
	require.EqualValues(t, 7200, lease)
}

func TestEncodeUnsetAddressFieldsAsZero(t *testing.T) {
	// Discover leaves every address field as the zero netip.Addr; those
	// must encode as 0.0.0.0 rather than panicking.
	p := dhcp.Discover(mac(1), 0, netip.Addr{})

	buf := make([]byte, 1024)
	encoded, err := dhcp.Encode(buf, p)
	require.NoError(t, err)

	decoded, err := dhcp.Decode(encoded)
	require.NoError(t, err)
	for _, addr := range []netip.Addr{decoded.CIAddr, decoded.YIAddr, decoded.SIAddr, decoded.GIAddr} {
		require.True(t, addr.IsUnspecified())
	}
}

func TestDecodeRejectsBadHlen(t *testing.T) {
	buf := make([]byte, dhcp.MinPacketLen)
	buf[2] = 4 // hlen
	copy(buf[236:240], dhcp.MagicCookie[:])
	_, err := dhcp.Decode(buf)
	require.ErrorIs(t, err, dhcp.ErrInvalidHlen)
}

func TestDecodeRejectsMissingCookie(t *testing.T) {
	buf := make([]byte, dhcp.MinPacketLen)
	buf[2] = 6 // hlen
	_, err := dhcp.Decode(buf)
	require.ErrorIs(t, err, dhcp.ErrMissingCookie)
}

func TestClientID(t *testing.T) {
	p := dhcp.NewReply(dhcp.Packet{CHAddr: func() [16]byte { var c [16]byte; m := mac(9); copy(c[:], m[:]); return c }()}, nil)
	require.Equal(t, mac(9), p.ClientID())
}
