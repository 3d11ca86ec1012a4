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

package ipudp_test

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/ipudp"
)

func TestEncodeUDPDecodedByGopacket(t *testing.T) {
	src := netip.MustParseAddrPort("192.168.1.10:12345")
	// A port gopacket maps to no application layer, so the payload stays opaque.
	dst := netip.MustParseAddrPort("192.168.1.1:40000")
	payload := []byte("hello dhcp world")

	buf := make([]byte, 1500)
	datagram, err := ipudp.EncodeUDP(buf, src, dst, 64, func(p []byte) (int, error) {
		return copy(p, payload), nil
	})
	require.NoError(t, err)

	packet := gopacket.NewPacket(datagram, layers.LayerTypeIPv4, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())

	ipLayer, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	require.Equal(t, net.ParseIP("192.168.1.10").To4(), ipLayer.SrcIP.To4())
	require.Equal(t, net.ParseIP("192.168.1.1").To4(), ipLayer.DstIP.To4())
	require.Equal(t, layers.IPProtocolUDP, ipLayer.Protocol)

	udpLayer, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	require.EqualValues(t, 12345, udpLayer.SrcPort)
	require.EqualValues(t, 40000, udpLayer.DstPort)
	require.Equal(t, payload, udpLayer.Payload)
}

func TestDecodeUDPBuiltByGopacket(t *testing.T) {
	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      32,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP("10.0.0.5").To4(),
		DstIP:    net.ParseIP("10.0.0.1").To4(),
	}
	udpLayer := &layers.UDP{
		SrcPort: layers.UDPPort(68),
		DstPort: layers.UDPPort(67),
	}
	require.NoError(t, udpLayer.SetNetworkLayerForChecksum(ipLayer))

	payload := gopacket.Payload([]byte("dhcp-discover"))

	serializeBuf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(serializeBuf, opts, ipLayer, udpLayer, payload))

	srcAddr, dstAddr, gotPayload, err := ipudp.DecodeUDP(serializeBuf.Bytes(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5:68", srcAddr.String())
	require.Equal(t, "10.0.0.1:67", dstAddr.String())
	require.Equal(t, []byte("dhcp-discover"), gotPayload)
}

func TestDecodeUDPPortFilter(t *testing.T) {
	src := netip.MustParseAddrPort("10.0.0.5:68")
	dst := netip.MustParseAddrPort("10.0.0.1:67")
	buf := make([]byte, 100)
	datagram, err := ipudp.EncodeUDP(buf, src, dst, 64, func(p []byte) (int, error) {
		return copy(p, []byte("x")), nil
	})
	require.NoError(t, err)

	wrongPort := uint16(9999)
	_, _, payload, err := ipudp.DecodeUDP(datagram, &wrongPort, nil)
	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestDecodeUDPInvalidChecksum(t *testing.T) {
	src := netip.MustParseAddrPort("10.0.0.5:68")
	dst := netip.MustParseAddrPort("10.0.0.1:67")
	buf := make([]byte, 100)
	datagram, err := ipudp.EncodeUDP(buf, src, dst, 64, func(p []byte) (int, error) {
		return copy(p, []byte("x")), nil
	})
	require.NoError(t, err)

	corrupted := append([]byte(nil), datagram...)
	corrupted[len(corrupted)-1] ^= 0xff

	_, _, _, err = ipudp.DecodeUDP(corrupted, nil, nil)
	require.ErrorIs(t, err, ipudp.ErrInvalidChecksum)
}
