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
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Jigsaw-Code/edge-net/ipudp"
)

// fakeDevice is an in-memory ip.IPDevice: inbound packets are fed through
// in, and every WritePacket is appended to written for the test to inspect.
type fakeDevice struct {
	in      chan []byte
	written chan []byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		in:      make(chan []byte, 4),
		written: make(chan []byte, 4),
	}
}

func (d *fakeDevice) Close() error { return nil }

func (d *fakeDevice) ReadPacket(ctx context.Context) ([]byte, error) {
	select {
	case p := <-d.in:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDevice) WritePacket(ctx context.Context, b []byte) error {
	out := append([]byte(nil), b...)
	select {
	case d.written <- out:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildDatagram(t *testing.T, src, dst netip.AddrPort, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 1500)
	datagram, err := ipudp.EncodeUDP(buf, src, dst, 64, func(p []byte) (int, error) {
		return copy(p, payload), nil
	})
	require.NoError(t, err)
	return append([]byte(nil), datagram...)
}

func TestServeDeviceRelaysReplyToCorrectPort(t *testing.T) {
	dev := newFakeDevice()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- ipudp.ServeDevice(ctx, dev, 67, 64, func(src, dst netip.AddrPort, payload []byte) ([]byte, bool) {
			require.Equal(t, "request", string(payload))
			return []byte("reply"), true
		})
	}()

	client := netip.MustParseAddrPort("192.168.1.50:68")
	server := netip.MustParseAddrPort("192.168.1.1:67")
	dev.in <- buildDatagram(t, client, server, []byte("request"))

	select {
	case out := <-dev.written:
		from, to, payload, err := ipudp.DecodeUDP(out, nil, nil)
		require.NoError(t, err)
		require.Equal(t, server, from)
		require.Equal(t, client, to)
		require.Equal(t, "reply", string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ServeDevice to write a reply")
	}

	cancel()
	require.NoError(t, <-serveDone)
}

func TestServeDeviceSendsNothingWhenHandlerDeclines(t *testing.T) {
	dev := newFakeDevice()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- ipudp.ServeDevice(ctx, dev, 67, 64, func(src, dst netip.AddrPort, payload []byte) ([]byte, bool) {
			return nil, false
		})
	}()

	client := netip.MustParseAddrPort("192.168.1.50:68")
	server := netip.MustParseAddrPort("192.168.1.1:67")
	dev.in <- buildDatagram(t, client, server, []byte("request"))

	select {
	case out := <-dev.written:
		t.Fatalf("unexpected write when handler declined: %v", out)
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	require.NoError(t, <-serveDone)
}

func TestServeDeviceStopsOnContextDone(t *testing.T) {
	dev := newFakeDevice()
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- ipudp.ServeDevice(ctx, dev, 67, 64, func(src, dst netip.AddrPort, payload []byte) ([]byte, bool) {
			return nil, false
		})
	}()

	cancel()
	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeDevice did not return after ctx cancellation")
	}
}
