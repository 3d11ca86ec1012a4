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

package mdns_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/Jigsaw-Code/edge-net/mdns"
)

func testHost() mdns.Host {
	return mdns.Host{
		Name: "mydevice",
		V4:   []netip.Addr{netip.MustParseAddr("192.168.1.42")},
	}
}

func testServices() []mdns.Service {
	return []mdns.Service{
		{Instance: "My Printer", Type: "_ipp._tcp", Port: 631, TXT: []string{"txtvers=1"}},
	}
}

func mustQuestion(t *testing.T, name string, typ dnsmessage.Type) dnsmessage.Question {
	t.Helper()
	n, err := dnsmessage.NewName(name)
	require.NoError(t, err)
	return dnsmessage.Question{Name: n, Type: typ, Class: dnsmessage.ClassINET}
}

func TestRespondToHostAQuery(t *testing.T) {
	q := mustQuestion(t, "mydevice.local.", dnsmessage.TypeA)
	reply, err := mdns.Respond(42, testHost(), testServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.True(t, reply.Header.Response)
	require.Len(t, reply.Answers, 1)
	require.Equal(t, dnsmessage.TypeA, reply.Answers[0].Header.Type)
}

func TestRespondToServiceTypeQuery(t *testing.T) {
	q := mustQuestion(t, "_ipp._tcp.local.", dnsmessage.TypePTR)
	reply, err := mdns.Respond(1, testHost(), testServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)
	// PTR + SRV + TXT.
	require.Len(t, reply.Answers, 3)
	require.Equal(t, dnsmessage.TypePTR, reply.Answers[0].Header.Type)
}

func subtypedServices() []mdns.Service {
	return []mdns.Service{
		{Instance: "My Printer", Type: "_ipp._tcp", Port: 631, Subtypes: []string{"_color"}, TXT: []string{"txtvers=1"}},
	}
}

func TestRespondToServiceSubtypeQuery(t *testing.T) {
	q := mustQuestion(t, "_color._sub._ipp._tcp.local.", dnsmessage.TypePTR)
	reply, err := mdns.Respond(1, testHost(), subtypedServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var subPTR bool
	for _, ans := range reply.Answers {
		if ans.Header.Type == dnsmessage.TypePTR && ans.Header.Name.String() == "_color._sub._ipp._tcp.local." {
			ptr := ans.Body.(*dnsmessage.PTRResource)
			require.Equal(t, "My Printer._ipp._tcp.local.", ptr.PTR.String())
			subPTR = true
		}
	}
	require.True(t, subPTR)
}

func TestServicesMetaQueryEnumeratesSubtypes(t *testing.T) {
	q := mustQuestion(t, "_services._dns-sd._udp.local.", dnsmessage.TypePTR)
	reply, err := mdns.Respond(1, testHost(), subtypedServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)
	// One PTR for the base type, one per subtype.
	require.Len(t, reply.Answers, 2)

	var targets []string
	for _, ans := range reply.Answers {
		targets = append(targets, ans.Body.(*dnsmessage.PTRResource).PTR.String())
	}
	require.ElementsMatch(t, []string{"_ipp._tcp.local.", "_color._sub._ipp._tcp.local."}, targets)
}

func TestRespondToServiceInstanceQuery(t *testing.T) {
	q := mustQuestion(t, "My Printer._ipp._tcp.local.", dnsmessage.TypeSRV)
	reply, err := mdns.Respond(1, testHost(), testServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)
	// SRV + TXT + host A record.
	require.Len(t, reply.Answers, 3)
}

func TestRespondToServicesMetaQuery(t *testing.T) {
	q := mustQuestion(t, "_services._dns-sd._udp.local.", dnsmessage.TypePTR)
	reply, err := mdns.Respond(1, testHost(), testServices(), q)
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Len(t, reply.Answers, 1)
}

func TestRespondIgnoresUnrelatedQuery(t *testing.T) {
	q := mustQuestion(t, "someoneelse.local.", dnsmessage.TypeA)
	reply, err := mdns.Respond(1, testHost(), testServices(), q)
	require.NoError(t, err)
	require.Nil(t, reply)
}

func TestBroadcastIncludesAllRecords(t *testing.T) {
	msg, err := mdns.Broadcast(0, testHost(), testServices())
	require.NoError(t, err)
	require.True(t, msg.Header.Response)
	// host A + PTR + SRV + TXT + services-meta PTR.
	require.Len(t, msg.Answers, 5)
}

func TestBroadcastIncludesSubtypeRecords(t *testing.T) {
	msg, err := mdns.Broadcast(0, testHost(), subtypedServices())
	require.NoError(t, err)
	// host A + type PTR + subtype PTR + SRV + TXT + 2 services-meta PTRs.
	require.Len(t, msg.Answers, 7)
}
