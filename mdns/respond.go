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

package mdns

import (
	"strings"

	"golang.org/x/net/dns/dnsmessage"
)

func sameName(a, b dnsmessage.Name) bool {
	return strings.EqualFold(a.String(), b.String())
}

// matchesHost reports whether q asks about host's own name or address
// records.
func matchesHost(q dnsmessage.Question, host Host) (bool, error) {
	name, err := host.fqdn()
	if err != nil {
		return false, err
	}
	if !sameName(q.Name, name) {
		return false, nil
	}
	switch q.Type {
	case dnsmessage.TypeA, dnsmessage.TypeAAAA, dnsmessage.TypeALL:
		return true, nil
	default:
		return false, nil
	}
}

func matchesServiceInstance(q dnsmessage.Question, svc Service) (bool, error) {
	name, err := svc.instanceFQDN()
	if err != nil {
		return false, err
	}
	if !sameName(q.Name, name) {
		return false, nil
	}
	switch q.Type {
	case dnsmessage.TypeSRV, dnsmessage.TypeTXT, dnsmessage.TypeALL:
		return true, nil
	default:
		return false, nil
	}
}

func matchesServiceType(q dnsmessage.Question, svc Service) (bool, error) {
	name, err := svc.typeFQDN()
	if err != nil {
		return false, err
	}
	return sameName(q.Name, name) && q.Type == dnsmessage.TypePTR, nil
}

func matchesServiceSubtype(q dnsmessage.Question, svc Service) (bool, error) {
	if q.Type != dnsmessage.TypePTR {
		return false, nil
	}
	for _, subtype := range svc.Subtypes {
		name, err := svc.subtypeFQDN(subtype)
		if err != nil {
			return false, err
		}
		if sameName(q.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func matchesServicesMeta(q dnsmessage.Question) (bool, error) {
	name, err := dnsmessage.NewName(servicesMetaQuery)
	if err != nil {
		return false, err
	}
	return sameName(q.Name, name) && q.Type == dnsmessage.TypePTR, nil
}

// Respond builds the answer message for a single question q against host
// and its services. It returns (nil, nil) if nothing here answers the
// question, matching the "silently ignore what you don't own" rule mDNS
// responders follow.
func Respond(id uint16, host Host, services []Service, q dnsmessage.Question) (*dnsmessage.Message, error) {
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: id, Response: true, Authoritative: true})
	if err := b.StartAnswers(); err != nil {
		return nil, err
	}

	answered := false

	if ok, err := matchesHost(q, host); err != nil {
		return nil, err
	} else if ok {
		if err := appendHostAddresses(&b, host); err != nil {
			return nil, err
		}
		answered = true
	}

	for _, svc := range services {
		if ok, err := matchesServiceInstance(q, svc); err != nil {
			return nil, err
		} else if ok {
			instName, _ := svc.instanceFQDN()
			hostName, _ := host.fqdn()
			rh := dnsmessage.ResourceHeader{Name: instName, Class: dnsmessage.ClassINET, TTL: svc.ttl()}
			if err := b.SRVResource(rh, dnsmessage.SRVResource{Port: svc.Port, Target: hostName}); err != nil {
				return nil, err
			}
			txt := svc.TXT
			if len(txt) == 0 {
				txt = []string{""}
			}
			if err := b.TXTResource(rh, dnsmessage.TXTResource{TXT: txt}); err != nil {
				return nil, err
			}
			if err := appendHostAddresses(&b, host); err != nil {
				return nil, err
			}
			answered = true
			continue
		}
		if ok, err := matchesServiceType(q, svc); err != nil {
			return nil, err
		} else if ok {
			if err := appendServiceRecords(&b, host, svc); err != nil {
				return nil, err
			}
			answered = true
			continue
		}
		if ok, err := matchesServiceSubtype(q, svc); err != nil {
			return nil, err
		} else if ok {
			if err := appendServiceRecords(&b, host, svc); err != nil {
				return nil, err
			}
			answered = true
		}
	}

	if ok, err := matchesServicesMeta(q); err != nil {
		return nil, err
	} else if ok {
		if err := appendServicesMeta(&b, services, host.ttl()); err != nil {
			return nil, err
		}
		answered = true
	}

	if !answered {
		return nil, nil
	}

	msg, err := b.Finish()
	if err != nil {
		return nil, err
	}
	var out dnsmessage.Message
	if err := out.Unpack(msg); err != nil {
		return nil, err
	}
	return &out, nil
}

// Broadcast builds the unsolicited announcement message sent periodically
// and on startup: every address record for host, plus every record for
// every advertised service (RFC 6762 §8.3).
func Broadcast(id uint16, host Host, services []Service) (*dnsmessage.Message, error) {
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: id, Response: true, Authoritative: true})
	if err := b.StartAnswers(); err != nil {
		return nil, err
	}
	if err := appendHostAddresses(&b, host); err != nil {
		return nil, err
	}
	for _, svc := range services {
		if err := appendServiceRecords(&b, host, svc); err != nil {
			return nil, err
		}
	}
	if len(services) > 0 {
		if err := appendServicesMeta(&b, services, host.ttl()); err != nil {
			return nil, err
		}
	}

	msg, err := b.Finish()
	if err != nil {
		return nil, err
	}
	var out dnsmessage.Message
	if err := out.Unpack(msg); err != nil {
		return nil, err
	}
	return &out, nil
}
