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

// Package mdns composes mDNS (RFC 6762) answer and announcement messages
// for a host and the services it advertises, using
// golang.org/x/net/dns/dnsmessage as the message builder.
package mdns

import (
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/net/dns/dnsmessage"
)

// DefaultTTL is the record TTL used for answers and announcements when a
// Host/Service does not override it, per RFC 6762 §10's recommended 120s
// for hostname/service records that may change.
const DefaultTTL = 120 * time.Second

// Host is the mDNS-advertised identity of this machine: its ".local"
// hostname and the addresses it resolves to.
type Host struct {
	// Name is the bare hostname, without the ".local" suffix.
	Name string
	V4   []netip.Addr
	V6   []netip.Addr
	TTL  time.Duration
}

func (h Host) fqdn() (dnsmessage.Name, error) {
	return dnsmessage.NewName(h.Name + ".local.")
}

func (h Host) ttl() uint32 {
	if h.TTL == 0 {
		return uint32(DefaultTTL.Seconds())
	}
	return uint32(h.TTL.Seconds())
}

// Service is one DNS-SD service instance advertised alongside a Host, e.g.
// Instance="My Printer", Type="_ipp._tcp".
type Service struct {
	Instance string
	Type     string
	Port     uint16
	// Subtypes are DNS-SD service subtypes (RFC 6763 §7.1), advertised as
	// "<subtype>._sub.<Type>.local" alongside the base type.
	Subtypes []string
	TXT      []string
	TTL      time.Duration
}

// servicesMetaQuery is the well-known DNS-SD service-enumeration name.
const servicesMetaQuery = "_services._dns-sd._udp.local."

func (s Service) typeFQDN() (dnsmessage.Name, error) {
	return dnsmessage.NewName(s.Type + ".local.")
}

func (s Service) instanceFQDN() (dnsmessage.Name, error) {
	return dnsmessage.NewName(s.Instance + "." + s.Type + ".local.")
}

func (s Service) subtypeFQDN(subtype string) (dnsmessage.Name, error) {
	return dnsmessage.NewName(subtype + "._sub." + s.Type + ".local.")
}

func (s Service) ttl() uint32 {
	if s.TTL == 0 {
		return uint32(DefaultTTL.Seconds())
	}
	return uint32(s.TTL.Seconds())
}

func appendHostAddresses(b *dnsmessage.Builder, host Host) error {
	name, err := host.fqdn()
	if err != nil {
		return fmt.Errorf("mdns: invalid host name %q: %w", host.Name, err)
	}
	ttl := host.ttl()

	for _, addr := range host.V4 {
		if !addr.Is4() {
			continue
		}
		rh := dnsmessage.ResourceHeader{Name: name, Class: dnsmessage.ClassINET, TTL: ttl}
		if err := b.AResource(rh, dnsmessage.AResource{A: addr.As4()}); err != nil {
			return err
		}
	}
	for _, addr := range host.V6 {
		if !addr.Is6() {
			continue
		}
		rh := dnsmessage.ResourceHeader{Name: name, Class: dnsmessage.ClassINET, TTL: ttl}
		if err := b.AAAAResource(rh, dnsmessage.AAAAResource{AAAA: addr.As16()}); err != nil {
			return err
		}
	}
	return nil
}

func appendServiceRecords(b *dnsmessage.Builder, host Host, svc Service) error {
	hostName, err := host.fqdn()
	if err != nil {
		return err
	}
	typeName, err := svc.typeFQDN()
	if err != nil {
		return fmt.Errorf("mdns: invalid service type %q: %w", svc.Type, err)
	}
	instName, err := svc.instanceFQDN()
	if err != nil {
		return fmt.Errorf("mdns: invalid service instance %q: %w", svc.Instance, err)
	}
	ttl := svc.ttl()

	if err := b.PTRResource(
		dnsmessage.ResourceHeader{Name: typeName, Class: dnsmessage.ClassINET, TTL: ttl},
		dnsmessage.PTRResource{PTR: instName},
	); err != nil {
		return err
	}

	for _, subtype := range svc.Subtypes {
		subName, err := svc.subtypeFQDN(subtype)
		if err != nil {
			return fmt.Errorf("mdns: invalid service subtype %q: %w", subtype, err)
		}
		if err := b.PTRResource(
			dnsmessage.ResourceHeader{Name: subName, Class: dnsmessage.ClassINET, TTL: ttl},
			dnsmessage.PTRResource{PTR: instName},
		); err != nil {
			return err
		}
	}

	if err := b.SRVResource(
		dnsmessage.ResourceHeader{Name: instName, Class: dnsmessage.ClassINET, TTL: ttl},
		dnsmessage.SRVResource{Priority: 0, Weight: 0, Port: svc.Port, Target: hostName},
	); err != nil {
		return err
	}

	txt := svc.TXT
	if len(txt) == 0 {
		txt = []string{""}
	}
	if err := b.TXTResource(
		dnsmessage.ResourceHeader{Name: instName, Class: dnsmessage.ClassINET, TTL: ttl},
		dnsmessage.TXTResource{TXT: txt},
	); err != nil {
		return err
	}

	return nil
}

func appendServicesMeta(b *dnsmessage.Builder, svcs []Service, ttl uint32) error {
	metaName, err := dnsmessage.NewName(servicesMetaQuery)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, svc := range svcs {
		if seen[svc.Type] {
			continue
		}
		seen[svc.Type] = true
		typeName, err := svc.typeFQDN()
		if err != nil {
			return err
		}
		if err := b.PTRResource(
			dnsmessage.ResourceHeader{Name: metaName, Class: dnsmessage.ClassINET, TTL: ttl},
			dnsmessage.PTRResource{PTR: typeName},
		); err != nil {
			return err
		}
		for _, subtype := range svc.Subtypes {
			subName, err := svc.subtypeFQDN(subtype)
			if err != nil {
				return err
			}
			if err := b.PTRResource(
				dnsmessage.ResourceHeader{Name: metaName, Class: dnsmessage.ClassINET, TTL: ttl},
				dnsmessage.PTRResource{PTR: subName},
			); err != nil {
				return err
			}
		}
	}
	return nil
}
