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
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// Action classifies an inbound DHCP packet for server processing.
type Action int

const (
	ActionIgnore Action = iota
	ActionDiscover
	ActionRequest
	ActionRelease
	ActionDecline
)

// Classify inspects p's message type and returns the Action the server
// should take. serverID is this server's own address: if p carries a
// ServerIdentifier option (54) that names a different server, the packet
// was addressed to that other server (e.g. a client accepting a competing
// server's OFFER) and is ignored. DHCPRELEASE and DHCPDECLINE additionally
// require a matching ServerIdentifier to be present at all, since both are
// meaningless without naming the server the lease came from.
func Classify(p Packet, serverID netip.Addr) Action {
	mt, ok := MessageTypeOf(p.Options)
	if !ok {
		return ActionIgnore
	}

	sid, hasSID := AddrOptionOf(p.Options, OptServerIdentifier)
	if hasSID && sid != serverID {
		return ActionIgnore
	}

	switch mt {
	case MessageTypeDiscover:
		return ActionDiscover
	case MessageTypeRequest:
		return ActionRequest
	case MessageTypeRelease:
		if !hasSID {
			return ActionIgnore
		}
		return ActionRelease
	case MessageTypeDecline:
		if !hasSID {
			return ActionIgnore
		}
		return ActionDecline
	default:
		return ActionIgnore
	}
}

// Lease is a single entry of the server's address table: the MAC address
// currently bound to an IP, and when that binding expires.
type Lease struct {
	MAC     [6]byte
	Expires time.Time
}

// ServerOptions configures a Server's address pool and the parameters it
// hands out to clients.
type ServerOptions struct {
	// RangeStart and RangeEnd bound the pool of addresses the server may
	// allocate, inclusive.
	RangeStart, RangeEnd netip.Addr
	ServerID             netip.Addr
	Router               netip.Addr
	Subnet               netip.Addr
	DNS                  []netip.Addr
	// CaptiveURL, if non-empty, is sent back as option 56 (Message) so a
	// captive-portal-aware client can surface it to the user.
	CaptiveURL   string
	LeaseSeconds uint32
}

// Server holds the lease table for a single DHCPv4 server instance. It is
// safe for concurrent use.
type Server struct {
	opts ServerOptions
	log  *slog.Logger

	mu     sync.Mutex
	leases map[netip.Addr]Lease
}

// NewServer creates a Server with an empty lease table.
func NewServer(opts ServerOptions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		opts:   opts,
		log:    log,
		leases: make(map[netip.Addr]Lease),
	}
}

func (s *Server) isAvailable(ip netip.Addr, mac [6]byte, now time.Time) bool {
	if s.opts.RangeStart.IsValid() && (ip.Less(s.opts.RangeStart) || s.opts.RangeEnd.Less(ip)) {
		return false
	}
	lease, ok := s.leases[ip]
	return !ok || lease.MAC == mac || lease.Expires.Before(now)
}

// available finds a free IP for mac: its existing lease if still current,
// otherwise the lowest free address in the range, otherwise the
// longest-expired lease is evicted and reused.
func (s *Server) available(mac [6]byte, now time.Time) (netip.Addr, bool) {
	for ip, lease := range s.leases {
		if lease.MAC == mac && lease.Expires.After(now) {
			return ip, true
		}
	}

	if !s.opts.RangeStart.IsValid() {
		return netip.Addr{}, false
	}
	for ip := s.opts.RangeStart; ; ip = ip.Next() {
		if _, ok := s.leases[ip]; !ok {
			return ip, true
		}
		if ip == s.opts.RangeEnd {
			break
		}
	}

	var oldest netip.Addr
	var oldestExpires time.Time
	found := false
	for ip, lease := range s.leases {
		if lease.Expires.Before(now) && (!found || lease.Expires.Before(oldestExpires)) {
			oldest, oldestExpires, found = ip, lease.Expires, true
		}
	}
	return oldest, found
}

func (s *Server) replyOptions() BuiltOptions {
	opts := BuiltOptions{
		addrOption(OptServerIdentifier, s.opts.ServerID),
		u32Option(OptLeaseTime, s.opts.LeaseSeconds),
	}
	if s.opts.Router.IsValid() {
		opts = append(opts, addrOption(OptRouter, s.opts.Router))
	}
	if s.opts.Subnet.IsValid() {
		opts = append(opts, addrOption(OptSubnetMask, s.opts.Subnet))
	}
	if len(s.opts.DNS) > 0 {
		opts = append(opts, addrListOption(OptDNS, s.opts.DNS))
	}
	if s.opts.CaptiveURL != "" {
		opts = append(opts, Option{Code: OptMessage, Data: []byte(s.opts.CaptiveURL)})
	}
	return opts
}

// Handle processes an inbound packet and returns the reply to send, if any.
// A nil reply means the packet is silently dropped (e.g. a DHCPRELEASE or
// DHCPDECLINE, a packet Classify ignores, a DHCPREQUEST naming no address,
// or a DHCPDISCOVER when no address is available).
func (s *Server) Handle(req Packet, now time.Time) *Packet {
	switch Classify(req, s.opts.ServerID) {
	case ActionDiscover:
		return s.offer(req, now)
	case ActionRequest:
		return s.ackOrNak(req, now)
	case ActionRelease:
		s.release(req)
		return nil
	case ActionDecline:
		s.decline(req)
		return nil
	default:
		return nil
	}
}

func (s *Server) offer(req Packet, now time.Time) *Packet {
	mac := req.ClientID()

	s.mu.Lock()
	defer s.mu.Unlock()

	ip, ok := s.available(mac, now)
	if !ok {
		s.log.Warn("dhcp: no address available for offer", "mac", mac)
		return nil
	}

	reply := NewReply(req, &ip)
	opts := append(BuiltOptions{messageTypeOption(MessageTypeOffer)}, s.replyOptions()...)
	reply.Options = opts
	return &reply
}

func (s *Server) ackOrNak(req Packet, now time.Time) *Packet {
	mac := req.ClientID()
	reqIP, ok := AddrOptionOf(req.Options, OptRequestedIP)
	if !ok {
		reqIP = req.CIAddr
	}
	if !reqIP.IsValid() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAvailable(reqIP, mac, now) {
		reply := NewReply(req, nil)
		reply.Options = BuiltOptions{
			messageTypeOption(MessageTypeNak),
			addrOption(OptServerIdentifier, s.opts.ServerID),
		}
		return &reply
	}

	s.leases[reqIP] = Lease{MAC: mac, Expires: now.Add(time.Duration(s.opts.LeaseSeconds) * time.Second)}

	reply := NewReply(req, &reqIP)
	opts := append(BuiltOptions{messageTypeOption(MessageTypeAck)}, s.replyOptions()...)
	reply.Options = opts
	return &reply
}

func (s *Server) release(req Packet) {
	mac := req.ClientID()
	ip := req.CIAddr

	s.mu.Lock()
	defer s.mu.Unlock()

	if lease, ok := s.leases[ip]; ok && lease.MAC == mac {
		delete(s.leases, ip)
	}
}

func (s *Server) decline(req Packet) {
	ip, ok := AddrOptionOf(req.Options, OptRequestedIP)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.leases, ip)
	s.log.Warn("dhcp: address declined, removed from pool", "addr", ip)
}

// CurrentLease reports the lease currently held for ip, if any.
func (s *Server) CurrentLease(ip netip.Addr) (Lease, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lease, ok := s.leases[ip]
	return lease, ok
}
