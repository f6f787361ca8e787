// Package discovery announces the CI's command socket on the local
// network via mDNS/DNS-SD, adapted from the teacher's dns_sd_announce
// (which advertises a KISS-over-TCP service the same way) to advertise
// the UDP command socket instead.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// ServiceType is the DNS-SD service type the command socket is
// announced as.
const ServiceType = "_tcs-ci._udp"

// Announcer wraps a dnssd responder advertising one service instance.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// Announce starts advertising name on port over mDNS/DNS-SD. The
// responder runs in its own goroutine until Stop is called; failures
// are returned rather than logged here, matching the ambient logging
// layer's preference that callers decide severity.
func Announce(name string, port int) (*Announcer, error) {
	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: new service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: new responder: %w", err)
	}

	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{responder: responder, cancel: cancel}

	go func() {
		_ = responder.Respond(ctx)
	}()

	return a, nil
}

// Stop tears down the responder.
func (a *Announcer) Stop() {
	if a == nil || a.cancel == nil {
		return
	}

	a.cancel()
}
