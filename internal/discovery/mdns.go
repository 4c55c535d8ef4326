// Package discovery advertises the relay over mDNS so devices on the local
// network can find it without any manual configuration.
package discovery

import (
	"fmt"
	"log"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the mDNS service name without domain suffix.
	Service = "_lanbeam._tcp"
	// Domain is the mDNS domain.
	Domain = "local."
)

// Advertiser keeps the mDNS registration alive until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the relay instance on the LAN. The TXT records carry
// the websocket path and rendezvous port so clients can bootstrap from a
// single browse result.
func Advertise(instance string, port int, txt []string) (*Advertiser, error) {
	server, err := zeroconf.Register(instance, Service, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	log.Printf("discovery: advertising %q as %s on port %d", instance, Service, port)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe on a nil receiver.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}
