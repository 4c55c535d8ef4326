// Package monitor reconciles the registry and room store on a fixed period:
// devices that stopped heartbeating are evicted and rooms past their TTL are
// reclaimed.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/lanbeam/relay/config"
	"github.com/lanbeam/relay/internal/registry"
	"github.com/lanbeam/relay/internal/store"
)

// Broadcaster is the slice of the router the monitor needs after it evicts
// devices.
type Broadcaster interface {
	BroadcastDeviceList()
}

type Monitor struct {
	registry    *registry.Registry
	store       *store.Store
	broadcaster Broadcaster
	cfg         config.LivenessConfig
}

func New(reg *registry.Registry, st *store.Store, b Broadcaster, cfg config.LivenessConfig) *Monitor {
	return &Monitor{registry: reg, store: st, broadcaster: b, cfg: cfg}
}

// Run sweeps until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(time.Now())
		}
	}
}

// Sweep runs one reconciliation cycle against the given clock reading.
// Evictions produce a single batched device-list rebroadcast; room expiry is
// deliberately silent (members of an hour-old room are assumed gone).
func (m *Monitor) Sweep(now time.Time) {
	evicted := m.registry.EvictStale(now.Add(-m.cfg.DeviceTimeout))
	if len(evicted) > 0 {
		log.Printf("monitor: evicted %d silent device(s): %v", len(evicted), evicted)
		m.broadcaster.BroadcastDeviceList()
	}
	expired := m.store.ExpireOlderThan(now.Add(-m.cfg.RoomTTL))
	if len(expired) > 0 {
		log.Printf("monitor: reclaimed %d expired room(s): %v", len(expired), expired)
	}
}
