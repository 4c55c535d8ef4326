package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/lanbeam/relay/internal/models"
)

// Conn is the outbound side of a device connection. Send must never block;
// it reports false when the message was dropped (closed connection or full
// buffer).
type Conn interface {
	Send(v any) bool
}

type entry struct {
	conn     Conn
	name     string
	lastSeen time.Time
}

// Registry owns the connection<->device association. It performs no network
// I/O of its own; callers decide what to do with the connections it hands
// back.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*entry
	conns   map[Conn]string
}

func New() *Registry {
	return &Registry{
		devices: make(map[string]*entry),
		conns:   make(map[Conn]string),
	}
}

// Register binds conn to the given device identity. A prior binding for the
// same id is overwritten (last writer wins), which is how a device silently
// reconnects and adopts its old identity. The return value distinguishes a
// reconnect from a first registration.
func (r *Registry) Register(conn Conn, deviceID, displayName string) (rebound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.devices[deviceID]; ok {
		rebound = true
		if old.conn != conn {
			delete(r.conns, old.conn)
		}
	}
	// The connection may itself have been bound to another id before.
	if prevID, ok := r.conns[conn]; ok && prevID != deviceID {
		delete(r.devices, prevID)
	}
	r.devices[deviceID] = &entry{conn: conn, name: displayName, lastSeen: time.Now()}
	r.conns[conn] = deviceID
	return rebound
}

// Lookup returns the live connection for a device id, if any.
func (r *Registry) Lookup(deviceID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[deviceID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// DeviceFor resolves the device identity bound to a connection. A connection
// with no binding has not registered yet (or was evicted).
func (r *Registry) DeviceFor(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.conns[conn]
	return id, ok
}

// Touch refreshes the device's liveness timestamp. Unknown ids are a no-op.
func (r *Registry) Touch(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	e.lastSeen = time.Now()
	return true
}

// Unregister removes the binding held by conn and returns the device id it
// freed. If the id has already been rebound to a newer connection, the stale
// close is ignored so it cannot knock out the reconnected device.
func (r *Registry) Unregister(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deviceID, ok := r.conns[conn]
	if !ok {
		return "", false
	}
	delete(r.conns, conn)
	if e, ok := r.devices[deviceID]; ok && e.conn == conn {
		delete(r.devices, deviceID)
		return deviceID, true
	}
	return "", false
}

// Snapshot lists all registered devices, sorted by id for stable broadcasts.
func (r *Registry) Snapshot() []models.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DeviceInfo, 0, len(r.devices))
	for id, e := range r.devices {
		out = append(out, models.DeviceInfo{ID: id, Name: e.name, LastSeen: e.lastSeen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Conns returns every registered connection, for fan-out broadcasts.
func (r *Registry) Conns() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.devices))
	for _, e := range r.devices {
		out = append(out, e.conn)
	}
	return out
}

// EvictStale removes every device whose lastSeen is before cutoff and
// returns the evicted ids. The underlying connections are left open; a
// device that wakes up again simply re-registers.
func (r *Registry) EvictStale(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, e := range r.devices {
		if e.lastSeen.Before(cutoff) {
			delete(r.devices, id)
			delete(r.conns, e.conn)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}
