package registry

import (
	"testing"
	"time"
)

// fakeConn is a minimal Conn for registry tests.
type fakeConn struct {
	sent []any
}

func (f *fakeConn) Send(v any) bool {
	f.sent = append(f.sent, v)
	return true
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	conn := &fakeConn{}

	if rebound := r.Register(conn, "d1", "Phone"); rebound {
		t.Error("first registration should not report a rebind")
	}
	got, ok := r.Lookup("d1")
	if !ok || got != conn {
		t.Fatal("lookup did not return the registered connection")
	}
	if id, ok := r.DeviceFor(conn); !ok || id != "d1" {
		t.Errorf("DeviceFor = %q, %v", id, ok)
	}

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].ID != "d1" || snap[0].Name != "Phone" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := New()
	old := &fakeConn{}
	fresh := &fakeConn{}
	r.Register(old, "d1", "Phone")

	if rebound := r.Register(fresh, "d1", "Phone"); !rebound {
		t.Error("re-registering an id should report a rebind")
	}
	got, ok := r.Lookup("d1")
	if !ok || got != fresh {
		t.Fatal("rebind did not adopt the new connection")
	}
	if _, ok := r.DeviceFor(old); ok {
		t.Error("stale connection still resolves to a device")
	}

	// The stale connection closing later must not unbind the new one.
	if _, ok := r.Unregister(old); ok {
		t.Error("unregistering a stale connection should be a no-op")
	}
	if _, ok := r.Lookup("d1"); !ok {
		t.Error("stale close knocked out the reconnected device")
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Register(conn, "d1", "Phone")

	id, ok := r.Unregister(conn)
	if !ok || id != "d1" {
		t.Fatalf("Unregister = %q, %v", id, ok)
	}
	if _, ok := r.Lookup("d1"); ok {
		t.Error("device still registered after unregister")
	}
	if _, ok := r.Unregister(conn); ok {
		t.Error("double unregister should be a no-op")
	}
}

func TestTouch(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Register(conn, "d1", "Phone")
	before := r.Snapshot()[0].LastSeen

	time.Sleep(5 * time.Millisecond)
	if !r.Touch("d1") {
		t.Fatal("touch of a known device failed")
	}
	after := r.Snapshot()[0].LastSeen
	if !after.After(before) {
		t.Error("touch did not advance lastSeen")
	}

	if r.Touch("unknown") {
		t.Error("touch of an unknown device should be a no-op")
	}
}

func TestEvictStale(t *testing.T) {
	r := New()
	stale := &fakeConn{}
	live := &fakeConn{}
	r.Register(stale, "d1", "Phone")
	r.Register(live, "d2", "Laptop")

	// Nothing is stale against a cutoff in the past.
	if evicted := r.EvictStale(time.Now().Add(-time.Minute)); len(evicted) != 0 {
		t.Errorf("unexpected evictions %v", evicted)
	}

	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()
	r.Touch("d2")

	evicted := r.EvictStale(cutoff)
	if len(evicted) != 1 || evicted[0] != "d1" {
		t.Fatalf("expected [d1], got %v", evicted)
	}
	if _, ok := r.Lookup("d1"); ok {
		t.Error("evicted device still registered")
	}
	if _, ok := r.DeviceFor(stale); ok {
		t.Error("evicted connection still bound")
	}
	if _, ok := r.Lookup("d2"); !ok {
		t.Error("live device was evicted")
	}
}
