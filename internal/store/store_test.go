package store

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/lanbeam/relay/internal/models"
)

var roomIDPattern = regexp.MustCompile(`^[0-9]{6}$`)

func singleFileManifest() models.Manifest {
	return models.Manifest{FileInfo: json.RawMessage(`{"name":"a.zip","size":1024}`)}
}

func assertHostInvariant(t *testing.T, room models.Room) {
	t.Helper()
	hosts := 0
	for _, m := range room.Members {
		if m.Role == models.RoleHost {
			hosts++
			if m.DeviceID != room.HostID {
				t.Errorf("host member %s does not match hostId %s", m.DeviceID, room.HostID)
			}
		}
	}
	if hosts != 1 {
		t.Errorf("expected exactly one host member, got %d", hosts)
	}
}

func TestCreateRoom(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())

	if !roomIDPattern.MatchString(room.ID) {
		t.Errorf("expected 6-digit numeric room id, got %q", room.ID)
	}
	if room.HostID != "d1" {
		t.Errorf("expected hostId d1, got %s", room.HostID)
	}
	if room.Status != models.RoomWaiting {
		t.Errorf("expected status waiting, got %s", room.Status)
	}
	if len(room.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(room.Members))
	}
	if room.Members[0].Status != models.MemberWaiting {
		t.Errorf("expected host status waiting, got %s", room.Members[0].Status)
	}
	if room.IsMultiFile {
		t.Error("single-file manifest should not be multi-file")
	}
	assertHostInvariant(t, room)
}

func TestCreateRoomIDsUnique(t *testing.T) {
	s := New()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		room := s.Create("d1", "Phone", models.Manifest{})
		if seen[room.ID] {
			t.Fatalf("duplicate room id %s", room.ID)
		}
		seen[room.ID] = true
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	s := New()
	if _, err := s.Join("000000", "d2", "Laptop"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinIdempotent(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())

	first, err := s.Join(room.ID, "d2", "Laptop")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(first.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(first.Members))
	}

	second, err := s.Join(room.ID, "d2", "Laptop")
	if err != nil {
		t.Fatalf("second join should be idempotent, got %v", err)
	}
	if len(second.Members) != 2 {
		t.Errorf("idempotent join changed member count to %d", len(second.Members))
	}
	assertHostInvariant(t, second)
}

func TestJoinAfterTransferStarted(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.StartBroadcast(room.ID, "d1"); err != nil {
		t.Fatalf("start broadcast: %v", err)
	}
	if _, err := s.Join(room.ID, "d2", "Laptop"); !errors.Is(err, ErrRoomTransferring) {
		t.Errorf("expected ErrRoomTransferring, got %v", err)
	}
}

func TestHostLeaveDissolvesRoom(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	res, ok := s.Leave(room.ID, "d1")
	if !ok {
		t.Fatal("leave reported no-op for the host")
	}
	if !res.Dissolved {
		t.Error("host departure should dissolve the room")
	}
	if res.Room.Status != models.RoomDissolved {
		t.Errorf("expected dissolved snapshot, got status %s", res.Room.Status)
	}
	if len(res.Room.Members) != 2 {
		t.Errorf("dissolved snapshot should keep the pre-removal members, got %d", len(res.Room.Members))
	}

	if _, err := s.Join(room.ID, "d3", "Tablet"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("join after dissolution should fail with ErrRoomNotFound, got %v", err)
	}
}

func TestMemberLeave(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	res, ok := s.Leave(room.ID, "d2")
	if !ok {
		t.Fatal("leave reported no-op for a member")
	}
	if res.Dissolved {
		t.Error("member departure must not dissolve the room")
	}
	if len(res.Room.Members) != 1 {
		t.Errorf("expected 1 remaining member, got %d", len(res.Room.Members))
	}
	if res.Room.Status != models.RoomWaiting {
		t.Errorf("member departure changed status to %s", res.Room.Status)
	}
	assertHostInvariant(t, res.Room)
}

func TestLeaveNoOps(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())

	if _, ok := s.Leave("000000", "d1"); ok {
		t.Error("leaving an unknown room should be a no-op")
	}
	if _, ok := s.Leave(room.ID, "stranger"); ok {
		t.Error("a non-member leaving should be a no-op")
	}
	if got, _ := s.Get(room.ID); len(got.Members) != 1 {
		t.Errorf("no-op leave mutated the room, members=%d", len(got.Members))
	}
}

func TestStartBroadcastAuthority(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := s.StartBroadcast(room.ID, "d2"); !errors.Is(err, ErrNotHost) {
		t.Errorf("expected ErrNotHost, got %v", err)
	}
	if _, err := s.StartBroadcast("000000", "d1"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}

	updated, err := s.StartBroadcast(room.ID, "d1")
	if err != nil {
		t.Fatalf("host start broadcast: %v", err)
	}
	if updated.Status != models.RoomTransferring {
		t.Errorf("expected transferring, got %s", updated.Status)
	}
}

func TestStartBroadcastWithoutOtherMembers(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	updated, err := s.StartBroadcast(room.ID, "d1")
	if err != nil {
		t.Fatalf("lone host should be able to start the transfer: %v", err)
	}
	if updated.Status != models.RoomTransferring {
		t.Errorf("expected transferring, got %s", updated.Status)
	}
}

func TestUpdateManifest(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	fileList := json.RawMessage(`[{"name":"a.zip"},{"name":"b.zip"}]`)
	if _, err := s.UpdateManifest(room.ID, "d2", models.Manifest{FileList: fileList}); !errors.Is(err, ErrNotHost) {
		t.Errorf("expected ErrNotHost, got %v", err)
	}

	updated, err := s.UpdateManifest(room.ID, "d1", models.Manifest{FileList: fileList})
	if err != nil {
		t.Fatalf("update manifest: %v", err)
	}
	if !updated.IsMultiFile {
		t.Error("a file list manifest should recompute isMultiFile to true")
	}
}

func TestUpdateMemberStatus(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	progress := 42
	updated, err := s.UpdateMemberStatus(room.ID, "d2", models.MemberCompleted, &progress)
	if err != nil {
		t.Fatalf("update member status: %v", err)
	}
	var found bool
	for _, m := range updated.Members {
		if m.DeviceID == "d2" {
			found = true
			if m.Status != models.MemberCompleted {
				t.Errorf("expected completed, got %s", m.Status)
			}
			if m.Progress == nil || *m.Progress != 42 {
				t.Errorf("expected progress 42, got %v", m.Progress)
			}
		}
	}
	if !found {
		t.Fatal("member d2 missing from snapshot")
	}

	if _, err := s.UpdateMemberStatus(room.ID, "stranger", models.MemberFailed, nil); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestRequestFile(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())
	if _, err := s.Join(room.ID, "d2", "Laptop"); err != nil {
		t.Fatalf("join: %v", err)
	}

	updated, hostID, err := s.RequestFile(room.ID, "d2", 0)
	if err != nil {
		t.Fatalf("request file: %v", err)
	}
	if hostID != "d1" {
		t.Errorf("expected host d1, got %s", hostID)
	}
	for _, m := range updated.Members {
		if m.DeviceID == "d2" {
			if m.Status != models.MemberReceiving {
				t.Errorf("requester should be receiving, got %s", m.Status)
			}
			if m.Progress == nil || *m.Progress != 0 {
				t.Errorf("requester progress should reset to 0, got %v", m.Progress)
			}
		}
	}
}

func TestLeaveAll(t *testing.T) {
	s := New()
	hosted := s.Create("d1", "Phone", singleFileManifest())
	other := s.Create("d9", "Desktop", singleFileManifest())
	if _, err := s.Join(other.ID, "d1", "Phone"); err != nil {
		t.Fatalf("join: %v", err)
	}

	results := s.LeaveAll("d1")
	if len(results) != 2 {
		t.Fatalf("expected 2 leave results, got %d", len(results))
	}
	if _, ok := s.Get(hosted.ID); ok {
		t.Error("hosted room should be dissolved after LeaveAll")
	}
	remaining, ok := s.Get(other.ID)
	if !ok {
		t.Fatal("other room should survive LeaveAll")
	}
	if len(remaining.Members) != 1 {
		t.Errorf("expected 1 remaining member in other room, got %d", len(remaining.Members))
	}
}

func TestExpireOlderThan(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())

	if expired := s.ExpireOlderThan(time.Now().Add(-time.Hour)); len(expired) != 0 {
		t.Errorf("fresh room expired early: %v", expired)
	}
	expired := s.ExpireOlderThan(time.Now().Add(time.Hour))
	if len(expired) != 1 || expired[0] != room.ID {
		t.Fatalf("expected [%s], got %v", room.ID, expired)
	}
	if _, ok := s.Get(room.ID); ok {
		t.Error("expired room still resolvable")
	}
}

func TestRemove(t *testing.T) {
	s := New()
	room := s.Create("d1", "Phone", singleFileManifest())

	dissolved, ok := s.Remove(room.ID)
	if !ok {
		t.Fatal("remove reported unknown room")
	}
	if dissolved.Status != models.RoomDissolved {
		t.Errorf("expected dissolved snapshot, got %s", dissolved.Status)
	}
	if _, ok := s.Remove(room.ID); ok {
		t.Error("second remove should report unknown room")
	}
}
