package store

import (
	"crypto/rand"
	"log"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lanbeam/relay/internal/models"
)

// Room ids are 6-digit numeric strings: 100000..999999.
const (
	roomIDMin  = 100000
	roomIDSpan = 900000
)

// Store owns all room and membership state. Every mutator runs as a single
// read-modify-write under the store mutex, so concurrent commands against
// the same room never interleave. All returned rooms are snapshots; callers
// can hold them without racing the store.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func New() *Store {
	return &Store{rooms: make(map[string]*models.Room)}
}

// LeaveResult describes the outcome of a departing member. When the host
// leaves, Dissolved is set and Room is the pre-removal snapshot with
// status=dissolved, so the caller can still reach the former members.
type LeaveResult struct {
	Dissolved bool
	Room      models.Room
}

// newRoomID draws ids until one is unused among live rooms. The caller must
// hold the store mutex.
func (s *Store) newRoomID() string {
	for {
		n, err := rand.Int(rand.Reader, big.NewInt(roomIDSpan))
		if err != nil {
			log.Panicf("room id generation: %v", err)
		}
		id := strconv.FormatInt(n.Int64()+roomIDMin, 10)
		if _, inUse := s.rooms[id]; !inUse {
			return id
		}
	}
}

// normalizeManifest recomputes the multi-file flag from the manifest shape
// rather than trusting what the client sent.
func normalizeManifest(m models.Manifest) models.Manifest {
	m.IsMultiFile = len(m.FileList) > 0 && string(m.FileList) != "null"
	return m
}

// Create opens a new room with the creator as its only member and host.
func (s *Store) Create(hostID, hostName string, manifest models.Manifest) models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest = normalizeManifest(manifest)
	room := &models.Room{
		ID:          s.newRoomID(),
		Name:        hostName,
		HostID:      hostID,
		CreatedAt:   time.Now(),
		FileInfo:    manifest.FileInfo,
		FileList:    manifest.FileList,
		IsMultiFile: manifest.IsMultiFile,
		Status:      models.RoomWaiting,
		Members: []models.Member{{
			DeviceID:   hostID,
			DeviceName: hostName,
			Role:       models.RoleHost,
			Status:     models.MemberWaiting,
			JoinedAt:   time.Now(),
		}},
	}
	s.rooms[room.ID] = room
	return snapshot(room)
}

// Join adds the device as a regular member. Joining a room you are already
// in returns the room unchanged; joining after the transfer started fails.
func (s *Store) Join(roomID, deviceID, deviceName string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	if room.Status != models.RoomWaiting {
		return models.Room{}, ErrRoomTransferring
	}
	for _, m := range room.Members {
		if m.DeviceID == deviceID {
			return snapshot(room), nil
		}
	}
	room.Members = append(room.Members, models.Member{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Role:       models.RoleMember,
		Status:     models.MemberWaiting,
		JoinedAt:   time.Now(),
	})
	return snapshot(room), nil
}

// Leave removes the device from the room. A departing host dissolves the
// whole room. Unknown rooms and non-members report ok=false and change
// nothing.
func (s *Store) Leave(roomID, deviceID string) (LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaveLocked(roomID, deviceID)
}

func (s *Store) leaveLocked(roomID, deviceID string) (LeaveResult, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return LeaveResult{}, false
	}
	if deviceID == room.HostID {
		delete(s.rooms, roomID)
		dissolved := snapshot(room)
		dissolved.Status = models.RoomDissolved
		return LeaveResult{Dissolved: true, Room: dissolved}, true
	}
	kept := room.Members[:0]
	removed := false
	for _, m := range room.Members {
		if m.DeviceID == deviceID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return LeaveResult{}, false
	}
	room.Members = kept
	return LeaveResult{Room: snapshot(room)}, true
}

// LeaveAll cascades a disconnect across every room the device belongs to.
// A device is a member of one room in practice, but nothing here assumes it.
func (s *Store) LeaveAll(deviceID string) []LeaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results []LeaveResult
	for _, id := range ids {
		if res, ok := s.leaveLocked(id, deviceID); ok {
			results = append(results, res)
		}
	}
	return results
}

// StartBroadcast transitions the room to transferring. Host only; there is
// no minimum member count.
func (s *Store) StartBroadcast(roomID, requesterID string) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	if requesterID != room.HostID {
		return models.Room{}, ErrNotHost
	}
	room.Status = models.RoomTransferring
	return snapshot(room), nil
}

// UpdateManifest replaces the room's file manifest. Host only.
func (s *Store) UpdateManifest(roomID, requesterID string, manifest models.Manifest) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	if requesterID != room.HostID {
		return models.Room{}, ErrNotHost
	}
	manifest = normalizeManifest(manifest)
	room.FileInfo = manifest.FileInfo
	room.FileList = manifest.FileList
	room.IsMultiFile = manifest.IsMultiFile
	return snapshot(room), nil
}

// UpdateMemberStatus mutates the matching member in place. A status for a
// device that is not a member is reported as ErrMemberNotFound; the caller
// logs it and moves on.
func (s *Store) UpdateMemberStatus(roomID, deviceID string, status models.MemberStatus, progress *int) (models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	for i := range room.Members {
		if room.Members[i].DeviceID == deviceID {
			room.Members[i].Status = status
			if progress != nil {
				p := *progress
				room.Members[i].Progress = &p
			}
			return snapshot(room), nil
		}
	}
	return models.Room{}, ErrMemberNotFound
}

// RequestFile marks the requester as receiving (progress 0) and returns the
// room's host id so the caller can forward the request.
func (s *Store) RequestFile(roomID, requesterID string, fileIndex int) (models.Room, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, "", ErrRoomNotFound
	}
	for i := range room.Members {
		if room.Members[i].DeviceID == requesterID {
			zero := 0
			room.Members[i].Status = models.MemberReceiving
			room.Members[i].Progress = &zero
			return snapshot(room), room.HostID, nil
		}
	}
	return models.Room{}, "", ErrMemberNotFound
}

// Get returns a snapshot of one room.
func (s *Store) Get(roomID string) (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, false
	}
	return snapshot(room), true
}

// List returns all live rooms, sorted by id.
func (s *Store) List() []models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, snapshot(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove force-dissolves a room regardless of who asks, returning the
// dissolved snapshot for a farewell broadcast. Used by the management API.
func (s *Store) Remove(roomID string) (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Room{}, false
	}
	delete(s.rooms, roomID)
	dissolved := snapshot(room)
	dissolved.Status = models.RoomDissolved
	return dissolved, true
}

// ExpireOlderThan drops every room created before cutoff and returns their
// ids. No broadcast accompanies TTL expiry; this is resource reclamation,
// not a protocol event.
func (s *Store) ExpireOlderThan(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, room := range s.rooms {
		if room.CreatedAt.Before(cutoff) {
			delete(s.rooms, id)
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

func snapshot(room *models.Room) models.Room {
	out := *room
	out.Members = append([]models.Member(nil), room.Members...)
	return out
}
