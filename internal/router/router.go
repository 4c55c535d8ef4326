// Package router turns inbound envelopes into registry/store mutations and
// decides who hears about them. It is the only writer of both shared stores
// besides the liveness monitor.
package router

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/lanbeam/relay/internal/mirror"
	"github.com/lanbeam/relay/internal/models"
	"github.com/lanbeam/relay/internal/registry"
	"github.com/lanbeam/relay/internal/store"
)

type Router struct {
	registry *registry.Registry
	store    *store.Store
	mirror   *mirror.Mirror
}

func New(reg *registry.Registry, st *store.Store, mir *mirror.Mirror) *Router {
	return &Router{registry: reg, store: st, mirror: mir}
}

// HandleMessage processes one raw payload from a device connection.
// Messages arrive in per-connection order; anything unparseable or unknown
// is dropped with a log line and never closes the connection.
func (rt *Router) HandleMessage(conn registry.Conn, payload []byte) {
	var env models.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("router: dropping malformed envelope: %v", err)
		return
	}
	if env.Type == "" {
		log.Printf("router: dropping envelope without type")
		return
	}

	if env.Type == models.TypeRegister {
		rt.handleRegister(conn, env)
		return
	}

	// Everything except register requires a bound identity.
	deviceID, ok := rt.registry.DeviceFor(conn)
	if !ok {
		log.Printf("router: ignoring %q from unregistered connection", env.Type)
		return
	}

	switch env.Type {
	case models.TypeHeartbeat:
		rt.registry.Touch(deviceID)
	case models.TypeOffer, models.TypeAnswer, models.TypeICECandidate:
		rt.relaySignal(deviceID, env)
	case models.TypeCreateRoom:
		rt.handleCreateRoom(conn, deviceID, env)
	case models.TypeJoinRoom:
		rt.handleJoinRoom(conn, deviceID, env)
	case models.TypeLeaveRoom:
		rt.handleLeaveRoom(deviceID, env)
	case models.TypeStartBroadcast:
		rt.handleStartBroadcast(conn, deviceID, env)
	case models.TypeFileRequest:
		rt.handleFileRequest(conn, deviceID, env)
	case models.TypeUpdateRoomFiles:
		rt.handleUpdateRoomFiles(conn, deviceID, env)
	case models.TypeUpdateMemberStatus:
		rt.handleUpdateMemberStatus(conn, deviceID, env)
	default:
		log.Printf("router: unknown message type %q from %s", env.Type, deviceID)
	}
}

// HandleDisconnect runs the transport-close cascade: unbind the identity,
// rebroadcast the device list, and treat the drop as an implicit leave-room
// for every room the device belonged to.
func (rt *Router) HandleDisconnect(conn registry.Conn) {
	deviceID, ok := rt.registry.Unregister(conn)
	if !ok {
		return
	}
	log.Printf("router: device %s disconnected", deviceID)
	rt.BroadcastDeviceList()
	for _, res := range rt.store.LeaveAll(deviceID) {
		rt.broadcastRoom(res.Room)
		if res.Dissolved {
			rt.mirror.RoomDeleted(res.Room.ID)
		} else {
			rt.mirror.RoomUpdated(res.Room)
		}
	}
}

// DissolveRoom force-closes a room on behalf of the management API and
// notifies its members.
func (rt *Router) DissolveRoom(roomID string) bool {
	room, ok := rt.store.Remove(roomID)
	if !ok {
		return false
	}
	log.Printf("router: room %s dissolved by operator", roomID)
	rt.broadcastRoom(room)
	rt.mirror.RoomDeleted(room.ID)
	return true
}

func (rt *Router) handleRegister(conn registry.Conn, env models.Envelope) {
	if env.DeviceID == "" {
		log.Printf("router: register without deviceId, ignored")
		return
	}
	rebound := rt.registry.Register(conn, env.DeviceID, env.DeviceName)
	if rebound {
		log.Printf("router: device %s reconnected, identity adopted", env.DeviceID)
	} else {
		log.Printf("router: device %s (%s) registered", env.DeviceID, env.DeviceName)
	}
	rt.BroadcastDeviceList()
}

// relaySignal forwards offer/answer/ice-candidate payloads to the target
// device. These are best-effort hints; a missing target is silently dropped
// and the WebRTC layer retries on its own.
func (rt *Router) relaySignal(senderID string, env models.Envelope) {
	target, ok := rt.registry.Lookup(env.Target)
	if !ok {
		log.Printf("router: %s target %q not connected, dropping", env.Type, env.Target)
		return
	}
	rt.send(target, models.Envelope{Type: env.Type, From: senderID, Data: env.Data})
}

func (rt *Router) handleCreateRoom(conn registry.Conn, deviceID string, env models.Envelope) {
	var manifest models.Manifest
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &manifest); err != nil {
			rt.sendError(conn, "malformed room data")
			return
		}
	}
	room := rt.store.Create(deviceID, env.DeviceName, manifest)
	log.Printf("router: room %s created by %s", room.ID, deviceID)
	rt.send(conn, roomUpdate(room))
	rt.mirror.RoomUpdated(room)
}

func (rt *Router) handleJoinRoom(conn registry.Conn, deviceID string, env models.Envelope) {
	room, err := rt.store.Join(env.RoomID, deviceID, env.DeviceName)
	if err != nil {
		rt.sendError(conn, err.Error())
		return
	}
	// Reply to the joiner first, then fan the fresh snapshot out to the
	// whole membership.
	rt.send(conn, roomUpdate(room))
	rt.broadcastRoom(room)
	rt.mirror.RoomUpdated(room)
}

func (rt *Router) handleLeaveRoom(deviceID string, env models.Envelope) {
	res, ok := rt.store.Leave(env.RoomID, deviceID)
	if !ok {
		return
	}
	rt.broadcastRoom(res.Room)
	if res.Dissolved {
		log.Printf("router: room %s dissolved, host %s left", res.Room.ID, deviceID)
		rt.mirror.RoomDeleted(res.Room.ID)
	} else {
		rt.mirror.RoomUpdated(res.Room)
	}
}

func (rt *Router) handleStartBroadcast(conn registry.Conn, deviceID string, env models.Envelope) {
	room, err := rt.store.StartBroadcast(env.RoomID, deviceID)
	if err != nil {
		rt.sendError(conn, err.Error())
		return
	}
	log.Printf("router: room %s transfer started", room.ID)
	rt.broadcastRoom(room)
	rt.mirror.RoomUpdated(room)
}

func (rt *Router) handleFileRequest(conn registry.Conn, deviceID string, env models.Envelope) {
	requesterID := env.RequesterID
	if requesterID == "" {
		requesterID = deviceID
	}
	fileIndex := 0
	if env.FileIndex != nil {
		fileIndex = *env.FileIndex
	}
	room, hostID, err := rt.store.RequestFile(env.RoomID, requesterID, fileIndex)
	if err != nil {
		rt.sendError(conn, err.Error())
		return
	}
	rt.broadcastRoom(room)
	rt.mirror.RoomUpdated(room)

	hostConn, ok := rt.registry.Lookup(hostID)
	if !ok {
		rt.sendError(conn, store.ErrHostOffline.Error())
		return
	}
	forwarded := rt.send(hostConn, models.Envelope{
		Type:        models.TypeFileRequest,
		RoomID:      room.ID,
		RequesterID: requesterID,
		FileIndex:   &fileIndex,
	})
	if !forwarded {
		rt.sendError(conn, store.ErrHostOffline.Error())
	}
}

func (rt *Router) handleUpdateRoomFiles(conn registry.Conn, deviceID string, env models.Envelope) {
	room, err := rt.store.UpdateManifest(env.RoomID, deviceID, models.Manifest{FileList: env.FileList})
	if err != nil {
		rt.sendError(conn, err.Error())
		return
	}
	rt.broadcastRoom(room)
	rt.mirror.RoomUpdated(room)
}

func (rt *Router) handleUpdateMemberStatus(conn registry.Conn, deviceID string, env models.Envelope) {
	targetID := env.DeviceID
	if targetID == "" {
		targetID = deviceID
	}
	room, err := rt.store.UpdateMemberStatus(env.RoomID, targetID, models.MemberStatus(env.Status), env.Progress)
	if errors.Is(err, store.ErrMemberNotFound) {
		log.Printf("router: status update for %s ignored, not a member of room %s", targetID, env.RoomID)
		return
	}
	if err != nil {
		rt.sendError(conn, err.Error())
		return
	}
	rt.broadcastRoom(room)
	rt.mirror.RoomUpdated(room)
}

// BroadcastDeviceList pushes the current registry snapshot to every
// registered connection. The monitor calls this after a batch of evictions.
func (rt *Router) BroadcastDeviceList() {
	devices := rt.registry.Snapshot()
	env := models.Envelope{Type: models.TypeDeviceList, Devices: devices}
	for _, conn := range rt.registry.Conns() {
		rt.send(conn, env)
	}
	rt.mirror.DevicesChanged(devices)
}

// broadcastRoom sends the room snapshot to every member with a live
// connection. Members whose device record is gone are skipped, and one slow
// recipient never blocks the rest.
func (rt *Router) broadcastRoom(room models.Room) {
	env := roomUpdate(room)
	for _, member := range room.Members {
		conn, ok := rt.registry.Lookup(member.DeviceID)
		if !ok {
			continue
		}
		rt.send(conn, env)
	}
}

func (rt *Router) send(conn registry.Conn, env models.Envelope) bool {
	if !conn.Send(env) {
		log.Printf("router: dropped %s message, recipient buffer unavailable", env.Type)
		return false
	}
	return true
}

func (rt *Router) sendError(conn registry.Conn, msg string) {
	rt.send(conn, models.Envelope{Type: models.TypeRoomError, Error: msg})
}

func roomUpdate(room models.Room) models.Envelope {
	return models.Envelope{Type: models.TypeRoomUpdate, Room: &room}
}
