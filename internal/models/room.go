package models

import (
	"encoding/json"
	"time"
)

// RoomStatus is the lifecycle phase of a broadcast room.
type RoomStatus string

const (
	RoomWaiting      RoomStatus = "waiting"
	RoomTransferring RoomStatus = "transferring"
	RoomDissolved    RoomStatus = "dissolved"
)

// MemberRole marks whether a member has broadcast authority.
type MemberRole string

const (
	RoleHost   MemberRole = "host"
	RoleMember MemberRole = "member"
)

// MemberStatus is the per-member transfer state.
type MemberStatus string

const (
	MemberWaiting   MemberStatus = "waiting"
	MemberReceiving MemberStatus = "receiving"
	MemberCompleted MemberStatus = "completed"
	MemberFailed    MemberStatus = "failed"
)

// Member is one device inside a room. Members reference devices by id only;
// the entry may outlive the device's registry binding.
type Member struct {
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName"`
	Role       MemberRole   `json:"role"`
	Status     MemberStatus `json:"status"`
	JoinedAt   time.Time    `json:"joinedAt"`
	Progress   *int         `json:"progress,omitempty"`
}

// Room is a one-to-many broadcast session. Exactly one member carries the
// host role and its deviceId equals HostID for as long as the room exists.
type Room struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	HostID      string          `json:"hostId"`
	Members     []Member        `json:"members"`
	CreatedAt   time.Time       `json:"createdAt"`
	FileInfo    json.RawMessage `json:"fileInfo,omitempty"`
	FileList    json.RawMessage `json:"fileList,omitempty"`
	IsMultiFile bool            `json:"isMultiFile"`
	Status      RoomStatus      `json:"status"`
}

// Manifest is the file description a room shares with members before the
// transfer starts. FileInfo and FileList are opaque to the relay.
type Manifest struct {
	FileInfo    json.RawMessage `json:"fileInfo,omitempty"`
	FileList    json.RawMessage `json:"fileList,omitempty"`
	IsMultiFile bool            `json:"isMultiFile"`
}

// DeviceInfo is one entry of a device-list broadcast.
type DeviceInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
}
