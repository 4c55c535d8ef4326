package models

import "encoding/json"

// MessageType is the discriminator tag on every websocket envelope.
type MessageType string

// Device -> relay messages.
const (
	TypeRegister           MessageType = "register"
	TypeHeartbeat          MessageType = "heartbeat"
	TypeOffer              MessageType = "offer"
	TypeAnswer             MessageType = "answer"
	TypeICECandidate       MessageType = "ice-candidate"
	TypeCreateRoom         MessageType = "create-room"
	TypeJoinRoom           MessageType = "join-room"
	TypeLeaveRoom          MessageType = "leave-room"
	TypeStartBroadcast     MessageType = "start-broadcast"
	TypeFileRequest        MessageType = "file-request"
	TypeUpdateRoomFiles    MessageType = "update-room-files"
	TypeUpdateMemberStatus MessageType = "update-member-status"
)

// Relay -> device messages.
const (
	TypeDeviceList MessageType = "device-list"
	TypeRoomUpdate MessageType = "room-update"
	TypeRoomError  MessageType = "room-error"
)

// Envelope is the single wire format exchanged over a device connection.
// Which fields are populated depends on Type; everything the relay does not
// act on itself (SDP blobs, ICE candidates, file descriptions) stays opaque
// in Data/FileList.
type Envelope struct {
	Type        MessageType     `json:"type"`
	DeviceID    string          `json:"deviceId,omitempty"`
	DeviceName  string          `json:"deviceName,omitempty"`
	Target      string          `json:"target,omitempty"`
	From        string          `json:"from,omitempty"`
	RoomID      string          `json:"roomId,omitempty"`
	RequesterID string          `json:"requesterId,omitempty"`
	Status      string          `json:"status,omitempty"`
	Progress    *int            `json:"progress,omitempty"`
	FileIndex   *int            `json:"fileIndex,omitempty"`
	FileList    json.RawMessage `json:"fileList,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Room        *Room           `json:"room,omitempty"`
	Devices     []DeviceInfo    `json:"devices,omitempty"`
	Error       string          `json:"error,omitempty"`
}
