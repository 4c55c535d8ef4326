package store

import "errors"

// Domain errors for room commands. Each one is local to a single command and
// is reported back to the originating connection only; none of them is fatal
// to a connection.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomTransferring = errors.New("room transfer already started")
	ErrNotHost          = errors.New("only the room host can do that")
	ErrMemberNotFound   = errors.New("member not found in room")
	ErrHostOffline      = errors.New("room host is offline")
)
