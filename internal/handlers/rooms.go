package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lanbeam/relay/internal/registry"
	"github.com/lanbeam/relay/internal/router"
	"github.com/lanbeam/relay/internal/store"
)

// ListDevices reports the devices currently registered with the relay.
func ListDevices(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"devices": reg.Snapshot()})
	}
}

// ListRooms reports every live room.
func ListRooms(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": st.List()})
	}
}

// GetRoom reports one room by id.
func GetRoom(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := st.Get(c.Param("roomId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": store.ErrRoomNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

// DissolveRoom force-closes a room (requires authentication). Members
// receive a dissolved room-update broadcast.
func DissolveRoom(rt *router.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if !rt.DissolveRoom(roomID) {
			c.JSON(http.StatusNotFound, gin.H{"error": store.ErrRoomNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "room dissolved"})
	}
}
