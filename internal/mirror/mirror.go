// Package mirror pushes a write-only copy of relay state into Redis so
// dashboards and other tooling can observe the fleet. The in-memory registry
// and room store stay authoritative: nothing is ever read back, and a
// restarted relay starts empty.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lanbeam/relay/config"
	"github.com/lanbeam/relay/internal/models"
)

const (
	keyTTL   = 24 * time.Hour
	opBudget = time.Second
)

// Mirror is safe for concurrent use. A Mirror built from an empty address is
// disabled and every method is a no-op, so callers never branch.
type Mirror struct {
	client *redis.Client
}

// Connect opens the Redis connection when configured. Writes are best-effort
// from then on; only the initial ping is allowed to fail the startup.
func Connect(cfg config.RedisConfig) (*Mirror, error) {
	if cfg.Addr == "" {
		return &Mirror{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Mirror{client: client}, nil
}

func (m *Mirror) Enabled() bool {
	return m != nil && m.client != nil
}

func (m *Mirror) Close() error {
	if !m.Enabled() {
		return nil
	}
	return m.client.Close()
}

// RoomUpdated mirrors the current room snapshot.
func (m *Mirror) RoomUpdated(room models.Room) {
	if !m.Enabled() {
		return
	}
	data, err := json.Marshal(room)
	if err != nil {
		log.Printf("mirror: marshal room %s: %v", room.ID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opBudget)
	defer cancel()
	if err := m.client.Set(ctx, "room:"+room.ID, data, keyTTL).Err(); err != nil {
		log.Printf("mirror: write room %s: %v", room.ID, err)
		return
	}
	m.client.SAdd(ctx, "rooms", room.ID)
	m.client.Expire(ctx, "rooms", keyTTL)
}

// RoomDeleted drops a dissolved or expired room from the mirror.
func (m *Mirror) RoomDeleted(roomID string) {
	if !m.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opBudget)
	defer cancel()
	m.client.Del(ctx, "room:"+roomID)
	m.client.SRem(ctx, "rooms", roomID)
}

// DevicesChanged mirrors the current device list.
func (m *Mirror) DevicesChanged(devices []models.DeviceInfo) {
	if !m.Enabled() {
		return
	}
	data, err := json.Marshal(devices)
	if err != nil {
		log.Printf("mirror: marshal device list: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opBudget)
	defer cancel()
	if err := m.client.Set(ctx, "devices", data, keyTTL).Err(); err != nil {
		log.Printf("mirror: write device list: %v", err)
	}
}
