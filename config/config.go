package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Liveness       LivenessConfig
	Redis          RedisConfig
	Rendezvous     RendezvousConfig
	Discovery      DiscoveryConfig
}

// LivenessConfig drives the periodic sweep that evicts silent devices and
// reclaims abandoned rooms.
type LivenessConfig struct {
	SweepInterval time.Duration
	DeviceTimeout time.Duration
	RoomTTL       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RendezvousConfig configures the embedded STUN/TURN listener that WebRTC
// peers use for session establishment. It runs on its own UDP port,
// independent of the relay's websocket transport, and is enabled by
// providing credentials.
type RendezvousConfig struct {
	Port     int
	Realm    string
	PublicIP string
	Users    string // comma-separated user=password pairs
}

func (c RendezvousConfig) Enabled() bool {
	return c.Users != ""
}

// DiscoveryConfig controls the mDNS advertisement that lets devices find the
// relay on the local network without manual configuration.
type DiscoveryConfig struct {
	Enabled  bool
	Instance string
}

func Load() *Config {
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Liveness: LivenessConfig{
			SweepInterval: getDuration("SWEEP_INTERVAL", 5*time.Second),
			DeviceTimeout: getDuration("DEVICE_TIMEOUT", 15*time.Second),
			RoomTTL:       getDuration("ROOM_TTL", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Rendezvous: RendezvousConfig{
			Port:     getInt("RENDEZVOUS_PORT", 3478),
			Realm:    getEnv("RENDEZVOUS_REALM", "lanbeam.local"),
			PublicIP: getEnv("RENDEZVOUS_PUBLIC_IP", "127.0.0.1"),
			Users:    getEnv("RENDEZVOUS_USERS", ""),
		},
		Discovery: DiscoveryConfig{
			Enabled:  getBool("MDNS_ENABLED", true),
			Instance: getEnv("MDNS_INSTANCE", "LanBeam Relay"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
