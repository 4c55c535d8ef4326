// Package rendezvous runs the STUN/TURN listener that WebRTC peers use for
// session establishment. It lives on its own UDP port and the relay core
// never touches it; file bytes and ICE traffic stay out of the signaling
// path.
package rendezvous

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/pion/turn/v4"

	"github.com/lanbeam/relay/config"
)

// Server wraps the embedded TURN server lifecycle.
type Server struct {
	inner *turn.Server
}

// Start brings up the rendezvous listener with long-term credentials parsed
// from "user=password" pairs.
func Start(cfg config.RendezvousConfig) (*Server, error) {
	relayIP := net.ParseIP(cfg.PublicIP)
	if relayIP == nil {
		return nil, fmt.Errorf("invalid rendezvous public ip %q", cfg.PublicIP)
	}

	users := make(map[string][]byte)
	for _, pair := range strings.Split(cfg.Users, ",") {
		name, password, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid rendezvous credential %q, want user=password", pair)
		}
		users[name] = turn.GenerateAuthKey(name, cfg.Realm, password)
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:"+strconv.Itoa(cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("rendezvous listen: %w", err)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm: cfg.Realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			key, ok := users[username]
			return key, ok
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: conn,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rendezvous start: %w", err)
	}

	log.Printf("rendezvous: STUN/TURN listening on udp/%d (realm %s)", cfg.Port, cfg.Realm)
	return &Server{inner: server}, nil
}

// Close stops the listener. Safe on a nil receiver.
func (s *Server) Close() error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
