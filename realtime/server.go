// realtime/server.go
package realtime

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

// Server exposes the websocket endpoint on its own listener, beside the REST
// app. Browsers cannot set the gateway headers on a websocket handshake, so
// auth rides in query params: the gateway appends `token` (the shared service
// token) and `user_id` when it proxies the upgrade.
type Server struct {
	hub   *Hub
	token string
	http  *http.Server
}

func NewServer(hub *Hub, addr, serviceToken string) *Server {
	s := &Server{hub: hub, token: serviceToken}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWs)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	if token == "" || userID == "" {
		log.Printf("🚫 [WS_AUTH] Missing token or user_id in query for %s", r.RemoteAddr)
		http.Error(w, "missing token or user_id", http.StatusBadRequest)
		return
	}
	if token != s.token {
		log.Printf("❌ [WS_AUTH] Invalid token for %s (prefix: %.10s...)", r.RemoteAddr, token)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ServeWs(s.hub, userID, w, r)
}

// ListenAndServe blocks serving websocket upgrades.
func (s *Server) ListenAndServe() error {
	log.Printf("✅ Realtime websocket server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the listener and stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.Stop()
	return err
}
