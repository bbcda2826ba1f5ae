package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server serves live refresh and standings events
type Server struct {
	server *http.Server
	hub    *Hub
	log    *logrus.Entry
}

// NewServer creates a new WebSocket server around hub
func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		log: logrus.WithField("component", "websocket"),
	}
}

// Hub returns the server's hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the websocket routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/live", s.handleLive)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start runs the hub and listens on port. It blocks until shutdown.
func (s *Server) Start(port string) error {
	go s.hub.Run()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: s.Handler(),
	}

	s.log.Infof("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}

// Shutdown stops the hub and the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
