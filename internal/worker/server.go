// Package worker exposes keybridge's shortcut emulation as a small HTTP API,
// so test harnesses in any language can drive it without linking Go code.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/keybridge-cli/keybridge/internal/config"
	"github.com/keybridge-cli/keybridge/internal/keycombo"
)

const commandTimeout = 30 * time.Second

// Automator is what the server needs from the browser layer.
type Automator interface {
	keycombo.Bridge
	ResolveSelector(ctx context.Context, selector string) (string, error)
	Navigate(ctx context.Context, url string) error
	Selection(ctx context.Context) (string, error)
	Available() bool
	Close()
}

// PressRecord describes one emulated shortcut, streamed to /events
// subscribers.
type PressRecord struct {
	Selector  string `json:"selector"`
	Key       string `json:"key"`
	Requested string `json:"requested"`
	Modifier  string `json:"modifier"`
	Platform  string `json:"platform"`
	Timestamp int64  `json:"ts"`
}

// Server serves the automation API over HTTP.
type Server struct {
	cfg  config.Config
	auto Automator

	upgrader websocket.Upgrader

	subsMu sync.Mutex
	subs   map[*websocket.Conn]bool

	httpSrv *http.Server
}

func NewServer(cfg config.Config, auto Automator) *Server {
	return &Server{
		cfg:  cfg,
		auto: auto,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]bool),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check - no auth
	mux.HandleFunc("/health", s.handleHealth)

	// All other endpoints require auth
	mux.HandleFunc("/", s.handleAPI)

	return corsMiddleware(mux)
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", s.cfg.Worker.Port),
		Handler: s.Handler(),
	}
	log.Printf("[worker] HTTP server listening on port %d", s.cfg.Worker.Port)
	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes the browser connection.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[worker] Shutting down...")
	s.subsMu.Lock()
	for conn := range s.subs {
		conn.Close()
	}
	s.subs = make(map[*websocket.Conn]bool)
	s.subsMu.Unlock()

	s.auto.Close()
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// verifyAuth accepts a Bearer token or a token query parameter. An empty
// configured token disables auth.
func (s *Server) verifyAuth(r *http.Request) bool {
	token := s.cfg.Worker.AuthToken
	if token == "" {
		return true
	}

	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			if auth[7:] == token {
				return true
			}
		} else if auth == token {
			return true
		}
	}

	return r.URL.Query().Get("token") == token
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, map[string]interface{}{
		"status": "ok",
	})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if !s.verifyAuth(r) {
		w.WriteHeader(http.StatusUnauthorized)
		sendJSON(w, map[string]string{"error": "Unauthorized"})
		return
	}

	if path == "/events" {
		s.handleEvents(w, r)
		return
	}

	// Parse body for POST requests
	var body map[string]interface{}
	if r.Method == "POST" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			w.WriteHeader(http.StatusBadRequest)
			sendJSON(w, map[string]string{"error": "Invalid JSON"})
			return
		}
		if body == nil {
			body = make(map[string]interface{})
		}
	}

	switch path {
	case "/status":
		s.handleStatus(w, r)
	case "/platform":
		s.handlePlatform(w, r)
	case "/selection":
		s.handleSelection(w, r)
	case "/open":
		s.handleOpen(w, r, body)
	case "/press":
		s.handlePress(w, r, body)
	default:
		w.WriteHeader(http.StatusNotFound)
		sendJSON(w, map[string]string{"error": "Not found"})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, map[string]interface{}{
		"cdpAvailable": s.auto.Available(),
	})
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	platform, err := s.platform(ctx)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"platform": platform,
			"modifier": string(keycombo.DeriveModifier(platform)),
		},
	})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	text, err := s.auto.Selection(ctx)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, map[string]interface{}{
		"data": map[string]interface{}{"selection": text},
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
	url, _ := body["url"].(string)
	if url == "" {
		w.WriteHeader(http.StatusBadRequest)
		sendJSON(w, map[string]string{"error": "url required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.auto.Navigate(ctx, url); err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, map[string]interface{}{
		"data": map[string]interface{}{"url": url},
	})
}

func (s *Server) handlePress(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
	selector, _ := body["selector"].(string)
	key, _ := body["key"].(string)
	if selector == "" || key == "" {
		w.WriteHeader(http.StatusBadRequest)
		sendJSON(w, map[string]string{"error": "selector and key required"})
		return
	}

	modifier, _ := body["modifier"].(string)
	if modifier == "" {
		modifier = "Control"
	}
	requested, err := keycombo.ParseModifier(modifier)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		sendJSON(w, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	element, err := s.auto.ResolveSelector(ctx, selector)
	if err != nil {
		sendError(w, err)
		return
	}

	platform, err := s.platform(ctx)
	if err != nil {
		sendError(w, err)
		return
	}

	// Pin the platform for this press so the record below matches the
	// events that were actually dispatched.
	bridge := keycombo.FixedPlatform(s.auto, platform)
	if err := keycombo.Press(ctx, bridge, element, key, requested); err != nil {
		log.Printf("[worker] press %s on %s failed: %v", key, selector, err)
		sendError(w, err)
		return
	}

	derived := string(keycombo.DeriveModifier(platform))
	s.broadcast(PressRecord{
		Selector:  selector,
		Key:       key,
		Requested: string(requested),
		Modifier:  derived,
		Platform:  platform,
		Timestamp: time.Now().UnixMilli(),
	})

	sendJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"pressed":  key,
			"selector": selector,
			"modifier": derived,
			"platform": platform,
		},
	})
}

// platform returns the configured override, or asks the page.
func (s *Server) platform(ctx context.Context) (string, error) {
	if s.cfg.Emulate.Platform != "" {
		return s.cfg.Emulate.Platform, nil
	}
	return s.auto.Platform(ctx)
}

// =============================================================================
// Events stream
// =============================================================================

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[worker] Failed to accept WebSocket: %v", err)
		return
	}

	s.subsMu.Lock()
	s.subs[conn] = true
	s.subsMu.Unlock()

	// Drain the connection to notice the client going away.
	go func() {
		defer func() {
			s.subsMu.Lock()
			delete(s.subs, conn)
			s.subsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcast(rec PressRecord) {
	msg, err := json.Marshal(rec)
	if err != nil {
		return
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for conn := range s.subs {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			delete(s.subs, conn)
			conn.Close()
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, err error) {
	sendJSON(w, map[string]interface{}{"error": err.Error()})
}
