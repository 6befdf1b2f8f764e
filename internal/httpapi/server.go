// internal/httpapi/server.go
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/user/voxchat/internal/types"
)

// ChatHandler processes one inbound turn and returns the finished result.
type ChatHandler func(ctx context.Context, turn *types.InboundTurn) (*types.TurnResult, error)

// Server is a lightweight HTTP handler for the chat API.
type Server struct {
	handler   ChatHandler
	sessions  types.SessionStore
	artifacts types.ArtifactStore
	apiToken  string
	mux       *http.ServeMux
}

// NewServer creates a Server. An empty apiToken disables authentication.
func NewServer(handler ChatHandler, sessions types.SessionStore, artifacts types.ArtifactStore, apiToken string) *Server {
	s := &Server{
		handler:   handler,
		sessions:  sessions,
		artifacts: artifacts,
		apiToken:  apiToken,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/audio/", s.handleAudio)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/sessions/", s.handleSessionHistory)
	s.mux.HandleFunc("DELETE /api/sessions/", s.handleSessionClear)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
// Everything under /api/ requires the bearer token when one is set.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.apiToken != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /api/chat. An empty or unknown
// session_id starts a fresh session.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	AudioID   string `json:"audio_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	result, err := s.handler(r.Context(), &types.InboundTurn{
		Source:    "http",
		SessionID: types.SessionID(req.SessionID),
		Text:      req.Message,
	})
	if err != nil {
		slog.Error("chat handler failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		Message:   result.Text,
		SessionID: string(result.SessionID),
		AudioID:   string(result.AudioID),
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/audio/")
	if id == "" {
		http.Error(w, `{"error":"artifact id required"}`, http.StatusBadRequest)
		return
	}

	artifact, err := s.artifacts.Get(r.Context(), types.ArtifactID(id))
	if err != nil {
		http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", artifact.Mime)
	w.Write(artifact.Data)
}

type sessionSummary struct {
	SessionID  string `json:"session_id"`
	TurnCount  int    `json:"turn_count"`
	CreatedAt  string `json:"created_at"`
	LastActive string `json:"last_active"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionSummary{
			SessionID:  string(sess.ID),
			TurnCount:  len(sess.Turns),
			CreatedAt:  sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			LastActive: sess.LastActive.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActive > result[j].LastActive
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type turnResponse struct {
	Role    string `json:"role"`
	Text    string `json:"text"`
	At      string `json:"at"`
	AudioID string `json:"audio_id,omitempty"`
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	turns, err := s.sessions.History(r.Context(), types.SessionID(id))
	if err != nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	result := make([]turnResponse, 0, len(turns))
	for _, turn := range turns {
		result = append(result, turnResponse{
			Role:    string(turn.Role),
			Text:    turn.Text,
			At:      turn.At.Format("2006-01-02T15:04:05Z07:00"),
			AudioID: string(turn.AudioID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	if err := s.sessions.Clear(r.Context(), types.SessionID(id)); err != nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared", "session_id": id})
}
