package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tutorhall/livehelp/internal/help"
)

// registerRoutes sets up all HTTP routes on the server mux. The /api
// surface is consumed by the external matcher that pairs students with
// tutors; the matching logic itself lives outside this service.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleRemoveSession)
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.registry.Count(),
		Clients:  s.EndpointCount(),
	})
}

// CreateSessionRequest is the matcher's session-creation payload.
type CreateSessionRequest struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
	TutorID     string `json:"tutorId,omitempty"`
	TutorName   string `json:"tutorName,omitempty"`
}

// SessionSummary describes one live session.
type SessionSummary struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	TutorID      string    `json:"tutorId,omitempty"`
	Attached     int       `json:"attached"`
	Posts        int       `json:"posts"`
	LastActivity time.Time `json:"lastActivity"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "studentId is required")
		return
	}

	student := help.Identity{ID: req.StudentID, Name: req.StudentName, Role: help.RoleStudent}
	session := help.NewSession(help.NewSessionID(), student, s.log.Sub("session"))
	if req.TutorID != "" {
		session.SetAcceptingStaff(help.Identity{ID: req.TutorID, Name: req.TutorName, Role: help.RoleTutor})
	}
	s.registry.Add(session)

	s.log.Info().Str("session", session.ID()).Str("student", req.StudentID).Msg("session created")
	writeJSON(w, http.StatusCreated, summarize(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.All()
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.registry.Remove(session)
	s.log.Info().Str("session", id).Msg("session removed")
	w.WriteHeader(http.StatusNoContent)
}

func summarize(s *help.Session) SessionSummary {
	summary := SessionSummary{
		ID:           s.ID(),
		StudentID:    s.Initiator().ID,
		Attached:     s.AttachedCount(),
		Posts:        len(s.ChatPosts()),
		LastActivity: s.LastActivity(),
	}
	if staff, ok := s.AcceptingStaff(); ok {
		summary.TutorID = staff.ID
	}
	return summary
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
