package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"arxiv-scholar/internal/domain"
)

// handleAgentStream runs an agent query and streams each step as a
// server-sent event, one JSON object per event. The stream ends after the
// terminal done step. A client disconnect cancels the run through the
// request context.
func (s *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, domain.NewDomainError("gateway.agent", domain.ErrInvalidInput, "query parameter is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	session := s.sessions.GetOrCreate(r.URL.Query().Get("session_id"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-ID", session.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := domain.ContextWithSessionID(r.Context(), session.ID)
	for step := range s.agent.Run(ctx, session, query) {
		data, err := json.Marshal(step)
		if err != nil {
			s.logger.Warn("failed to encode step", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if err := s.sessions.Save(session.ID); err != nil {
		s.logger.Warn("failed to persist session", "session_id", session.ID, "error", err)
	}
}
