package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"arxiv-scholar/internal/adapter/tool"
	"arxiv-scholar/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRawJSON emits content that is already JSON-encoded.
func writeRawJSON(w http.ResponseWriter, status int, content string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(content))
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPaperNotFound),
		errors.Is(err, domain.ErrToolNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrProviderError):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(domain.ErrorCodeOf(err)),
	})
}

// runTool executes a registered tool with the given params. A ToolResult
// carrying IsError comes back as a normal result; transport failures come
// back as an error.
func (s *Server) runTool(r *http.Request, name string, params any) (*domain.ToolResult, error) {
	t, err := s.tools.Get(name)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return t.Execute(r.Context(), raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := q.Get("topic")
	if topic == "" {
		writeError(w, domain.NewDomainError("gateway.search", domain.ErrInvalidInput, "topic query parameter is required"))
		return
	}

	params := map[string]any{"topic": topic}
	if v := q.Get("max_results"); v != "" {
		var n int
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			writeError(w, domain.NewDomainError("gateway.search", domain.ErrInvalidInput, "max_results must be an integer"))
			return
		}
		params["max_results"] = n
	}
	for _, key := range []string{"sort_by", "date_from", "date_to"} {
		if v := q.Get(key); v != "" {
			params[key] = v
		}
	}

	result, err := s.runTool(r, "search_arxiv", params)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.IsError {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": result.Content})
		return
	}
	writeRawJSON(w, http.StatusOK, result.Content)
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.store.GetPaper(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.runTool(r, "summarize_paper", map[string]string{"article_id": id})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.IsError {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": result.Content})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "summary": result.Content})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.runTool(r, "explain_paper", map[string]string{"article_id": id})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.IsError {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": result.Content})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "explanation": result.Content})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	slugs, err := s.store.ListTopics()
	if err != nil {
		writeError(w, err)
		return
	}

	type topicOut struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	}
	topics := make([]topicOut, 0, len(slugs))
	for _, slug := range slugs {
		topics = append(topics, topicOut{Slug: slug, Title: tool.TopicTitle(slug)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(topics), "topics": topics})
}

func (s *Server) handleTopicPapers(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	papers, err := s.store.PapersByTopic(slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":  slug,
		"count":  len(papers),
		"papers": papers,
	})
}

type chatRequest struct {
	ArticleID string `json:"article_id"`
	Question  string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewDomainError("gateway.chat", domain.ErrInvalidInput, "malformed JSON body"))
		return
	}
	if req.ArticleID == "" || req.Question == "" {
		writeError(w, domain.NewDomainError("gateway.chat", domain.ErrInvalidInput, "article_id and question are required"))
		return
	}

	result, err := s.runTool(r, "chat_about_paper", req)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.IsError {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": result.Content})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ArticleID, "answer": result.Content})
}
