package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// requireChat answers 503 when no chat service is configured.
func (h *handlers) requireChat(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.env.Chat == nil {
			writeMessage(w, http.StatusServiceUnavailable, "Chatbot not initialized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.env.Chat.CreateSession(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sess.ID})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func decodeChatRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.SessionID == "" {
		return req, badRequest("session_id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, badRequest("message is required")
	}
	return req, nil
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := h.env.Chat.Ask(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// streamChunk is one server-sent event of a streamed answer.
type streamChunk struct {
	Success      bool   `json:"success"`
	Chunk        string `json:"chunk"`
	SessionID    string `json:"session_id"`
	Done         bool   `json:"done"`
	FullResponse string `json:"full_response,omitempty"`
	Error        string `json:"error,omitempty"`
}

// eventWriter frames chunks as "data: {json}\n\n" events. Headers go out
// with the first event, so errors before it still get a JSON status reply.
type eventWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func (e *eventWriter) send(c streamChunk) error {
	if !e.started {
		e.started = true
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := e.rc.Flush(); err != nil {
		zap.L().Debug("chat stream: flush", zap.Error(err))
	}
	return nil
}

func (h *handlers) chatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev := &eventWriter{w: w, rc: http.NewResponseController(w)}
	reply, err := h.env.Chat.AskStream(r.Context(), req.SessionID, req.Message, func(text string) error {
		return ev.send(streamChunk{Success: true, Chunk: text, SessionID: req.SessionID})
	})
	if err != nil {
		if !ev.started {
			writeError(w, r, err)
			return
		}
		zap.L().Warn("chat stream: aborted", zap.String("session_id", req.SessionID), zap.Error(err))
		_ = ev.send(streamChunk{SessionID: req.SessionID, Done: true, Error: err.Error()})
		return
	}
	_ = ev.send(streamChunk{Success: true, SessionID: req.SessionID, Done: true, FullResponse: reply.Answer})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := h.env.Chat.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": msgs, "session_id": id})
}

func (h *handlers) generateSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := h.env.Chat.Summarise(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary, "session_id": id})
}

func (h *handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := h.env.Chat.Summary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summary == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "No summary found for this session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary, "session_id": id})
}

func (h *handlers) sessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := h.env.Chat.Sessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": sessions})
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Chat.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Session deleted successfully"})
}
