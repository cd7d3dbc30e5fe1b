// Package httpapi exposes assistant sessions over JSON HTTP and a live
// websocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/platform/httpx"
	"github.com/vmitra/vmitra/internal/platform/logging"
	"github.com/vmitra/vmitra/internal/services/assistant/session"
	"github.com/vmitra/vmitra/internal/services/assistant/summary"
	"github.com/vmitra/vmitra/internal/services/business/history"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// Frame types exchanged on the live socket.
const (
	FrameText       = "text"
	FrameEnd        = "end"
	FrameTranscript = "transcript"
	FrameTool       = "tool"
	FrameError      = "error"
	FrameSaved      = "saved"
)

// Handler serves assistant endpoints.
type Handler struct {
	sessions   *session.Registry
	summarizer *summary.Summarizer
	logger     *zap.Logger
}

// NewHandler builds a handler. A nil summarizer disables the summary route.
func NewHandler(sessions *session.Registry, summarizer *summary.Summarizer, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, summarizer: summarizer, logger: logging.OrNop(logger)}
}

// Register mounts every route on mux, wrapping each with protect.
func (h *Handler) Register(mux *http.ServeMux, protect httpx.Middleware) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	routes := map[string]http.Handler{
		"POST /api/v1/assistant/sessions":            http.HandlerFunc(h.handleStart),
		"POST /api/v1/assistant/sessions/{id}/turns": http.HandlerFunc(h.handleTurn),
		"POST /api/v1/assistant/sessions/{id}/end":   http.HandlerFunc(h.handleEnd),
		"GET /api/v1/assistant/live":                 websocket.Handler(h.handleLive),
	}
	if h.summarizer != nil {
		routes["GET /api/v1/assistant/summary"] = http.HandlerFunc(h.handleSummary)
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, protect(handler))
	}
}

type startRequest struct {
	Language string `json:"language"`
	Location string `json:"location"`
}

type turnRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.summarizer.Summarize(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}
	info, err := h.sessions.Start(r.Context(), req.Language, req.Location)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, info)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	result, err := h.sessions.Turn(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		if len(result.Tools) == 0 {
			httpx.WriteError(w, err)
			return
		}
		code := apperrors.CodeOf(err)
		_ = httpx.WriteJSON(w, code.HTTPStatus(), turnErrorBody{
			Error:   httpx.ErrorDetail{Code: code, Message: apperrors.MessageOf(err)},
			Tools:   result.Tools,
			Message: result.Message,
		})
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

// turnErrorBody is the error envelope for a turn that failed after its
// tools already ran.
type turnErrorBody struct {
	Error   httpx.ErrorDetail     `json:"error"`
	Tools   []session.ToolOutcome `json:"tools"`
	Message string                `json:"message,omitempty"`
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.End(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

// clientFrame is one message sent by the browser.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// serverFrame is one message pushed to the browser.
type serverFrame struct {
	Type      string         `json:"type"`
	Role      history.Role   `json:"role,omitempty"`
	Text      string         `json:"text,omitempty"`
	Name      string         `json:"name,omitempty"`
	Message   string         `json:"message,omitempty"`
	Success   *bool          `json:"success,omitempty"`
	Code      apperrors.Code `json:"code,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	ChatID    string         `json:"chatId,omitempty"`
}

func errorFrame(err error) serverFrame {
	return serverFrame{Type: FrameError, Code: apperrors.CodeOf(err), Message: apperrors.MessageOf(err)}
}

func (h *Handler) handleLive(conn *websocket.Conn) {
	ctx := conn.Request().Context()
	query := conn.Request().URL.Query()
	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	send := func(frame serverFrame) bool {
		if err := encoder.Encode(frame); err != nil {
			h.logger.Debug("assistant live write failed", zap.Error(err))
			return false
		}
		return true
	}

	info, err := h.sessions.Start(ctx, query.Get("language"), query.Get("location"))
	if err != nil {
		send(errorFrame(err))
		return
	}
	ended := false
	defer func() {
		if ended {
			return
		}
		// The request context may already be done once the peer hangs up.
		if _, err := h.sessions.End(context.WithoutCancel(ctx), info.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
			h.logger.Error("assistant live close failed", zap.String("session_id", info.ID), zap.Error(err))
		}
	}()

	for {
		var frame clientFrame
		if err := decoder.Decode(&frame); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("assistant live read failed", zap.String("session_id", info.ID), zap.Error(err))
			}
			return
		}

		switch strings.TrimSpace(frame.Type) {
		case FrameText:
			if !h.liveTurn(ctx, info.ID, frame.Text, send) {
				return
			}
		case FrameEnd:
			ended = true
			result, err := h.sessions.End(ctx, info.ID)
			if err != nil {
				send(errorFrame(err))
				return
			}
			saved := serverFrame{Type: FrameSaved, SessionID: result.SessionID}
			if result.Chat != nil {
				saved.ChatID = result.Chat.ID
			}
			send(saved)
			return
		default:
			err := apperrors.New(apperrors.CodeInvalidRequest, "unknown frame type "+frame.Type)
			if !send(errorFrame(err)) {
				return
			}
		}
	}
}

// liveTurn runs one turn and streams its frames. It reports whether the
// socket is still writable.
func (h *Handler) liveTurn(ctx context.Context, sessionID, text string, send func(serverFrame) bool) bool {
	text = strings.TrimSpace(text)
	if text != "" && !send(serverFrame{Type: FrameTranscript, Role: history.RoleUser, Text: text}) {
		return false
	}
	result, err := h.sessions.Turn(ctx, sessionID, text)
	for _, outcome := range result.Tools {
		success := outcome.Success
		if !send(serverFrame{Type: FrameTool, Name: outcome.Name, Message: outcome.Message, Success: &success}) {
			return false
		}
	}
	if err != nil {
		return send(errorFrame(err))
	}
	if result.Text != "" {
		return send(serverFrame{Type: FrameTranscript, Role: history.RoleAI, Text: result.Text})
	}
	return true
}
