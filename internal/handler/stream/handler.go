package stream

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodchat/backend/internal/errx"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// Analyzer runs one chat turn.
type Analyzer interface {
	Analyze(ctx context.Context, user, input string) (pipeline.Result, error)
}

// Handler reports the stages of a chat turn via Server-Sent Events.
type Handler struct {
	analyzer Analyzer
}

// New creates a new stream handler
func New(analyzer Analyzer) *Handler {
	return &Handler{analyzer: analyzer}
}

// RegisterRoutes mounts the streaming chat route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/{user}/chat/stream", h.handleStream)
}

// AnalysisEvent describes how a turn was classified and routed.
type AnalysisEvent struct {
	Complexity string   `json:"complexity"`
	Emotions   []string `json:"emotions"`
	Vector     string   `json:"vector"`
	Model      string   `json:"model"`
	Degraded   bool     `json:"degraded,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	message, err := utils.DecodeMessage(w, r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.ErrInvalidBody.Error())
		return
	}
	if utils.IsBlank(message) {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "start", map[string]string{"user": user}); err != nil {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), user, message)
	if err != nil {
		logx.Warn().Err(err).Str("user", user).Msg("stream turn failed")
		_ = utils.SendSSEEvent(w, flusher, "error", map[string]any{
			"status": errx.StatusOf(err),
			"error":  errx.MessageOf(err),
		})
		return
	}

	events := []struct {
		name string
		data any
	}{
		{"analysis", AnalysisEvent{
			Complexity: string(result.Complexity),
			Emotions:   result.Emotions.Flagged(),
			Vector:     result.Emotions.String(),
			Model:      string(result.Model),
			Degraded:   result.Degraded,
		}},
		{"reply", map[string]string{"aiResponse": result.AIResponse}},
		{"history", result.ChatHistory},
		{"done", map[string]bool{"finished": true}},
	}
	for _, ev := range events {
		if err := utils.SendSSEEvent(w, flusher, ev.name, ev.data); err != nil {
			return
		}
	}
}
