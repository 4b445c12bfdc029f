package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodchat/backend/internal/errx"
	modelchat "github.com/zhouzirui/moodchat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/moodchat/backend/internal/service/chat"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// Analyzer runs one chat turn.
type Analyzer interface {
	Analyze(ctx context.Context, user, input string) (pipeline.Result, error)
}

// Handler serves the per-user chat, emotion and history endpoints.
type Handler struct {
	analyzer Analyzer
	store    chatservice.Store
}

// New creates a chat handler.
func New(analyzer Analyzer, store chatservice.Store) *Handler {
	return &Handler{
		analyzer: analyzer,
		store:    store,
	}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/{user}/chat", h.handleChat)
	r.Get("/users/{user}/emotions", h.handleEmotions)
	r.Get("/users/{user}/history", h.handleHistory)
	r.Delete("/users/{user}/history", h.handleDelete)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	message, err := utils.DecodeMessage(w, r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.ErrInvalidBody.Error())
		return
	}
	if utils.IsBlank(message) {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), user, message)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEmotions(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	counts, err := h.store.EmotionCounts(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if r.URL.Query().Get("shape") == "map" {
		utils.RespondJSON(w, http.StatusOK, counts.Map())
		return
	}
	// Clients expect a one-element list carrying the total.
	utils.RespondJSON(w, http.StatusOK, []map[string]int{counts.MapWithTotal()})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	history, err := h.store.History(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if history == nil {
		history = []modelchat.Turn{}
	}

	utils.RespondJSON(w, http.StatusOK, history)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	if err := h.store.DeleteUser(r.Context(), user); err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, pipeline.ErrAnalysisFailed) {
		logx.Error().Err(err).Int("status", status).Msg("chat request failed")
	}
	utils.RespondError(w, status, errx.MessageOf(err))
}
