package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountservice "github.com/zhouzirui/moodchat/backend/internal/service/account"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// maxCredentialBytes bounds a login or signup body.
const maxCredentialBytes = 4 << 10

// Handler serves the mocked login and signup endpoints.
type Handler struct {
	accounts *accountservice.Service
}

// New creates an account handler.
func New(accounts *accountservice.Service) *Handler {
	return &Handler{accounts: accounts}
}

// RegisterRoutes mounts /login and /signup.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignUp)
}

type credentials struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialBytes)).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Login(payload.Username, payload.Password); err != nil {
		respondAccountError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"username": payload.Username,
	})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialBytes)).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.SignUp(payload.Username, payload.Password, payload.ConfirmPassword); err != nil {
		respondAccountError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"status":   "created",
		"username": payload.Username,
	})
}

func respondAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accountservice.ErrMissingFields), errors.Is(err, accountservice.ErrPasswordMismatch):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accountservice.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, accountservice.ErrUserExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		logx.Error().Err(err).Msg("account request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
