package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	accounthandler "github.com/zhouzirui/moodchat/backend/internal/handler/account"
	"github.com/zhouzirui/moodchat/backend/internal/handler/chat"
	"github.com/zhouzirui/moodchat/backend/internal/handler/stream"
	"github.com/zhouzirui/moodchat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/moodchat/backend/internal/middleware"
	accountService "github.com/zhouzirui/moodchat/backend/internal/service/account"
	chatService "github.com/zhouzirui/moodchat/backend/internal/service/chat"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// Deps are the services exposed over HTTP.
type Deps struct {
	Pipeline      *pipeline.Service
	Store         chatService.Store
	Accounts      *accountService.Service
	AllowedOrigin string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chat.New(deps.Pipeline, deps.Store)
	streamHandler := stream.New(deps.Pipeline)
	wsHandler := ws.New(deps.Pipeline, deps.AllowedOrigin)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		if deps.Accounts != nil {
			accounthandler.New(deps.Accounts).RegisterRoutes(api)
		}
	})

	return r
}
