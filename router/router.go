package router

import (
	"database/sql"
	"fmt"
	"net/http"

	"mypeeps/config"
	"mypeeps/config/database"
	authHandler "mypeeps/internal/auth"
	authRepository "mypeeps/internal/auth/repository"
	authService "mypeeps/internal/auth/service"
	docHandler "mypeeps/internal/document"
	"mypeeps/internal/document/repository"
	"mypeeps/internal/document/service"
	"mypeeps/internal/media/local"
	"mypeeps/middleware"
	"mypeeps/pkg/metrics"
	"mypeeps/socket"

	"github.com/gorilla/mux"
)

// Server bundles the HTTP handler with the hub the caller must run.
type Server struct {
	Handler http.Handler
	Hub     *socket.Hub
	Tokens  *authService.JWTManager
}

func Setup(cfg *config.Server, db *sql.DB, dialect database.Dialect) (*Server, error) {
	tokens := authService.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	auth := middleware.AuthMiddleware(tokens)

	docRepo := repository.NewDocumentRepository(db, dialect)
	docService := service.NewDocumentService(docRepo, nil, cfg.Collections)
	hub := socket.NewHub(docService)
	docService.Hub = hub

	mediaStore, err := local.NewStore(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("media store: %w", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// WebSocket
	r.Handle("/ws", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.GetUserID(r.Context()))
	}))).Methods(http.MethodGet)

	// REST API
	api := r.PathPrefix("/api").Subrouter()
	authH := authHandler.NewAuthHandler(authService.NewAuthService(authRepository.NewUserRepository(db, dialect), tokens))
	authH.RegisterPublic(api)

	private := api.NewRoute().Subrouter()
	private.Use(auth)
	authH.RegisterPrivate(private)
	docHandler.NewDocumentHandler(docService).Register(private)

	// Media host
	local.NewHandler(mediaStore, cfg.MediaPublicURL).Register(r)

	handler := middleware.RequestLogger(middleware.SecurityHeaders(middleware.CORSMiddleware(cfg.CORSOrigins)(r)))
	return &Server{Handler: handler, Hub: hub, Tokens: tokens}, nil
}
