package api

import (
	"net/http"
	"path/filepath"
	"time"

	"birdwatch/internal/api/handler"
	"birdwatch/internal/api/middleware"
	"birdwatch/internal/app/service"
	"birdwatch/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	obsService *service.ObservationService,
	favService *service.FavoritesService,
	gate *middleware.SessionGate,
	staticDir string,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// Verifies the session token (Authorization header or "jwt" cookie) and
	// puts its claims in the request context. Enforcement happens per-route
	// in the session gate.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Static front-end
	if staticDir != "" {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
		})
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
		r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
			fileServer.ServeHTTP(w, r)
		})
	}

	// API Routes
	r.Route("/api", func(api chi.Router) {
		// Observation proxy (public, no session required)
		obsHandler := handler.NewObservationHandler(obsService)
		obsHandler.RegisterRoutes(api)

		// Accounts (register/login/user public, logout gated)
		authHandler := handler.NewAuthHandler(authService, gate)
		authHandler.RegisterRoutes(api)

		// Favorites (every route gated)
		favHandler := handler.NewFavoritesHandler(favService, gate)
		api.Route("/favorites", favHandler.RegisterRoutes)
	})

	return r
}
