package main

import (
	"net/http"
	"net/url"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/placepick/go/internal/auth"
	"github.com/mcdev12/placepick/go/internal/config"
	"github.com/mcdev12/placepick/go/internal/room"
	"github.com/mcdev12/placepick/go/internal/users"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg config.Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Connect-Protocol-Version"},
	})

	// Websocket routes outlive any request deadline
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
		registerServices(r, services)
	})
	services.Gateway.RegisterRoutes(r)

	r.Handle("/health", services.Health)
	r.Handle("/metrics", services.Health.MetricsHandler())

	// Setup HTTP/2 server
	return &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}
}

func registerServices(r chi.Router, services *Services) {
	interceptors := connect.WithInterceptors(auth.NewInterceptor(services.Issuer))

	userServicePath, userServiceHandler := users.NewUserServiceHandler(services.Users, interceptors)
	r.Mount(userServicePath, userServiceHandler)

	roomServicePath, roomServiceHandler := room.NewRoomServiceHandler(services.Rooms, interceptors)
	r.Mount(roomServicePath, roomServiceHandler)
}

// accessLog logs one line per request once it completes.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// originChecker applies the CORS origin list to websocket upgrades.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}
