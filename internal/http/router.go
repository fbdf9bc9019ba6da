package httpserver

import (
	"log"
	"net/http"

	"github.com/johnlen7/teacher-sarah/internal/http/handlers"
	"github.com/johnlen7/teacher-sarah/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/events", deps.API.Events)
	mux.HandleFunc("/v1/status", deps.API.Status)
	mux.HandleFunc("/v1/stats", deps.API.Stats)
	mux.HandleFunc("/v1/history/", deps.API.History)
	mux.HandleFunc("/v1/users/", deps.API.Users)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
