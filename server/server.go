package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-spar-server/auth"
	"github.com/jrsteele09/go-spar-server/devices"
	"github.com/jrsteele09/go-spar-server/internal/config"
	"github.com/jrsteele09/go-spar-server/metrics"
	"github.com/jrsteele09/go-spar-server/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Services holds the domain services the handlers delegate to.
type Services struct {
	Directory *users.Directory
	Issuer    *auth.SessionIssuer
	Gate      *auth.Gate
	Devices   *devices.Service
	Metrics   *metrics.Service
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	handler  http.Handler
	routes   []string
	config   config.Config
	services Services
	validate *validator.Validate
	gatherer prometheus.Gatherer
}

// New builds the HTTP surface. gatherer backs the /metrics endpoint.
func New(config config.Config, services Services, gatherer prometheus.Gatherer) (*Server, error) {
	if services.Directory == nil || services.Issuer == nil || services.Gate == nil {
		return nil, fmt.Errorf("[Server New] directory, issuer and gate are required")
	}
	if services.Devices == nil || services.Metrics == nil {
		return nil, fmt.Errorf("[Server New] device and metric services are required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		services: services,
		validate: validator.New(),
		gatherer: gatherer,
	}

	s.initRoutes()
	s.logRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   config.GetAllowedOrigins(),
		AllowedMethods:   config.GetAllowedMethods(),
		AllowedHeaders:   config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(s.mux)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
