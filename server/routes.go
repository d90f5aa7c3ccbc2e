package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Unauthenticated
	s.RegisterRouteHandler("POST "+RouteSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSignin, ChainMiddleware(s.SigninHandler(), s.APIMiddleware()...))

	// Signout only needs a verifiable token, not a live one
	s.RegisterRouteHandler("POST "+RouteSignout, ChainMiddleware(s.SignoutHandler(), s.APIMiddleware()...))

	// Gate protected
	s.RegisterRouteHandler("POST "+RouteSignoutAll, ChainMiddleware(s.SignoutAllHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteSessions, ChainMiddleware(s.SessionsHandler(), s.APIMiddleware(s.RequireAuth())...))

	s.RegisterRouteHandler("POST "+RouteUserDevices, ChainMiddleware(s.RegisterDeviceHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireOwner())...))
	s.RegisterRouteHandler("GET "+RouteGetDevices, ChainMiddleware(s.ListDevicesHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireOwner())...))
	s.RegisterRouteHandler("GET "+RouteUserDevice, ChainMiddleware(s.GetDeviceHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireOwner())...))

	s.RegisterRouteHandler("POST "+RouteMetricsBatch, ChainMiddleware(s.MetricsBatchHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteMetricsHistory, ChainMiddleware(s.MetricsHistoryHandler(), s.APIMiddleware(s.RequireAuth(), s.RequireOwner())...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
