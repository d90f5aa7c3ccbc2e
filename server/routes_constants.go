package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteSignup     = "/api/auth/signup"
	RouteSignin     = "/api/auth/signin"
	RouteSignout    = "/api/auth/signout"
	RouteSignoutAll = "/api/auth/signout-all"
	RouteSessions   = "/api/auth/sessions"

	// Device Routes
	RouteUserDevices = "/api/users/{userId}/devices"
	RouteGetDevices  = "/api/users/{userId}/getdevices"
	RouteUserDevice  = "/api/users/{userId}/devices/{deviceId}"

	// Metric Routes
	RouteMetricsBatch   = "/api/metrics/batch"
	RouteMetricsHistory = "/api/metrics/{kind}/{userId}/{deviceId}"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
