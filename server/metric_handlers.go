package server

import (
	"net/http"
	"strconv"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/metrics"
)

// metricsBatchRequest mirrors the payload the desktop agent posts on each poll.
type metricsBatchRequest struct {
	UserID          uint                     `json:"userId" validate:"required"`
	DeviceID        uint                     `json:"deviceId" validate:"required"`
	BatteryInfo     *metrics.BatteryInfo     `json:"batteryInfo"`
	CPUUsage        *metrics.CPUUsage        `json:"cpuUsage"`
	RAMUsage        *metrics.RAMUsage        `json:"ramUsage"`
	DiskIO          *metrics.DiskIO          `json:"diskIO"`
	DiskUsage       []*metrics.DiskUsage     `json:"diskUsage"`
	ProcessStatuses []*metrics.ProcessStatus `json:"processStatuses"`
}

func (s *Server) MetricsBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req metricsBatchRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		userID, err := s.callerID(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if req.UserID != userID {
			writeServiceError(w, autherrors.ErrForbidden)
			return
		}

		batch := &metrics.Batch{
			UserID:          req.UserID,
			DeviceID:        req.DeviceID,
			BatteryInfo:     req.BatteryInfo,
			CPUUsage:        req.CPUUsage,
			RAMUsage:        req.RAMUsage,
			DiskIO:          req.DiskIO,
			DiskUsage:       req.DiskUsage,
			ProcessStatuses: req.ProcessStatuses,
		}
		if err := s.services.Metrics.Ingest(r.Context(), batch); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
	}
}

// MetricsHistoryHandler serves one series for a device, newest first. The
// optional limit query parameter is clamped by the metrics service.
func (s *Server) MetricsHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		kind, err := metrics.ParseKind(r.PathValue("kind"))
		if err != nil {
			writeJSONError(w, errorCodeNotFound, err.Error(), http.StatusNotFound)
			return
		}
		deviceID, err := parseID(r.PathValue("deviceId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				writeJSONError(w, errorCodeInvalidRequest, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
		}

		samples, err := s.services.Metrics.History(r.Context(), kind, userID, deviceID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, samples)
	}
}
