package server

import (
	"net/http"

	"github.com/jrsteele09/go-spar-server/devices"
)

type registerDeviceRequest struct {
	DeviceName       string  `json:"deviceName" validate:"required,max=255"`
	Manufacturer     string  `json:"manufacturer" validate:"max=255"`
	Model            string  `json:"model" validate:"max=255"`
	Processor        string  `json:"processor" validate:"max=255"`
	CPUPhysicalCores int     `json:"cpuPhysicalCores" validate:"gte=0"`
	CPULogicalCores  int     `json:"cpuLogicalCores" validate:"gte=0"`
	InstalledRAM     float64 `json:"installedRam" validate:"gte=0"`
	Graphics         string  `json:"graphics" validate:"max=255"`
	OperatingSystem  string  `json:"operatingSystem" validate:"max=255"`
	SystemType       string  `json:"systemType" validate:"max=255"`
}

func (req registerDeviceRequest) toDevice() *devices.Device {
	return &devices.Device{
		DeviceName:       req.DeviceName,
		Manufacturer:     req.Manufacturer,
		Model:            req.Model,
		Processor:        req.Processor,
		CPUPhysicalCores: req.CPUPhysicalCores,
		CPULogicalCores:  req.CPULogicalCores,
		InstalledRAM:     req.InstalledRAM,
		Graphics:         req.Graphics,
		OperatingSystem:  req.OperatingSystem,
		SystemType:       req.SystemType,
	}
}

// RegisterDeviceHandler returns every device of the user, including the one
// just registered or the existing match for the same hardware.
func (s *Server) RegisterDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		var req registerDeviceRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		all, err := s.services.Devices.Register(r.Context(), userID, req.toDevice())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func (s *Server) ListDevicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		all, err := s.services.Devices.List(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func (s *Server) GetDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		deviceID, err := parseID(r.PathValue("deviceId"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		device, err := s.services.Devices.Get(r.Context(), userID, deviceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	}
}
