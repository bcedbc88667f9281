package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"drivemap/core"
	"drivemap/embed"
	"drivemap/ml"
	"drivemap/service"
	"drivemap/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

var validate = validator.New()

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 1 << 20

// createHardDriveRequest is the payload for registering a new drive
type createHardDriveRequest struct {
	SerialNumber string  `json:"serial_number" validate:"required"`
	CapacityGB   int     `json:"capacity_gb" validate:"required,gt=0"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Elevation    float64 `json:"elevation"`
	Status       string  `json:"status" validate:"required"`
	Facility     string  `json:"facility" validate:"required"`
}

// updateStatusRequest is the payload for a status transition
type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

// respondError maps domain errors onto HTTP status codes
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrDuplicateSerial):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrDeviceNotFound):
		status = http.StatusNotFound
	case core.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, embed.ErrUnavailable), errors.Is(err, ml.ErrUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		a.logger.Errorw("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}

	a.respondJSON(w, map[string]string{"error": err.Error()}, status)
}

// decodeJSON decodes a bounded JSON request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// parseFacility resolves an optional facility filter
func parseFacility(raw string) (*core.Facility, error) {
	if raw == "" {
		return nil, nil
	}
	facility := core.Facility(raw)
	if !facility.IsValid() {
		return nil, &core.ValidationError{Field: "facility", Reason: fmt.Sprintf("unknown facility %q", raw)}
	}
	return &facility, nil
}

func (a *API) createHardDrive(w http.ResponseWriter, r *http.Request) {
	var req createHardDriveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	device, err := a.inventory.CreateDevice(r.Context(), service.CreateDeviceParams{
		SerialNumber: req.SerialNumber,
		CapacityGB:   req.CapacityGB,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Elevation:    req.Elevation,
		Status:       core.Status(req.Status),
		Facility:     core.Facility(req.Facility),
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, device, http.StatusCreated)
}

func (a *API) listHardDrives(w http.ResponseWriter, r *http.Request) {
	facility, err := parseFacility(r.URL.Query().Get("facility"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	devices, err := a.inventory.GetAllDevices(r.Context(), facility)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, devices, http.StatusOK)
}

func (a *API) getHardDrive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	device, err := a.inventory.GetDevice(r.Context(), id)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, device, http.StatusOK)
}

func (a *API) getNearbyHardDrives(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	latitude, err := strconv.ParseFloat(query.Get("latitude"), 64)
	if err != nil {
		http.Error(w, "Invalid latitude", http.StatusBadRequest)
		return
	}
	longitude, err := strconv.ParseFloat(query.Get("longitude"), 64)
	if err != nil {
		http.Error(w, "Invalid longitude", http.StatusBadRequest)
		return
	}
	radiusKm, err := strconv.ParseFloat(query.Get("radius_km"), 64)
	if err != nil {
		http.Error(w, "Invalid radius_km", http.StatusBadRequest)
		return
	}
	facility, err := parseFacility(query.Get("facility"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	devices, err := a.inventory.QueryNearby(r.Context(), latitude, longitude, radiusKm, facility)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, devices, http.StatusOK)
}

func (a *API) updateHardDriveStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	device, err := a.inventory.UpdateStatus(r.Context(), id, core.Status(req.Status))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, device, http.StatusOK)
}

func (a *API) listHardDrivesByFacility(w http.ResponseWriter, r *http.Request) {
	facility, err := parseFacility(mux.Vars(r)["facility"])
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	devices, err := a.inventory.GetAllDevices(r.Context(), facility)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, devices, http.StatusOK)
}

func (a *API) getFacilityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.inventory.GetStats(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, stats, http.StatusOK)
}

func (a *API) getSimilarHardDrives(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	devices, err := a.inventory.QuerySimilar(r.Context(), id, limit)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, devices, http.StatusOK)
}

func (a *API) predictFailures(w http.ResponseWriter, r *http.Request) {
	predictions, err := a.inventory.PredictFailures(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, predictions, http.StatusOK)
}

func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, map[string]interface{}{
		"status":      "ok",
		"subscribers": a.hub.SubscriberCount(),
	}, http.StatusOK)
}
