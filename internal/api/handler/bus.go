package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetboard/fleetboard/internal/api/middleware"
	"github.com/fleetboard/fleetboard/internal/api/response"
	"github.com/fleetboard/fleetboard/internal/api/validation"
	"github.com/fleetboard/fleetboard/internal/bus"
)

type positionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type createBusRequest struct {
	LicensePlate string           `json:"licensePlate"`
	UnitName     string           `json:"unitName"`
	Status       string           `json:"status"`
	Route        *string          `json:"route"`
	Driver       *string          `json:"driver"`
	MovingTime   int              `json:"movingTime"`
	ParkedTime   int              `json:"parkedTime"`
	IsFavorite   bool             `json:"isFavorite"`
	Position     *positionRequest `json:"position"`
}

type updateBusRequest struct {
	UnitName   *string          `json:"unitName"`
	Status     *string          `json:"status"`
	Route      *string          `json:"route"`
	Driver     *string          `json:"driver"`
	MovingTime *int             `json:"movingTime"`
	ParkedTime *int             `json:"parkedTime"`
	IsFavorite *bool            `json:"isFavorite"`
	Position   *positionRequest `json:"position"`
}

type busResponse struct {
	ID           string        `json:"id"`
	LicensePlate string        `json:"licensePlate"`
	UnitName     string        `json:"unitName"`
	Status       string        `json:"status"`
	Route        *string       `json:"route"`
	Driver       *string       `json:"driver"`
	MovingTime   int           `json:"movingTime"`
	ParkedTime   int           `json:"parkedTime"`
	IsFavorite   bool          `json:"isFavorite"`
	Position     *bus.Position `json:"position"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

func newBusResponse(b *bus.Bus) busResponse {
	return busResponse{
		ID:           b.ID.String(),
		LicensePlate: b.LicensePlate,
		UnitName:     b.UnitName,
		Status:       string(b.Status),
		Route:        b.Route,
		Driver:       b.Driver,
		MovingTime:   b.MovingTime,
		ParkedTime:   b.ParkedTime,
		IsFavorite:   b.IsFavorite,
		Position:     b.Position,
		CreatedAt:    b.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:    b.UpdatedAt.UTC().Format(timestampFormat),
	}
}

// BusHandler handles bus CRUD endpoints.
type BusHandler struct {
	buses bus.Repository
}

// NewBusHandler creates a new BusHandler.
func NewBusHandler(buses bus.Repository) *BusHandler {
	return &BusHandler{buses: buses}
}

// Create handles POST /buses.
func (h *BusHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createBusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateBusRequest(validation.CreateBusRequest{
		LicensePlate: req.LicensePlate,
		UnitName:     req.UnitName,
		Status:       req.Status,
		MovingTime:   req.MovingTime,
		ParkedTime:   req.ParkedTime,
		Position:     positionPayload(req.Position),
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	b := &bus.Bus{
		LicensePlate: req.LicensePlate,
		UnitName:     req.UnitName,
		Route:        req.Route,
		Driver:       req.Driver,
		MovingTime:   req.MovingTime,
		ParkedTime:   req.ParkedTime,
		IsFavorite:   req.IsFavorite,
	}
	if req.Status != "" {
		status, _ := bus.ParseStatus(req.Status) // already validated
		b.Status = status
	}
	if req.Position != nil {
		b.Position = &bus.Position{Lat: *req.Position.Lat, Lng: *req.Position.Lng}
	}

	if err := h.buses.Create(r.Context(), b); err != nil {
		if errors.Is(err, bus.ErrDuplicatePlate) {
			response.Err(w, http.StatusConflict, "CONFLICT", "License plate is already registered", requestID)
			return
		}
		slog.Error("failed to create bus", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create bus", requestID)
		return
	}

	response.Success(w, http.StatusCreated, newBusResponse(b), requestID)
}

// List handles GET /buses.
func (h *BusHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	filter := bus.ListFilter{
		Page:  parseIntParam(r, "page", 1),
		Limit: parseIntParam(r, "limit", 20),
	}

	query := r.URL.Query()

	if statusStr := query.Get("status"); statusStr != "" {
		status, ok := bus.ParseStatus(statusStr)
		if !ok {
			response.Err(w, http.StatusBadRequest, "INVALID_QUERY", "status must be one of: parked, moving, maintenance", requestID)
			return
		}
		filter.Status = &status
	}
	if route := query.Get("route"); route != "" {
		filter.Route = &route
	}
	if fav := query.Get("isFavorite"); fav != "" {
		switch fav {
		case "true":
			v := true
			filter.IsFavorite = &v
		case "false":
			v := false
			filter.IsFavorite = &v
		default:
			response.Err(w, http.StatusBadRequest, "INVALID_QUERY", "isFavorite must be true or false", requestID)
			return
		}
	}

	result, err := h.buses.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list buses", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list buses", requestID)
		return
	}

	items := make([]busResponse, 0, len(result.Buses))
	for i := range result.Buses {
		items = append(items, newBusResponse(&result.Buses[i]))
	}

	response.SuccessList(w, http.StatusOK, items, response.Page{
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		HasMore:    result.HasMore,
	}, requestID)
}

// GetByID handles GET /buses/{id}.
func (h *BusHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	b, err := h.buses.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, bus.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Bus not found", requestID)
			return
		}
		slog.Error("failed to get bus", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get bus", requestID)
		return
	}

	response.Success(w, http.StatusOK, newBusResponse(b), requestID)
}

// Update handles PATCH /buses/{id}. An explicit JSON null on route, driver
// or position clears the field; an absent key leaves it unchanged.
func (h *BusHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	var req updateBusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	// A second decode into raw messages distinguishes "key": null from an
	// absent key, which plain struct decoding cannot.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateUpdateBusRequest(validation.UpdateBusRequest{
		UnitName:   req.UnitName,
		Status:     req.Status,
		MovingTime: req.MovingTime,
		ParkedTime: req.ParkedTime,
		Position:   positionPayload(req.Position),
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	fields := bus.UpdateFields{
		UnitName:      req.UnitName,
		Route:         req.Route,
		ClearRoute:    isNull(raw, "route"),
		Driver:        req.Driver,
		ClearDriver:   isNull(raw, "driver"),
		MovingTime:    req.MovingTime,
		ParkedTime:    req.ParkedTime,
		IsFavorite:    req.IsFavorite,
		ClearPosition: isNull(raw, "position"),
	}
	if req.Status != nil {
		status, _ := bus.ParseStatus(*req.Status) // already validated
		fields.Status = &status
	}
	if req.Position != nil {
		fields.Position = &bus.Position{Lat: *req.Position.Lat, Lng: *req.Position.Lng}
	}

	b, err := h.buses.Update(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, bus.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Bus not found", requestID)
			return
		}
		slog.Error("failed to update bus", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update bus", requestID)
		return
	}

	response.Success(w, http.StatusOK, newBusResponse(b), requestID)
}

// Delete handles DELETE /buses/{id}.
func (h *BusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	if err := h.buses.Remove(r.Context(), id); err != nil {
		if errors.Is(err, bus.ErrNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Bus not found", requestID)
			return
		}
		slog.Error("failed to delete bus", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete bus", requestID)
		return
	}

	response.NoContent(w)
}

func positionPayload(p *positionRequest) *validation.PositionPayload {
	if p == nil {
		return nil
	}
	return &validation.PositionPayload{Lat: p.Lat, Lng: p.Lng}
}

func isNull(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	return ok && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
