package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetboard/fleetboard/internal/api/middleware"
	"github.com/fleetboard/fleetboard/internal/api/response"
	"github.com/fleetboard/fleetboard/internal/api/validation"
	"github.com/fleetboard/fleetboard/internal/auth"
)

type updateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// UserHandler handles user management endpoints. All routes are
// admin-gated by the router.
type UserHandler struct {
	users auth.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users auth.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	filter := auth.ListFilter{
		Page:  parseIntParam(r, "page", 1),
		Limit: parseIntParam(r, "limit", 20),
	}

	if roleStr := r.URL.Query().Get("role"); roleStr != "" {
		role, ok := auth.ParseRole(roleStr)
		if !ok {
			response.Err(w, http.StatusBadRequest, "INVALID_QUERY", "role must be one of: admin, supervisor", requestID)
			return
		}
		filter.Role = &role
	}

	result, err := h.users.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(result.Users))
	for i := range result.Users {
		items = append(items, newUserResponse(&result.Users[i]))
	}

	response.SuccessList(w, http.StatusOK, items, response.Page{
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		HasMore:    result.HasMore,
	}, requestID)
}

// GetByID handles GET /users/{id}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to get user", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get user", requestID)
		return
	}

	response.Success(w, http.StatusOK, newUserResponse(u), requestID)
}

// Update handles PATCH /users/{id} (name and role only; emails and
// password changes are not in scope for this endpoint).
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{
		Name: req.Name,
		Role: req.Role,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	fields := auth.UpdateFields{Name: req.Name}
	if req.Role != nil {
		role, _ := auth.ParseRole(*req.Role) // already validated
		fields.Role = &role
	}

	u, err := h.users.Update(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to update user", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user", requestID)
		return
	}

	response.Success(w, http.StatusOK, newUserResponse(u), requestID)
}

// parseIntParam reads an integer query parameter, falling back to a
// default on absence or garbage. Range clamping happens in the repository.
func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
