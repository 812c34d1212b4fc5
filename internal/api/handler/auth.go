package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fleetboard/fleetboard/internal/api/middleware"
	"github.com/fleetboard/fleetboard/internal/api/response"
	"github.com/fleetboard/fleetboard/internal/api/validation"
	"github.com/fleetboard/fleetboard/internal/auth"
)

const timestampFormat = "2006-01-02T15:04:05Z"

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

type tokenPairResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// newUserResponse builds the public projection of a user. The password
// hash is not part of it.
func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt: u.UpdatedAt.UTC().Format(timestampFormat),
	}
}

// AuthHandler handles the register, login, refresh and profile endpoints.
type AuthHandler struct {
	service *auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateRegisterRequest(validation.RegisterRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	role, _ := auth.ParseRole(req.Role) // already validated

	result, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password, role)
	if err != nil {
		var policyErr *auth.PasswordPolicyError
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "CONFLICT", "Email is already registered", requestID)
		case errors.As(err, &policyErr):
			details := make([]validation.FieldError, 0, len(policyErr.Violations))
			for _, v := range policyErr.Violations {
				details = append(details, validation.FieldError{Field: "password", Message: v})
			}
			response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Password does not meet the policy", details, requestID)
		default:
			slog.Error("failed to register user", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, authResponse{
		User:         newUserResponse(result.User),
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
	}, requestID)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", requestID)
			return
		}
		slog.Error("failed to log in user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in", requestID)
		return
	}

	response.Success(w, http.StatusOK, authResponse{
		User:         newUserResponse(result.User),
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
	}, requestID)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if fieldErrors := validation.ValidateRefreshRequest(req.RefreshToken); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			response.Err(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Refresh token has expired", requestID)
		case errors.Is(err, auth.ErrTokenInvalid):
			response.Err(w, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token is invalid", requestID)
		default:
			slog.Error("failed to refresh tokens", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refresh tokens", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, tokenPairResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
	}, requestID)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication is required", requestID)
		return
	}

	u, err := h.service.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to get user profile", "error", err, "id", identity.UserID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile", requestID)
		return
	}

	response.Success(w, http.StatusOK, newUserResponse(u), requestID)
}
