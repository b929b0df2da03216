package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"flashnotes-backend/internal/flashcards"
	"flashnotes-backend/internal/models"
	"flashnotes-backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, tokens, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	tokens, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	tokens, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	h.authService.Logout(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(r),
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     message,
		Code:      code,
		Fields:    fields,
		RequestID: requestID(r),
	}
}

// requestID prefers the id chi's RequestID middleware generated.
func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *services.ValidationError
		conflict     *services.ConflictError
		notFound     *services.NotFoundError
		unauthorized *services.UnauthorizedError
		forbidden    *services.ForbiddenError
		rateLimit    *services.RateLimitError
		payment      *services.PaymentRequiredError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validation.Fields, r))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflict.Message, r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", unauthorized.Message, r))
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", forbidden.Message, r))
	case errors.As(err, &rateLimit):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimit.Message, r))
	case errors.As(err, &payment):
		writeJSON(w, http.StatusPaymentRequired, errorResp("UPGRADE_REQUIRED", payment.Message, r))
	case flashcards.KindOf(err) == flashcards.KindInput:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No notes provided", r))
	case flashcards.KindOf(err) == flashcards.KindNoViableSentences:
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("NO_VIABLE_SENTENCES", "Could not generate flashcards from the provided text.", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An internal server error occurred.", r))
	}
}
