package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/eventpilot/internal/calendar"
)

type UserHandler struct {
	svc    *calendar.Service
	logger *slog.Logger
}

func NewUserHandler(svc *calendar.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

type userRequest struct {
	FullName     string `json:"full_name"`
	EmailAddress string `json:"email_address"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := h.svc.CreateUser(r.Context(), req.FullName, req.EmailAddress)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Get returns the user together with their events_by_date schedule.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), id, req.FullName, req.EmailAddress)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
