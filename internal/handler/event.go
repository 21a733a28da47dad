package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/eventpilot/internal/calendar"
	"github.com/dukerupert/eventpilot/internal/model"
)

type EventHandler struct {
	svc    *calendar.Service
	logger *slog.Logger
}

func NewEventHandler(svc *calendar.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

type eventRequest struct {
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	StartTime             string   `json:"start_time"`
	EndTime               string   `json:"end_time"`
	OrganizerID           string   `json:"organizer_id"`
	ParticipantIDs        []string `json:"participant_ids"`
	Recurring             bool     `json:"recurring"`
	RecurrenceCount       int      `json:"recurrence_count"`
	RecurringStartingDate string   `json:"recurring_starting_date"`
}

// parseEvent decodes the body into an EventInput. Times are RFC3339; the
// recurring starting date may also be a bare YYYY-MM-DD.
func parseEvent(w http.ResponseWriter, r *http.Request) (calendar.EventInput, bool) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return calendar.EventInput{}, false
	}

	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time must be RFC3339 format"})
		return calendar.EventInput{}, false
	}
	endTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_time must be RFC3339 format"})
		return calendar.EventInput{}, false
	}

	in := calendar.EventInput{
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       startTime,
		EndTime:         endTime,
		OrganizerID:     req.OrganizerID,
		ParticipantIDs:  req.ParticipantIDs,
		Recurring:       req.Recurring,
		RecurrenceCount: req.RecurrenceCount,
	}
	if s := strings.TrimSpace(req.RecurringStartingDate); s != "" {
		starting, err := parseFlexibleTime(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recurring_starting_date must be RFC3339 or YYYY-MM-DD format"})
			return calendar.EventInput{}, false
		}
		in.RecurringStartingDate = &starting
	}
	return in, true
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// CreateBusy books a block on the organizer's schedule only.
func (h *EventHandler) CreateBusy(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.svc.CreateBusySchedule)
}

// CreateMeeting books the event for the organizer and every participant.
func (h *EventHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.svc.CreateMeeting)
}

func (h *EventHandler) create(w http.ResponseWriter, r *http.Request, book func(context.Context, calendar.EventInput) (*model.Event, error)) {
	in, ok := parseEvent(w, r)
	if !ok {
		return
	}

	event, err := book(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	event, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.svc.DeleteEvent(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireDate reads the date query parameter, writing a 400 when it is absent.
func requireDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date query parameter is required"})
		return "", false
	}
	return date, true
}

// ForUser lists the user's events on ?date= in booking order.
func (h *EventHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	date, ok := requireDate(w, r)
	if !ok {
		return
	}

	events, err := h.svc.EventsForUser(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	date, ok := requireDate(w, r)
	if !ok {
		return
	}

	events, err := h.svc.ConflictingEvents(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to find conflicts")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Calendar serves the user's day as text/calendar.
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	date, ok := requireDate(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportDay(r.Context(), &buf, id, date); err != nil {
		writeServiceError(w, h.logger, err, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+date+`.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type freeSlotResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration string    `json:"duration"`
}

// FreeSlots answers GET /api/free-slots?users=a,b&date=YYYY-MM-DD&duration=2h.
// duration_hours is accepted in place of duration.
func (h *EventHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := requireDate(w, r)
	if !ok {
		return
	}

	var users []string
	for _, v := range q["users"] {
		users = append(users, strings.Split(v, ",")...)
	}

	raw := q.Get("duration")
	if raw == "" {
		raw = q.Get("duration_hours")
	}
	minDuration, err := calendar.ParseDuration(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	slots, err := h.svc.FreeSlots(r.Context(), users, date, minDuration)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to find free slots")
		return
	}

	resp := make([]freeSlotResponse, len(slots))
	for i, s := range slots {
		resp[i] = freeSlotResponse{Start: s.Start, End: s.End, Duration: s.Duration().String()}
	}
	writeJSON(w, http.StatusOK, resp)
}
