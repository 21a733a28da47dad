package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukerupert/eventpilot/internal/ics"
	"github.com/dukerupert/eventpilot/internal/model"
	"github.com/dukerupert/eventpilot/internal/notify"
	"github.com/dukerupert/eventpilot/internal/schedule"
	"github.com/dukerupert/eventpilot/internal/store"
	"github.com/dukerupert/eventpilot/internal/telemetry"
)

type Service struct {
	users    *store.UserStore
	events   *store.EventStore
	schedule *store.ScheduleStore
	notifier notify.Notifier
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewService builds the service. A nil notifier disables notifications.
func NewService(users *store.UserStore, events *store.EventStore, sched *store.ScheduleStore, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Multi{}
	}
	return &Service{
		users:    users,
		events:   events,
		schedule: sched,
		notifier: notifier,
		tracer:   telemetry.Tracer(),
		logger:   logger,
	}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "calendar."+name, trace.WithAttributes(attrs...))
}

// end closes span, marking it failed when *errp is non-nil.
func end(span trace.Span, errp *error) {
	if err := *errp; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish hands msg to the notifiers. Delivery problems never fail the
// operation that caused them.
func (s *Service) publish(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("notify failed", "type", msg.Type, "id", msg.ID, "error", err)
	}
}

// CreateBusySchedule books an event on the organizer's schedule only.
// Participants, if any, are recorded on the event but their schedules are
// left alone.
func (s *Service) CreateBusySchedule(ctx context.Context, in EventInput) (_ *model.Event, err error) {
	ctx, span := s.start(ctx, "CreateBusySchedule", attribute.String("organizer.id", in.OrganizerID))
	defer end(span, &err)

	return s.createEvent(ctx, in, false)
}

// CreateMeeting books an event on the schedules of the organizer and every
// participant.
func (s *Service) CreateMeeting(ctx context.Context, in EventInput) (_ *model.Event, err error) {
	ctx, span := s.start(ctx, "CreateMeeting",
		attribute.String("organizer.id", in.OrganizerID),
		attribute.Int("participants", len(in.ParticipantIDs)),
	)
	defer end(span, &err)

	return s.createEvent(ctx, in, true)
}

func (s *Service) createEvent(ctx context.Context, in EventInput, shareWithParticipants bool) (*model.Event, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	organizer, err := s.users.GetByID(in.OrganizerID)
	if err != nil {
		return nil, err
	}
	if organizer == nil {
		return nil, fmt.Errorf("organizer %s: %w", in.OrganizerID, ErrUserNotFound)
	}

	participants, err := s.users.ListByIDs(in.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	if len(participants) != len(in.ParticipantIDs) {
		return nil, fmt.Errorf("participant %s: %w", missingID(in.ParticipantIDs, participants), ErrUserNotFound)
	}

	e := model.Event{
		Title:                 in.Title,
		Description:           in.Description,
		StartTime:             in.StartTime.UTC(),
		EndTime:               in.EndTime.UTC(),
		OrganizerID:           organizer.ID,
		Recurring:             in.Recurring,
		RecurrenceCount:       in.RecurrenceCount,
		RecurringStartingDate: in.RecurringStartingDate,
	}
	attendees := []string{organizer.ID}
	for _, p := range participants {
		e.Participants = append(e.Participants, p.Ref())
		if shareWithParticipants {
			attendees = append(attendees, p.ID)
		}
	}

	created, err := s.events.Create(e, attendees)
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", "id", created.ID, "date", created.DateKey(), "attendees", len(attendees))
	msg := notify.NewMessage("event", "created", created.ID, map[string]any{
		"title": created.Title,
		"date":  created.DateKey(),
	})
	msg.Users = attendees
	s.publish(ctx, msg)
	return created, nil
}

func missingID(ids []string, users []model.User) string {
	found := make(map[string]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return id
		}
	}
	return ""
}

func (s *Service) GetEvent(ctx context.Context, id string) (_ *model.Event, err error) {
	_, span := s.start(ctx, "GetEvent", attribute.String("event.id", id))
	defer end(span, &err)

	e, err := s.events.GetByID(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	return e, nil
}

// DeleteEvent removes the event from storage and from every schedule it is on.
func (s *Service) DeleteEvent(ctx context.Context, id string) (err error) {
	ctx, span := s.start(ctx, "DeleteEvent", attribute.String("event.id", id))
	defer end(span, &err)

	e, err := s.events.GetByID(id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("event %s: %w", id, ErrEventNotFound)
	}
	if err := s.events.Delete(id); err != nil {
		return err
	}

	msg := notify.NewMessage("event", "deleted", id, map[string]any{"date": e.DateKey()})
	msg.Users = append([]string{e.OrganizerID}, refIDs(e.Participants)...)
	s.publish(ctx, msg)
	return nil
}

func refIDs(refs []model.Reference) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// EventsForUser returns the events on the user's schedule for date, in the
// order they were booked.
func (s *Service) EventsForUser(ctx context.Context, userID, date string) (_ []model.Event, err error) {
	_, span := s.start(ctx, "EventsForUser", attribute.String("user.id", userID), attribute.String("date", date))
	defer end(span, &err)

	return s.eventsForUser(userID, date)
}

func (s *Service) eventsForUser(userID, date string) ([]model.Event, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(userID); err != nil {
		return nil, err
	}

	refs, err := s.schedule.ForDay(userID, model.DateKey(day))
	if err != nil {
		return nil, err
	}
	return s.events.ListByIDs(refIDs(refs))
}

// ConflictingEvents returns the events on the user's schedule for date that
// overlap at least one other event that day. Touching endpoints count.
func (s *Service) ConflictingEvents(ctx context.Context, userID, date string) (_ []model.Event, err error) {
	_, span := s.start(ctx, "ConflictingEvents", attribute.String("user.id", userID), attribute.String("date", date))
	defer end(span, &err)

	events, err := s.eventsForUser(userID, date)
	if err != nil {
		return nil, err
	}

	intervals := make([]schedule.IdentifiedInterval, len(events))
	for i, e := range events {
		intervals[i] = schedule.IdentifiedInterval{
			TimeRange: schedule.TimeRange{Start: e.StartTime, End: e.EndTime},
			ID:        e.ID,
		}
	}
	ids, err := schedule.FindConflictIDs(intervals)
	if err != nil {
		return nil, err
	}

	conflicting := make(map[string]bool, len(ids))
	for _, id := range ids {
		conflicting[id] = true
	}
	out := []model.Event{}
	for _, e := range events {
		if conflicting[e.ID] {
			out = append(out, e)
		}
	}
	span.SetAttributes(attribute.Int("conflicts", len(out)))
	return out, nil
}

// FreeSlots returns the windows on date, at least minDuration long, when none
// of the users has anything booked.
func (s *Service) FreeSlots(ctx context.Context, userIDs []string, date string, minDuration time.Duration) (_ []schedule.FreeSlot, err error) {
	_, span := s.start(ctx, "FreeSlots",
		attribute.StringSlice("user.ids", userIDs),
		attribute.String("date", date),
		attribute.String("min_duration", minDuration.String()),
	)
	defer end(span, &err)

	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one user is required: %w", schedule.ErrInvalidArgument)
	}
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	users, err := s.users.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		return nil, fmt.Errorf("user %s: %w", missingID(ids, users), ErrUserNotFound)
	}

	eventIDs, err := s.schedule.EventIDsForUsers(ids, model.DateKey(day))
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByIDs(eventIDs)
	if err != nil {
		return nil, err
	}

	busy := make([]schedule.TimeRange, len(events))
	for i, e := range events {
		busy[i] = schedule.TimeRange{Start: e.StartTime, End: e.EndTime}
	}
	return schedule.FindFreeSlots(busy, minDuration, schedule.DayOf(day))
}

// ExportDay writes the user's events for date to w as an iCalendar feed.
func (s *Service) ExportDay(ctx context.Context, w io.Writer, userID, date string) (err error) {
	_, span := s.start(ctx, "ExportDay", attribute.String("user.id", userID), attribute.String("date", date))
	defer end(span, &err)

	events, err := s.eventsForUser(userID, date)
	if err != nil {
		return err
	}

	ids := []string{userID}
	for _, e := range events {
		ids = append(ids, e.OrganizerID)
		ids = append(ids, refIDs(e.Participants)...)
	}
	users, err := s.users.ListByIDs(ids)
	if err != nil {
		return err
	}
	people := make(map[string]model.User, len(users))
	for _, u := range users {
		people[u.ID] = u
	}

	return ics.Export(w, ics.Feed{
		Name:   people[userID].FullName + " " + date,
		Events: events,
		People: people,
	})
}

func (s *Service) requireUser(id string) error {
	u, err := s.users.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) (_ []model.User, err error) {
	_, span := s.start(ctx, "ListUsers")
	defer end(span, &err)

	users, err := s.users.List()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// GetUser returns the user with their schedule grouped by date.
func (s *Service) GetUser(ctx context.Context, id string) (_ *model.User, err error) {
	_, span := s.start(ctx, "GetUser", attribute.String("user.id", id))
	defer end(span, &err)

	u, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	if u.EventsByDate, err = s.schedule.ByDate(id); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, fullName, email string) (_ *model.User, err error) {
	ctx, span := s.start(ctx, "CreateUser")
	defer end(span, &err)

	fullName, email = strings.TrimSpace(fullName), strings.TrimSpace(email)
	if err := validateUser(fullName, email); err != nil {
		return nil, err
	}
	if err := s.requireFreeEmail(email, ""); err != nil {
		return nil, err
	}

	u, err := s.users.Create(fullName, email)
	if err != nil {
		return nil, emailTaken(email, err)
	}
	s.publishUser(ctx, "created", u.ID)
	return u, nil
}

// UpdateUser replaces the user's name and email.
func (s *Service) UpdateUser(ctx context.Context, id, fullName, email string) (_ *model.User, err error) {
	ctx, span := s.start(ctx, "UpdateUser", attribute.String("user.id", id))
	defer end(span, &err)

	fullName, email = strings.TrimSpace(fullName), strings.TrimSpace(email)
	if err := validateUser(fullName, email); err != nil {
		return nil, err
	}
	if err := s.requireUser(id); err != nil {
		return nil, err
	}
	if err := s.requireFreeEmail(email, id); err != nil {
		return nil, err
	}

	u, err := s.users.Update(id, fullName, email)
	if err != nil {
		return nil, emailTaken(email, err)
	}
	s.publishUser(ctx, "updated", id)
	return u, nil
}

// DeleteUser removes the user along with the events they organize and their
// schedule. Other users' entries for those events are pruned later.
func (s *Service) DeleteUser(ctx context.Context, id string) (err error) {
	ctx, span := s.start(ctx, "DeleteUser", attribute.String("user.id", id))
	defer end(span, &err)

	if err := s.requireUser(id); err != nil {
		return err
	}
	if err := s.users.Delete(id); err != nil {
		return err
	}
	s.publishUser(ctx, "deleted", id)
	return nil
}

func (s *Service) requireFreeEmail(email, ownerID string) error {
	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != ownerID {
		return fmt.Errorf("%s: %w", email, ErrEmailTaken)
	}
	return nil
}

// emailTaken reports a lost race on the unique email index as ErrEmailTaken.
func emailTaken(email string, err error) error {
	if errors.Is(err, store.ErrDuplicateEmail) {
		return fmt.Errorf("%s: %w", email, ErrEmailTaken)
	}
	return err
}

func (s *Service) publishUser(ctx context.Context, action, id string) {
	msg := notify.NewMessage("user", action, id, nil)
	msg.Users = []string{id}
	s.publish(ctx, msg)
}

// PruneSchedule drops schedule entries left behind by deleted events.
func (s *Service) PruneSchedule(ctx context.Context) (_ int64, err error) {
	_, span := s.start(ctx, "PruneSchedule")
	defer end(span, &err)

	n, err := s.schedule.PruneOrphans()
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("pruned", n))
	return n, nil
}
