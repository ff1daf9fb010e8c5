package engine

import (
	"context"
	"fmt"
	"strings"

	"gatherly/internal/domain"
	"gatherly/internal/engine/policy"
	"gatherly/internal/repo"
)

type EventCreateOptions struct {
	Title       string
	Description string
	Date        string
	Location    string
	Visibility  string
	CreatedBy   int64
}

func (e Engine) CreateEvent(ctx context.Context, opts EventCreateOptions) (ev domain.Event, err error) {
	ctx, span := e.start(ctx, "CreateEvent", userAttr(opts.CreatedBy))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(opts.Title) == "" {
		return domain.Event{}, invalid("title is required")
	}
	if opts.CreatedBy == 0 {
		return domain.Event{}, invalid("created_by is required")
	}
	date, err := domain.NormalizeTime(opts.Date)
	if err != nil {
		return domain.Event{}, invalid("%v", err)
	}
	if opts.Visibility == "" {
		opts.Visibility = domain.VisibilityPublic
	}
	if !domain.Contains(domain.Visibilities, opts.Visibility) {
		return domain.Event{}, invalid("invalid visibility %q", opts.Visibility)
	}
	ts := e.timestamp()
	id, err := e.Events.InsertEvent(ctx, domain.Event{
		Title:       opts.Title,
		Description: opts.Description,
		Date:        date,
		Location:    opts.Location,
		Visibility:  opts.Visibility,
		CreatedBy:   opts.CreatedBy,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e.Events.GetEvent(ctx, id)
}

// GetEvent is a bare lookup; it applies no visibility rule.
func (e Engine) GetEvent(ctx context.Context, id int64) (ev domain.Event, err error) {
	ctx, span := e.start(ctx, "GetEvent", eventAttr(id))
	defer func() { finish(span, err) }()
	return e.Events.GetEvent(ctx, id)
}

func (e Engine) ListEvents(ctx context.Context) (events []domain.Event, err error) {
	ctx, span := e.start(ctx, "ListEvents")
	defer func() { finish(span, err) }()
	out, err := e.Events.ListEvents(ctx, repo.EventFilters{})
	if err != nil {
		return nil, err
	}
	return e.withParticipants(ctx, out)
}

type EventUpdateOptions struct {
	Title       *string
	Description *string
	Date        *string
	Location    *string
	Visibility  *string
	CreatedBy   *int64
}

func (e Engine) UpdateEvent(ctx context.Context, event domain.Event, opts EventUpdateOptions) (ev domain.Event, err error) {
	ctx, span := e.start(ctx, "UpdateEvent", eventAttr(event.ID))
	defer func() { finish(span, err) }()

	upd := repo.EventUpdate{
		Title:       opts.Title,
		Description: opts.Description,
		Location:    opts.Location,
		Visibility:  opts.Visibility,
		CreatedBy:   opts.CreatedBy,
		UpdatedAt:   e.timestamp(),
	}
	if opts.Date != nil {
		date, err := domain.NormalizeTime(*opts.Date)
		if err != nil {
			return domain.Event{}, invalid("%v", err)
		}
		upd.Date = &date
	}
	if upd.Visibility != nil && !domain.Contains(domain.Visibilities, *upd.Visibility) {
		return domain.Event{}, invalid("invalid visibility %q", *upd.Visibility)
	}
	if err := e.Events.UpdateEvent(ctx, event.ID, upd); err != nil {
		return domain.Event{}, err
	}
	return e.Events.GetEvent(ctx, event.ID)
}

// DeleteEvent soft-deletes the event and records deleterID as the deleter.
func (e Engine) DeleteEvent(ctx context.Context, event domain.Event, deleterID int64) (err error) {
	ctx, span := e.start(ctx, "DeleteEvent", eventAttr(event.ID), userAttr(deleterID))
	defer func() { finish(span, err) }()
	var by *int64
	if deleterID != 0 {
		by = &deleterID
	}
	return e.Events.SoftDeleteEvent(ctx, event.ID, by, e.timestamp())
}

// GetAllEventsForUser returns public events, private events the user created
// and events the user participates in, each once.
func (e Engine) GetAllEventsForUser(ctx context.Context, user domain.User) (events []domain.Event, err error) {
	ctx, span := e.start(ctx, "GetAllEventsForUser", userAttr(user.ID))
	defer func() { finish(span, err) }()
	out, err := e.Events.ListEvents(ctx, repo.EventFilters{VisibleTo: user.ID})
	if err != nil {
		return nil, err
	}
	return e.withParticipants(ctx, out)
}

func (e Engine) GetCreatedEventsOfUser(ctx context.Context, user domain.User) (events []domain.Event, err error) {
	ctx, span := e.start(ctx, "GetCreatedEventsOfUser", userAttr(user.ID))
	defer func() { finish(span, err) }()
	out, err := e.Events.ListEvents(ctx, repo.EventFilters{CreatedBy: user.ID})
	if err != nil {
		return nil, err
	}
	return e.withParticipants(ctx, out)
}

// GetEventForUser returns the event with its participants when user may view
// it. Hidden events are reported as repo.ErrNotFound.
func (e Engine) GetEventForUser(ctx context.Context, user domain.User, id int64) (ev domain.Event, err error) {
	ctx, span := e.start(ctx, "GetEventForUser", userAttr(user.ID), eventAttr(id))
	defer func() { finish(span, err) }()
	return e.visibleEvent(ctx, user, id)
}

func (e Engine) visibleEvent(ctx context.Context, user domain.User, id int64) (domain.Event, error) {
	ev, err := e.Events.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	ev.Participants, err = e.Participants.ListParticipants(ctx, ev.ID, "")
	if err != nil {
		return domain.Event{}, err
	}
	if !policy.CanView(ev, user.ID) {
		return domain.Event{}, repo.ErrNotFound
	}
	return ev, nil
}

func (e Engine) withParticipants(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	if events == nil {
		return []domain.Event{}, nil
	}
	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	byEvent, err := e.Participants.ParticipantsByEvent(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Participants = byEvent[events[i].ID]
	}
	return events, nil
}
