package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gatherly/internal/engine"
)

const (
	msgEventNotFound    = "Event not found"
	msgEventNotFoundDot = "Event not found."
)

type eventPath struct {
	EventID int64 `path:"eventId"`
}

func registerUserEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-user-events",
		Method:      http.MethodGet,
		Path:        "/users/events",
		Summary:     "Events visible to the current user",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]EventResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		events, err := h.engine.GetAllEventsForUser(ctx, p.User)
		if err != nil {
			return nil, h.fail(ctx, "list-user-events", err, "")
		}
		return reply("User events data retrieved successfully.", mapEvents(events)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-created-events",
		Method:      http.MethodGet,
		Path:        "/users/events/created",
		Summary:     "Events created by the current user",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]EventResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		events, err := h.engine.GetCreatedEventsOfUser(ctx, p.User)
		if err != nil {
			return nil, h.fail(ctx, "list-created-events", err, "")
		}
		return reply("User created events data retrieved successfully.", mapEvents(events)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user-event",
		Method:      http.MethodGet,
		Path:        "/users/event/{eventId}",
		Summary:     "One event, if the current user may see it",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *eventPath) (*output[EventResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := h.engine.GetEventForUser(ctx, p.User, input.EventID)
		if err != nil {
			return nil, h.fail(ctx, "get-user-event", err, msgEventNotFound)
		}
		return reply("User event data retrieved successfully.", eventResponse(ev)), nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h handlers) checkEvent(ctx context.Context, req EventRequest) error {
	var extra []string
	exists, err := h.userExists(ctx, req.CreatedBy)
	if err != nil {
		return err
	}
	if !exists {
		extra = append(extra, eventMessages["created_by.exists"])
	}
	return h.check(req, eventMessages, extra...)
}

func registerEvents(api huma.API, h handlers) {
	type idPath struct {
		ID int64 `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Create event",
		Tags:          []string{"events"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body EventRequest
	}) (*output[EventResponse], error) {
		if _, authErr := currentPrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		if err := h.checkEvent(ctx, input.Body); err != nil {
			return nil, h.fail(ctx, "create-event", err, "")
		}
		ev, err := h.engine.CreateEvent(ctx, engine.EventCreateOptions{
			Title:       input.Body.Title,
			Description: deref(input.Body.Description),
			Date:        input.Body.Date,
			Location:    deref(input.Body.Location),
			Visibility:  input.Body.Visibility,
			CreatedBy:   input.Body.CreatedBy,
		})
		if err != nil {
			return nil, h.fail(ctx, "create-event", err, "")
		}
		return reply("Event created successfully.", eventResponse(ev)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]EventResponse], error) {
		if _, authErr := currentPrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		events, err := h.engine.ListEvents(ctx)
		if err != nil {
			return nil, h.fail(ctx, "list-events", err, "")
		}
		return reply("Events data retrieved successfully.", mapEvents(events)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{id}",
		Summary:     "Get event",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[EventResponse], error) {
		if _, authErr := currentPrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		ev, err := h.engine.GetEvent(ctx, input.ID)
		if err != nil {
			return nil, h.fail(ctx, "get-event", err, msgEventNotFoundDot)
		}
		return reply("Event data retrieved successfully.", eventResponse(ev)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "update-event",
		Method:        http.MethodPut,
		Path:          "/events/{id}",
		Summary:       "Update event",
		Tags:          []string{"events"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body EventRequest
	}) (*output[EventResponse], error) {
		if _, authErr := currentPrincipal(ctx); authErr != nil {
			return nil, authErr
		}
		if err := h.checkEvent(ctx, input.Body); err != nil {
			return nil, h.fail(ctx, "update-event", err, "")
		}
		ev, err := h.engine.GetEvent(ctx, input.ID)
		if err != nil {
			return nil, h.fail(ctx, "update-event", err, msgEventNotFoundDot)
		}
		b := input.Body
		opts := engine.EventUpdateOptions{
			Title:       &b.Title,
			Description: b.Description,
			Date:        &b.Date,
			Location:    b.Location,
			CreatedBy:   &b.CreatedBy,
		}
		if b.Visibility != "" {
			opts.Visibility = &b.Visibility
		}
		ev, err = h.engine.UpdateEvent(ctx, ev, opts)
		if err != nil {
			return nil, h.fail(ctx, "update-event", err, msgEventNotFoundDot)
		}
		return reply("Event data updated successfully.", eventResponse(ev)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-event",
		Method:      http.MethodDelete,
		Path:        "/events/{id}",
		Summary:     "Soft-delete event",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*output[[]any], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := h.engine.GetEvent(ctx, input.ID)
		if err != nil {
			return nil, h.fail(ctx, "delete-event", err, msgEventNotFoundDot)
		}
		if err := h.engine.DeleteEvent(ctx, ev, p.User.ID); err != nil {
			return nil, h.fail(ctx, "delete-event", err, msgEventNotFoundDot)
		}
		return reply("Event deleted successfully.", noData()), nil
	})
}

func registerParticipants(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-participants",
		Method:      http.MethodGet,
		Path:        "/users/event/{eventId}/participants",
		Summary:     "Participants of a visible event",
		Tags:        []string{"participants"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64  `path:"eventId"`
		Status  string `query:"status"`
	}) (*output[[]ParticipantResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(ParticipantQuery{Status: input.Status}, participantMessages); err != nil {
			return nil, h.fail(ctx, "list-participants", err, "")
		}
		items, err := h.engine.ListEventParticipants(ctx, p.User, input.EventID, input.Status)
		if err != nil {
			return nil, h.fail(ctx, "list-participants", err, msgEventNotFound)
		}
		return reply("Event participants retrieved successfully.", mapParticipants(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-participant",
		Method:        http.MethodPost,
		Path:          "/users/event/{eventId}/participants",
		Summary:       "Add a participant to an event the current user created",
		Tags:          []string{"participants"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"eventId"`
		Body    AddParticipantRequest
	}) (*output[ParticipantResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var extra []string
		exists, err := h.userExists(ctx, input.Body.UserID)
		if err != nil {
			return nil, h.fail(ctx, "add-participant", err, "")
		}
		if !exists {
			extra = append(extra, participantMessages["user_id.exists"])
		}
		if err := h.check(input.Body, participantMessages, extra...); err != nil {
			return nil, h.fail(ctx, "add-participant", err, "")
		}
		part, err := h.engine.AddParticipant(ctx, p.User, input.EventID, input.Body.UserID, input.Body.Status)
		if err != nil {
			return nil, h.fail(ctx, "add-participant", err, msgEventNotFound)
		}
		return reply("Participant added successfully.", participantResponse(part)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-participation",
		Method:      http.MethodPatch,
		Path:        "/users/event/{eventId}/participation",
		Summary:     "Set the current user's participation status",
		Tags:        []string{"participants"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"eventId"`
		Body    ParticipationRequest
	}) (*output[ParticipantResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(input.Body, participantMessages); err != nil {
			return nil, h.fail(ctx, "set-participation", err, "")
		}
		part, err := h.engine.SetParticipationStatus(ctx, p.User, input.EventID, input.Body.Status)
		if err != nil {
			return nil, h.fail(ctx, "set-participation", err, msgEventNotFound)
		}
		return reply("Participation status updated successfully.", participantResponse(part)), nil
	})
}
