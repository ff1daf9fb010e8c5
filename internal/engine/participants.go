package engine

import (
	"context"
	"fmt"

	"gatherly/internal/domain"
	"gatherly/internal/engine/policy"
	"gatherly/internal/repo"
)

// ListEventParticipants lists the participants of an event user may view,
// optionally narrowed to one status.
func (e Engine) ListEventParticipants(ctx context.Context, user domain.User, eventID int64, status string) (ps []domain.Participant, err error) {
	ctx, span := e.start(ctx, "ListEventParticipants", userAttr(user.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if status != "" && !domain.Contains(domain.ParticipantStatuses, status) {
		return nil, invalid("invalid participant status %q", status)
	}
	ev, err := e.visibleEvent(ctx, user, eventID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return nonNil(ev.Participants), nil
	}
	out, err := e.Participants.ListParticipants(ctx, ev.ID, status)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// AddParticipant attaches participantID to an event the user created. Adding
// an existing participant overwrites their status.
func (e Engine) AddParticipant(ctx context.Context, user domain.User, eventID, participantID int64, status string) (p domain.Participant, err error) {
	ctx, span := e.start(ctx, "AddParticipant", userAttr(user.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if status == "" {
		status = domain.ParticipantMaybe
	}
	if !domain.Contains(domain.ParticipantStatuses, status) {
		return domain.Participant{}, invalid("invalid participant status %q", status)
	}
	ev, err := e.Events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Participant{}, err
	}
	if !policy.CanManageParticipants(ev, user.ID) {
		return domain.Participant{}, repo.ErrNotFound
	}
	if _, err := e.Users.GetUser(ctx, participantID); err != nil {
		return domain.Participant{}, err
	}
	ts := e.timestamp()
	if err := e.Participants.UpsertParticipant(ctx, domain.Participant{
		EventID:   ev.ID,
		UserID:    participantID,
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}); err != nil {
		return domain.Participant{}, fmt.Errorf("upsert participant: %w", err)
	}
	return e.Participants.GetParticipant(ctx, ev.ID, participantID)
}

// SetParticipationStatus changes the user's own status on an event they
// already participate in.
func (e Engine) SetParticipationStatus(ctx context.Context, user domain.User, eventID int64, status string) (p domain.Participant, err error) {
	ctx, span := e.start(ctx, "SetParticipationStatus", userAttr(user.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if !domain.Contains(domain.ParticipantStatuses, status) {
		return domain.Participant{}, invalid("invalid participant status %q", status)
	}
	if _, err := e.Events.GetEvent(ctx, eventID); err != nil {
		return domain.Participant{}, err
	}
	if err := e.Participants.UpdateParticipantStatus(ctx, eventID, user.ID, status, e.timestamp()); err != nil {
		return domain.Participant{}, err
	}
	return e.Participants.GetParticipant(ctx, eventID, user.ID)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
