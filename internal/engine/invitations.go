package engine

import (
	"context"
	"errors"
	"fmt"

	"gatherly/internal/domain"
	"gatherly/internal/repo"
)

// SendInvitation invites the user registered under email to eventID. The
// stored row keeps the inviter in UserID and the invitee in Email.
func (e Engine) SendInvitation(ctx context.Context, inviter domain.User, email string, eventID int64) (inv domain.Invitation, err error) {
	ctx, span := e.start(ctx, "SendInvitation", userAttr(inviter.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if normalizeEmail(email) == normalizeEmail(inviter.Email) {
		return domain.Invitation{}, ErrSelfInvite
	}
	invitee, err := e.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Invitation{}, err
	}
	ev, err := e.Events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Invitation{}, err
	}
	ts := e.timestamp()
	id, err := e.Invitations.InsertInvitation(ctx, domain.Invitation{
		EventID:   ev.ID,
		Email:     invitee.Email,
		UserID:    inviter.ID,
		Status:    domain.InvitationPending,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	return e.Invitations.GetInvitation(ctx, id)
}

type InvitationListOptions struct {
	// Type is "sent", "received" or empty for both.
	Type   string
	Status string
}

func (e Engine) GetUserInvitations(ctx context.Context, user domain.User, opts InvitationListOptions) (invs []domain.Invitation, err error) {
	ctx, span := e.start(ctx, "GetUserInvitations", userAttr(user.ID))
	defer func() { finish(span, err) }()

	f := repo.InvitationFilters{Status: opts.Status}
	switch opts.Type {
	case domain.InvitationsSent:
		f.SenderID = user.ID
	case domain.InvitationsReceived:
		f.RecipientEmail = user.Email
	case "":
		f.SenderID = user.ID
		f.RecipientEmail = user.Email
	default:
		return nil, invalid("invalid invitation type %q", opts.Type)
	}
	if opts.Status != "" && !domain.Contains(domain.InvitationStatuses, opts.Status) {
		return nil, invalid("invalid invitation status %q", opts.Status)
	}
	out, err := e.Invitations.ListInvitations(ctx, f)
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// HandleUserInvitation accepts or declines a pending invitation addressed to
// user. Anything else, including an already resolved one, is not found.
func (e Engine) HandleUserInvitation(ctx context.Context, user domain.User, invitationID int64, action string) (inv domain.Invitation, err error) {
	ctx, span := e.start(ctx, "HandleUserInvitation", userAttr(user.ID))
	defer func() { finish(span, err) }()

	var status string
	switch action {
	case domain.ActionAccept:
		status = domain.InvitationAccepted
	case domain.ActionDecline:
		status = domain.InvitationDeclined
	default:
		return domain.Invitation{}, invalid("invalid invitation action %q", action)
	}
	found, err := e.Invitations.FindInvitation(ctx, repo.InvitationFilters{
		ID:             invitationID,
		RecipientEmail: user.Email,
		Status:         domain.InvitationPending,
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := e.Invitations.TransitionInvitation(ctx, found.ID, domain.InvitationPending, status, e.timestamp()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Invitation{}, err
		}
		return domain.Invitation{}, fmt.Errorf("update invitation: %w", err)
	}
	return e.Invitations.GetInvitation(ctx, found.ID)
}
