package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gatherly/internal/engine"
)

const msgPartyNotFound = "User or event not found"

func registerInvitations(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-invitation",
		Method:        http.MethodPost,
		Path:          "/users/events/{eventId}/invitations",
		Summary:       "Invite a registered user to an event",
		Tags:          []string{"invitations"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"eventId"`
		Body    InvitationRequest
	}) (*output[InvitationResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var extra []string
		if input.Body.Email != "" {
			owner, err := h.emailOwner(ctx, input.Body.Email)
			if err != nil {
				return nil, h.fail(ctx, "send-invitation", err, "")
			}
			switch {
			case owner == 0:
				extra = append(extra, invitationMessages["email.exists"])
			case owner == p.User.ID:
				extra = append(extra, invitationMessages["email.self"])
			}
		}
		if err := h.check(input.Body, invitationMessages, extra...); err != nil {
			return nil, h.fail(ctx, "send-invitation", err, "")
		}
		inv, err := h.engine.SendInvitation(ctx, p.User, input.Body.Email, input.EventID)
		if err != nil {
			return nil, h.fail(ctx, "send-invitation", err, msgPartyNotFound)
		}
		return reply("User invited successfully.", invitationResponse(inv)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invitations",
		Method:      http.MethodGet,
		Path:        "/users/invitations",
		Summary:     "Invitations sent or received by the current user",
		Tags:        []string{"invitations"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		Status string `query:"status"`
	}) (*output[[]InvitationResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(InvitationQuery{Type: input.Type, Status: input.Status}, invitationQueryMessages); err != nil {
			return nil, h.fail(ctx, "list-invitations", err, "")
		}
		invs, err := h.engine.GetUserInvitations(ctx, p.User, engine.InvitationListOptions{Type: input.Type, Status: input.Status})
		if err != nil {
			return nil, h.fail(ctx, "list-invitations", err, "")
		}
		if len(invs) == 0 {
			return nil, newAPIError(http.StatusNotFound, "No invitations found")
		}
		return reply("Invitations data retrieved successfully.", mapInvitations(invs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "handle-invitation",
		Method:      http.MethodPatch,
		Path:        "/users/invitations/{id}/action",
		Summary:     "Accept or decline a pending invitation",
		Tags:        []string{"invitations"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body InvitationActionRequest
	}) (*output[InvitationResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(input.Body, invitationActionMessages); err != nil {
			return nil, h.fail(ctx, "handle-invitation", err, "")
		}
		inv, err := h.engine.HandleUserInvitation(ctx, p.User, input.ID, input.Body.Action)
		if err != nil {
			return nil, h.fail(ctx, "handle-invitation", err, "Invitation not found")
		}
		return reply("Invitation data updated successfully.", invitationResponse(inv)), nil
	})
}
