package repo

import (
	"context"
	"strings"

	"gatherly/internal/domain"
)

const invitationColumns = `id,event_id,email,user_id,status,created_at,updated_at`

func scanInvitation(row scanner) (domain.Invitation, error) {
	var inv domain.Invitation
	if err := row.Scan(&inv.ID, &inv.EventID, &inv.Email, &inv.UserID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return domain.Invitation{}, notFound(err)
	}
	return inv, nil
}

func (r Repo) InsertInvitation(ctx context.Context, inv domain.Invitation) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO invitations(event_id,email,user_id,status,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		inv.EventID, inv.Email, inv.UserID, inv.Status, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetInvitation(ctx context.Context, id int64) (domain.Invitation, error) {
	return scanInvitation(r.DB.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id=?`, id))
}

// InvitationFilters selects invitations by side of the inviter/invitee
// relation. When both SenderID and RecipientEmail are set the two sides are
// OR-ed; Status is applied on top.
type InvitationFilters struct {
	ID             int64
	SenderID       int64
	RecipientEmail string
	Status         string
}

func (r Repo) ListInvitations(ctx context.Context, f InvitationFilters) ([]domain.Invitation, error) {
	var (
		clauses []string
		args    []any
		sides   []string
	)
	if f.SenderID != 0 {
		sides = append(sides, "user_id=?")
		args = append(args, f.SenderID)
	}
	if f.RecipientEmail != "" {
		sides = append(sides, "email=?")
		args = append(args, f.RecipientEmail)
	}
	if len(sides) > 0 {
		clauses = append(clauses, "("+strings.Join(sides, " OR ")+")")
	}
	if f.ID != 0 {
		clauses = append(clauses, "id=?")
		args = append(args, f.ID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

// FindInvitation returns the first invitation matching f.
func (r Repo) FindInvitation(ctx context.Context, f InvitationFilters) (domain.Invitation, error) {
	items, err := r.ListInvitations(ctx, f)
	if err != nil {
		return domain.Invitation{}, err
	}
	if len(items) == 0 {
		return domain.Invitation{}, ErrNotFound
	}
	return items[0], nil
}

// TransitionInvitation moves an invitation out of fromStatus. A row already in
// another status is reported as ErrNotFound.
func (r Repo) TransitionInvitation(ctx context.Context, id int64, fromStatus, toStatus, ts string) error {
	return r.updateByID(ctx, "invitations", id,
		[]string{"status=?", "updated_at=?"},
		[]any{toStatus, ts},
		"status=?", fromStatus)
}
