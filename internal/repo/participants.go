package repo

import (
	"context"
	"database/sql"

	"gatherly/internal/domain"
)

const participantSelect = `SELECT p.id,p.event_id,p.user_id,u.name,u.email,p.status,p.created_at,p.updated_at
FROM event_participants p JOIN users u ON u.id=p.user_id AND u.deleted_at IS NULL`

func scanParticipant(row scanner) (domain.Participant, error) {
	var p domain.Participant
	if err := row.Scan(&p.ID, &p.EventID, &p.UserID, &p.Name, &p.Email, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Participant{}, notFound(err)
	}
	return p, nil
}

// UpsertParticipant attaches a user to an event, overwriting the status of an
// existing pair.
func (r Repo) UpsertParticipant(ctx context.Context, p domain.Participant) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO event_participants(event_id,user_id,status,created_at,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(event_id,user_id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at`,
		p.EventID, p.UserID, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetParticipant(ctx context.Context, eventID, userID int64) (domain.Participant, error) {
	return scanParticipant(r.DB.QueryRowContext(ctx, participantSelect+` WHERE p.event_id=? AND p.user_id=?`, eventID, userID))
}

func (r Repo) UpdateParticipantStatus(ctx context.Context, eventID, userID int64, status, ts string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE event_participants SET status=?, updated_at=? WHERE event_id=? AND user_id=?`, status, ts, eventID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListParticipants returns the participants of one event, optionally narrowed by status.
func (r Repo) ListParticipants(ctx context.Context, eventID int64, status string) ([]domain.Participant, error) {
	query := participantSelect + ` WHERE p.event_id=?`
	args := []any{eventID}
	if status != "" {
		query += ` AND p.status=?`
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

// ParticipantsByEvent loads participants for several events in one query.
func (r Repo) ParticipantsByEvent(ctx context.Context, eventIDs []int64) (map[int64][]domain.Participant, error) {
	res := map[int64][]domain.Participant{}
	if len(eventIDs) == 0 {
		return res, nil
	}
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, participantSelect+` WHERE p.event_id IN `+inClause(len(eventIDs))+` ORDER BY p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items, err := collectParticipants(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		res[p.EventID] = append(res[p.EventID], p)
	}
	return res, nil
}

func collectParticipants(rows *sql.Rows) ([]domain.Participant, error) {
	var res []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
