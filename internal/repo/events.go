package repo

import (
	"context"
	"database/sql"
	"strings"

	"gatherly/internal/domain"
)

// The creator is joined rather than trusted from created_by so a vanished or
// soft-deleted creator leaves Event.Creator nil.
const eventSelect = `SELECT e.id,e.title,COALESCE(e.description,''),e.date,COALESCE(e.location,''),e.visibility,e.created_by,e.deleted_by,e.created_at,e.updated_at,COALESCE(e.deleted_at,''),
u.id,u.name,u.email,COALESCE(u.profile_picture,'')
FROM events e LEFT JOIN users u ON u.id=e.created_by AND u.deleted_at IS NULL`

func scanEvent(row scanner) (domain.Event, error) {
	var (
		e         domain.Event
		deletedBy sql.NullInt64
		creatorID sql.NullInt64
		name      sql.NullString
		email     sql.NullString
		picture   sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Visibility, &e.CreatedBy, &deletedBy,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt, &creatorID, &name, &email, &picture)
	if err != nil {
		return domain.Event{}, notFound(err)
	}
	if deletedBy.Valid {
		id := deletedBy.Int64
		e.DeletedBy = &id
	}
	if creatorID.Valid {
		e.Creator = &domain.User{
			ID:             creatorID.Int64,
			Name:           nullString(name),
			Email:          nullString(email),
			ProfilePicture: nullString(picture),
		}
	}
	return e, nil
}

func (r Repo) InsertEvent(ctx context.Context, e domain.Event) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO events(title,description,date,location,visibility,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		e.Title, nullable(e.Description), e.Date, nullable(e.Location), e.Visibility, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetEvent returns a non-deleted event with its creator relation resolved.
func (r Repo) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	return scanEvent(r.DB.QueryRowContext(ctx, eventSelect+` WHERE e.id=? AND e.deleted_at IS NULL`, id))
}

type EventFilters struct {
	// VisibleTo selects public events, private events the user created and
	// events the user participates in.
	VisibleTo int64
	CreatedBy int64
}

// ListEvents returns non-deleted events. Each row appears once even when it
// matches several VisibleTo branches.
func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"e.deleted_at IS NULL"}
	var args []any
	if f.VisibleTo != 0 {
		clauses = append(clauses, `(e.visibility='public'
 OR (e.visibility='private' AND e.created_by=?)
 OR EXISTS (SELECT 1 FROM event_participants p WHERE p.event_id=e.id AND p.user_id=?))`)
		args = append(args, f.VisibleTo, f.VisibleTo)
	}
	if f.CreatedBy != 0 {
		clauses = append(clauses, "e.created_by=?")
		args = append(args, f.CreatedBy)
	}
	query := eventSelect + ` WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY e.id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventUpdate carries the columns to overwrite; nil fields are left untouched.
type EventUpdate struct {
	Title       *string
	Description *string
	Date        *string
	Location    *string
	Visibility  *string
	CreatedBy   *int64
	UpdatedAt   string
}

func (r Repo) UpdateEvent(ctx context.Context, id int64, u EventUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if u.Date != nil {
		fields = append(fields, "date=?")
		args = append(args, *u.Date)
	}
	if u.Location != nil {
		fields = append(fields, "location=?")
		args = append(args, nullable(*u.Location))
	}
	if u.Visibility != nil {
		fields = append(fields, "visibility=?")
		args = append(args, *u.Visibility)
	}
	if u.CreatedBy != nil {
		fields = append(fields, "created_by=?")
		args = append(args, *u.CreatedBy)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, u.UpdatedAt)
	return r.updateByID(ctx, "events", id, fields, args, "deleted_at IS NULL")
}

// SoftDeleteEvent marks the event deleted and records who deleted it.
func (r Repo) SoftDeleteEvent(ctx context.Context, id int64, deletedBy *int64, ts string) error {
	return r.updateByID(ctx, "events", id,
		[]string{"deleted_at=?", "deleted_by=?", "updated_at=?"},
		[]any{ts, nullableInt64Ptr(deletedBy), ts},
		"deleted_at IS NULL")
}
