package repo

import (
	"context"
	"strings"

	"gatherly/internal/domain"
)

const taskColumns = `id,event_id,title,COALESCE(description,''),due_date,assigned_to,status,created_at,updated_at`

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.EventID, &t.Title, &t.Description, &t.DueDate, &t.AssignedTo, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Task{}, notFound(err)
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(event_id,title,description,due_date,assigned_to,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.EventID, t.Title, nullable(t.Description), t.DueDate, t.AssignedTo, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	ID         int64
	EventID    int64
	AssignedTo int64
	Status     string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ID != 0 {
		clauses = append(clauses, "id=?")
		args = append(args, f.ID)
	}
	if f.EventID != 0 {
		clauses = append(clauses, "event_id=?")
		args = append(args, f.EventID)
	}
	if f.AssignedTo != 0 {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// FindTask returns the first task matching f.
func (r Repo) FindTask(ctx context.Context, f TaskFilters) (domain.Task, error) {
	f.Limit = 1
	items, err := r.ListTasks(ctx, f)
	if err != nil {
		return domain.Task{}, err
	}
	if len(items) == 0 {
		return domain.Task{}, ErrNotFound
	}
	return items[0], nil
}

func (r Repo) UpdateTaskStatus(ctx context.Context, id int64, status, ts string) error {
	return r.updateByID(ctx, "tasks", id, []string{"status=?", "updated_at=?"}, []any{status, ts}, "")
}
