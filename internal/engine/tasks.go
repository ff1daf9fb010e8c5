package engine

import (
	"context"
	"fmt"
	"strings"

	"gatherly/internal/domain"
	"gatherly/internal/engine/policy"
	"gatherly/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	DueDate     string
	AssignedTo  int64
}

// CreateUserTask adds a pending task to an event the user created.
func (e Engine) CreateUserTask(ctx context.Context, user domain.User, eventID int64, opts TaskCreateOptions) (t domain.Task, err error) {
	ctx, span := e.start(ctx, "CreateUserTask", userAttr(user.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, invalid("title is required")
	}
	ev, err := e.Events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Task{}, err
	}
	if !policy.CanCreateTask(ev, user.ID) {
		return domain.Task{}, repo.ErrNotFound
	}
	due, err := domain.NormalizeTime(opts.DueDate)
	if err != nil {
		return domain.Task{}, invalid("%v", err)
	}
	ts := e.timestamp()
	id, err := e.Tasks.InsertTask(ctx, domain.Task{
		EventID:     ev.ID,
		Title:       opts.Title,
		Description: opts.Description,
		DueDate:     due,
		AssignedTo:  opts.AssignedTo,
		Status:      domain.TaskPending,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return e.Tasks.GetTask(ctx, id)
}

type TaskListOptions struct {
	Status string
}

func (o TaskListOptions) check() error {
	if o.Status != "" && !domain.Contains(domain.TaskStatuses, o.Status) {
		return invalid("invalid task status %q", o.Status)
	}
	return nil
}

// GetEventTasks lists the tasks of eventID assigned to user.
func (e Engine) GetEventTasks(ctx context.Context, user domain.User, eventID int64, opts TaskListOptions) (tasks []domain.Task, err error) {
	ctx, span := e.start(ctx, "GetEventTasks", userAttr(user.ID), eventAttr(eventID))
	defer func() { finish(span, err) }()

	if err := opts.check(); err != nil {
		return nil, err
	}
	out, err := e.Tasks.ListTasks(ctx, repo.TaskFilters{EventID: eventID, AssignedTo: user.ID, Status: opts.Status})
	if err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// GetEventTaskByID returns taskID when it is assigned to user. The owning
// event is not checked.
func (e Engine) GetEventTaskByID(ctx context.Context, user domain.User, taskID int64, opts TaskListOptions) (t domain.Task, err error) {
	ctx, span := e.start(ctx, "GetEventTaskByID", userAttr(user.ID))
	defer func() { finish(span, err) }()

	if err := opts.check(); err != nil {
		return domain.Task{}, err
	}
	return e.Tasks.FindTask(ctx, repo.TaskFilters{ID: taskID, AssignedTo: user.ID, Status: opts.Status})
}

// UpdateEventTask sets the status of a task assigned to user. Any status may
// follow any other.
func (e Engine) UpdateEventTask(ctx context.Context, user domain.User, taskID int64, status string) (t domain.Task, err error) {
	ctx, span := e.start(ctx, "UpdateEventTask", userAttr(user.ID))
	defer func() { finish(span, err) }()

	if !domain.Contains(domain.TaskStatuses, status) {
		return domain.Task{}, invalid("invalid task status %q", status)
	}
	task, err := e.Tasks.FindTask(ctx, repo.TaskFilters{ID: taskID, AssignedTo: user.ID})
	if err != nil {
		return domain.Task{}, err
	}
	if !policy.CanUpdateTask(task, user.ID) {
		return domain.Task{}, repo.ErrNotFound
	}
	if err := e.Tasks.UpdateTaskStatus(ctx, task.ID, status, e.timestamp()); err != nil {
		return domain.Task{}, err
	}
	return e.Tasks.GetTask(ctx, task.ID)
}
