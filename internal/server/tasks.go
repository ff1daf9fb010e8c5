package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gatherly/internal/engine"
)

const (
	msgNoTasks      = "No tasks found"
	msgTaskNotFound = "Task not found"
)

func registerTasks(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/users/event/{eventId}/task",
		Summary:       "Create a task on an event the current user created",
		Tags:          []string{"tasks"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"eventId"`
		Body    TaskRequest
	}) (*output[TaskResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var extra []string
		exists, err := h.userExists(ctx, input.Body.AssignedTo)
		if err != nil {
			return nil, h.fail(ctx, "create-task", err, "")
		}
		if !exists {
			extra = append(extra, taskMessages["assigned_to.exists"])
		}
		if err := h.check(input.Body, taskMessages, extra...); err != nil {
			return nil, h.fail(ctx, "create-task", err, "")
		}
		task, err := h.engine.CreateUserTask(ctx, p.User, input.EventID, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			AssignedTo:  input.Body.AssignedTo,
		})
		if err != nil {
			return nil, h.fail(ctx, "create-task", err, msgEventNotFound)
		}
		return reply("User event task created successfully.", taskResponse(task)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/users/event/{eventId}/task",
		Summary:     "Tasks of an event assigned to the current user",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64  `path:"eventId"`
		Status  string `query:"status"`
	}) (*output[[]TaskResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(TaskQuery{Status: input.Status}, taskStatusMessages); err != nil {
			return nil, h.fail(ctx, "list-tasks", err, "")
		}
		tasks, err := h.engine.GetEventTasks(ctx, p.User, input.EventID, engine.TaskListOptions{Status: input.Status})
		if err != nil {
			return nil, h.fail(ctx, "list-tasks", err, msgNoTasks)
		}
		if len(tasks) == 0 {
			return nil, newAPIError(http.StatusNotFound, msgNoTasks)
		}
		return reply("Tasks data retrieved successfully.", mapTasks(tasks)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/users/event/{eventId}/task/{taskId}",
		Summary:     "One task assigned to the current user",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64  `path:"eventId"`
		TaskID  int64  `path:"taskId"`
		Status  string `query:"status"`
	}) (*output[TaskResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(TaskQuery{Status: input.Status}, taskStatusMessages); err != nil {
			return nil, h.fail(ctx, "get-task", err, "")
		}
		task, err := h.engine.GetEventTaskByID(ctx, p.User, input.TaskID, engine.TaskListOptions{Status: input.Status})
		if err != nil {
			return nil, h.fail(ctx, "get-task", err, msgTaskNotFound)
		}
		return reply("Task data retrieved successfully.", taskResponse(task)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/users/event/{eventId}/task/{taskId}",
		Summary:     "Update the status of a task assigned to the current user",
		Tags:        []string{"tasks"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EventID int64 `path:"eventId"`
		TaskID  int64 `path:"taskId"`
		Body    TaskStatusRequest
	}) (*output[TaskResponse], error) {
		p, authErr := currentPrincipal(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.check(input.Body, taskStatusMessages); err != nil {
			return nil, h.fail(ctx, "update-task", err, "")
		}
		task, err := h.engine.UpdateEventTask(ctx, p.User, input.TaskID, input.Body.Status)
		if err != nil {
			return nil, h.fail(ctx, "update-task", err, msgTaskNotFound)
		}
		return reply("Task data updated successfully.", taskResponse(task)), nil
	})
}
