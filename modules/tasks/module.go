// Package tasks serves the task CRUD, listing, and statistics surface.
package tasks

import (
	"errors"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub/app"
	"github.com/taskhub/taskhub/server"
)

// Module wires the task repository into the HTTP surface.
type Module struct {
	deps *app.ModuleDeps
	repo *Repository
}

// NewModule creates an uninitialized tasks module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "tasks"
}

// Init builds the repository from the shared dependencies.
func (m *Module) Init(deps *app.ModuleDeps) error {
	if deps.DB == nil {
		return errors.New("tasks module requires a database connection")
	}
	m.deps = deps
	m.repo = NewRepository(deps.DB, deps.Cache, deps.Keys, deps.Logger)
	return nil
}

// RegisterRoutes registers the task endpoints behind bearer authentication.
// The stats route sits before the ID route so the literal segment wins.
func (m *Module) RegisterRoutes(hr *server.HandlerRegistry, r server.RouteRegistrar) {
	authed := r.Group("", server.AuthMiddleware(m.deps.Config))
	server.GET(hr, authed, "/tasks", m.list)
	server.POST(hr, authed, "/tasks", m.create)
	server.GET(hr, authed, "/tasks/stats", m.stats)
	server.GET(hr, authed, "/tasks/:id", m.get)
	server.PUT(hr, authed, "/tasks/:id", m.update)
	server.DELETE(hr, authed, "/tasks/:id", m.delete)
}

// Shutdown releases module resources.
func (m *Module) Shutdown() error {
	return nil
}

// list returns one page of the authenticated user's tasks.
func (m *Module) list(req ListRequest, ctx server.HandlerContext) (server.Result[ListResult], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[ListResult]{}, server.NewUnauthorizedError("Authentication required")
	}

	filter := Filter{
		Completed: req.Completed,
		Priority:  req.Priority,
		DueBefore: req.DueBefore,
		DueAfter:  req.DueAfter,
		Search:    req.Search,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      req.Page,
		PerPage:   req.PerPage,
	}
	if req.CategoryID != "" {
		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return server.Result[ListResult]{}, server.NewBadRequestError("Invalid category ID")
		}
		filter.CategoryID = &categoryID
	}

	result, fromCache, err := m.repo.List(reqCtx, userID, filter)
	if errors.Is(err, ErrInvalidSort) {
		return server.Result[ListResult]{}, server.NewBadRequestError("Invalid sort field or order")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to list tasks")
		return server.Result[ListResult]{}, server.NewInternalServerError("Failed to list tasks")
	}

	return server.CachedResult(*result, fromCache), nil
}

// get returns one task of the authenticated user.
func (m *Module) get(req GetRequest, ctx server.HandlerContext) (server.Result[Task], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Task]{}, server.NewUnauthorizedError("Authentication required")
	}

	taskID, err := uuid.Parse(req.ID)
	if err != nil {
		return server.Result[Task]{}, server.NewBadRequestError("Invalid task ID")
	}

	task, fromCache, err := m.repo.GetByID(reqCtx, userID, taskID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load task")
		return server.Result[Task]{}, server.NewInternalServerError("Failed to load task")
	}
	if task == nil {
		return server.Result[Task]{}, server.NewNotFoundError("Task")
	}

	return server.CachedResult(*task, fromCache), nil
}

// stats returns the authenticated user's task aggregates.
func (m *Module) stats(_ StatsRequest, ctx server.HandlerContext) (server.Result[Stats], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Stats]{}, server.NewUnauthorizedError("Authentication required")
	}

	stats, fromCache, err := m.repo.Stats(reqCtx, userID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load task stats")
		return server.Result[Stats]{}, server.NewInternalServerError("Failed to load task stats")
	}

	return server.CachedResult(*stats, fromCache), nil
}

// create adds a task for the authenticated user.
func (m *Module) create(req CreateRequest, ctx server.HandlerContext) (server.Result[Task], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Task]{}, server.NewUnauthorizedError("Authentication required")
	}

	task, err := m.repo.Create(reqCtx, userID, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CategoryID:  req.CategoryID,
	})
	if errors.Is(err, ErrCategoryNotOwned) {
		return server.Result[Task]{}, server.NewBusinessLogicError("CATEGORY_NOT_OWNED", "Category does not exist or is not yours")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to create task")
		return server.Result[Task]{}, server.NewInternalServerError("Failed to create task")
	}

	m.deps.Logger.Info().Str("task_id", task.ID.String()).Msg("Task created")
	return server.Created(*task), nil
}

// update applies provided fields to one task of the authenticated user. An
// explicit null clears the category or due date.
func (m *Module) update(req UpdateRequest, ctx server.HandlerContext) (Task, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return Task{}, server.NewUnauthorizedError("Authentication required")
	}

	taskID, err := uuid.Parse(req.ID)
	if err != nil {
		return Task{}, server.NewBadRequestError("Invalid task ID")
	}

	task, _, err := m.repo.GetByID(reqCtx, userID, taskID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load task")
		return Task{}, server.NewInternalServerError("Failed to update task")
	}
	if task == nil {
		return Task{}, server.NewNotFoundError("Task")
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.CategoryID.Set {
		if req.CategoryID.Valid {
			categoryID := req.CategoryID.Value
			task.CategoryID = &categoryID
		} else {
			task.CategoryID = nil
		}
	}
	if req.DueDate.Set {
		if req.DueDate.Valid {
			dueDate := req.DueDate.Value
			task.DueDate = &dueDate
		} else {
			task.DueDate = nil
		}
	}

	found, err := m.repo.Update(reqCtx, task)
	if errors.Is(err, ErrCategoryNotOwned) {
		return Task{}, server.NewBusinessLogicError("CATEGORY_NOT_OWNED", "Category does not exist or is not yours")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to update task")
		return Task{}, server.NewInternalServerError("Failed to update task")
	}
	if !found {
		return Task{}, server.NewNotFoundError("Task")
	}

	return *task, nil
}

// delete removes one task of the authenticated user.
func (m *Module) delete(req DeleteRequest, ctx server.HandlerContext) (server.NoContentResult, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.NoContentResult{}, server.NewUnauthorizedError("Authentication required")
	}

	taskID, err := uuid.Parse(req.ID)
	if err != nil {
		return server.NoContentResult{}, server.NewBadRequestError("Invalid task ID")
	}

	found, err := m.repo.Delete(reqCtx, userID, taskID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to delete task")
		return server.NoContentResult{}, server.NewInternalServerError("Failed to delete task")
	}
	if !found {
		return server.NoContentResult{}, server.NewNotFoundError("Task")
	}

	m.deps.Logger.Info().Str("task_id", taskID.String()).Msg("Task deleted")
	return server.NoContent(), nil
}
