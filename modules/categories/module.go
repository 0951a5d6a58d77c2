// Package categories serves the per-user category CRUD surface.
package categories

import (
	"errors"

	"github.com/google/uuid"

	"github.com/taskhub/taskhub/app"
	"github.com/taskhub/taskhub/server"
)

// Module wires the category repository into the HTTP surface.
type Module struct {
	deps *app.ModuleDeps
	repo *Repository
}

// NewModule creates an uninitialized categories module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "categories"
}

// Init builds the repository from the shared dependencies.
func (m *Module) Init(deps *app.ModuleDeps) error {
	if deps.DB == nil {
		return errors.New("categories module requires a database connection")
	}
	m.deps = deps
	m.repo = NewRepository(deps.DB, deps.Cache, deps.Keys, deps.Logger)
	return nil
}

// RegisterRoutes registers the category endpoints behind bearer
// authentication.
func (m *Module) RegisterRoutes(hr *server.HandlerRegistry, r server.RouteRegistrar) {
	authed := r.Group("", server.AuthMiddleware(m.deps.Config))
	server.GET(hr, authed, "/categories", m.list)
	server.POST(hr, authed, "/categories", m.create)
	server.GET(hr, authed, "/categories/:id", m.get)
	server.PUT(hr, authed, "/categories/:id", m.update)
	server.DELETE(hr, authed, "/categories/:id", m.delete)
}

// Shutdown releases module resources.
func (m *Module) Shutdown() error {
	return nil
}

// list returns every category of the authenticated user.
func (m *Module) list(_ ListRequest, ctx server.HandlerContext) (server.Result[ListResponse], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[ListResponse]{}, server.NewUnauthorizedError("Authentication required")
	}

	items, fromCache, err := m.repo.List(reqCtx, userID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to list categories")
		return server.Result[ListResponse]{}, server.NewInternalServerError("Failed to list categories")
	}

	return server.CachedResult(ListResponse{Items: items}, fromCache), nil
}

// get returns one category of the authenticated user.
func (m *Module) get(req GetRequest, ctx server.HandlerContext) (server.Result[Category], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Category]{}, server.NewUnauthorizedError("Authentication required")
	}

	categoryID, err := uuid.Parse(req.ID)
	if err != nil {
		return server.Result[Category]{}, server.NewBadRequestError("Invalid category ID")
	}

	category, fromCache, err := m.repo.GetByID(reqCtx, userID, categoryID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load category")
		return server.Result[Category]{}, server.NewInternalServerError("Failed to load category")
	}
	if category == nil {
		return server.Result[Category]{}, server.NewNotFoundError("Category")
	}

	return server.CachedResult(*category, fromCache), nil
}

// create adds a category for the authenticated user.
func (m *Module) create(req CreateRequest, ctx server.HandlerContext) (server.Result[Category], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Category]{}, server.NewUnauthorizedError("Authentication required")
	}

	category, err := m.repo.Create(reqCtx, userID, req.Name, req.Color)
	if errors.Is(err, ErrNameTaken) {
		return server.Result[Category]{}, server.NewConflictError("Category name is already in use")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to create category")
		return server.Result[Category]{}, server.NewInternalServerError("Failed to create category")
	}

	m.deps.Logger.Info().Str("category_id", category.ID.String()).Msg("Category created")
	return server.Created(*category), nil
}

// update applies provided fields to one category of the authenticated user.
func (m *Module) update(req UpdateRequest, ctx server.HandlerContext) (Category, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return Category{}, server.NewUnauthorizedError("Authentication required")
	}

	categoryID, err := uuid.Parse(req.ID)
	if err != nil {
		return Category{}, server.NewBadRequestError("Invalid category ID")
	}

	category, _, err := m.repo.GetByID(reqCtx, userID, categoryID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load category")
		return Category{}, server.NewInternalServerError("Failed to update category")
	}
	if category == nil {
		return Category{}, server.NewNotFoundError("Category")
	}

	if req.Name != "" {
		category.Name = req.Name
	}
	if req.Color != "" {
		category.Color = req.Color
	}

	found, err := m.repo.Update(reqCtx, category)
	if errors.Is(err, ErrNameTaken) {
		return Category{}, server.NewConflictError("Category name is already in use")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to update category")
		return Category{}, server.NewInternalServerError("Failed to update category")
	}
	if !found {
		return Category{}, server.NewNotFoundError("Category")
	}

	return *category, nil
}

// delete removes one category of the authenticated user. Tasks keep living
// with their category cleared.
func (m *Module) delete(req DeleteRequest, ctx server.HandlerContext) (server.NoContentResult, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.NoContentResult{}, server.NewUnauthorizedError("Authentication required")
	}

	categoryID, err := uuid.Parse(req.ID)
	if err != nil {
		return server.NoContentResult{}, server.NewBadRequestError("Invalid category ID")
	}

	found, err := m.repo.Delete(reqCtx, userID, categoryID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to delete category")
		return server.NoContentResult{}, server.NewInternalServerError("Failed to delete category")
	}
	if !found {
		return server.NoContentResult{}, server.NewNotFoundError("Category")
	}

	m.deps.Logger.Info().Str("category_id", categoryID.String()).Msg("Category deleted")
	return server.NoContent(), nil
}
