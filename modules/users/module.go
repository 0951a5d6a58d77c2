// Package users serves account registration, authentication, and the /me
// profile surface.
package users

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskhub/taskhub/app"
	"github.com/taskhub/taskhub/server"
)

// Module wires the account repository into the HTTP surface.
type Module struct {
	deps *app.ModuleDeps
	repo *Repository
}

// NewModule creates an uninitialized users module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "users"
}

// Init builds the repository from the shared dependencies.
func (m *Module) Init(deps *app.ModuleDeps) error {
	if deps.DB == nil {
		return errors.New("users module requires a database connection")
	}
	m.deps = deps
	m.repo = NewRepository(deps.DB, deps.Cache, deps.Keys, deps.Logger)
	return nil
}

// RegisterRoutes registers the auth endpoints unauthenticated and the /me
// endpoints behind bearer authentication.
func (m *Module) RegisterRoutes(hr *server.HandlerRegistry, r server.RouteRegistrar) {
	server.POST(hr, r, "/auth/register", m.register)
	server.POST(hr, r, "/auth/login", m.login)

	authed := r.Group("", server.AuthMiddleware(m.deps.Config))
	server.GET(hr, authed, "/me", m.profile)
	server.PUT(hr, authed, "/me", m.updateProfile)
	server.DELETE(hr, authed, "/me", m.deleteAccount)
}

// Shutdown releases module resources.
func (m *Module) Shutdown() error {
	return nil
}

// register creates an account with a bcrypt-hashed password.
func (m *Module) register(req RegisterRequest, ctx server.HandlerContext) (server.Result[Profile], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), m.deps.Config.Auth.BCrypt.Cost)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to hash password")
		return server.Result[Profile]{}, server.NewInternalServerError("Failed to create account")
	}

	user, err := m.repo.Create(reqCtx, normalizeEmail(req.Email), string(hash), req.DisplayName)
	if errors.Is(err, ErrEmailTaken) {
		return server.Result[Profile]{}, server.NewConflictError("Email is already registered")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to create account")
		return server.Result[Profile]{}, server.NewInternalServerError("Failed to create account")
	}

	m.deps.Logger.Info().Str("user_id", user.ID.String()).Msg("Account created")
	return server.Created(user.Profile()), nil
}

// login verifies credentials and issues a bearer token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (m *Module) login(req LoginRequest, ctx server.HandlerContext) (AuthResponse, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	user, err := m.repo.GetByEmail(reqCtx, normalizeEmail(req.Email))
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to look up account")
		return AuthResponse{}, server.NewInternalServerError("Failed to sign in")
	}
	if user == nil {
		return AuthResponse{}, server.NewUnauthorizedError("Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthResponse{}, server.NewUnauthorizedError("Invalid email or password")
	}

	token, expiresAt, err := server.GenerateToken(m.deps.Config, user.ID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to sign token")
		return AuthResponse{}, server.NewInternalServerError("Failed to sign in")
	}

	return AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Profile(),
	}, nil
}

// profile returns the authenticated user's account.
func (m *Module) profile(_ GetProfileRequest, ctx server.HandlerContext) (server.Result[Profile], server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.Result[Profile]{}, server.NewUnauthorizedError("Authentication required")
	}

	user, fromCache, err := m.repo.GetByID(reqCtx, userID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load profile")
		return server.Result[Profile]{}, server.NewInternalServerError("Failed to load profile")
	}
	if user == nil {
		return server.Result[Profile]{}, server.NewNotFoundError("Account")
	}

	return server.CachedResult(user.Profile(), fromCache), nil
}

// updateProfile applies provided fields to the authenticated user's account.
func (m *Module) updateProfile(req UpdateProfileRequest, ctx server.HandlerContext) (Profile, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return Profile{}, server.NewUnauthorizedError("Authentication required")
	}

	user, _, err := m.repo.GetByID(reqCtx, userID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to load profile")
		return Profile{}, server.NewInternalServerError("Failed to update profile")
	}
	if user == nil {
		return Profile{}, server.NewNotFoundError("Account")
	}

	if req.Email != "" {
		user.Email = normalizeEmail(req.Email)
	}
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}

	found, err := m.repo.Update(reqCtx, user)
	if errors.Is(err, ErrEmailTaken) {
		return Profile{}, server.NewConflictError("Email is already registered")
	}
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to update profile")
		return Profile{}, server.NewInternalServerError("Failed to update profile")
	}
	if !found {
		return Profile{}, server.NewNotFoundError("Account")
	}

	return user.Profile(), nil
}

// deleteAccount removes the authenticated user and everything they own.
func (m *Module) deleteAccount(_ DeleteAccountRequest, ctx server.HandlerContext) (server.NoContentResult, server.IAPIError) {
	reqCtx := ctx.Echo.Request().Context()

	userID, ok := server.UserIDFromContext(reqCtx)
	if !ok {
		return server.NoContentResult{}, server.NewUnauthorizedError("Authentication required")
	}

	found, err := m.repo.Delete(reqCtx, userID)
	if err != nil {
		m.deps.Logger.Error().Err(err).Msg("Failed to delete account")
		return server.NoContentResult{}, server.NewInternalServerError("Failed to delete account")
	}
	if !found {
		return server.NoContentResult{}, server.NewNotFoundError("Account")
	}

	m.deps.Logger.Info().Str("user_id", userID.String()).Msg("Account deleted")
	return server.NoContent(), nil
}

// normalizeEmail lowercases and trims so lookups and uniqueness are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
