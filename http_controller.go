package auth

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	TokenPair
	User UserResponse `json:"user"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r PasswordChangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type VerifyTokenResponse struct {
	Valid     bool       `json:"valid"`
	UserID    *uuid.UUID `json:"user_id"`
	Email     *string    `json:"email"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// HTTPController serves the auth, user and health endpoints
type HTTPController struct {
	users  *UserProvider
	tokens *TokenService
	routes *RouteAuthenticator
	health *HealthChecker
	Logger Logger
}

func NewHTTPController(users *UserProvider, tokens *TokenService, routes *RouteAuthenticator, health *HealthChecker) *HTTPController {
	if health == nil {
		health = NewHealthChecker("", "")
	}
	return &HTTPController{
		users:  users,
		tokens: tokens,
		routes: routes,
		health: health,
		Logger: defLogger{},
	}
}

func (h *HTTPController) WithLogger(logger Logger) *HTTPController {
	h.Logger = normalizeLogger(logger)
	return h
}

// RegisterRoutes mounts the API under prefix, e.g. "/api/v1"
func RegisterRoutes[T any](app router.Router[T], prefix string, h *HTTPController) {
	api := app.Group(prefix)

	api.Post("/auth/login", h.Login).SetName("auth.login")
	api.Post("/auth/register", h.Register).SetName("auth.register")
	api.Post("/auth/refresh", h.Refresh).SetName("auth.refresh")
	api.Post("/auth/logout", h.Logout, h.routes.RequireUser()).SetName("auth.logout")
	api.Get("/auth/verify", h.Verify, h.routes.OptionalUser()).SetName("auth.verify")

	api.Get("/users/me", h.Me, h.routes.RequireUser()).SetName("users.me")
	api.Put("/users/me", h.UpdateMe, h.routes.RequireUser()).SetName("users.me.update")
	api.Put("/users/me/password", h.ChangePassword, h.routes.RequireUser()).SetName("users.me.password")
	api.Post("/users/:id/activate", h.Activate, h.routes.RequireSuperuser()).SetName("users.activate")
	api.Post("/users/:id/deactivate", h.Deactivate, h.routes.RequireSuperuser()).SetName("users.deactivate")

	app.Get("/health", h.Health).SetName("health")
	app.Get("/health/db", h.HealthDB).SetName("health.db")
	app.Get("/health/redis", h.HealthRedis).SetName("health.redis")
	app.Get("/health/full", h.HealthFull).SetName("health.full")
}

func (h *HTTPController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := h.bind(ctx, payload); err != nil {
		return h.fail(ctx, err)
	}

	pair, user, err := h.users.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		TokenPair: pair,
		User:      NewUserResponse(user),
	})
}

func (h *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterInput)
	if err := h.bind(ctx, payload); err != nil {
		return h.fail(ctx, err)
	}

	user, err := h.users.Register(ctx.Context(), *payload)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    NewUserResponse(user),
	})
}

func (h *HTTPController) Refresh(ctx router.Context) error {
	payload := new(RefreshTokenRequest)
	if err := h.bind(ctx, payload); err != nil {
		return h.fail(ctx, err)
	}

	access, err := h.tokens.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, RefreshTokenResponse{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int(h.tokens.AccessTokenTTL().Seconds()),
	})
}

func (h *HTTPController) Logout(ctx router.Context) error {
	payload := new(LogoutRequest)
	// the body is optional
	_ = ctx.Bind(payload)

	if payload.RefreshToken != "" {
		identity, ok := GetRouterIdentity(ctx, h.routes.ContextKey())
		if !ok {
			return h.fail(ctx, newUnauthenticated(MsgAuthenticationRequired, ReasonMissingCredential))
		}
		if err := h.tokens.RevokeFor(ctx.Context(), payload.RefreshToken, identity.ID.String()); err != nil {
			return h.fail(ctx, err)
		}
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Successfully logged out"})
}

func (h *HTTPController) Verify(ctx router.Context) error {
	identity, ok := GetRouterIdentity(ctx, h.routes.ContextKey())
	if !ok {
		return ctx.JSON(http.StatusOK, VerifyTokenResponse{Valid: false})
	}

	res := VerifyTokenResponse{
		Valid:  true,
		UserID: &identity.ID,
		Email:  &identity.Email,
	}

	credential := ParseBearer(ctx.GetString(router.HeaderAuthorization, ""))
	if exp, ok := h.tokens.ExpiresAt(credential); ok {
		res.ExpiresAt = &exp
	}

	return ctx.JSON(http.StatusOK, res)
}

func (h *HTTPController) Me(ctx router.Context) error {
	identity, ok := GetRouterIdentity(ctx, h.routes.ContextKey())
	if !ok {
		return h.fail(ctx, newUnauthenticated(MsgAuthenticationRequired, ReasonMissingCredential))
	}

	user, err := h.users.GetUser(ctx.Context(), identity.ID)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewUserResponse(user))
}

func (h *HTTPController) UpdateMe(ctx router.Context) error {
	identity, ok := GetRouterIdentity(ctx, h.routes.ContextKey())
	if !ok {
		return h.fail(ctx, newUnauthenticated(MsgAuthenticationRequired, ReasonMissingCredential))
	}

	payload := new(UserUpdate)
	if err := h.bind(ctx, payload); err != nil {
		return h.fail(ctx, err)
	}

	user, err := h.users.UpdateProfile(ctx.Context(), identity.ID, *payload)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewUserResponse(user))
}

func (h *HTTPController) ChangePassword(ctx router.Context) error {
	identity, ok := GetRouterIdentity(ctx, h.routes.ContextKey())
	if !ok {
		return h.fail(ctx, newUnauthenticated(MsgAuthenticationRequired, ReasonMissingCredential))
	}

	payload := new(PasswordChangeRequest)
	if err := h.bind(ctx, payload); err != nil {
		return h.fail(ctx, err)
	}

	if err := h.users.ChangePassword(ctx.Context(), identity.ID, payload.OldPassword, payload.NewPassword); err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

func (h *HTTPController) Activate(ctx router.Context) error {
	return h.setActive(ctx, true)
}

func (h *HTTPController) Deactivate(ctx router.Context) error {
	return h.setActive(ctx, false)
}

func (h *HTTPController) setActive(ctx router.Context, active bool) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return h.fail(ctx, errors.New("invalid user id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest))
	}

	user, err := h.users.SetActive(ctx.Context(), id, active)
	if err != nil {
		return h.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewUserResponse(user))
}

func (h *HTTPController) Health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, h.health.Liveness())
}

func (h *HTTPController) HealthDB(ctx router.Context) error {
	return h.report(ctx, HealthCheckDatabase)
}

func (h *HTTPController) HealthRedis(ctx router.Context) error {
	return h.report(ctx, HealthCheckRedis)
}

func (h *HTTPController) HealthFull(ctx router.Context) error {
	return h.report(ctx)
}

// Health check names used by the health endpoints
const (
	HealthCheckDatabase = "database"
	HealthCheckRedis    = "redis"
)

func (h *HTTPController) report(ctx router.Context, names ...string) error {
	report := h.health.Run(ctx.Context(), names...)
	status := http.StatusOK
	if report.Status != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	return ctx.JSON(status, report)
}

type validatable interface {
	Validate() error
}

func (h *HTTPController) bind(ctx router.Context, payload validatable) error {
	if err := ctx.Bind(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest)
	}

	if verr := errors.ValidateWithOzzo(payload.Validate, "invalid request payload"); verr != nil {
		return verr.WithCode(http.StatusUnprocessableEntity)
	}

	return nil
}

func (h *HTTPController) fail(ctx router.Context, err error) error {
	return WriteError(ctx, h.Logger, err)
}
