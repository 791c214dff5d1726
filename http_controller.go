package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storeauth/middleware/ratelimit"
)

// RegisterAuthRoutes mounts the session and administration endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	r := controller.Routes
	protected := controller.Auther.ProtectedRoute()
	owner := controller.Auther.RequireRole(RoleOwner)
	limited := controller.limiter

	app.Post(r.Signup, controller.SignupPost, limited).SetName("auth.signup")
	app.Post(r.Login, controller.LoginPost, limited).SetName("auth.login")
	app.Post(r.Refresh, controller.RefreshPost, limited).SetName("auth.refresh")
	app.Post(r.Logout, controller.LogoutPost, limited).SetName("auth.logout")

	app.Get(r.Me, controller.MeGet, protected).SetName("auth.me")
	app.Put(r.Password, controller.PasswordPut, protected).SetName("auth.password")

	app.Post(r.PasswordResets, controller.PasswordResetPost, limited).SetName("pwd-reset.post")
	app.Get(r.PasswordResets, controller.PasswordResetList, protected, owner).SetName("pwd-reset.list")
	app.Post(r.PasswordResets+"/:id/approve", controller.PasswordResetApprove, protected, owner).
		SetName("pwd-reset.approve")

	app.Put(r.Users+"/:id/role", controller.UserRolePut, protected, owner).SetName("users.role")
	app.Delete(r.Users+"/:id", controller.UserDelete, protected, owner).SetName("users.delete")
	app.Get(r.Audit, controller.AuditList, protected, owner).SetName("audit.list")
}

type AuthControllerRoutes struct {
	Signup         string
	Login          string
	Refresh        string
	Logout         string
	Me             string
	Password       string
	PasswordResets string
	Users          string
	Audit          string
}

type AuthController struct {
	Logger  Logger
	Service *Service
	Auther  *RouteAuthenticator
	Routes  *AuthControllerRoutes
	Limit   ratelimit.Config
	limiter router.MiddlewareFunc
}

type AuthControllerOption func(*AuthController) *AuthController

// WithRateLimit overrides the bucket applied to credential endpoints.
func WithRateLimit(cfg ratelimit.Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Limit = cfg
		return c
	}
}

// WithRoutes overrides the route paths.
func WithRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = &routes
		return c
	}
}

func NewAuthController(service *Service, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:  service.logger,
		Service: service,
		Auther:  NewHTTPAuthenticator(service),
		Routes: &AuthControllerRoutes{
			Signup:         "/auth/signup",
			Login:          "/auth/login",
			Refresh:        "/auth/refresh",
			Logout:         "/auth/logout",
			Me:             "/auth/me",
			Password:       "/auth/password",
			PasswordResets: "/auth/password-resets",
			Users:          "/users",
			Audit:          "/audit",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	limit := c.Limit
	if limit.LimitError == nil {
		limit.LimitError = ErrRateLimited
	}
	if limit.ErrorHandler == nil {
		limit.ErrorHandler = c.Auther.ErrorHandler
	}
	c.limiter = ratelimit.New(limit)

	return c
}

func (a *AuthController) fail(ctx router.Context, err error) error {
	return a.Auther.ErrorHandler(ctx, err)
}

func (a *AuthController) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("failed to parse payload", "error", err)
		return newError(ErrInvalidInput, "failed to parse request body")
	}
	return nil
}

type ProfilePayload struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone_number"`
	ShopName    string `json:"shop_name"`
}

func (p ProfilePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.Length(0, 200)),
		validation.Field(&p.Email, validation.Length(0, 200), is.Email),
		validation.Field(&p.ShopName, validation.Length(0, 200)),
	)
}

func (p ProfilePayload) toProfile() Profile {
	return Profile{
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Phone:       p.Phone,
		ShopName:    p.ShopName,
	}
}

// SignupPayload is the body of the signup endpoint.
type SignupPayload struct {
	Name       string         `json:"name"`
	Password   string         `json:"password"`
	Profile    ProfilePayload `json:"profile"`
	Region     string         `json:"region"`
	RememberMe bool           `json:"remember_me"`
}

// Validate will run validation rules
func (r SignupPayload) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 64)),
			validation.Field(&r.Password, validation.Required),
			validation.Field(&r.Profile),
			validation.Field(&r.Region, validation.Length(0, 2)),
		)
	}, "invalid signup payload")
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, invalidPayload(err))
	}

	res, err := a.Service.SignupOrLogin(ctx.Context(), SignupInput{
		Name:       payload.Name,
		Password:   payload.Password,
		Profile:    payload.Profile.toProfile(),
		Region:     payload.Region,
		RememberMe: payload.RememberMe,
		Meta:       RequestMetaFrom(ctx),
	})
	if err != nil {
		return a.fail(ctx, err)
	}

	a.Auther.setTokenCookies(ctx, res.Tokens)
	status := http.StatusOK
	if res.IsNewUser {
		status = http.StatusCreated
	}
	return ctx.Status(status).JSON(status, res)
}

// LoginPayload is the body of the login endpoint.
type LoginPayload struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required),
			validation.Field(&r.Password, validation.Required),
		)
	}, "invalid login payload")
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, invalidPayload(err))
	}

	res, err := a.Service.Login(ctx.Context(), payload.Name, payload.Password, payload.RememberMe)
	if err != nil {
		return a.fail(ctx, err)
	}

	a.Auther.setTokenCookies(ctx, res.Tokens)
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, res)
}

// RefreshPayload carries the refresh token when it is not sent as a header or cookie.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
	RememberMe   bool   `json:"remember_me"`
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshPayload)
	// the token may arrive as a header or cookie with no body at all
	_ = ctx.Bind(payload)

	raw := a.Auther.RefreshTokenFrom(ctx, payload.RefreshToken)
	res, err := a.Service.Refresh(ctx.Context(), raw, payload.RememberMe)
	if err != nil {
		if HasTextCode(err, TextCodeTokenReused) {
			a.Auther.clearTokenCookies(ctx)
		}
		return a.fail(ctx, err)
	}

	a.Auther.setTokenCookies(ctx, res.Tokens)
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, res.Tokens)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	payload := new(RefreshPayload)
	// an empty or unparsable body still logs out
	_ = ctx.Bind(payload)

	a.Service.Logout(ctx.Context(), a.Auther.RefreshTokenFrom(ctx, payload.RefreshToken))
	a.Auther.clearTokenCookies(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (a *AuthController) MeGet(ctx router.Context) error {
	user, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, user)
}

// ChangePasswordPayload is the body of the password change endpoint.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordPayload) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.CurrentPassword, validation.Required),
			validation.Field(&r.NewPassword, validation.Required),
		)
	}, "invalid password payload")
}

func (a *AuthController) PasswordPut(ctx router.Context) error {
	user, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(ChangePasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, invalidPayload(err))
	}

	if err := a.Service.ChangePassword(ctx.Context(), user.ID.String(), payload.CurrentPassword, payload.NewPassword, RequestMetaFrom(ctx)); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PasswordResetRequestPayload names the operator who lost their password.
type PasswordResetRequestPayload struct {
	Name string `json:"name"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required),
		)
	}, "invalid password reset payload")
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, invalidPayload(err))
	}

	req, err := a.Service.RequestPasswordReset(ctx.Context(), payload.Name)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusCreated).JSON(http.StatusCreated, map[string]any{
		"request_id": req.ID.String(),
	})
}

func (a *AuthController) PasswordResetList(ctx router.Context) error {
	reqs, err := a.Service.ListPendingResets(ctx.Context())
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, map[string]any{
		"requests": reqs,
	})
}

// ApproveResetPayload carries the password chosen by the owner.
type ApproveResetPayload struct {
	Password string `json:"password"`
}

func (a *AuthController) PasswordResetApprove(ctx router.Context) error {
	owner, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(ApproveResetPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}

	user, err := a.Service.ApproveReset(ctx.Context(), ctx.Param("id"), payload.Password, owner.ID.String(), RequestMetaFrom(ctx))
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, map[string]any{
		"user": user,
	})
}

// UpdateRolePayload is the body of the role change endpoint.
type UpdateRolePayload struct {
	Role string `json:"role"`
}

// Validate will validate the payload
func (r UpdateRolePayload) Validate() *goerrors.Error {
	roles := make([]any, 0, 3)
	for _, role := range GetAllRoles() {
		roles = append(roles, string(role))
	}
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Role, validation.Required, validation.In(roles...)),
		)
	}, "invalid role payload")
}

func (a *AuthController) UserRolePut(ctx router.Context) error {
	actor, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(UpdateRolePayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.fail(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.fail(ctx, invalidPayload(err))
	}

	user, err := a.Service.UpdateUserRole(ctx.Context(), actor.ID.String(), ctx.Param("id"), UserRole(payload.Role), RequestMetaFrom(ctx))
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, user)
}

func (a *AuthController) UserDelete(ctx router.Context) error {
	actor, err := a.Auther.CurrentUser(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Service.DeleteUser(ctx.Context(), actor.ID.String(), ctx.Param("id"), RequestMetaFrom(ctx)); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (a *AuthController) AuditList(ctx router.Context) error {
	filter := AuditFilter{
		Action:      AuditAction(ctx.Query("action", "")),
		PerformedBy: ctx.Query("performed_by", ""),
		TargetUser:  ctx.Query("target_user", ""),
	}
	page := Page{
		Limit:  ctx.QueryInt("limit", defaultAuditPageSize),
		Offset: ctx.QueryInt("offset", 0),
	}.Normalize()

	entries, total, err := a.Service.QueryAudit(ctx.Context(), filter, page)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}
