package identity

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/platform/apperr"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/pkg/pagination"
)

// ProfileLookup returns the role profile owned by a user.
type ProfileLookup interface {
	ProfileOf(ctx context.Context, u *User) (any, error)
}

type Handler struct {
	svc      *Service
	profiles ProfileLookup
}

func NewHandler(svc *Service, profiles ProfileLookup) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

// RegisterRoutes mounts the token endpoint on public and the account
// endpoints on api, which must be behind auth.Authenticate.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.POST("/oauth/client/token", h.Token)

	api.GET("/auth/me", h.Me)
	api.POST("/auth/logout", h.Logout)
	api.GET("/user/list", h.ListUsers, auth.Require(auth.ActionUserList))
}

type tokenRequest struct {
	Username  string `json:"username" form:"username" validate:"required"`
	Password  string `json:"password" form:"password" validate:"required"`
	GrantType string `json:"grant_type" form:"grant_type" validate:"omitempty,eq=password"`
}

// Token implements the password grant. Credentials arrive as form fields
// (username is the email); JSON bodies are accepted as well.
func (h *Handler) Token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	tok, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, tok)
}

type meResponse struct {
	User    *User `json:"user"`
	Profile any   `json:"profile,omitempty"`
}

func (h *Handler) Me(c echo.Context) error {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return apperr.Unauthorized("authentication required")
	}
	ctx := c.Request().Context()
	u, err := h.svc.GetUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	resp := meResponse{User: u}
	if h.profiles != nil {
		profile, err := h.profiles.ProfileOf(ctx, u)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}
		resp.Profile = profile
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	id, ok := auth.CurrentIdentity(c)
	if !ok {
		return apperr.Unauthorized("authentication required")
	}
	if err := h.svc.Logout(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg))
}
