package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
	"github.com/telecare/telecare/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/register", h.register)
	g.POST("/auth/login", h.login)
}

// RegisterRoutes mounts the session-protected endpoints.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/me", h.me)
	g.GET("/admin/users", h.list)
	g.GET("/admin/users/:id", h.get)
	g.PUT("/admin/users/:id/roles", h.setRoles)
	g.PATCH("/admin/providers/:id/review", h.review)
}

func (h *Handler) register(c echo.Context) error {
	var input RegisterInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	user, err := h.service.Register(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, user)
}

func (h *Handler) login(c echo.Context) error {
	var input LoginInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	token, user, err := h.service.Login(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) me(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, user)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := auth.RequirePermission(p, auth.ActionManageUsers); err != nil {
		return err
	}

	filter := ListFilter{
		Role:             c.QueryParam("role"),
		ProviderApproval: auth.ApprovalStatus(c.QueryParam("providerApproval")),
	}
	page := pagination.FromContext(c)
	users, total, err := h.service.List(c.Request().Context(), filter, page.Limit(), page.Offset())
	if err != nil {
		return respond.Internal(err)
	}
	return respond.List(c, users, total, page.Page, page.PageSize)
}

func (h *Handler) get(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := auth.RequirePermission(p, auth.ActionManageUsers); err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid user id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}
	user, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, user)
}

func (h *Handler) setRoles(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid user id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var input RoleUpdateInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	user, err := h.service.SetRoles(c.Request().Context(), p, id, input.Roles)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, user)
}

func (h *Handler) review(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid user id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var input ReviewInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	user, err := h.service.ReviewProvider(c.Request().Context(), p, id, input.Status)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, user)
}
