package connection

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

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/links", h.list)
	g.POST("/links", h.request)
	g.PATCH("/links/:id/decision", h.decide)
	g.POST("/links/:id/disconnect", h.disconnect)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	page := pagination.FromContext(c)
	links, total, err := h.service.ListForPrincipal(c.Request().Context(), p,
		Status(c.QueryParam("status")), page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, links, total, page.Page, page.PageSize)
}

func (h *Handler) request(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input RequestInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	link, err := h.service.Request(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, link)
}

func (h *Handler) decide(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid link id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var input DecisionInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	link, err := h.service.Decide(c.Request().Context(), p, id, input.Approve)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, link)
}

func (h *Handler) disconnect(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid link id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	link, err := h.service.Disconnect(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, link)
}
