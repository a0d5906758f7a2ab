package encounter

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
	g.GET("/encounters", h.list)
	g.POST("/encounters", h.open)
	g.GET("/encounters/:id", h.get)
	g.PATCH("/encounters/:id/close", h.close)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	page := pagination.FromContext(c)
	encounters, total, err := h.service.ListForPrincipal(c.Request().Context(), p,
		Status(c.QueryParam("status")), page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, encounters, total, page.Page, page.PageSize)
}

func (h *Handler) open(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input OpenInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	enc, err := h.service.Open(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, enc)
}

func (h *Handler) get(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid encounter id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	enc, err := h.service.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, enc)
}

func (h *Handler) close(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid encounter id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var input struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	enc, err := h.service.Close(c.Request().Context(), p, id, input.Status)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, enc)
}
