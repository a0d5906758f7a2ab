package payment

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
	g.GET("/payments", h.list)
	g.POST("/payments", h.record)
	g.PATCH("/payments/:id/settle", h.settle)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var linkID *uuid.UUID
	if v := c.QueryParam("linkId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return respond.Validation("invalid link id",
				respond.Issue{Field: "linkId", Message: "must be a UUID"})
		}
		linkID = &id
	}

	page := pagination.FromContext(c)
	payments, total, err := h.service.ListForPrincipal(c.Request().Context(), p, linkID, page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, payments, total, page.Page, page.PageSize)
}

func (h *Handler) record(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input RecordInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	payment, err := h.service.Record(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, payment)
}

func (h *Handler) settle(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid payment id",
			respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var input SettleInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	payment, err := h.service.Settle(c.Request().Context(), p, id, input.Succeeded)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, payment)
}
