package message

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
	g.POST("/messages", h.send)
	g.GET("/messages/threads/:otherPartyId", h.thread)
	g.GET("/messages/unread-count", h.unreadCount)
}

func (h *Handler) send(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input SendInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	msg, err := h.service.Send(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, msg)
}

func (h *Handler) thread(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	otherPartyID, err := uuid.Parse(c.Param("otherPartyId"))
	if err != nil {
		return respond.Validation("invalid party id",
			respond.Issue{Field: "otherPartyId", Message: "must be a UUID"})
	}

	page := pagination.FromContext(c)
	msgs, total, err := h.service.Thread(c.Request().Context(), p, otherPartyID, page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, msgs, total, page.Page, page.PageSize)
}

func (h *Handler) unreadCount(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	n, err := h.service.UnreadCount(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, map[string]int{"unread": n})
}
