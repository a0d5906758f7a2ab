package appointment

import (
	"context"
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
	g.GET("/appointments", h.list)
	g.POST("/appointments", h.create)
	g.GET("/appointments/:id", h.get)
	g.PATCH("/appointments/:id/accept", h.accept)
	g.PATCH("/appointments/:id/decline", h.decline)
	g.PATCH("/appointments/:id/reschedule", h.reschedule)
	g.PATCH("/appointments/:id/start", h.start)
	g.PATCH("/appointments/:id/complete", h.complete)
	g.PATCH("/appointments/:id/no-show", h.noShow)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	page := pagination.FromContext(c)
	appts, total, err := h.service.ListForPrincipal(c.Request().Context(), p,
		Status(c.QueryParam("status")), page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, appts, total, page.Page, page.PageSize)
}

func (h *Handler) create(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	appt, err := h.service.Create(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, appt)
}

func (h *Handler) get(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := apptID(c)
	if err != nil {
		return err
	}

	appt, err := h.service.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, appt)
}

func (h *Handler) accept(c echo.Context) error {
	return h.simpleTransition(c, h.service.Accept)
}

func (h *Handler) start(c echo.Context) error {
	return h.simpleTransition(c, h.service.Start)
}

func (h *Handler) complete(c echo.Context) error {
	return h.simpleTransition(c, h.service.Complete)
}

func (h *Handler) noShow(c echo.Context) error {
	return h.simpleTransition(c, h.service.NoShow)
}

func (h *Handler) decline(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := apptID(c)
	if err != nil {
		return err
	}

	var input DeclineInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	appt, err := h.service.Decline(c.Request().Context(), p, id, input.Reason)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, appt)
}

func (h *Handler) reschedule(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := apptID(c)
	if err != nil {
		return err
	}

	var input RescheduleInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	appt, err := h.service.Reschedule(c.Request().Context(), p, id, input.Date)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, appt)
}

func (h *Handler) simpleTransition(c echo.Context, fn func(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Appointment, error)) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := apptID(c)
	if err != nil {
		return err
	}

	appt, err := fn(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, appt)
}

func apptID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, respond.Validation("invalid appointment id",
			respond.Issue{Field: "id", Message: "must be a UUID"})
	}
	return id, nil
}
