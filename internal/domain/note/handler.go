package note

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
	g.GET("/provider/patients/:patientId/emr/notes", h.list)
	g.POST("/provider/patients/:patientId/emr/notes", h.create)
	g.GET("/provider/patients/:patientId/emr/notes/:id", h.get)
	g.PUT("/provider/patients/:patientId/emr/notes/:id", h.update)
	g.GET("/patients/me/emr/notes", h.listOwn)
	g.GET("/patients/me/emr/notes/:id", h.get)
	g.POST("/progress-notes/finalize", h.finalize)
	g.POST("/progress-notes/:id/amend", h.amend)
}

func (h *Handler) list(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return respond.Validation("invalid patient id", respond.Issue{Field: "patientId", Message: "must be a UUID"})
	}

	page := pagination.FromContext(c)
	notes, total, err := h.service.ListForPatient(c.Request().Context(), p, patientID, page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, notes, total, page.Page, page.PageSize)
}

// listOwn serves the patient's own record: the caller's id is the patient
// scope, no path parameter is trusted.
func (h *Handler) listOwn(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	page := pagination.FromContext(c)
	notes, total, err := h.service.ListForPatient(c.Request().Context(), p, p.ID, page.Limit(), page.Offset())
	if err != nil {
		return err
	}
	return respond.List(c, notes, total, page.Page, page.PageSize)
}

func (h *Handler) create(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return respond.Validation("invalid patient id", respond.Issue{Field: "patientId", Message: "must be a UUID"})
	}

	var body Body
	if err := c.Bind(&body); err != nil {
		return respond.Validation("invalid request body")
	}

	n, err := h.service.CreateDraft(c.Request().Context(), p, patientID, body)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, n)
}

func (h *Handler) get(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid note id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	n, err := h.service.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, n)
}

func (h *Handler) update(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid note id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var body Body
	if err := c.Bind(&body); err != nil {
		return respond.Validation("invalid request body")
	}

	n, err := h.service.UpdateDraft(c.Request().Context(), p, id, body)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, n)
}

func (h *Handler) finalize(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}

	var input FinalizeInput
	if err := c.Bind(&input); err != nil {
		return respond.Validation("invalid request body")
	}

	n, err := h.service.Finalize(c.Request().Context(), p, input)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusOK, n)
}

func (h *Handler) amend(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond.Validation("invalid note id", respond.Issue{Field: "id", Message: "must be a UUID"})
	}

	var body Body
	if err := c.Bind(&body); err != nil {
		return respond.Validation("invalid request body")
	}

	n, err := h.service.Amend(c.Request().Context(), p, id, body)
	if err != nil {
		return err
	}
	return respond.Entity(c, http.StatusCreated, n)
}
