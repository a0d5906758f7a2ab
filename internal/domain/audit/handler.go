package audit

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
	"github.com/telecare/telecare/pkg/pagination"
)

type Handler struct {
	service       *Service
	retentionDays int
}

func NewHandler(service *Service, retentionDays int) *Handler {
	return &Handler{service: service, retentionDays: retentionDays}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/admin/audit", h.search)
	g.POST("/admin/audit/prune", h.prune)
}

func (h *Handler) search(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := auth.RequirePermission(p, auth.ActionSearchAudit); err != nil {
		return err
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		return err
	}

	page := pagination.FromContext(c)
	entries, total, err := h.service.Search(c.Request().Context(), filter, page.Limit(), page.Offset())
	if err != nil {
		return respond.Internal(err)
	}
	return respond.List(c, entries, total, page.Page, page.PageSize)
}

func (h *Handler) prune(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := auth.RequirePermission(p, auth.ActionPruneAudit); err != nil {
		return err
	}

	deleted, err := h.service.Prune(c.Request().Context(), h.retentionDays)
	if err != nil {
		return respond.Internal(err)
	}
	return respond.Entity(c, http.StatusOK, map[string]interface{}{
		"deleted":       deleted,
		"retentionDays": h.retentionDays,
	})
}

func filterFromQuery(c echo.Context) (SearchFilter, error) {
	var filter SearchFilter

	if v := c.QueryParam("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, respond.Validation("invalid userId", respond.Issue{Field: "userId", Message: "must be a UUID"})
		}
		filter.UserID = &id
	}
	filter.Action = Action(c.QueryParam("action"))
	filter.EntityType = c.QueryParam("entityType")
	filter.EntityID = c.QueryParam("entityId")

	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, respond.Validation("invalid from", respond.Issue{Field: "from", Message: "must be RFC 3339"})
		}
		filter.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, respond.Validation("invalid to", respond.Issue{Field: "to", Message: "must be RFC 3339"})
		}
		filter.To = &t
	}
	return filter, nil
}
