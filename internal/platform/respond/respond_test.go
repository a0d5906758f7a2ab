package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(RequestIDKey, "req-123")
	return c, rec
}

func TestEntityEnvelope(t *testing.T) {
	c, rec := newTestContext(t)
	if err := Entity(c, http.StatusCreated, map[string]string{"id": "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true {
		t.Error("expected success=true")
	}
	if body["requestId"] != "req-123" {
		t.Errorf("expected request id to be echoed, got %v", body["requestId"])
	}
}

func TestListEnvelope(t *testing.T) {
	c, rec := newTestContext(t)
	if err := List(c, []string{"a", "b"}, 42, 2, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Data struct {
			Items    []string `json:"items"`
			Total    int      `json:"total"`
			Page     int      `json:"page"`
			PageSize int      `json:"pageSize"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Total != 42 || body.Data.Page != 2 || body.Data.PageSize != 20 {
		t.Errorf("unexpected list metadata: %+v", body.Data)
	}
	if len(body.Data.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(body.Data.Items))
	}
}

func TestErrorHandlerDomainError(t *testing.T) {
	c, rec := newTestContext(t)
	h := ErrorHandler(zerolog.Nop())

	h(Conflict("note already finalized"), c)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected Cache-Control: no-store on error responses")
	}

	var p problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "conflict" || p.Detail != "note already finalized" {
		t.Errorf("unexpected problem body: %+v", p)
	}
	if p.RequestID != "req-123" {
		t.Errorf("expected request id in problem body, got %q", p.RequestID)
	}
}

func TestErrorHandlerSuppressesInternalDetail(t *testing.T) {
	c, rec := newTestContext(t)
	h := ErrorHandler(zerolog.Nop())

	h(Internal(errors.New("pq: connection refused")), c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var p problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Detail != "" {
		t.Errorf("internal error detail must not leak, got %q", p.Detail)
	}
}

func TestErrorHandlerEchoHTTPError(t *testing.T) {
	c, rec := newTestContext(t)
	h := ErrorHandler(zerolog.Nop())

	h(echo.NewHTTPError(http.StatusNotFound, "no such route"), c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var p problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "not-found" {
		t.Errorf("expected type not-found, got %s", p.Type)
	}
}

func TestValidationCarriesIssues(t *testing.T) {
	err := Validation("invalid appointment", Issue{Field: "date", Message: "must be in the future"})
	if err.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.Status)
	}
	if len(err.Issues) != 1 || err.Issues[0].Field != "date" {
		t.Errorf("expected field issue, got %+v", err.Issues)
	}
}

func TestAsError(t *testing.T) {
	wrapped := Forbidden("not the owning provider").WithCause(errors.New("x"))
	if AsError(wrapped) == nil {
		t.Error("expected AsError to find *Error")
	}
	if AsError(errors.New("plain")) != nil {
		t.Error("expected nil for non-domain error")
	}
	if !IsStatus(wrapped, http.StatusForbidden) {
		t.Error("expected IsStatus 403")
	}
}
