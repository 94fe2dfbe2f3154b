package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashymuperekicmd/contact-api/datastores"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter(t *testing.T) {
	var logs bytes.Buffer
	handler, api := NewRouter(&RouterOptions{PublicURL: "https://contacts.example.com"},
		"Contacts API", "1.2.3", "abc123", "2024-01-01",
		datastores.NewContactsInmem(), newLogger(&logs))

	assert.Equal(t, "https://contacts.example.com", api.OpenAPI().Servers[0].URL)
	assert.Equal(t, "support@contactsapi.com", api.OpenAPI().Info.Contact.Email)

	t.Run("RequestID", func(t *testing.T) {
		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/contacts", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		generated := rec.Header().Get("X-Request-Id")
		assert.Len(t, generated, 36)
		assert.Contains(t, logs.String(), "x-request-id="+generated)

		req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
		req.Header.Set("X-Request-Id", "req-42")
		rec = serve(handler, req)
		assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
		assert.Contains(t, logs.String(), "x-request-id=req-42")
	})

	t.Run("ErrorsUseErrorModel", func(t *testing.T) {
		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/contacts/not-a-valid-id", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"message":"Invalid contact ID"}`, rec.Body.String())
		assert.Contains(t, logs.String(), "operation failed")
	})

	t.Run("NoSchemaLink", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/contacts",
			strings.NewReader(`{"firstName":"John","lastName":"Doe","email":"john.doe@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(handler, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "$schema")
		assert.Empty(t, rec.Header().Get("Link"))
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := serve(handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `build_info{goversion="`)
		assert.Contains(t, body, `version="1.2.3"`)
		assert.Contains(t, body, `http_requests_total{operation="list-contacts",method="GET",path="/contacts",status="200"} 2`)
		assert.Contains(t, body, `http_requests_total{operation="get-contact",method="GET",path="/contacts/{id}",status="400"} 1`)
	})

	t.Run("Readiness", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(handler, httptest.NewRequest(http.MethodGet, "/readiness", nil)).Code)
	})
}

func TestNewRouterPrefix(t *testing.T) {
	handler, _ := NewRouter(&RouterOptions{EndpointsPrefix: "/api"}, "Contacts API", "1.0.0", "", "",
		datastores.NewContactsInmem(), slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusOK, serve(handler, httptest.NewRequest(http.MethodGet, "/api/contacts", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(handler, httptest.NewRequest(http.MethodGet, "/contacts", nil)).Code)
}

type unreachable struct{ *datastores.ContactsInmem }

func (unreachable) Ping(context.Context) error { return datastores.ErrUnavailable }

func TestReadiness(t *testing.T) {
	var logs bytes.Buffer
	h := readiness(unreachable{datastores.NewContactsInmem()}, newLogger(&logs))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, logs.String(), "store not ready")
}

func TestRecoverMiddleware(t *testing.T) {
	var logs bytes.Buffer
	_, api := humatest.New(t)
	api.UseMiddleware(ctxlog{}.recoverMiddleware(newLogger(&logs)))
	huma.Get(api, "/panic", func(context.Context, *struct{}) (*struct{}, error) { panic("boom") })

	rec := api.Get("/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Something went wrong!"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "panic occurred")
	assert.Contains(t, logs.String(), "recovered=boom")
}

func TestErrorHandler(t *testing.T) {
	var logs bytes.Buffer
	handle := ctxlog{}.errorHandler(newLogger(&logs))

	handle(context.Background(), huma.Error404NotFound("Contact not found"))
	handle(context.Background(), huma.Error500InternalServerError("Server Error"))
	handle(context.Background(), errors.New("plain"))

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "level=WARN")
	assert.Contains(t, lines[0], "status=404")
	assert.Contains(t, lines[1], "level=ERROR")
	assert.Contains(t, lines[1], "status=500")
	assert.Contains(t, lines[2], "level=ERROR")
	assert.NotContains(t, lines[2], "status=")
}

func TestNewServer(t *testing.T) {
	srv := NewServer(&ServerOptions{Host: "127.0.0.1", Port: "5000"}, http.NotFoundHandler(), slog.New(slog.DiscardHandler))
	assert.Equal(t, "127.0.0.1:5000", srv.Addr)
	assert.NotNil(t, srv.ErrorLog)
}
