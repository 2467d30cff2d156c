package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/api/http/handlers"
	"github.com/spec-kit/ticket-resolution/internal/assist"
	"github.com/spec-kit/ticket-resolution/internal/closing"
	"github.com/spec-kit/ticket-resolution/internal/corpus"
	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/observability"
	"github.com/spec-kit/ticket-resolution/internal/planning"
	"github.com/spec-kit/ticket-resolution/internal/repository"
	"github.com/spec-kit/ticket-resolution/internal/retrieval"
	"github.com/spec-kit/ticket-resolution/internal/service"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()

	store := corpus.NewMemoryStore(
		[]domain.CustomerRecord{
			{ID: "C-ACME", Name: "Acme Anlagenbau GmbH", Aliases: []string{"Acme"}, CustomerSince: time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC)},
		},
		[]domain.ProductRecord{
			{SKU: "GW-300", Name: "Grosswasser GW-300", Aliases: []string{"GW300"}},
		},
		[]domain.ManualSection{
			{ID: "GW-300#01", ProductID: "GW-300", Title: "Aufstellung und Saughöhe", Body: "Saughöhe über 1,5m führt zu Kavitation."},
		},
		nil,
	)

	svc := service.NewResolutionService(service.ResolutionDependencies{
		TicketRepo: repository.NewMemoryTicketRepository(),
		Engine:     retrieval.NewEngine(store, logger),
		Builder:    planning.NewBuilder(),
		Closer:     closing.NewCloser(store, logger),
		Drafter:    assist.NewStubDrafter(),
		Logger:     logger,
	})

	app := fiber.New()
	metrics := observability.NewMetrics()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("test", "dev", nil, nil, metrics),
		Tickets: handlers.NewTicketsHandler(svc),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func createTicket(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/tickets/", map[string]any{
		"subject":     "GW-300 liefert nur 0,8 bar",
		"description": "Pfeifgeräusch, Saughöhe 2m",
		"product_id":  "GW-300",
		"customer_id": "C-ACME",
	})
	require.Equal(t, http.StatusCreated, status)
	data := body["data"].(map[string]any)
	return data["id"].(string)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app := testApp(t)
	id := createTicket(t, app)

	status, body := doJSON(t, app, http.MethodPost, "/tickets/"+id+"/research", nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, string(domain.StagePlanPending), data["stage"])
	require.NotNil(t, data["plan"])
	steps := data["plan"].(map[string]any)["steps"].([]any)
	require.NotEmpty(t, steps)

	status, body = doJSON(t, app, http.MethodPost, "/tickets/"+id+"/disposition", map[string]any{"decision": "approved"})
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, string(domain.StageExecuting), data["stage"])

	for i := range steps {
		status, _ = doJSON(t, app, http.MethodPost, "/tickets/"+id+"/execution", map[string]any{
			"step_seq": i + 1,
			"kind":     "INTERNAL_NOTE",
		})
		require.Equal(t, http.StatusOK, status)
	}

	status, body = doJSON(t, app, http.MethodPost, "/tickets/"+id+"/close", map[string]any{"notes": "Kavitation bestätigt"})
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, string(domain.StageClosed), data["stage"])
	assert.NotNil(t, data["summary"])

	status, body = doJSON(t, app, http.MethodGet, "/tickets/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(domain.StageClosed), body["data"].(map[string]any)["stage"])
}

func TestValidationErrors(t *testing.T) {
	app := testApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/tickets/", map[string]any{"subject": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	id := createTicket(t, app)
	status, body = doJSON(t, app, http.MethodPost, "/tickets/"+id+"/disposition", map[string]any{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestWorkflowErrorMapping(t *testing.T) {
	app := testApp(t)
	id := createTicket(t, app)

	// Closing before research is an illegal transition.
	status, body := doJSON(t, app, http.MethodPost, "/tickets/"+id+"/close", map[string]any{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ILLEGAL_TRANSITION", body["error"].(map[string]any)["code"])

	status, body = doJSON(t, app, http.MethodGet, "/tickets/T-404", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestListTickets(t *testing.T) {
	app := testApp(t)
	createTicket(t, app)
	createTicket(t, app)

	status, body := doJSON(t, app, http.MethodGet, "/tickets/", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)

	status, body = doJSON(t, app, http.MethodGet, "/tickets/?stage=CLOSED", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestHealthEndpoints(t *testing.T) {
	app := testApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	// Disabled dependencies do not fail readiness.
	status, _ = doJSON(t, app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)

	// The probes above are already counted by the time metrics is read.
	status, body = doJSON(t, app, http.MethodGet, "/health/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	requests, ok := data["requests"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, requests)
}
