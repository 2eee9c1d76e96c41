package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"
	"cobrancazap/internal/infra/logger"
	"cobrancazap/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminToken   = "admin-secret"
	testWebhookToken = "hook-secret"
)

type fixedNext struct{ at time.Time }

func (f fixedNext) NextRun() (time.Time, bool) { return f.at, true }

type testServer struct {
	srv     *httptest.Server
	ledger  *memory.Ledger
	history *memory.HistoryStore
	coord   *app.Coordinator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()
	ledger := memory.NewLedger()
	ledger.PutCustomer(billing.Customer{ID: "cust-1", Name: "Maria"})
	history := memory.NewHistoryStore()
	registry := app.NewRuleRegistry(memory.NewRuleRepository(app.DefaultRules(3)...), notification.ThrottleSettings{AntiSpamEnabled: true, CooldownDays: 3}, log)
	coord := app.NewCoordinator(registry, ledger, app.NewTriggerEvaluator(log), history,
		app.NewTemplateRenderer(ledger, "Loja"), app.NewLoggingSender(log), log, app.CoordinatorConfig{Concurrency: 2})
	admin := app.NewAdminService(registry, coord, history, 1)

	h := NewHandler(admin, coord, fixedNext{at: time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)}, log,
		HandlerConfig{AdminToken: testAdminToken, WebhookToken: testWebhookToken})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, ledger: ledger, history: history, coord: coord}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) admin(t *testing.T, method, path, body string) *http.Response {
	return ts.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + testAdminToken})
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/rules", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/rules", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.admin(t, http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rules := decode[[]ruleResponse](t, resp)
	assert.Len(t, rules, 4)
}

func TestToggleRule(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.admin(t, http.MethodPost, "/api/rules/vencidas/disable", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[ruleResponse](t, resp).Enabled)

	resp = ts.admin(t, http.MethodPost, "/api/rules/vencidas/enable", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[ruleResponse](t, resp).Enabled)

	resp = ts.admin(t, http.MethodPost, "/api/rules/nope/enable", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetLeadDaysRoute(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.admin(t, http.MethodPut, "/api/rules/aviso_previo/lead-days", `{"lead_days": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, decode[ruleResponse](t, resp).LeadDays)

	resp = ts.admin(t, http.MethodPut, "/api/rules/aviso_previo/lead-days", `{"lead_days": 90}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.admin(t, http.MethodPut, "/api/rules/aviso_previo/lead-days", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSchedulerPauseResume(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.admin(t, http.MethodGet, "/api/scheduler", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[statusResponse](t, resp)
	assert.Equal(t, "IDLE", st.State)
	require.NotNil(t, st.NextRun)

	resp = ts.admin(t, http.MethodPost, "/api/scheduler/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st = decode[statusResponse](t, resp)
	assert.Equal(t, "PAUSED", st.State)
	assert.Nil(t, st.NextRun)

	resp = ts.admin(t, http.MethodPost, "/api/scheduler/resume", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IDLE", decode[statusResponse](t, resp).State)
}

func TestUpdateSettings(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.admin(t, http.MethodPut, "/api/scheduler/settings", `{"anti_spam_enabled": false, "cooldown_days": 7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, settingsResponse{AntiSpamEnabled: false, CooldownDays: 7}, decode[settingsResponse](t, resp))

	resp = ts.admin(t, http.MethodPut, "/api/scheduler/settings", `{"cooldown_days": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunNowAndHistoryRoutes(t *testing.T) {
	ts := newTestServer(t)
	yesterday := time.Now().AddDate(0, 0, -2)
	ts.ledger.PutCharge(billing.Charge{ID: "c1", CustomerID: "cust-1", AmountCents: 1000, DueDate: billing.Day(yesterday), Status: billing.StatusOverdue})

	resp := ts.admin(t, http.MethodPost, "/api/runs", `{"rule_id": "vencidas"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[runResponse](t, resp)
	assert.Equal(t, "MANUAL", run.Trigger)
	assert.Equal(t, 1, run.Sent)

	resp = ts.admin(t, http.MethodPost, "/api/runs", `{"rule_id": "nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.admin(t, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]runResponse](t, resp), 1)

	resp = ts.admin(t, http.MethodGet, "/api/history?charge_id=c1&outcome=SENT", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decode[[]recordResponse](t, resp)
	require.Len(t, records, 1)
	assert.Equal(t, run.ID, records[0].RunID)

	resp = ts.admin(t, http.MethodGet, "/api/history?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.admin(t, http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t)
	today := billing.Day(time.Now())
	ts.ledger.PutCharge(billing.Charge{ID: "c9", CustomerID: "cust-1", AmountCents: 5000, DueDate: today.AddDate(0, 0, 3), PaymentDate: &today, Status: billing.StatusPaidOnTime})
	body := `{"event": "payment.received", "charge_id": "c9"}`

	resp := ts.do(t, http.MethodPost, "/webhooks/payments", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/webhooks/payments", body, map[string]string{"X-Webhook-Token": testWebhookToken})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	run := decode[runResponse](t, resp)
	assert.Equal(t, "EVENT", run.Trigger)
	assert.Equal(t, 1, run.Sent)

	ts.coord.Pause()
	resp = ts.do(t, http.MethodPost, "/webhooks/payments", body, map[string]string{"X-Webhook-Token": testWebhookToken})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPaymentWebhooksThankEachChargeOnce(t *testing.T) {
	ts := newTestServer(t)
	today := billing.Day(time.Now())
	for _, id := range []string{"c1", "c2"} {
		ts.ledger.PutCharge(billing.Charge{ID: id, CustomerID: "cust-1", AmountCents: 5000, DueDate: today.AddDate(0, 0, 3), PaymentDate: &today, Status: billing.StatusPaidOnTime})
	}
	hook := map[string]string{"X-Webhook-Token": testWebhookToken}

	for _, id := range []string{"c1", "c2"} {
		resp := ts.do(t, http.MethodPost, "/webhooks/payments", `{"event": "payment.received", "charge_id": "`+id+`"}`, hook)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, 1, decode[runResponse](t, resp).Sent, id)
	}

	ctx := context.Background()
	for _, id := range []string{"c1", "c2"} {
		n := 0
		for _, err := range ts.history.Query(ctx, notification.HistoryFilter{ChargeID: id, Outcome: notification.OutcomeSent}) {
			require.NoError(t, err)
			n++
		}
		assert.Equal(t, 1, n, id)
	}

	resp := ts.do(t, http.MethodPost, "/webhooks/payments", `{"event": "payment.received"}`, hook)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunContextOutlivesRequest(t *testing.T) {
	h := NewHandler(nil, nil, nil, logger.Discard(), HandlerConfig{RunTimeout: time.Minute})
	parent, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodPost, "/api/run", nil).WithContext(parent)

	ctx, stop := h.runContext(r)
	defer stop()
	cancel()

	assert.NoError(t, ctx.Err())
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	h = NewHandler(nil, nil, nil, logger.Discard(), HandlerConfig{})
	assert.Equal(t, defaultRunTimeout, h.runTimeout)
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
