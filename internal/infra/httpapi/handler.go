package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/notification"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// EventRunner starts event-driven runs.
type EventRunner interface {
	Run(ctx context.Context, req app.RunRequest) (notification.Run, error)
}

// NextRunner reports the next scheduled tick.
type NextRunner interface {
	NextRun() (time.Time, bool)
}

type Handler struct {
	admin        *app.AdminService
	events       EventRunner
	schedule     NextRunner // optional
	logger       *logrus.Entry
	adminToken   string
	webhookToken string
	runTimeout   time.Duration
	now          func() time.Time
}

type HandlerConfig struct {
	AdminToken   string
	WebhookToken string
	RunTimeout   time.Duration // bounds runs started over HTTP, default 10m
}

const defaultRunTimeout = 10 * time.Minute

func NewHandler(admin *app.AdminService, events EventRunner, schedule NextRunner, logger *logrus.Entry, cfg HandlerConfig) *Handler {
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &Handler{
		admin:        admin,
		events:       events,
		schedule:     schedule,
		logger:       logger,
		adminToken:   cfg.AdminToken,
		webhookToken: cfg.WebhookToken,
		runTimeout:   runTimeout,
		now:          time.Now,
	}
}

// runContext detaches a run from its request: a run outlives the router's
// request timeout and a dropped client, and is bounded by runTimeout instead.
func (h *Handler) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.runTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps engine sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, app.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, app.ErrInvalidLeadDays), errors.Is(err, app.ErrInvalidCooldown), errors.Is(err, app.ErrNotLeadDayRule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	logCtx := h.logger.WithField("op", op).WithError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logCtx.Error("Request failed")
	} else {
		logCtx.Warn("Request rejected")
	}
	writeError(w, status, err.Error())
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.admin.ListRules(r.Context())
	if err != nil {
		h.fail(w, "list_rules", err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) EnableRule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *Handler) DisableRule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	rule, err := h.admin.SetRuleEnabled(r.Context(), chi.URLParam(r, "id"), enabled)
	if err != nil {
		h.fail(w, "set_enabled", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (h *Handler) SetLeadDays(w http.ResponseWriter, r *http.Request) {
	var body leadDaysBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule, err := h.admin.SetLeadDays(r.Context(), chi.URLParam(r, "id"), body.LeadDays)
	if err != nil {
		h.fail(w, "set_lead_days", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handler) status() statusResponse {
	out := toStatusResponse(h.admin.Status())
	if h.schedule != nil && !out.Paused {
		if next, ok := h.schedule.NextRun(); ok {
			out.NextRun = &next
		}
	}
	return out
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.CooldownDays != nil {
		if _, err := h.admin.SetCooldownDays(*body.CooldownDays); err != nil {
			h.fail(w, "update_settings", err)
			return
		}
	}
	if body.AntiSpamEnabled != nil {
		h.admin.SetAntiSpam(*body.AntiSpamEnabled)
	}
	writeJSON(w, http.StatusOK, h.status().Settings)
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.admin.Pause()
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.admin.Resume()
	writeJSON(w, http.StatusOK, h.status())
}

func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	var body runNowBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	ctx, cancel := h.runContext(r)
	defer cancel()
	run, err := h.admin.RunNow(ctx, body.RuleID)
	if err != nil {
		if run.ID != "" {
			// Aborted run: report the partial counts together with the error.
			h.logger.WithError(err).WithField("run_id", run.ID).Error("Manual run aborted")
			writeJSON(w, http.StatusInternalServerError, toRunResponse(run))
			return
		}
		h.fail(w, "run_now", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.admin.RecentRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, "list_runs", err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := notification.HistoryFilter{
		ChargeID: q.Get("charge_id"),
		RuleID:   q.Get("rule_id"),
		Outcome:  notification.Outcome(q.Get("outcome")),
	}
	var err error
	if filter.Limit, err = intQuery(r, "limit", 100); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Since, err = timeQuery(r, "since"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Until, err = timeQuery(r, "until"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.admin.History(r.Context(), filter)
	if err != nil {
		h.fail(w, "history", err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// PaymentWebhook runs the immediate rules (payment thanks) for the paid
// charge only. It waits for a running pass instead of dropping the event.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var ev paymentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.ChargeID == "" {
		writeError(w, http.StatusBadRequest, "charge_id is required")
		return
	}
	logCtx := h.logger.WithFields(logrus.Fields{"event": ev.Event, "charge_id": ev.ChargeID})
	logCtx.Info("Payment webhook received")

	ctx, cancel := h.runContext(r)
	defer cancel()
	run, err := h.events.Run(ctx, app.RunRequest{
		Now:           h.now(),
		Trigger:       notification.TriggerEvent,
		ChargeIDs:     []string{ev.ChargeID},
		ImmediateOnly: true,
		Busy:          app.BusyWait,
	})
	if err != nil {
		h.fail(w, "payment_webhook", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toRunResponse(run))
}

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func timeQuery(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid " + key + ": expected RFC3339")
	}
	return t, nil
}
