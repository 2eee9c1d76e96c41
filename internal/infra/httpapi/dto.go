package httpapi

import (
	"time"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/notification"
)

type ruleResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Enabled      bool   `json:"enabled"`
	ScheduleTime string `json:"schedule_time"`
	LeadDays     int    `json:"lead_days,omitempty"`
	TemplateID   string `json:"template_id,omitempty"`
}

func toRuleResponse(r notification.Rule) ruleResponse {
	return ruleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Kind:         string(r.Kind),
		Enabled:      r.Enabled,
		ScheduleTime: r.ScheduleTime.String(),
		LeadDays:     r.LeadDays,
		TemplateID:   r.TemplateID,
	}
}

type runResponse struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	RuleIDs    []string  `json:"rule_ids,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Attempted  int       `json:"attempted"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Suppressed int       `json:"suppressed"`
	Error      string    `json:"error,omitempty"`
}

func toRunResponse(r notification.Run) runResponse {
	return runResponse{
		ID:         r.ID,
		Trigger:    string(r.Trigger),
		RuleIDs:    r.RuleIDs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Attempted:  r.Attempted,
		Sent:       r.Sent,
		Failed:     r.Failed,
		Suppressed: r.Suppressed,
		Error:      r.Error,
	}
}

type recordResponse struct {
	ID       string    `json:"id"`
	RunID    string    `json:"run_id"`
	ChargeID string    `json:"charge_id"`
	RuleID   string    `json:"rule_id"`
	SentAt   time.Time `json:"sent_at"`
	Outcome  string    `json:"outcome"`
	Error    string    `json:"error,omitempty"`
}

func toRecordResponse(r notification.Record) recordResponse {
	return recordResponse{
		ID:       r.ID,
		RunID:    r.RunID,
		ChargeID: r.ChargeID,
		RuleID:   r.RuleID,
		SentAt:   r.SentAt,
		Outcome:  string(r.Outcome),
		Error:    r.Error,
	}
}

type settingsBody struct {
	AntiSpamEnabled *bool `json:"anti_spam_enabled"`
	CooldownDays    *int  `json:"cooldown_days"`
}

type settingsResponse struct {
	AntiSpamEnabled bool `json:"anti_spam_enabled"`
	CooldownDays    int  `json:"cooldown_days"`
}

type statusResponse struct {
	State    string           `json:"state"`
	Paused   bool             `json:"paused"`
	Settings settingsResponse `json:"settings"`
	LastRun  *runResponse     `json:"last_run,omitempty"`
	NextRun  *time.Time       `json:"next_run,omitempty"`
}

func toStatusResponse(st app.Status) statusResponse {
	out := statusResponse{
		State:  string(st.State),
		Paused: st.Paused,
		Settings: settingsResponse{
			AntiSpamEnabled: st.Settings.AntiSpamEnabled,
			CooldownDays:    st.Settings.CooldownDays,
		},
	}
	if st.LastRun != nil {
		r := toRunResponse(*st.LastRun)
		out.LastRun = &r
	}
	return out
}

type runNowBody struct {
	RuleID string `json:"rule_id"`
}

type leadDaysBody struct {
	LeadDays int `json:"lead_days"`
}

// paymentEvent is the provider-agnostic webhook payload. The engine does not
// update the ledger from it; it only wakes the immediate rules for that charge.
type paymentEvent struct {
	Event    string `json:"event"`
	ChargeID string `json:"charge_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}
