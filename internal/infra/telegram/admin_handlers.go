package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cobrancazap/internal/app"
	"cobrancazap/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Erro: você não tem permissão para executar este comando."

// Registrar is the subset of *telebot.Bot used to wire handlers.
type Registrar interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

// AdminHandlers serves the administrator commands.
type AdminHandlers struct {
	ctx        context.Context
	admin      *app.AdminService
	baseLogger *logrus.Entry
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b Registrar, adminService *app.AdminService, baseLogger *logrus.Entry) *AdminHandlers {
	h := &AdminHandlers{ctx: ctx, admin: adminService, baseLogger: baseLogger}
	b.Handle("/rules", h.adminOnly("/rules", h.handleRules))
	b.Handle("/enable", h.adminOnly("/enable", h.handleToggle(true)))
	b.Handle("/disable", h.adminOnly("/disable", h.handleToggle(false)))
	b.Handle("/lead_days", h.adminOnly("/lead_days", h.handleLeadDays))
	b.Handle("/antispam", h.adminOnly("/antispam", h.handleAntiSpam))
	b.Handle("/cooldown", h.adminOnly("/cooldown", h.handleCooldown))
	b.Handle("/run_now", h.adminOnly("/run_now", h.handleRunNow))
	b.Handle("/pause", h.adminOnly("/pause", h.handlePause))
	b.Handle("/resume", h.adminOnly("/resume", h.handleResume))
	b.Handle("/status", h.adminOnly("/status", h.handleStatus))
	b.Handle("/runs", h.adminOnly("/runs", h.handleRuns))
	b.Handle(telebot.OnCallback, h.handleCallback)
	return h
}

type adminHandlerFunc func(c telebot.Context, log *logrus.Entry) error

func (h *AdminHandlers) adminOnly(command string, next adminHandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		handlerLogger := h.baseLogger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := h.admin.Authorize(c.Sender().ID); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}
		return next(c, handlerLogger)
	}
}

func (h *AdminHandlers) handleRules(c telebot.Context, log *logrus.Entry) error {
	rules, err := h.admin.ListRules(h.ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list rules")
		return c.Send(fmt.Sprintf("Ocorreu um erro ao listar os agendamentos: %s", err.Error()))
	}
	if len(rules) == 0 {
		return c.Send("Nenhum agendamento configurado.")
	}

	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	var response strings.Builder
	response.WriteString("--- Agendamentos ---\n")
	for _, r := range rules {
		response.WriteString(formatRule(r))
		response.WriteString("\n")

		toggle := markup.Data("Ativar "+r.ID, toggleData(r.ID, true))
		if r.Enabled {
			toggle = markup.Data("Desativar "+r.ID, toggleData(r.ID, false))
		}
		rows = append(rows, markup.Row(toggle, markup.Data("Executar", runData(r.ID))))
	}
	markup.Inline(rows...)
	log.WithField("rules_count", len(rules)).Info("Rules listed")
	return c.Send(response.String(), markup)
}

func (h *AdminHandlers) handleToggle(enabled bool) adminHandlerFunc {
	return func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send("Formato inválido. Use: /enable <id> ou /disable <id>")
		}
		return c.Send(h.toggle(args[0], enabled, log))
	}
}

func (h *AdminHandlers) toggle(ruleID string, enabled bool, log *logrus.Entry) string {
	rule, err := h.admin.SetRuleEnabled(h.ctx, ruleID, enabled)
	if err != nil {
		if errors.Is(err, app.ErrRuleNotFound) {
			log.WithField("rule_id", ruleID).Warn("Rule not found")
			return fmt.Sprintf("Agendamento %q não encontrado.", ruleID)
		}
		log.WithError(err).Error("Failed to toggle rule")
		return fmt.Sprintf("Ocorreu um erro ao atualizar o agendamento: %s", err.Error())
	}
	return "Configuração atualizada!\n" + formatRule(*rule)
}

func (h *AdminHandlers) handleLeadDays(c telebot.Context, log *logrus.Entry) error {
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Formato inválido. Use: /lead_days <id> <dias>")
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Send("Erro: o número de dias deve ser um número.")
	}
	rule, err := h.admin.SetLeadDays(h.ctx, args[0], days)
	if err != nil {
		logWithError := log.WithError(err)
		switch {
		case errors.Is(err, app.ErrRuleNotFound):
			logWithError.Warn("Rule not found")
			return c.Send(fmt.Sprintf("Agendamento %q não encontrado.", args[0]))
		case errors.Is(err, app.ErrInvalidLeadDays), errors.Is(err, app.ErrNotLeadDayRule):
			logWithError.Warn("Invalid lead days request")
			return c.Send("Erro: " + err.Error())
		default:
			logWithError.Error("Failed to update lead days")
			return c.Send(fmt.Sprintf("Ocorreu um erro ao atualizar o aviso prévio: %s", err.Error()))
		}
	}
	return c.Send(fmt.Sprintf("Aviso prévio atualizado: %d dia(s) antes do vencimento.\n%s", rule.LeadDays, formatRule(*rule)))
}

func (h *AdminHandlers) handleAntiSpam(c telebot.Context, log *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return c.Send("Formato inválido. Use: /antispam on|off")
	}
	s := h.admin.SetAntiSpam(args[0] == "on")
	log.WithField("anti_spam", s.AntiSpamEnabled).Info("Anti-spam updated")
	return c.Send(formatSettings(s))
}

func (h *AdminHandlers) handleCooldown(c telebot.Context, log *logrus.Entry) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Formato inválido. Use: /cooldown <dias>")
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Send("Erro: o número de dias deve ser um número.")
	}
	s, err := h.admin.SetCooldownDays(days)
	if err != nil {
		log.WithError(err).Warn("Invalid cooldown")
		return c.Send("Erro: " + err.Error())
	}
	return c.Send(formatSettings(s))
}

func (h *AdminHandlers) handleRunNow(c telebot.Context, log *logrus.Entry) error {
	ruleID := ""
	if args := c.Args(); len(args) > 0 {
		ruleID = args[0]
	}
	return c.Send(h.runNow(ruleID, log))
}

func (h *AdminHandlers) runNow(ruleID string, log *logrus.Entry) string {
	run, err := h.admin.RunNow(h.ctx, ruleID)
	if err != nil {
		logWithError := log.WithError(err).WithField("rule_id", ruleID)
		switch {
		case errors.Is(err, app.ErrRuleNotFound):
			logWithError.Warn("Rule not found")
			return fmt.Sprintf("Agendamento %q não encontrado.", ruleID)
		case errors.Is(err, app.ErrBusy):
			logWithError.Warn("Run rejected, another run in progress")
			return "Já existe uma execução em andamento. Tente novamente em instantes."
		default:
			logWithError.Error("Manual run failed")
			if run.ID != "" {
				return "Execução interrompida.\n" + formatRun(run) + "\nErro: " + err.Error()
			}
			return fmt.Sprintf("Ocorreu um erro na execução: %s", err.Error())
		}
	}
	return "Execução concluída.\n" + formatRun(run)
}

func (h *AdminHandlers) handlePause(c telebot.Context, log *logrus.Entry) error {
	h.admin.Pause()
	log.Info("Scheduler paused by admin")
	return c.Send("Agendamentos pausados. Uma execução em andamento será concluída normalmente.")
}

func (h *AdminHandlers) handleResume(c telebot.Context, log *logrus.Entry) error {
	h.admin.Resume()
	log.Info("Scheduler resumed by admin")
	return c.Send("Agendamentos iniciados.")
}

func (h *AdminHandlers) handleStatus(c telebot.Context, _ *logrus.Entry) error {
	st := h.admin.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", stateLabel(st.State))
	if st.Paused && st.State == notification.StateRunning {
		b.WriteString("(pausado após a execução atual)\n")
	}
	b.WriteString(formatSettings(st.Settings))
	if st.LastRun != nil {
		b.WriteString("\nÚltima execução:\n")
		b.WriteString(formatRun(*st.LastRun))
	}
	return c.Send(b.String())
}

func (h *AdminHandlers) handleRuns(c telebot.Context, log *logrus.Entry) error {
	runs, err := h.admin.RecentRuns(h.ctx, 10)
	if err != nil {
		log.WithError(err).Error("Failed to list runs")
		return c.Send(fmt.Sprintf("Ocorreu um erro ao listar as execuções: %s", err.Error()))
	}
	if len(runs) == 0 {
		return c.Send("Nenhuma execução registrada.")
	}
	var b strings.Builder
	b.WriteString("--- Histórico de Execuções ---\n")
	for _, r := range runs {
		b.WriteString(formatRun(r))
		b.WriteString("\n")
	}
	return c.Send(b.String())
}

// Callback data: "rule_on:<id>", "rule_off:<id>", "rule_run:<id>".
func toggleData(ruleID string, enabled bool) string {
	if enabled {
		return "rule_on:" + ruleID
	}
	return "rule_off:" + ruleID
}

func runData(ruleID string) string {
	return "rule_run:" + ruleID
}

func (h *AdminHandlers) handleCallback(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	log := h.baseLogger.WithFields(logrus.Fields{"handler": "callback", "sender_id": c.Sender().ID})
	if err := h.admin.Authorize(c.Sender().ID); err != nil {
		log.Warn("Unauthorized callback")
		return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
	}

	// telebot prefixes unique-less data with "\f"
	data := strings.TrimPrefix(cb.Data, "\f")
	action, ruleID, ok := strings.Cut(data, ":")
	if !ok || ruleID == "" {
		log.WithField("data", cb.Data).Warn("Invalid callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Erro ao processar a ação."})
	}

	var reply string
	switch action {
	case "rule_on":
		reply = h.toggle(ruleID, true, log)
	case "rule_off":
		reply = h.toggle(ruleID, false, log)
	case "rule_run":
		reply = h.runNow(ruleID, log)
	default:
		log.WithField("data", cb.Data).Warn("Unknown callback action")
		return c.Respond(&telebot.CallbackResponse{Text: "Ação desconhecida."})
	}
	if err := c.Respond(&telebot.CallbackResponse{}); err != nil {
		log.WithError(err).Warn("Failed to answer callback")
	}
	return c.Send(reply)
}

func formatRule(r notification.Rule) string {
	status := "Inativo"
	if r.Enabled {
		status = "Ativo"
	}
	line := fmt.Sprintf("%s | %s | Horário: %s | %s", r.ID, r.Name, scheduleLabel(r.ScheduleTime), status)
	if r.Kind == notification.KindPreDueReminder {
		line += fmt.Sprintf(" | %d dia(s) antes", r.LeadDays)
	}
	return line
}

func scheduleLabel(st notification.ScheduleTime) string {
	if st.Immediate {
		return "Imediato"
	}
	return st.String()
}

func formatSettings(s notification.ThrottleSettings) string {
	if !s.AntiSpamEnabled {
		return "Modo Anti-SPAM: desativado"
	}
	return fmt.Sprintf("Modo Anti-SPAM: ativado (enviar a cada %d dias)", s.CooldownDays)
}

func formatRun(r notification.Run) string {
	scope := "todos"
	if len(r.RuleIDs) > 0 {
		scope = strings.Join(r.RuleIDs, ",")
	}
	return fmt.Sprintf("%s [%s] %s: %d/%d enviadas, %d falha(s), %d suprimida(s)",
		r.StartedAt.Format("02/01/2006 15:04"), r.Trigger, scope, r.Sent, r.Attempted, r.Failed, r.Suppressed)
}

func stateLabel(s notification.EngineState) string {
	switch s {
	case notification.StateRunning:
		return "Em execução"
	case notification.StatePaused:
		return "Pausado"
	default:
		return "Aguardando"
	}
}
