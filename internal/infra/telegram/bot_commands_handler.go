// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"cobrancazap/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b Registrar, adminService *app.AdminService, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if adminService.Authorize(senderID) == nil {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Olá, Administrador %s! O motor de cobranças está pronto. Use /help para ver os comandos.", c.Sender().FirstName))
		}

		// Customers link their chat through the billing system; the id is what they need to share.
		logCtx.Info("User is not an admin")
		return c.Send(fmt.Sprintf("Olá! Este é o canal de avisos de cobrança. Seu identificador de chat é %d.", c.Chat().ID))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if adminService.Authorize(senderID) != nil {
			logCtx.Info("User is not an admin, sending restricted help.")
			return c.Send("Você receberá aqui os avisos de vencimento e confirmações de pagamento das suas cobranças.")
		}

		var helpText strings.Builder
		helpText.WriteString("Comandos do Administrador:\n\n")
		helpText.WriteString("`/rules`\n - Listar agendamentos.\n\n")
		helpText.WriteString("`/enable <id>` / `/disable <id>`\n - Ativar ou desativar um agendamento.\n\n")
		helpText.WriteString("`/lead_days <id> <dias>`\n - Dias de antecedência do aviso prévio.\n\n")
		helpText.WriteString("`/antispam on|off`\n - Ligar ou desligar o modo Anti-SPAM.\n\n")
		helpText.WriteString("`/cooldown <dias>`\n - Intervalo entre avisos de cobranças vencidas.\n\n")
		helpText.WriteString("`/run_now [id]`\n - Executar agora (todos ou um agendamento).\n\n")
		helpText.WriteString("`/pause` / `/resume`\n - Pausar ou iniciar os agendamentos.\n\n")
		helpText.WriteString("`/status`, `/runs`\n - Estado atual e histórico de execuções.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
