package telegram

import (
	"gopkg.in/telebot.v3"
)

// Messenger sends a text message to a Telegram chat.
type Messenger interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

// BotMessenger is the Messenger backed by a live *telebot.Bot.
type BotMessenger struct {
	bot *telebot.Bot
}

func NewBotMessenger(b *telebot.Bot) *BotMessenger {
	return &BotMessenger{bot: b}
}

// SendMessage delivers text to chatID. Nil options send plain text.
func (m *BotMessenger) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	opts := []interface{}{}
	if options != nil {
		opts = append(opts, options)
	}
	_, err := m.bot.Send(telebot.ChatID(chatID), text, opts...)
	return err
}
