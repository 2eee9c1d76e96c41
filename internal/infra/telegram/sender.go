package telegram

import (
	"context"
	"fmt"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

// Sender delivers notifications to the customer's linked Telegram chat.
type Sender struct {
	messenger Messenger
	customers billing.CustomerRepository
}

func NewSender(m Messenger, customers billing.CustomerRepository) *Sender {
	return &Sender{messenger: m, customers: customers}
}

func (s *Sender) Send(ctx context.Context, charge billing.Charge, rule notification.Rule, message string) error {
	customer, err := s.customers.GetByID(ctx, charge.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer %s: %w", charge.CustomerID, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %s not found", charge.CustomerID)
	}
	if customer.TelegramChatID == 0 {
		return fmt.Errorf("customer %s has no linked telegram chat", customer.ID)
	}
	if err := s.messenger.SendMessage(customer.TelegramChatID, message, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}); err != nil {
		return fmt.Errorf("telegram send for charge %s rule %s: %w", charge.ID, rule.ID, err)
	}
	return nil
}
