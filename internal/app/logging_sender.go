package app

import (
	"context"

	"cobrancazap/internal/domain/billing"
	"cobrancazap/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// LoggingSender is a dry-run sender: it logs the message and reports success.
// Used when no messaging transport is configured.
type LoggingSender struct {
	logger *logrus.Entry
}

func NewLoggingSender(logger *logrus.Entry) *LoggingSender {
	return &LoggingSender{logger: logger}
}

func (s *LoggingSender) Send(_ context.Context, charge billing.Charge, rule notification.Rule, message string) error {
	s.logger.WithFields(logrus.Fields{
		"charge_id":   charge.ID,
		"customer_id": charge.CustomerID,
		"rule_id":     rule.ID,
	}).Infof("DRY RUN notification:\n%s", message)
	return nil
}
