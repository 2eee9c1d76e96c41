package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"cobrancazap/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "cobrancazap"

// Log is the process-wide logger. Packages receive entries derived from it.
var Log = logrus.New()

// Init configures Log from the application config: JSON output in
// production and staging, coloured text elsewhere.
func Init(cfg *config.AppConfig) {
	if err := configure(Log, cfg.LogLevel, cfg.Environment, os.Stdout); err != nil {
		Log.WithError(err).Warn("Invalid log level, defaulting to info")
	}
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Info("Logger initialized")
}

func configure(l *logrus.Logger, level, environment string, out io.Writer) error {
	l.SetOutput(out)

	switch environment {
	case "production", "staging":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		return fmt.Errorf("log level %q: %w", level, err)
	}
	l.SetLevel(parsed)
	return nil
}

// Component returns an entry tagged with the service and component names.
func Component(name string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{"service": serviceName, "component": name})
}

// Discard returns an entry that writes nowhere. Meant for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
