package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type logrusLogger struct {
	service  string
	hostname string
	log      *logrus.Logger
}

func New(service string) Logger {
	hostname, _ := os.Hostname()

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	l.SetLevel(logrus.DebugLevel)
	l.SetOutput(os.Stdout)

	return &logrusLogger{
		service:  service,
		hostname: hostname,
		log:      l,
	}
}

func (l *logrusLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.entry(action, requestID, details).Info(message)
}

func (l *logrusLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.entry(action, requestID, details).Debug(message)
}

func (l *logrusLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	entry := l.entry(action, requestID, details)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

func (l *logrusLogger) entry(action, requestID string, details map[string]interface{}) *logrus.Entry {
	fields := logrus.Fields{
		"service":    l.service,
		"hostname":   l.hostname,
		"action":     action,
		"request_id": requestID,
	}
	if details != nil {
		fields["details"] = details
	}
	return l.log.WithFields(fields)
}
