// Package telemetry provides structured process logging (logrus, grounded on
// r3e-network-service_layer's infrastructure/logging) and an append-only
// JSONL audit sink for league-lifecycle events (FileLogger, in filelog.go).
package telemetry

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	conversationIDKey contextKey = "conversation_id"
	agentIDKey        contextKey = "agent_id"
)

// Logger wraps logrus.Logger with the agent's identity baked in.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a new Logger instance for the given component.
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "event",
			},
		})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv builds a Logger from LOG_LEVEL / LOG_FORMAT environment
// variables, defaulting to "info" / "json".
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext attaches conversation/agent identifiers carried on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if cid := ConversationID(ctx); cid != "" {
		entry = entry.WithField("conversation_id", cid)
	}
	if aid := AgentID(ctx); aid != "" {
		entry = entry.WithField("agent_id", aid)
	}
	return entry
}

// WithFields creates a logger entry with custom fields plus the component.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithConversationID adds a conversation ID to ctx.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, id)
}

// ConversationID retrieves the conversation ID from ctx.
func ConversationID(ctx context.Context) string {
	if v, ok := ctx.Value(conversationIDKey).(string); ok {
		return v
	}
	return ""
}

// WithAgentID adds an agent ID to ctx.
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, agentIDKey, id)
}

// AgentID retrieves the agent ID from ctx.
func AgentID(ctx context.Context) string {
	if v, ok := ctx.Value(agentIDKey).(string); ok {
		return v
	}
	return ""
}
