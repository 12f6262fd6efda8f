package events

import (
	"context"
	"log/slog"
)

// AuditPublisher writes an audit log entry for every configuration event.
type AuditPublisher struct {
	logger *slog.Logger
}

// NewAuditPublisher logs to logger, or to slog.Default when logger is nil.
func NewAuditPublisher(logger *slog.Logger) *AuditPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPublisher{logger: logger.With("audit", true)}
}

func (p *AuditPublisher) Publish(ctx context.Context, topic string, event any) error {
	var (
		action, id, key, label, correlationID string
		dataType                              any
	)
	switch e := event.(type) {
	case ConfigurationCreated:
		action, id, key, label, dataType, correlationID = "CREATE", e.ConfigurationID, e.Key, e.Label, e.DataType, e.CorrelationID
	case ConfigurationUpdated:
		action, id, key, label, dataType, correlationID = "UPDATE", e.ConfigurationID, e.Key, e.Label, e.DataType, e.CorrelationID
	case ConfigurationDeleted:
		action, id, key, label, dataType, correlationID = "DELETE", e.ConfigurationID, e.Key, e.Label, e.DataType, e.CorrelationID
	default:
		return nil
	}
	if correlationID == "" {
		correlationID = CorrelationIDFromContext(ctx)
	}

	attrs := []any{
		"topic", topic,
		"action", action,
		"resource_type", "configuration",
		"resource_id", id,
		"correlation_id", correlationID,
		"key", key,
		"label", label,
		"data_type", dataType,
	}
	if e, ok := event.(ConfigurationUpdated); ok {
		attrs = append(attrs, "changes", e.Changes)
	}
	p.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}

func (p *AuditPublisher) Close() error { return nil }
