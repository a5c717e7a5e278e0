package sinks

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Jamesmykil253/MoBa-sub001/logging"
)

// ConsoleSink renders events through the process zap logger.
type ConsoleSink struct {
	logger *zap.Logger
}

func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSink{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.Uint64("tick", event.Tick), zap.String("actor", formatEntity(event.Actor)))
	if len(event.Targets) > 0 {
		fields = append(fields, zap.String("targets", formatTargets(event.Targets)))
	}
	if event.Category != "" {
		fields = append(fields, zap.String("category", event.Category))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}

	msg := string(event.Type)
	switch event.Severity {
	case logging.SeverityDebug:
		s.logger.Debug(msg, fields...)
	case logging.SeverityWarn:
		s.logger.Warn(msg, fields...)
	case logging.SeverityError:
		s.logger.Error(msg, fields...)
	default:
		s.logger.Info(msg, fields...)
	}
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatTargets(targets []logging.EntityRef) string {
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}
