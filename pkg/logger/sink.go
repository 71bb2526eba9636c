package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thetechidea/beepdatasources/pkg/errors"
)

// Severity tags a diagnostic record written to a Sink.
type Severity string

const (
	SeverityDebug Severity = "Debug"
	SeverityInfo  Severity = "Info"
	SeverityWarn  Severity = "Warn"
	SeverityError Severity = "Error"
)

// Sink receives diagnostic records from the failure paths of the core.
// It is only written to, never consulted for control flow.
type Sink interface {
	WriteLog(severity Severity, message string, ts time.Time, code int, context string, flag errors.Flag)
}

// ZapSink forwards sink records to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a Sink backed by l, or by the global logger when l is nil.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = Get()
	}
	return &ZapSink{logger: l}
}

// WriteLog implements Sink.
func (s *ZapSink) WriteLog(severity Severity, message string, ts time.Time, code int, context string, flag errors.Flag) {
	ce := s.logger.Check(severity.level(), message)
	if ce == nil {
		return
	}
	ce.Time = ts
	ce.Write(
		zap.Int("code", code),
		zap.String("context", context),
		zap.Stringer("flag", flag),
	)
}

func (s Severity) level() zapcore.Level {
	switch s {
	case SeverityDebug:
		return zapcore.DebugLevel
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(severity Severity, message string, ts time.Time, code int, context string, flag errors.Flag)

// WriteLog implements Sink.
func (f SinkFunc) WriteLog(severity Severity, message string, ts time.Time, code int, context string, flag errors.Flag) {
	f(severity, message, ts, code, context, flag)
}
